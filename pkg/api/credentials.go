package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cellgrid/strata/pkg/credentials"
	"github.com/cellgrid/strata/pkg/types"
)

func (s *Server) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.creds.Summaries()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"credentials": summaries})
}

// handleGetCredentials returns one credential row with its payload masked.
// Raw secret material never leaves the manager.
func (s *Server) handleGetCredentials(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	row, masked, err := s.creds.Masked(provider)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("No credentials for provider '%s'", provider))
			return
		}
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"credentials": map[string]interface{}{
			"provider":     row.Provider,
			"cred_type":    row.Type,
			"validated":    row.Validated,
			"validated_at": row.ValidatedAt,
			"updated_at":   row.UpdatedAt,
			"cred_data":    masked,
		},
	})
}

func (s *Server) handleSaveCredentials(w http.ResponseWriter, r *http.Request) {
	var body map[string]interface{}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}

	provider := stringField(body, "provider")
	if provider == "" {
		respondError(w, http.StatusBadRequest, "'provider' is required")
		return
	}
	rawData, ok := body["cred_data"]
	if !ok {
		respondError(w, http.StatusBadRequest, "'cred_data' is required")
		return
	}
	fields, ok := rawData.(map[string]interface{})
	if !ok {
		respondError(w, http.StatusBadRequest, "'cred_data' must be a JSON object")
		return
	}

	credType := stringField(body, "cred_type")
	if credType == "" {
		credType = credentials.DefaultType
	}

	data := make(credentials.Data, len(fields))
	for key, value := range fields {
		data[key] = stringifyValue(value)
	}

	if err := s.creds.Save(provider, credType, data); err != nil {
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "saved",
		"provider":  provider,
		"cred_type": credType,
		"message":   fmt.Sprintf("Credentials for '%s' saved. Run validation to verify.", provider),
	})
}

func (s *Server) handleDeleteCredentials(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	if err := s.creds.Delete(provider); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("No credentials for provider '%s'", provider))
			return
		}
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "provider": provider})
}

// handleValidateCredentials runs the structural checks and reports 200 on a
// clean run, 422 when the payload is missing required fields.
func (s *Server) handleValidateCredentials(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")

	result, err := s.creds.Validate(provider)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondJSON(w, http.StatusNotFound, map[string]interface{}{
				"valid":    false,
				"provider": provider,
				"error":    "No credentials configured for this provider",
			})
			return
		}
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Valid {
		status = http.StatusUnprocessableEntity
	}
	respondJSON(w, status, result)
}
