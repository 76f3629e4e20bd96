package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_ = json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message})
}

// writeError maps the domain error taxonomy onto HTTP status codes:
// validation 400, not found 404, conflict 409, scheduling and saga
// failures 422, provisioner outage 502.
func writeError(w http.ResponseWriter, err error) {
	var validationErr *types.ValidationError
	if errors.As(err, &validationErr) {
		respondJSON(w, http.StatusBadRequest, map[string]interface{}{
			"error":   "Validation failed",
			"details": validationErr.Violations,
		})
		return
	}

	var notFoundErr *types.NotFoundError
	if errors.As(err, &notFoundErr) {
		respondError(w, http.StatusNotFound, notFoundErr.Error())
		return
	}

	var conflictErr *types.ConflictError
	if errors.As(err, &conflictErr) {
		respondError(w, http.StatusConflict, conflictErr.Error())
		return
	}

	var schedErr *types.SchedulingError
	if errors.As(err, &schedErr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":  schedErr.Message,
			"reason": string(schedErr.Kind),
		})
		return
	}

	var sagaErr *types.SagaError
	if errors.As(err, &sagaErr) {
		respondJSON(w, http.StatusUnprocessableEntity, map[string]interface{}{
			"error":   sagaErr.Error(),
			"saga_id": sagaErr.SagaID,
			"step":    sagaErr.Step,
		})
		return
	}

	if errors.Is(err, provisioner.ErrUnavailable) {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	respondError(w, http.StatusInternalServerError, err.Error())
}

// decodeBody decodes a JSON request body into dst, rejecting empty bodies.
func decodeBody(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return errors.New("request body required")
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}
