package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/types"
)

func (s *Server) handleListExperiments(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"experiments": s.sched.Experiments().List(),
	})
}

func (s *Server) handleGetExperiment(w http.ResponseWriter, r *http.Request) {
	exp, err := s.sched.Experiments().Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"experiment": exp})
}

// handleCreateExperiment registers a scoring experiment in the live registry
// and persists it so a restart replays it.
func (s *Server) handleCreateExperiment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID                *string        `json:"id"`
		Description       *string        `json:"description"`
		VariantWeights    *types.Weights `json:"variant_weights"`
		TrafficPercentage *float64       `json:"traffic_percentage"`
		Tier              string         `json:"tier"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}

	var missing []string
	if body.ID == nil {
		missing = append(missing, "id")
	}
	if body.Description == nil {
		missing = append(missing, "description")
	}
	if body.VariantWeights == nil {
		missing = append(missing, "variant_weights")
	}
	if body.TrafficPercentage == nil {
		missing = append(missing, "traffic_percentage")
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("Missing required fields: %s", strings.Join(missing, ", ")))
		return
	}

	exp := &types.Experiment{
		ID:              *body.ID,
		Description:     *body.Description,
		VariantWeights:  *body.VariantWeights,
		TrafficFraction: *body.TrafficPercentage,
		Tier:            body.Tier,
		Enabled:         true,
	}
	if err := s.sched.Experiments().Create(exp); err != nil {
		writeError(w, err)
		return
	}
	if err := s.store.CreateExperiment(exp); err != nil {
		s.logger.Error().Err(err).Str("experiment", exp.ID).Msg("Failed to persist experiment")
	}

	s.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventExperimentCreated,
		Message: fmt.Sprintf("Experiment '%s' created", exp.ID),
		Metadata: map[string]string{
			"experiment_id": exp.ID,
			"tier":          exp.Tier,
		},
	})

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"status":     "created",
		"experiment": exp,
	})
}

func (s *Server) handleDeleteExperiment(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.sched.Experiments().Delete(id); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Experiment '%s' not found", id))
			return
		}
		writeError(w, err)
		return
	}
	if err := s.store.DeleteExperiment(id); err != nil {
		s.logger.Error().Err(err).Str("experiment", id).Msg("Failed to delete persisted experiment")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "id": id})
}

func (s *Server) handleListFlags(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"flags": s.sched.Experiments().Flags(),
	})
}

func (s *Server) handleGetFlag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	enabled, err := s.store.GetFlag(name)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Flag '%s' not found", name))
			return
		}
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"flag": name, "enabled": enabled})
}

func (s *Server) handleSetFlag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(r, &body); err != nil || body.Enabled == nil {
		respondError(w, http.StatusBadRequest, "Request body must include 'enabled' (boolean)")
		return
	}
	enabled := *body.Enabled

	s.sched.Experiments().SetFlag(name, enabled)
	if err := s.store.SetFlag(name, enabled); err != nil {
		s.logger.Error().Err(err).Str("flag", name).Msg("Failed to persist flag")
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"flag": name, "enabled": enabled})
}

func (s *Server) handleDeleteFlag(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := s.store.DeleteFlag(name); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Flag '%s' not found", name))
			return
		}
		writeError(w, err)
		return
	}
	s.sched.Experiments().DeleteFlag(name)

	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "flag": name})
}
