package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/types"
)

// handleProvidersHealth reports the operator health flag and breaker state
// for every provider in the scheduling pool.
func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	providers := s.sched.Model().Providers()
	health := make(map[string]bool, len(providers))
	breakers := make(map[string]types.BreakerSnapshot, len(providers))
	for _, view := range s.sched.Health().Views(providers) {
		health[view.Provider] = view.Healthy
		breakers[view.Provider] = view.Breaker
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"providers":        health,
		"circuit_breakers": breakers,
	})
}

func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	respondJSON(w, http.StatusOK, s.sched.Health().View(name))
}

// handleSetProviderHealth records an operator health decision. The live
// registry is the source of truth for scheduling; the store copy survives
// restarts.
func (s *Server) handleSetProviderHealth(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var body struct {
		Healthy *bool  `json:"healthy"`
		Reason  string `json:"reason"`
	}
	if err := decodeBody(r, &body); err != nil || body.Healthy == nil {
		respondError(w, http.StatusBadRequest, "Request body must include 'healthy' (boolean)")
		return
	}
	healthy := *body.Healthy

	s.sched.Health().SetProviderHealth(name, healthy)

	record := &types.ProviderHealth{
		Provider:  name,
		Healthy:   healthy,
		Reason:    body.Reason,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.store.SetProviderHealth(record); err != nil {
		s.logger.Error().Err(err).Str("provider", name).Msg("Failed to persist provider health")
	}

	state := "unhealthy"
	if healthy {
		state = "healthy"
	}
	s.broker.Publish(&events.Event{
		ID:      uuid.New().String(),
		Type:    events.EventProviderHealthChanged,
		Message: fmt.Sprintf("Provider '%s' marked as %s", name, state),
		Metadata: map[string]string{
			"provider": name,
			"healthy":  fmt.Sprintf("%t", healthy),
		},
	})

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"provider": name,
		"healthy":  healthy,
		"message":  fmt.Sprintf("Provider '%s' marked as %s", name, state),
	})
}

// handleAnalytics returns the placement analytics snapshot.
func (s *Server) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.sched.Analytics().Snapshot())
}
