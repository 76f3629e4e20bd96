package api

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/replication"
)

func (s *Server) handleListPairs(w http.ResponseWriter, r *http.Request) {
	pairs, err := s.pairs.Pairs()
	if err != nil {
		writeError(w, err)
		return
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].CreatedAt.After(pairs[j].CreatedAt)
	})
	respondJSON(w, http.StatusOK, map[string]interface{}{"pairs": pairs})
}

func (s *Server) handleGetPair(w http.ResponseWriter, r *http.Request) {
	pair, err := s.pairs.Pair(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"pair": pair})
}

// handlePairFailover runs the five-phase pair failover. A completed run is
// 200; an aborted one reports 422 with the failing step.
func (s *Server) handlePairFailover(w http.ResponseWriter, r *http.Request) {
	result, err := s.pairs.Failover(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if result.Status != replication.FailoverCompleted {
		status = http.StatusUnprocessableEntity
	}
	metrics.FailoversTotal.WithLabelValues(result.Status).Inc()

	respondJSON(w, status, result)
}

func (s *Server) handleUpdateLag(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var body struct {
		LagMS *int64 `json:"lag_ms"`
	}
	if err := decodeBody(r, &body); err != nil || body.LagMS == nil {
		respondError(w, http.StatusBadRequest, "Request body must include 'lag_ms' (integer)")
		return
	}

	pair, err := s.pairs.UpdateLag(id, *body.LagMS)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"pair": pair})
}
