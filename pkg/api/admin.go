package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/cellgrid/strata/pkg/types"
)

// ── Platform config ─────────────────────────────────────────────────

func (s *Server) handleListConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.ListConfig()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"config": entries})
}

func (s *Server) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	entry, err := s.store.GetConfig(chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, entry)
}

// handleSetConfig stores a config value. Values arrive as arbitrary JSON and
// are stored as their string rendering.
func (s *Server) handleSetConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var body map[string]interface{}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}
	raw, ok := body["value"]
	if !ok {
		respondError(w, http.StatusBadRequest, "Request body must include 'value'")
		return
	}

	value := stringifyValue(raw)
	if err := s.store.SetConfig(key, value); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"key": key, "value": value})
}

func (s *Server) handleDeleteConfig(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	// The store delete is idempotent, so existence is checked up front.
	if _, err := s.store.GetConfig(key); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Config key '%s' not found", key))
			return
		}
		writeError(w, err)
		return
	}
	if err := s.store.DeleteConfig(key); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "key": key})
}

// ── Provider definitions ────────────────────────────────────────────

func (s *Server) handleAdminListProviders(w http.ResponseWriter, r *http.Request) {
	providers, err := s.store.ListProviders()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"providers": providers})
}

func (s *Server) handleAdminSaveProvider(w http.ResponseWriter, r *http.Request) {
	s.saveProvider(w, r, "")
}

func (s *Server) handleAdminUpdateProvider(w http.ResponseWriter, r *http.Request) {
	s.saveProvider(w, r, chi.URLParam(r, "name"))
}

// saveProvider upserts a provider definition. Omitted fields fall back to
// operational defaults so a minimal {"name": "aws"} row is usable.
func (s *Server) saveProvider(w http.ResponseWriter, r *http.Request, name string) {
	var body struct {
		Name            string                 `json:"name"`
		DisplayName     string                 `json:"display_name"`
		Enabled         *bool                  `json:"enabled"`
		CredentialsType string                 `json:"credentials_type"`
		CredentialsRef  string                 `json:"credentials_ref"`
		Regions         []string               `json:"regions"`
		Settings        map[string]interface{} `json:"settings"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}
	if name != "" {
		body.Name = name
	}
	if body.Name == "" {
		respondError(w, http.StatusBadRequest, "'name' is required")
		return
	}

	def := &types.ProviderDefinition{
		Name:            body.Name,
		DisplayName:     body.DisplayName,
		Enabled:         true,
		CredentialsType: body.CredentialsType,
		CredentialsRef:  body.CredentialsRef,
		Regions:         body.Regions,
		Settings:        body.Settings,
		UpdatedAt:       time.Now().UTC(),
	}
	if def.DisplayName == "" {
		def.DisplayName = strings.ToUpper(def.Name)
	}
	if body.Enabled != nil {
		def.Enabled = *body.Enabled
	}
	if def.CredentialsType == "" {
		def.CredentialsType = "secret"
	}

	if err := s.store.CreateProvider(def); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "saved", "provider": def})
}

func (s *Server) handleAdminDeleteProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := s.store.GetProvider(name); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("Provider '%s' not found", name))
			return
		}
		writeError(w, err)
		return
	}
	if err := s.store.DeleteProvider(name); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "provider": name})
}

// ── DR policies ─────────────────────────────────────────────────────

var validDRStrategies = []string{
	types.StrategyActiveActive,
	types.StrategyActivePassive,
	types.StrategyWarmStandby,
	types.StrategyPilotLight,
	types.StrategyBackupRestore,
}

func (s *Server) handleListDRPolicies(w http.ResponseWriter, r *http.Request) {
	policies, err := s.store.ListDRPolicies()
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"policies": policies})
}

func (s *Server) handleGetDRPolicy(w http.ResponseWriter, r *http.Request) {
	policy, err := s.store.GetDRPolicy(chi.URLParam(r, "tier"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"policy": policy})
}

func (s *Server) handleSetDRPolicy(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")

	var body struct {
		Strategy          string                 `json:"strategy"`
		FailoverProviders []string               `json:"failover_providers"`
		AutoFailover      bool                   `json:"auto_failover"`
		RTOTargetMinutes  *int                   `json:"rto_target_minutes"`
		RPOTargetMinutes  *int                   `json:"rpo_target_minutes"`
		Settings          map[string]interface{} `json:"settings"`
	}
	if err := decodeBody(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return
	}

	if body.Strategy == "" {
		body.Strategy = types.StrategyActivePassive
	}
	if !lo.Contains(validDRStrategies, body.Strategy) {
		respondError(w, http.StatusBadRequest,
			fmt.Sprintf("strategy must be one of %v", validDRStrategies))
		return
	}

	policy := &types.DRPolicy{
		Tier:              tier,
		Strategy:          body.Strategy,
		FailoverProviders: body.FailoverProviders,
		AutoFailover:      body.AutoFailover,
		RTOTargetMinutes:  60,
		RPOTargetMinutes:  5,
		Settings:          body.Settings,
		UpdatedAt:         time.Now().UTC(),
	}
	if body.RTOTargetMinutes != nil {
		policy.RTOTargetMinutes = *body.RTOTargetMinutes
	}
	if body.RPOTargetMinutes != nil {
		policy.RPOTargetMinutes = *body.RPOTargetMinutes
	}

	if err := s.store.SetDRPolicy(policy); err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "saved", "policy": policy})
}

func (s *Server) handleDeleteDRPolicy(w http.ResponseWriter, r *http.Request) {
	tier := chi.URLParam(r, "tier")

	if err := s.store.DeleteDRPolicy(tier); err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("DR policy for tier '%s' not found", tier))
			return
		}
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "deleted", "tier": tier})
}

// ── Saga executions ─────────────────────────────────────────────────

func (s *Server) handleListSagas(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)

	var sagas []*types.SagaExecution
	var err error
	if state := r.URL.Query().Get("state"); state != "" {
		sagas, err = s.store.ListSagasByState(types.SagaState(state))
	} else {
		sagas, err = s.store.ListSagas()
	}
	if err != nil {
		writeError(w, err)
		return
	}

	sort.Slice(sagas, func(i, j int) bool {
		return sagas[i].CreatedAt.After(sagas[j].CreatedAt)
	})
	if limit > 0 && len(sagas) > limit {
		sagas = sagas[:limit]
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"sagas": sagas})
}

func (s *Server) handleGetSaga(w http.ResponseWriter, r *http.Request) {
	saga, err := s.store.GetSaga(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"saga": saga})
}

func (s *Server) handleRetrySaga(w http.ResponseWriter, r *http.Request) {
	saga, err := s.orch.RetrySaga(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "retrying", "saga": saga})
}

// ── Placement history ───────────────────────────────────────────────

func (s *Server) handleListPlacements(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	product := r.URL.Query().Get("product")
	status := r.URL.Query().Get("status")

	var placements []*types.Placement
	var err error
	switch {
	case product != "":
		placements, err = s.store.ListPlacementsByProduct(product)
	case status != "":
		placements, err = s.store.ListPlacementsByStatus(types.PlacementStatus(status))
	default:
		placements, err = s.store.ListPlacements()
	}
	if err != nil {
		writeError(w, err)
		return
	}
	if product != "" && status != "" {
		placements = lo.Filter(placements, func(p *types.Placement, _ int) bool {
			return p.Status == types.PlacementStatus(status)
		})
	}

	sort.Slice(placements, func(i, j int) bool {
		return placements[i].CreatedAt.After(placements[j].CreatedAt)
	})
	if limit > 0 && len(placements) > limit {
		placements = placements[:limit]
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"placements": placements})
}

func (s *Server) handleGetPlacement(w http.ResponseWriter, r *http.Request) {
	placement, err := s.store.GetPlacement(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"placement": placement})
}

// ── Audit log ───────────────────────────────────────────────────────

// handleAuditLog serves the audit trail newest first. Store-side pagination
// only supports a raw limit, so filtered queries scan the full log.
func (s *Server) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 100)
	action := r.URL.Query().Get("action")
	product := r.URL.Query().Get("product")

	fetchLimit := limit
	if action != "" || product != "" {
		fetchLimit = 0
	}
	entries, err := s.store.ListAudit(fetchLimit)
	if err != nil {
		writeError(w, err)
		return
	}

	if action != "" || product != "" {
		entries = lo.Filter(entries, func(e *types.AuditEntry, _ int) bool {
			if action != "" && e.Action != action {
				return false
			}
			if product != "" && e.Product != product {
				return false
			}
			return true
		})
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"entries": entries})
}

// ── Helpers ─────────────────────────────────────────────────────────

func queryLimit(r *http.Request, fallback int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return fallback
	}
	return limit
}

// stringifyValue renders a decoded JSON value the way config consumers
// expect: bools as true/false, numbers without a trailing exponent.
func stringifyValue(v interface{}) string {
	switch value := v.(type) {
	case string:
		return value
	case bool:
		return strconv.FormatBool(value)
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", value)
	}
}
