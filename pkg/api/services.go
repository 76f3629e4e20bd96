package api

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/cellgrid/strata/pkg/metrics"
	"github.com/cellgrid/strata/pkg/products"
	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

// Fields developers must not provide. The control plane decides them.
var forbiddenPlacementFields = []string{"network", "provider", "region", "runtimeCluster", "runtime_cluster"}

func (s *Server) handleListProducts(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"products": s.orch.Registry().List(),
	})
}

func (s *Server) handleCreateService(w http.ResponseWriter, r *http.Request) {
	s.createService(w, r, chi.URLParam(r, "product"))
}

// Product aliases. The generic handler does the work; the alias pins the
// product name.
func (s *Server) handleCreateDatabase(w http.ResponseWriter, r *http.Request) {
	s.createService(w, r, "mysql")
}

func (s *Server) handleCreateApp(w http.ResponseWriter, r *http.Request) {
	s.createService(w, r, "webapp")
}

func (s *Server) createService(w http.ResponseWriter, r *http.Request, productName string) {
	if _, ok := s.orch.Registry().Get(productName); !ok {
		s.respondUnknownProduct(w, productName, true)
		return
	}

	body, ok := s.decodeCreateBody(w, r)
	if !ok {
		return
	}
	req := liftCreateRequest(body)

	timer := metrics.NewTimer()
	result, err := s.orch.CreateService(r.Context(), productName, req)
	if err != nil {
		var schedErr *types.SchedulingError
		if errors.As(err, &schedErr) {
			metrics.SchedulingFailures.Inc()
		}
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Sticky {
		status = http.StatusOK
	} else {
		timer.ObserveDuration(metrics.SchedulingLatency)
		metrics.PlacementsScheduled.Inc()
	}
	respondJSON(w, status, result)
}

func (s *Server) handleMulticloudDeploy(w http.ResponseWriter, r *http.Request) {
	productName := chi.URLParam(r, "product")
	if _, ok := s.orch.Registry().Get(productName); !ok {
		s.respondUnknownProduct(w, productName, true)
		return
	}

	body, ok := s.decodeCreateBody(w, r)
	if !ok {
		return
	}
	targets := stringSlice(body["target_providers"])
	delete(body, "target_providers")
	req := liftCreateRequest(body)

	result, err := s.orch.DeployMulticloud(r.Context(), productName, req, targets)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleServiceStatus(w http.ResponseWriter, r *http.Request) {
	productName := chi.URLParam(r, "product")
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")

	def, ok := s.orch.Registry().Get(productName)
	if !ok {
		s.respondUnknownProduct(w, productName, false)
		return
	}

	ref := provisioner.Ref{APIVersion: def.APIVersion, Kind: def.Kind, Namespace: namespace, Name: name}
	claim, err := s.orch.Provisioner().Get(r.Context(), ref)
	if err != nil {
		var nf *types.NotFoundError
		if errors.As(err, &nf) {
			respondError(w, http.StatusNotFound, fmt.Sprintf("%s '%s/%s' not found", def.Kind, namespace, name))
			return
		}
		writeError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"product": productName,
		"claim":   claim,
		"connectionSecret": map[string]string{
			"name":      name + def.ConnectionSecretSuffix,
			"namespace": namespace,
		},
	})
}

func (s *Server) handleServiceFailover(w http.ResponseWriter, r *http.Request) {
	s.serviceFailover(w, r, chi.URLParam(r, "product"))
}

func (s *Server) handleDatabaseFailover(w http.ResponseWriter, r *http.Request) {
	s.serviceFailover(w, r, "mysql")
}

func (s *Server) handleAppFailover(w http.ResponseWriter, r *http.Request) {
	s.serviceFailover(w, r, "webapp")
}

func (s *Server) serviceFailover(w http.ResponseWriter, r *http.Request, productName string) {
	namespace := chi.URLParam(r, "namespace")
	name := chi.URLParam(r, "name")

	// Body is optional; an empty failover request excludes nothing.
	var body struct {
		ExcludeProviders []string `json:"exclude_providers"`
	}
	if r.ContentLength != 0 {
		if err := decodeBody(r, &body); err != nil {
			respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
			return
		}
	}

	result, err := s.orch.ForceFailover(r.Context(), productName, namespace, name, body.ExcludeProviders)
	if err != nil {
		writeError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// decodeCreateBody decodes the raw creation body and enforces the developer
// contract: placement fields belong to the control plane.
func (s *Server) decodeCreateBody(w http.ResponseWriter, r *http.Request) (map[string]interface{}, bool) {
	var body map[string]interface{}
	if err := decodeBody(r, &body); err != nil || body == nil {
		respondError(w, http.StatusBadRequest, "Request body must be valid JSON")
		return nil, false
	}

	var rejected []string
	for _, field := range forbiddenPlacementFields {
		if _, present := body[field]; present {
			rejected = append(rejected, field)
		}
	}
	if len(rejected) > 0 {
		sort.Strings(rejected)
		respondError(w, http.StatusBadRequest, fmt.Sprintf(
			"Developer contract violation: fields %s are decided by the control plane and must not be provided",
			strings.Join(rejected, ", ")))
		return nil, false
	}
	return body, true
}

// liftCreateRequest splits the raw body into the common creation fields and
// the product parameter map. The ha flag rides in both: it steers tier
// policy and is also a declared product parameter.
func liftCreateRequest(body map[string]interface{}) *types.CreateRequest {
	req := &types.CreateRequest{
		Name:        stringField(body, "name"),
		Namespace:   stringField(body, "namespace"),
		Cell:        stringField(body, "cell"),
		Tier:        stringField(body, "tier"),
		Environment: stringField(body, "environment"),
		Parameters:  make(map[string]interface{}),
	}
	if ha, ok := body["ha"].(bool); ok {
		req.HA = ha
	}
	for key, value := range body {
		switch key {
		case "name", "namespace", "cell", "tier", "environment":
		default:
			req.Parameters[key] = value
		}
	}
	return req
}

func (s *Server) respondUnknownProduct(w http.ResponseWriter, name string, includeAvailable bool) {
	payload := map[string]interface{}{
		"error": fmt.Sprintf("Unknown product: '%s'", name),
	}
	if includeAvailable {
		payload["available"] = lo.Map(s.orch.Registry().List(), func(def *products.Definition, _ int) string {
			return def.Name
		})
	}
	respondJSON(w, http.StatusNotFound, payload)
}

func stringField(body map[string]interface{}, key string) string {
	if v, ok := body[key].(string); ok {
		return v
	}
	return ""
}

func stringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
