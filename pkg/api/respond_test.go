package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/provisioner"
	"github.com/cellgrid/strata/pkg/types"
)

// TestWriteErrorTaxonomy tests the domain error to HTTP status mapping
func TestWriteErrorTaxonomy(t *testing.T) {
	sagaErr := &types.SagaError{
		SagaID: "saga-123",
		Step:   types.StepApplyClaim,
		Err:    errors.New("quota exceeded"),
	}

	tests := []struct {
		name           string
		err            error
		expectedStatus int
		checkBody      func(t *testing.T, body map[string]interface{})
	}{
		{
			name:           "validation error lists violations",
			err:            &types.ValidationError{Violations: []string{"size is required", "storageGB must be >= 10"}},
			expectedStatus: http.StatusBadRequest,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "Validation failed", body["error"])
				details, ok := body["details"].([]interface{})
				require.True(t, ok)
				assert.Len(t, details, 2)
				assert.Equal(t, "size is required", details[0])
			},
		},
		{
			name:           "not found",
			err:            &types.NotFoundError{Resource: "saga", Key: "saga-999"},
			expectedStatus: http.StatusNotFound,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "saga not found: saga-999", body["error"])
			},
		},
		{
			name:           "conflict",
			err:            &types.ConflictError{Message: "failover already in progress"},
			expectedStatus: http.StatusConflict,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "failover already in progress", body["error"])
			},
		},
		{
			name:           "scheduling failure carries reason",
			err:            types.NewSchedulingError(types.NoHealthyCandidates, "no healthy candidates for tier 'medium'"),
			expectedStatus: http.StatusUnprocessableEntity,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "no_healthy_candidates", body["reason"])
				assert.Contains(t, body["error"], "no healthy candidates")
			},
		},
		{
			name:           "saga failure carries id and step",
			err:            sagaErr,
			expectedStatus: http.StatusUnprocessableEntity,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "saga-123", body["saga_id"])
				assert.Equal(t, types.StepApplyClaim, body["step"])
				assert.Contains(t, body["error"], "quota exceeded")
			},
		},
		{
			name:           "wrapped saga failure still maps",
			err:            fmt.Errorf("create service: %w", sagaErr),
			expectedStatus: http.StatusUnprocessableEntity,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "saga-123", body["saga_id"])
			},
		},
		{
			name:           "provisioner outage is a bad gateway",
			err:            fmt.Errorf("apply claim: %w", provisioner.ErrUnavailable),
			expectedStatus: http.StatusBadGateway,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Contains(t, body["error"], "unavailable")
			},
		},
		{
			name:           "unclassified error is internal",
			err:            errors.New("disk on fire"),
			expectedStatus: http.StatusInternalServerError,
			checkBody: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "disk on fire", body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()

			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var body map[string]interface{}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			tt.checkBody(t, body)
		})
	}
}

// TestDecodeBody tests JSON request body decoding
func TestDecodeBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"orders-db"}`))
		var p payload
		require.NoError(t, decodeBody(req, &p))
		assert.Equal(t, "orders-db", p.Name)
	})

	t.Run("malformed body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		var p payload
		err := decodeBody(req, &p)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON body")
	})

	t.Run("empty body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
		var p payload
		assert.Error(t, decodeBody(req, &p))
	})
}

// TestAdminAuth tests the bearer token gate on admin routes
func TestAdminAuth(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name           string
		serverToken    string
		header         string
		expectedStatus int
	}{
		{
			name:           "no token configured leaves admin open",
			serverToken:    "",
			header:         "",
			expectedStatus: http.StatusOK,
		},
		{
			name:           "missing header rejected",
			serverToken:    "sekrit",
			header:         "",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "wrong token rejected",
			serverToken:    "sekrit",
			header:         "Bearer nope",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "malformed scheme rejected",
			serverToken:    "sekrit",
			header:         "Basic sekrit",
			expectedStatus: http.StatusUnauthorized,
		},
		{
			name:           "matching token admitted",
			serverToken:    "sekrit",
			header:         "Bearer sekrit",
			expectedStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := &Server{adminToken: tt.serverToken}
			req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/config", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			s.adminAuth(next).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedStatus == http.StatusUnauthorized {
				var body map[string]interface{}
				require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
				assert.Equal(t, "missing or invalid bearer token", body["error"])
			}
		})
	}
}
