package credentials

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/security"
	"github.com/cellgrid/strata/pkg/storage"
	"github.com/cellgrid/strata/pkg/types"
)

// Credential types. The passwordless types carry no secret material; the
// cloud's own identity machinery supplies it at runtime.
const (
	TypeAccessKey         = "access_key"
	TypeServiceAccount    = "service_account"
	TypeAPIKey            = "api_key"
	TypeIRSA              = "irsa"
	TypeWorkloadIdentity  = "workload_identity"
	TypeInstancePrincipal = "instance_principal"

	DefaultType = TypeAccessKey
)

// Data is a decrypted credential payload.
type Data map[string]string

// Summary describes a stored credential without exposing its payload.
type Summary struct {
	Provider    string    `json:"provider"`
	Type        string    `json:"cred_type"`
	Validated   bool      `json:"validated"`
	ValidatedAt time.Time `json:"validated_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidationResult reports a structural validation run.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Provider string   `json:"provider"`
	Type     string   `json:"cred_type"`
	Errors   []string `json:"errors,omitempty"`
	Message  string   `json:"message"`
}

// Manager stores provider credentials sealed at rest. Payloads are
// encrypted before they reach the store and only ever leave it masked.
type Manager struct {
	store  storage.Store
	box    *security.Box
	logger zerolog.Logger
}

// NewManager creates a credential manager over the given store and box.
func NewManager(store storage.Store, box *security.Box) *Manager {
	return &Manager{
		store:  store,
		box:    box,
		logger: log.WithComponent("credentials"),
	}
}

// Save seals and stores a credential payload. Saving resets the validated
// flag; validation is a separate, explicit step.
func (m *Manager) Save(provider, credType string, data Data) error {
	if provider == "" {
		return &types.ValidationError{Violations: []string{"'provider' is required"}}
	}
	if data == nil {
		return &types.ValidationError{Violations: []string{"'cred_data' is required"}}
	}
	if credType == "" {
		credType = DefaultType
	}

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode credentials for %s: %w", provider, err)
	}
	sealed, err := m.box.Seal(payload)
	if err != nil {
		return fmt.Errorf("seal credentials for %s: %w", provider, err)
	}

	row := &types.ProviderCredentials{
		Provider:  provider,
		Type:      credType,
		Data:      sealed,
		Validated: false,
		UpdatedAt: time.Now().UTC(),
	}
	if err := m.store.SetCredentials(row); err != nil {
		return err
	}

	m.logger.Info().Str("provider", provider).Str("cred_type", credType).
		Msg("Credentials saved")
	return nil
}

// Get returns the stored row and its decrypted payload.
func (m *Manager) Get(provider string) (*types.ProviderCredentials, Data, error) {
	row, err := m.store.GetCredentials(provider)
	if err != nil {
		return nil, nil, err
	}

	payload, err := m.box.Open(row.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("open credentials for %s: %w", provider, err)
	}
	var data Data
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, nil, fmt.Errorf("decode credentials for %s: %w", provider, err)
	}
	return row, data, nil
}

// Masked returns the stored row with its payload masked for display.
func (m *Manager) Masked(provider string) (*types.ProviderCredentials, Data, error) {
	row, data, err := m.Get(provider)
	if err != nil {
		return nil, nil, err
	}
	return row, MaskData(data), nil
}

// Summaries lists stored credentials without opening the sealed blobs.
func (m *Manager) Summaries() ([]Summary, error) {
	rows, err := m.store.ListCredentials()
	if err != nil {
		return nil, err
	}

	summaries := make([]Summary, 0, len(rows))
	for _, row := range rows {
		summaries = append(summaries, Summary{
			Provider:    row.Provider,
			Type:        row.Type,
			Validated:   row.Validated,
			ValidatedAt: row.ValidatedAt,
			UpdatedAt:   row.UpdatedAt,
		})
	}
	return summaries, nil
}

// Delete removes a provider's credentials. Deleting a provider with none
// stored reports NotFound.
func (m *Manager) Delete(provider string) error {
	if _, err := m.store.GetCredentials(provider); err != nil {
		return err
	}
	if err := m.store.DeleteCredentials(provider); err != nil {
		return err
	}
	m.logger.Info().Str("provider", provider).Msg("Credentials deleted")
	return nil
}

// Validate runs the provider's structural checks against the stored payload
// and records the outcome on the row. Real cloud API validation is out of
// scope; the checks catch malformed payloads before a saga trips over them.
func (m *Manager) Validate(provider string) (*ValidationResult, error) {
	row, data, err := m.Get(provider)
	if err != nil {
		return nil, err
	}

	violations := CheckData(provider, row.Type, data)
	valid := len(violations) == 0

	row.Validated = valid
	row.ValidatedAt = time.Now().UTC()
	row.UpdatedAt = row.ValidatedAt
	if err := m.store.SetCredentials(row); err != nil {
		return nil, err
	}

	message := "Credentials validated successfully"
	if !valid {
		message = "Validation failed"
	}

	m.logger.Info().Str("provider", provider).Bool("valid", valid).
		Msg("Credentials validated")

	return &ValidationResult{
		Valid:    valid,
		Provider: provider,
		Type:     row.Type,
		Errors:   violations,
		Message:  message,
	}, nil
}
