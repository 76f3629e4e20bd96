package products

import (
	"fmt"
	"sync"
)

// Parameter types accepted by ParameterSpec.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeChoice = "choice"
)

// ParameterSpec is the validation rule for one developer-facing product
// parameter.
type ParameterSpec struct {
	Name     string        `json:"name" yaml:"name"`
	Type     string        `json:"type" yaml:"type"`
	Required bool          `json:"required" yaml:"required"`
	Choices  []interface{} `json:"choices,omitempty" yaml:"choices"`
	Min      int           `json:"min,omitempty" yaml:"min"`
	Max      int           `json:"max,omitempty" yaml:"max"`
	Default  interface{}   `json:"default,omitempty" yaml:"default"`
}

// Definition describes one cloud service product: its claim shape and the
// parameters developers may set. The scheduler, saga and analytics are
// product-agnostic; this is the extension point for new services.
type Definition struct {
	Name                   string          `json:"name" yaml:"name"`
	DisplayName            string          `json:"display_name" yaml:"display_name"`
	Description            string          `json:"description" yaml:"description"`
	APIVersion             string          `json:"api_version" yaml:"api_version"`
	Kind                   string          `json:"kind" yaml:"kind"`
	CompositionClass       string          `json:"composition_class" yaml:"composition_class"`
	CompositionGroup       string          `json:"composition_group" yaml:"composition_group"`
	Parameters             []ParameterSpec `json:"parameters" yaml:"parameters"`
	ConnectionSecretSuffix string          `json:"connection_secret_suffix" yaml:"connection_secret_suffix"`
}

// Registry is the product catalog. Registration order is preserved for
// listing; lookups are by name.
type Registry struct {
	mu    sync.RWMutex
	byName map[string]*Definition
	order  []string
}

// NewRegistry creates a catalog preloaded with the built-in products.
func NewRegistry() *Registry {
	r := &Registry{byName: make(map[string]*Definition)}
	for _, def := range builtins() {
		r.Register(def)
	}
	return r
}

// Register adds or replaces a product definition.
func (r *Registry) Register(def *Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if def.ConnectionSecretSuffix == "" {
		def.ConnectionSecretSuffix = "-conn"
	}
	if _, exists := r.byName[def.Name]; !exists {
		r.order = append(r.order, def.Name)
	}
	r.byName[def.Name] = def
}

// Get returns a product definition by name.
func (r *Registry) Get(name string) (*Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.byName[name]
	return def, ok
}

// List returns all products in registration order.
func (r *Registry) List() []*Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Definition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

// ValidateParams checks a request's parameters against the product's specs
// and returns every violation found.
func ValidateParams(def *Definition, params map[string]interface{}) []string {
	var errs []string
	for _, spec := range def.Parameters {
		value, present := params[spec.Name]

		if !present || value == nil {
			if spec.Required && spec.Default == nil {
				errs = append(errs, fmt.Sprintf("%s is required", spec.Name))
			}
			continue
		}

		switch spec.Type {
		case TypeInt:
			n, ok := asInt(value)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s must be an integer", spec.Name))
			} else if spec.Min != 0 && n < spec.Min {
				errs = append(errs, fmt.Sprintf("%s must be >= %d", spec.Name, spec.Min))
			} else if spec.Max != 0 && n > spec.Max {
				errs = append(errs, fmt.Sprintf("%s must be <= %d", spec.Name, spec.Max))
			}

		case TypeBool:
			if _, ok := value.(bool); !ok {
				errs = append(errs, fmt.Sprintf("%s must be a boolean", spec.Name))
			}

		case TypeChoice:
			if !containsValue(spec.Choices, value) {
				errs = append(errs, fmt.Sprintf("%s must be one of %v", spec.Name, spec.Choices))
			}
		}
	}
	return errs
}

// ApplyDefaults returns the request parameters with product defaults filled
// in for missing keys. The input map is not modified.
func ApplyDefaults(def *Definition, params map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(params)+len(def.Parameters))
	for k, v := range params {
		out[k] = v
	}
	for _, spec := range def.Parameters {
		if _, present := out[spec.Name]; !present && spec.Default != nil {
			out[spec.Name] = spec.Default
		}
	}
	return out
}

// asInt accepts the integer representations JSON decoding produces. A float
// is accepted only when it has no fractional part.
func asInt(value interface{}) (int, bool) {
	switch n := value.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == float64(int(n)) {
			return int(n), true
		}
		return 0, false
	default:
		return 0, false
	}
}

// containsValue matches a value against the choice list. Numeric choices
// match across int/float64 since JSON decodes numbers as float64.
func containsValue(choices []interface{}, value interface{}) bool {
	for _, c := range choices {
		if c == value {
			return true
		}
		cn, cok := asInt(c)
		vn, vok := asInt(value)
		if cok && vok && cn == vn {
			return true
		}
	}
	return false
}
