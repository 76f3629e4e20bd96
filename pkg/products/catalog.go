package products

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// fileCatalog is the on-disk catalog overlay shape.
type fileCatalog struct {
	Products []*Definition `yaml:"products"`
}

// LoadCatalog reads a YAML product catalog and registers its entries over
// the built-ins. Entries with the same name replace the built-in.
func (r *Registry) LoadCatalog(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read product catalog: %w", err)
	}
	return r.ParseCatalog(data)
}

// ParseCatalog registers products from YAML catalog bytes.
func (r *Registry) ParseCatalog(data []byte) error {
	var file fileCatalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse product catalog: %w", err)
	}

	var result *multierror.Error
	for _, def := range file.Products {
		if err := validateDefinition(def); err != nil {
			result = multierror.Append(result, err)
			continue
		}
		r.Register(def)
	}
	return result.ErrorOrNil()
}

func validateDefinition(def *Definition) error {
	var result *multierror.Error

	if def.Name == "" {
		result = multierror.Append(result, fmt.Errorf("product name is required"))
	}
	if def.APIVersion == "" || def.Kind == "" {
		result = multierror.Append(result, fmt.Errorf("product %s: api_version and kind are required", def.Name))
	}
	if def.CompositionGroup == "" || def.CompositionClass == "" {
		result = multierror.Append(result, fmt.Errorf("product %s: composition group and class are required", def.Name))
	}
	for _, spec := range def.Parameters {
		switch spec.Type {
		case TypeString, TypeInt, TypeBool, TypeChoice:
		default:
			result = multierror.Append(result,
				fmt.Errorf("product %s: parameter %s has unknown type %q", def.Name, spec.Name, spec.Type))
		}
		if spec.Type == TypeChoice && len(spec.Choices) == 0 {
			result = multierror.Append(result,
				fmt.Errorf("product %s: choice parameter %s has no choices", def.Name, spec.Name))
		}
	}
	return result.ErrorOrNil()
}
