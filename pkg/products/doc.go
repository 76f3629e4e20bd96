/*
Package products defines the extensible cloud service catalog.

Each product names a claim shape (apiVersion, kind, composition group and
class) plus the parameters developers may set, each with a validation rule.
The scheduler, saga executor and analytics are product-agnostic: adding a
product to the catalog is all that is needed for the generic create
endpoints to serve it.

# Core Components

Definition:
  - Claim identity: api_version, kind, composition group/class
  - ParameterSpec list: type (string, int, bool, choice), required,
    choices, min/max, default
  - Connection secret suffix (default "-conn")

Registry:
  - Preloaded with the built-ins: mysql and webapp
  - YAML catalog overlay adds or replaces entries by name

Claim builder:
  - spec.parameters = common fields + decided placement fields + product
    parameters with defaults applied
  - Labels platform.example.org/{cell,environment,tier,product}
  - Annotation platform.example.org/placement-reason = compact reason JSON
  - compositionSelector matchLabels {<group>/provider, <group>/class}
  - writeConnectionSecretToRef = <name><suffix>

# Usage

	registry := products.NewRegistry()
	def, ok := registry.Get("mysql")

	violations := products.ValidateParams(def, req.Parameters)
	if len(violations) > 0 {
		return &types.ValidationError{Violations: violations}
	}

	claim, err := products.BuildClaim(def, req, decision)

Catalog overlay:

	err := registry.LoadCatalog("/etc/strata/products.yaml")

# Built-in Products

mysql (db.platform.example.org/v1alpha1 MySQLInstanceClaim):
  - size: choice of small, medium, large, xlarge (required)
  - storageGB: int in [10, 65536] (required)
  - ha: bool, default false

webapp (compute.platform.example.org/v1alpha1 WebAppClaim):
  - image: string (required)
  - port: int in [1, 65535], default 8080
  - cpu: choice of 125m..4000m, default 250m
  - memory: choice of 256Mi..8Gi, default 512Mi
  - replicas: int in [1, 20], default 2
  - ha: bool, default false

# Integration Points

This package integrates with:

  - pkg/orchestration: validate step and apply_claim step
  - pkg/api: GET /api/v1/products listing, create endpoints
  - pkg/provisioner: claims are the documents it applies
*/
package products
