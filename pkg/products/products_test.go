package products

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellgrid/strata/pkg/types"
)

func TestBuiltinCatalog(t *testing.T) {
	r := NewRegistry()

	mysql, ok := r.Get("mysql")
	require.True(t, ok)
	assert.Equal(t, "db.platform.example.org/v1alpha1", mysql.APIVersion)
	assert.Equal(t, "MySQLInstanceClaim", mysql.Kind)

	webapp, ok := r.Get("webapp")
	require.True(t, ok)
	assert.Equal(t, "WebAppClaim", webapp.Kind)

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "mysql", list[0].Name)
	assert.Equal(t, "webapp", list[1].Name)
}

func TestValidateParams(t *testing.T) {
	r := NewRegistry()
	mysql, _ := r.Get("mysql")
	webapp, _ := r.Get("webapp")

	tests := []struct {
		name   string
		def    *Definition
		params map[string]interface{}
		want   []string
	}{
		{
			name: "valid mysql",
			def:  mysql,
			params: map[string]interface{}{
				"size": "medium", "storageGB": 100,
			},
			want: nil,
		},
		{
			name:   "missing required",
			def:    mysql,
			params: map[string]interface{}{},
			want:   []string{"size is required", "storageGB is required"},
		},
		{
			name: "bad choice",
			def:  mysql,
			params: map[string]interface{}{
				"size": "giant", "storageGB": 100,
			},
			want: []string{"size must be one of [small medium large xlarge]"},
		},
		{
			name: "storage out of range",
			def:  mysql,
			params: map[string]interface{}{
				"size": "small", "storageGB": 5,
			},
			want: []string{"storageGB must be >= 10"},
		},
		{
			name: "json float accepted as integer",
			def:  mysql,
			params: map[string]interface{}{
				"size": "small", "storageGB": float64(50),
			},
			want: nil,
		},
		{
			name: "fractional rejected",
			def:  mysql,
			params: map[string]interface{}{
				"size": "small", "storageGB": 50.5,
			},
			want: []string{"storageGB must be an integer"},
		},
		{
			name: "bool type enforced",
			def:  mysql,
			params: map[string]interface{}{
				"size": "small", "storageGB": 50, "ha": "yes",
			},
			want: []string{"ha must be a boolean"},
		},
		{
			name:   "webapp image required",
			def:    webapp,
			params: map[string]interface{}{},
			want:   []string{"image is required"},
		},
		{
			name: "webapp replicas capped",
			def:  webapp,
			params: map[string]interface{}{
				"image": "nginx:latest", "replicas": 50,
			},
			want: []string{"replicas must be <= 20"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ValidateParams(tt.def, tt.params)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	r := NewRegistry()
	webapp, _ := r.Get("webapp")

	out := ApplyDefaults(webapp, map[string]interface{}{"image": "nginx:latest"})
	assert.Equal(t, "nginx:latest", out["image"])
	assert.Equal(t, 8080, out["port"])
	assert.Equal(t, "250m", out["cpu"])
	assert.Equal(t, "512Mi", out["memory"])
	assert.Equal(t, 2, out["replicas"])
	assert.Equal(t, false, out["ha"])

	// Explicit values win over defaults.
	out = ApplyDefaults(webapp, map[string]interface{}{"image": "nginx", "port": 9090})
	assert.Equal(t, 9090, out["port"])
}

func TestBuildClaim(t *testing.T) {
	r := NewRegistry()
	mysql, _ := r.Get("mysql")

	req := &types.CreateRequest{
		Name:        "orders-db",
		Namespace:   "default",
		Cell:        "cell-a",
		Tier:        "medium",
		Environment: "production",
		Parameters: map[string]interface{}{
			"size": "large", "storageGB": 200,
		},
	}
	decision := &types.Decision{
		Provider:       "aws",
		Region:         "us-east-1",
		RuntimeCluster: "aws-use1-prod-01",
		Network:        map[string]string{"vpc_id": "vpc-aws-use1"},
		TotalScore:     0.825,
		Reason:         &types.Reason{Tier: "medium", Selected: types.Scorecard{Provider: "aws"}},
	}

	claim, err := BuildClaim(mysql, req, decision)
	require.NoError(t, err)

	assert.Equal(t, "db.platform.example.org/v1alpha1", claim.APIVersion())
	assert.Equal(t, "MySQLInstanceClaim", claim.Kind())

	apiVersion, kind, namespace, name := claim.Identity()
	assert.Equal(t, "db.platform.example.org/v1alpha1", apiVersion)
	assert.Equal(t, "MySQLInstanceClaim", kind)
	assert.Equal(t, "default", namespace)
	assert.Equal(t, "orders-db", name)

	meta := claim["metadata"].(map[string]interface{})
	labels := meta["labels"].(map[string]interface{})
	assert.Equal(t, "cell-a", labels[LabelCell])
	assert.Equal(t, "mysql", labels[LabelProduct])

	annotations := meta["annotations"].(map[string]interface{})
	var reason types.Reason
	require.NoError(t, json.Unmarshal([]byte(annotations[AnnotationPlacementReason].(string)), &reason))
	assert.Equal(t, "medium", reason.Tier)

	params := SpecParameters(claim)
	require.NotNil(t, params)
	assert.Equal(t, "aws", params["provider"])
	assert.Equal(t, "us-east-1", params["region"])
	assert.Equal(t, "large", params["size"])
	assert.Equal(t, 200, params["storageGB"])
	// Default filled for omitted ha
	assert.Equal(t, false, params["ha"])

	spec := claim["spec"].(map[string]interface{})
	selector := spec["compositionSelector"].(map[string]interface{})["matchLabels"].(map[string]interface{})
	assert.Equal(t, "aws", selector["db.platform.example.org/provider"])
	assert.Equal(t, "mysql", selector["db.platform.example.org/class"])

	secretRef := spec["writeConnectionSecretToRef"].(map[string]interface{})
	assert.Equal(t, "orders-db-conn", secretRef["name"])
}

func TestPlacementFromClaim(t *testing.T) {
	r := NewRegistry()
	mysql, _ := r.Get("mysql")

	req := &types.CreateRequest{
		Name: "orders-db", Namespace: "default", Cell: "cell-a",
		Tier: "medium", Environment: "production",
		Parameters: map[string]interface{}{"size": "small", "storageGB": 20},
	}
	decision := &types.Decision{
		Provider: "gcp", Region: "us-central1", RuntimeCluster: "gcp-usc1-prod-01",
		Reason: &types.Reason{Tier: "medium"},
	}
	claim, err := BuildClaim(mysql, req, decision)
	require.NoError(t, err)

	provider, region, reason := PlacementFromClaim(claim)
	assert.Equal(t, "gcp", provider)
	assert.Equal(t, "us-central1", region)
	require.NotNil(t, reason)
	assert.Equal(t, "medium", reason.Tier)
}

func TestParseCatalogOverlay(t *testing.T) {
	r := NewRegistry()

	catalog := `
products:
  - name: redis
    display_name: Managed Redis
    description: Managed Redis cache.
    api_version: cache.platform.example.org/v1alpha1
    kind: RedisClaim
    composition_class: redis
    composition_group: cache.platform.example.org
    parameters:
      - name: size
        type: choice
        required: true
        choices: [small, large]
`
	require.NoError(t, r.ParseCatalog([]byte(catalog)))

	redis, ok := r.Get("redis")
	require.True(t, ok)
	assert.Equal(t, "RedisClaim", redis.Kind)
	assert.Equal(t, "-conn", redis.ConnectionSecretSuffix)
	assert.Len(t, r.List(), 3)
}

func TestParseCatalogRejectsBadTypes(t *testing.T) {
	r := NewRegistry()

	catalog := `
products:
  - name: broken
    api_version: x/v1
    kind: X
    composition_class: x
    composition_group: x
    parameters:
      - name: level
        type: enum
`
	err := r.ParseCatalog([]byte(catalog))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown type")

	_, ok := r.Get("broken")
	assert.False(t, ok)
}
