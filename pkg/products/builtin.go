package products

// builtins returns the compiled-in product catalog. A YAML catalog overlay
// can add to or replace these.
func builtins() []*Definition {
	return []*Definition{
		{
			Name:             "mysql",
			DisplayName:      "Managed MySQL",
			Description:      "Managed MySQL database with automatic backups, replication, and failover.",
			APIVersion:       "db.platform.example.org/v1alpha1",
			Kind:             "MySQLInstanceClaim",
			CompositionClass: "mysql",
			CompositionGroup: "db.platform.example.org",
			Parameters: []ParameterSpec{
				{Name: "size", Type: TypeChoice, Required: true,
					Choices: []interface{}{"small", "medium", "large", "xlarge"}},
				{Name: "storageGB", Type: TypeInt, Required: true, Min: 10, Max: 65536},
				{Name: "ha", Type: TypeBool, Default: false},
			},
			ConnectionSecretSuffix: "-conn",
		},
		{
			Name:             "webapp",
			DisplayName:      "Web Application",
			Description:      "Managed web application compute with auto-scaling, load balancing, and TLS.",
			APIVersion:       "compute.platform.example.org/v1alpha1",
			Kind:             "WebAppClaim",
			CompositionClass: "webapp",
			CompositionGroup: "compute.platform.example.org",
			Parameters: []ParameterSpec{
				{Name: "image", Type: TypeString, Required: true},
				{Name: "port", Type: TypeInt, Min: 1, Max: 65535, Default: 8080},
				{Name: "cpu", Type: TypeChoice, Default: "250m",
					Choices: []interface{}{"125m", "250m", "500m", "1000m", "2000m", "4000m"}},
				{Name: "memory", Type: TypeChoice, Default: "512Mi",
					Choices: []interface{}{"256Mi", "512Mi", "1Gi", "2Gi", "4Gi", "8Gi"}},
				{Name: "replicas", Type: TypeInt, Min: 1, Max: 20, Default: 2},
				{Name: "ha", Type: TypeBool, Default: false},
			},
			ConnectionSecretSuffix: "-conn",
		},
	}
}
