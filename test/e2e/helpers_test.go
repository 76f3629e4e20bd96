package e2e

import (
	"github.com/cellgrid/strata/pkg/client"
)

// mysqlRequest builds a well-formed MySQL creation request on the medium
// tier. Tests override fields as needed.
func mysqlRequest(name string) client.ServiceRequest {
	return client.ServiceRequest{
		Name:        name,
		Namespace:   "team-a",
		Cell:        "cell-001",
		Tier:        "medium",
		Environment: "production",
		Params: map[string]interface{}{
			"size":      "small",
			"storageGB": 20,
		},
	}
}

// webappRequest builds a well-formed web application creation request.
func webappRequest(name string) client.ServiceRequest {
	return client.ServiceRequest{
		Name:        name,
		Namespace:   "team-b",
		Cell:        "cell-001",
		Tier:        "medium",
		Environment: "staging",
		Params: map[string]interface{}{
			"image": "registry.example.com/" + name + ":1.4.2",
		},
	}
}
