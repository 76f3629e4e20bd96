package provisioner

import (
	"context"
	"errors"
	"fmt"

	"github.com/cellgrid/strata/pkg/types"
)

// ErrUnavailable signals that no provisioner is reachable. The saga treats
// this as standalone mode: the claim is recorded but not applied, and the
// placement stays PROVISIONING.
var ErrUnavailable = errors.New("provisioner unavailable")

// Ref identifies one applied claim by its apply identity.
type Ref struct {
	APIVersion string
	Kind       string
	Namespace  string
	Name       string
}

// RefFor extracts the apply identity from a claim document.
func RefFor(claim types.Claim) Ref {
	apiVersion, kind, namespace, name := claim.Identity()
	return Ref{APIVersion: apiVersion, Kind: kind, Namespace: namespace, Name: name}
}

func (r Ref) String() string {
	return fmt.Sprintf("%s/%s %s/%s", r.APIVersion, r.Kind, r.Namespace, r.Name)
}

// Provisioner is the external collaborator that materializes claims. Apply
// is idempotent on the claim's apply identity with server-side merge
// semantics; Get reports the currently applied document.
type Provisioner interface {
	Apply(ctx context.Context, claim types.Claim) error
	Get(ctx context.Context, ref Ref) (types.Claim, error)
	Delete(ctx context.Context, ref Ref) error
	Ready(ctx context.Context, ref Ref) (bool, error)
}
