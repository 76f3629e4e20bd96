/*
Package provisioner defines the external resource collaborator interface.

The control plane never provisions cloud resources itself: it hands claim
documents to a provisioner and observes their readiness. Apply is
idempotent on the claim's apply identity (apiVersion, kind, namespace,
name) with server-side merge semantics.

ErrUnavailable is the standalone-mode sentinel: when no provisioner is
reachable the saga still completes, recording the placement as
PROVISIONING with applied=false, and the reconciler picks it up later.

The Memory implementation backs tests and standalone deployments. Its
readiness is driven explicitly (MarkReady) or via WithAutoReady, and it
can inject apply failures or simulate unavailability for failure-path
tests.
*/
package provisioner
