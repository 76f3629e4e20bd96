package framework

import (
	"context"
	"fmt"
	"time"

	"github.com/cellgrid/strata/pkg/types"
)

// Waiter polls a condition until it holds or the timeout passes.
type Waiter struct {
	timeout  time.Duration
	interval time.Duration
}

// NewWaiter builds a waiter with an explicit timeout and poll interval.
func NewWaiter(timeout, interval time.Duration) *Waiter {
	return &Waiter{timeout: timeout, interval: interval}
}

// DefaultWaiter polls every 10ms for up to 5 seconds, enough for any
// in-process transition driven by the reconciler.
func DefaultWaiter() *Waiter {
	return NewWaiter(5*time.Second, 10*time.Millisecond)
}

// WaitFor polls condition until it returns true. The description names
// the awaited state in the timeout error.
func (w *Waiter) WaitFor(ctx context.Context, condition func() bool, description string) error {
	deadline := time.Now().Add(w.timeout)
	for time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w", description, ctx.Err())
		default:
		}
		if condition() {
			return nil
		}
		time.Sleep(w.interval)
	}
	return fmt.Errorf("timed out after %s waiting for %s", w.timeout, description)
}

// WaitForPlacementStatus blocks until the placement reaches the given
// status, failing the test on timeout.
func (h *Harness) WaitForPlacementStatus(id string, status types.PlacementStatus) {
	h.t.Helper()
	err := DefaultWaiter().WaitFor(context.Background(), func() bool {
		placement, err := h.Store.GetPlacement(id)
		return err == nil && placement.Status == status
	}, fmt.Sprintf("placement %s to reach %s", id, status))
	if err != nil {
		h.t.Fatal(err)
	}
}

// WaitForPairState blocks until the replication pair reaches the given
// state, failing the test on timeout.
func (h *Harness) WaitForPairState(id string, state types.ReplicationState) {
	h.t.Helper()
	err := DefaultWaiter().WaitFor(context.Background(), func() bool {
		pair, err := h.Store.GetReplicationPair(id)
		return err == nil && pair.State == state
	}, fmt.Sprintf("replication pair %s to reach %s", id, state))
	if err != nil {
		h.t.Fatal(err)
	}
}
