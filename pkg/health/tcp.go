package health

import (
	"context"
	"fmt"
	"net"
	"time"
)

// TCPChecker probes an endpoint by opening a TCP connection. A completed
// handshake counts as healthy; nothing is written to the socket. Used for
// database and replication endpoints that expose no HTTP surface.
type TCPChecker struct {
	// Address is host:port, e.g. "orders-db-secondary.us-central1.gcp.internal:3306".
	Address string

	// Timeout caps the dial.
	Timeout time.Duration
}

// NewTCPChecker creates a TCP checker with the default timeout.
func NewTCPChecker(address string) *TCPChecker {
	return &TCPChecker{
		Address: address,
		Timeout: DefaultConfig().Timeout,
	}
}

// Check dials the address once.
func (t *TCPChecker) Check(ctx context.Context) Result {
	start := time.Now()

	dialer := &net.Dialer{Timeout: t.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address)
	if err != nil {
		return Result{
			Healthy:   false,
			Message:   fmt.Sprintf("dial %s: %v", t.Address, err),
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}
	conn.Close()

	return Result{
		Healthy:   true,
		Message:   fmt.Sprintf("tcp %s reachable", t.Address),
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

// Type returns the check type.
func (t *TCPChecker) Type() CheckType {
	return CheckTypeTCP
}

// WithTimeout overrides the dial timeout.
func (t *TCPChecker) WithTimeout(timeout time.Duration) *TCPChecker {
	t.Timeout = timeout
	return t
}
