// Package framework assembles an in-process control plane for end-to-end
// tests: a real manager over a throwaway Bolt store, the scheduler, saga
// orchestrator and replication wiring the server command uses, and an
// httptest server fronted by the Go client. Tests drive the HTTP surface
// the way an operator would, with the memory provisioner supplying
// failure injection.
package framework
