package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"
	"github.com/rs/zerolog"

	"github.com/cellgrid/strata/pkg/client"
	"github.com/cellgrid/strata/pkg/config"
	"github.com/cellgrid/strata/pkg/events"
	"github.com/cellgrid/strata/pkg/log"
	"github.com/cellgrid/strata/pkg/security"
	"github.com/cellgrid/strata/pkg/storage"
)

// applyTimeout bounds a single Raft apply round-trip.
const applyTimeout = 5 * time.Second

// Manager owns the control node's stateful pieces: the local store, the
// optional Raft replication layer around it, the event broker and the
// credentials sealing box. In standalone mode Raft stays off and writes go
// straight to the local store.
type Manager struct {
	cfg    *config.Config
	logger zerolog.Logger

	store      storage.Store
	fsm        *FSM
	raft       *raft.Raft
	replicated *ReplicatedStore
	tokens     *TokenManager
	box        *security.Box
	broker     *events.Broker
}

// New opens the backing store and assembles the manager. Raft is not
// started; call Bootstrap or Join when HA mode is enabled.
func New(cfg *config.Config) (*Manager, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	var store storage.Store
	var err error
	switch cfg.Store.Backend {
	case "postgres":
		store, err = storage.NewPostgresStore(cfg.Store.PostgresDSN)
	default:
		store, err = storage.NewBoltStore(cfg.DataDir)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	box, err := security.NewBoxFromSecret(cfg.BootstrapSecret)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("derive sealing box: %w", err)
	}

	broker := events.NewBroker()
	broker.Start()

	return &Manager{
		cfg:    cfg,
		logger: log.WithComponent("manager"),
		store:  store,
		fsm:    NewFSM(store),
		tokens: NewTokenManager(),
		box:    box,
		broker: broker,
	}, nil
}

// Store returns the store handle the rest of the control plane should use:
// the Raft-replicated wrapper in HA mode, the local store otherwise.
func (m *Manager) Store() storage.Store {
	if m.raft != nil {
		return m.replicated
	}
	return m.store
}

// Broker returns the in-process event broker.
func (m *Manager) Broker() *events.Broker {
	return m.broker
}

// Box returns the sealing box for credentials at rest.
func (m *Manager) Box() *security.Box {
	return m.box
}

// NodeID returns the configured Raft node identity.
func (m *Manager) NodeID() string {
	return m.cfg.Raft.NodeID
}

// startRaft builds the Raft instance over the shared FSM. The timeouts are
// tightened from the library defaults: the nodes share a LAN, and failover
// has to finish well inside the ten-second API timeout.
func (m *Manager) startRaft() (*raft.NetworkTransport, error) {
	conf := raft.DefaultConfig()
	conf.LocalID = raft.ServerID(m.cfg.Raft.NodeID)
	conf.HeartbeatTimeout = 500 * time.Millisecond
	conf.ElectionTimeout = 500 * time.Millisecond
	conf.CommitTimeout = 50 * time.Millisecond
	conf.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", m.cfg.Raft.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolve raft bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(m.cfg.Raft.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create raft transport: %w", err)
	}

	snapshots, err := raft.NewFileSnapshotStore(m.cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("create snapshot store: %w", err)
	}
	logStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(m.cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("create raft stable store: %w", err)
	}

	r, err := raft.NewRaft(conf, m.fsm, logStore, stableStore, snapshots, transport)
	if err != nil {
		return nil, fmt.Errorf("create raft: %w", err)
	}

	m.raft = r
	m.replicated = &ReplicatedStore{m: m}
	return transport, nil
}

// Bootstrap starts Raft and makes this node the single member of a new
// cluster. Restarting an already-bootstrapped node is not an error; Raft
// resumes from its persisted log.
func (m *Manager) Bootstrap() error {
	transport, err := m.startRaft()
	if err != nil {
		return err
	}

	configuration := raft.Configuration{
		Servers: []raft.Server{
			{
				ID:      raft.ServerID(m.cfg.Raft.NodeID),
				Address: transport.LocalAddr(),
			},
		},
	}
	if err := m.raft.BootstrapCluster(configuration).Error(); err != nil {
		if errors.Is(err, raft.ErrCantBootstrap) {
			m.logger.Debug().Msg("Cluster already bootstrapped, resuming from log")
			return nil
		}
		return fmt.Errorf("bootstrap cluster: %w", err)
	}

	m.logger.Info().
		Str("node_id", m.cfg.Raft.NodeID).
		Str("bind_addr", m.cfg.Raft.BindAddr).
		Msg("Bootstrapped single-node cluster")
	return nil
}

// Join starts Raft and asks a configured peer's API to add this node as a
// voter. The join token must have been minted on the leader.
func (m *Manager) Join(ctx context.Context, token string) error {
	if len(m.cfg.Raft.Peers) == 0 {
		return fmt.Errorf("join cluster: no peers configured")
	}
	if _, err := m.startRaft(); err != nil {
		return err
	}

	var lastErr error
	for _, peer := range m.cfg.Raft.Peers {
		c := client.New(peer)
		if err := c.ClusterJoin(ctx, m.cfg.Raft.NodeID, m.cfg.Raft.BindAddr, token); err != nil {
			m.logger.Warn().Err(err).Str("peer", peer).Msg("Join attempt failed")
			lastErr = err
			continue
		}
		m.logger.Info().
			Str("node_id", m.cfg.Raft.NodeID).
			Str("peer", peer).
			Msg("Joined cluster")
		return nil
	}
	return fmt.Errorf("join cluster: no peer accepted the request: %w", lastErr)
}

// JoinCluster is the leader-side half of Join: it validates the join token
// and adds the node as a voter. Called from the cluster API.
func (m *Manager) JoinCluster(nodeID, bindAddr, token string) error {
	if err := m.tokens.Validate(token); err != nil {
		return err
	}
	return m.AddVoter(nodeID, bindAddr)
}

// AddVoter adds a control node to the Raft cluster.
func (m *Manager) AddVoter(nodeID, address string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	future := m.raft.AddVoter(raft.ServerID(nodeID), raft.ServerAddress(address), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("add voter %s: %w", nodeID, err)
	}

	m.logger.Info().Str("node_id", nodeID).Str("address", address).Msg("Added voter")
	return nil
}

// RemoveServer removes a control node from the Raft cluster.
func (m *Manager) RemoveServer(nodeID string) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}

	future := m.raft.RemoveServer(raft.ServerID(nodeID), 0, 10*time.Second)
	if err := future.Error(); err != nil {
		return fmt.Errorf("remove server %s: %w", nodeID, err)
	}
	return nil
}

// ServerInfo describes one member of the Raft cluster.
type ServerInfo struct {
	ID      string `json:"id"`
	Address string `json:"address"`
	Leader  bool   `json:"leader"`
}

// Servers returns the current cluster membership.
func (m *Manager) Servers() ([]ServerInfo, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}

	future := m.raft.GetConfiguration()
	if err := future.Error(); err != nil {
		return nil, fmt.Errorf("get raft configuration: %w", err)
	}

	leader := m.raft.Leader()
	servers := future.Configuration().Servers
	infos := make([]ServerInfo, 0, len(servers))
	for _, s := range servers {
		infos = append(infos, ServerInfo{
			ID:      string(s.ID),
			Address: string(s.Address),
			Leader:  s.Address == leader,
		})
	}
	return infos, nil
}

// IsLeader reports whether this node currently leads the cluster. Always
// false when Raft is off.
func (m *Manager) IsLeader() bool {
	if m.raft == nil {
		return false
	}
	return m.raft.State() == raft.Leader
}

// LeaderAddr returns the current leader's Raft address, or "" when there is
// no leader (or Raft is off).
func (m *Manager) LeaderAddr() string {
	if m.raft == nil {
		return ""
	}
	return string(m.raft.Leader())
}

// RaftStats returns Raft runtime statistics for the cluster API.
func (m *Manager) RaftStats() map[string]interface{} {
	if m.raft == nil {
		return nil
	}
	return map[string]interface{}{
		"state":          m.raft.State().String(),
		"last_log_index": m.raft.LastIndex(),
		"applied_index":  m.raft.AppliedIndex(),
		"leader":         string(m.raft.Leader()),
	}
}

// WaitForLeader blocks until the cluster has elected a leader. Used at
// startup before seeding and before the API starts answering writes.
func (m *Manager) WaitForLeader(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if m.LeaderAddr() != "" {
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("no raft leader after %s", timeout)
}

// GenerateJoinToken mints a token a new control node can use to join. Only
// the leader mints tokens so that validation happens where AddVoter runs.
func (m *Manager) GenerateJoinToken() (*JoinToken, error) {
	if m.raft == nil {
		return nil, fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return nil, fmt.Errorf("not the leader, current leader: %s", m.LeaderAddr())
	}
	return m.tokens.Generate(24 * time.Hour)
}

// apply routes one mutation through the Raft log and unwraps the FSM's
// response. Callers on a follower get an error naming the leader.
func (m *Manager) apply(op string, payload interface{}) error {
	if m.raft == nil {
		return fmt.Errorf("raft not initialized")
	}
	if !m.IsLeader() {
		return fmt.Errorf("not the leader, writes must go to %s", m.LeaderAddr())
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", op, err)
	}
	cmd, err := json.Marshal(Command{Op: op, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s command: %w", op, err)
	}

	future := m.raft.Apply(cmd, applyTimeout)
	if err := future.Error(); err != nil {
		return fmt.Errorf("apply %s: %w", op, err)
	}
	// The FSM returns store errors through the apply future so the caller
	// sees the same error taxonomy as a direct store write.
	if resp := future.Response(); resp != nil {
		if err, ok := resp.(error); ok {
			return err
		}
	}
	return nil
}

// Shutdown stops the broker, Raft and the store, in that order. Raft goes
// down before the store so no apply races a closed database.
func (m *Manager) Shutdown() error {
	if m.broker != nil {
		m.broker.Stop()
	}
	if m.raft != nil {
		if err := m.raft.Shutdown().Error(); err != nil {
			return fmt.Errorf("shutdown raft: %w", err)
		}
	}
	if m.store != nil {
		if err := m.store.Close(); err != nil {
			return fmt.Errorf("close store: %w", err)
		}
	}
	return nil
}
