package manager

import (
	"fmt"
	"time"

	"github.com/cellgrid/strata/pkg/metrics"
)

// MetricsCollector refreshes the Raft gauges and the raft component health
// row. Store inventory gauges are handled by metrics.Collector; this one
// only covers what requires the manager's Raft handle.
type MetricsCollector struct {
	manager *Manager
	stopCh  chan struct{}
}

// NewMetricsCollector creates a collector for the given manager.
func NewMetricsCollector(mgr *Manager) *MetricsCollector {
	return &MetricsCollector{
		manager: mgr,
		stopCh:  make(chan struct{}),
	}
}

// Start begins the collection loop. Collects once immediately so gauges are
// populated before the first scrape.
func (c *MetricsCollector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collection loop.
func (c *MetricsCollector) Stop() {
	close(c.stopCh)
}

func (c *MetricsCollector) collect() {
	if c.manager.raft == nil {
		return
	}

	if c.manager.IsLeader() {
		metrics.RaftLeader.Set(1)
	} else {
		metrics.RaftLeader.Set(0)
	}
	metrics.RaftLogIndex.Set(float64(c.manager.raft.LastIndex()))
	metrics.RaftAppliedIndex.Set(float64(c.manager.raft.AppliedIndex()))

	if servers, err := c.manager.Servers(); err == nil {
		metrics.RaftPeers.Set(float64(len(servers)))
	}

	leader := c.manager.LeaderAddr()
	if leader == "" {
		metrics.UpdateComponent("raft", false, "no leader elected")
		return
	}
	metrics.UpdateComponent("raft", true, fmt.Sprintf("leader at %s", leader))
}
