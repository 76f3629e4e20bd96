package metrics

import (
	"time"

	"github.com/cellgrid/strata/pkg/storage"
)

// Collector periodically refreshes the inventory gauges from the store
type Collector struct {
	store  storage.Store
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(store storage.Store) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
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

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectPlacementMetrics()
	c.collectSagaMetrics()
	c.collectPairMetrics()
	c.collectProviderHealth()
}

func (c *Collector) collectPlacementMetrics() {
	placements, err := c.store.ListPlacements()
	if err != nil {
		return
	}

	type key struct{ provider, tier, status string }
	counts := make(map[key]int)
	for _, p := range placements {
		counts[key{p.Provider, p.Tier, string(p.Status)}]++
	}

	// Reset drops label sets for rows that no longer exist
	PlacementsTotal.Reset()
	for k, count := range counts {
		PlacementsTotal.WithLabelValues(k.provider, k.tier, k.status).Set(float64(count))
	}
}

func (c *Collector) collectSagaMetrics() {
	sagas, err := c.store.ListSagas()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, s := range sagas {
		counts[string(s.State)]++
	}

	SagasTotal.Reset()
	for state, count := range counts {
		SagasTotal.WithLabelValues(state).Set(float64(count))
	}
}

func (c *Collector) collectPairMetrics() {
	pairs, err := c.store.ListReplicationPairs()
	if err != nil {
		return
	}

	counts := make(map[string]int)
	for _, p := range pairs {
		counts[string(p.State)]++
	}

	ReplicationPairsTotal.Reset()
	for state, count := range counts {
		ReplicationPairsTotal.WithLabelValues(state).Set(float64(count))
	}
}

func (c *Collector) collectProviderHealth() {
	rows, err := c.store.ListProviderHealth()
	if err != nil {
		return
	}

	for _, row := range rows {
		v := 0.0
		if row.Healthy {
			v = 1.0
		}
		ProviderHealthy.WithLabelValues(row.Provider).Set(v)
	}
}
