// Package metrics exports pool statistics to Prometheus.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cbehopkins/treepool/pool"
)

// PoolCollector reads a pool's Stats on every scrape. Pools are not safe for
// concurrent use, so Collect must run on the goroutine that owns the pool,
// e.g. through a registry gathered from that goroutine.
type PoolCollector struct {
	pool *pool.Pool

	capacity *prometheus.Desc
	limit    *prometheus.Desc
	used     *prometheus.Desc
	live     *prometheus.Desc
	maxNodes *prometheus.Desc
	failures *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector describes p under namespace.
func NewPoolCollector(p *pool.Pool, namespace string) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, nil, nil)
	}
	return &PoolCollector{
		pool:     p,
		capacity: desc("capacity_bytes", "Size of the node arena."),
		limit:    desc("limit_bytes", "Arena bytes available for allocation."),
		used:     desc("used_bytes", "Arena bytes occupied by live nodes."),
		live:     desc("live_nodes", "Nodes currently allocated, including the static failure node."),
		maxNodes: desc("max_nodes", "Capacity of the identifier table."),
		failures: desc("allocation_failures_total", "Allocations that failed for lack of space or identifiers."),
	}
}

func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.capacity
	ch <- c.limit
	ch <- c.used
	ch <- c.live
	ch <- c.maxNodes
	ch <- c.failures
}

func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.pool.Stats()
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.limit, prometheus.GaugeValue, float64(s.Limit))
	ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(s.Used))
	ch <- prometheus.MustNewConstMetric(c.live, prometheus.GaugeValue, float64(s.LiveNodes))
	ch <- prometheus.MustNewConstMetric(c.maxNodes, prometheus.GaugeValue, float64(s.MaxNodes))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(s.AllocationFailures))
}
