package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/cropwise/cropwise/pkg/scoring"
)

// CacheCollector exports score cache statistics read at scrape time.
type CacheCollector struct {
	stats func() scoring.CacheStats

	hits    *prometheus.Desc
	misses  *prometheus.Desc
	entries *prometheus.Desc
}

// NewCacheCollector creates a collector reading from stats on every scrape.
func NewCacheCollector(stats func() scoring.CacheStats) *CacheCollector {
	return &CacheCollector{
		stats:   stats,
		hits:    prometheus.NewDesc("cropwise_score_cache_hits_total", "Score cache hits", nil, nil),
		misses:  prometheus.NewDesc("cropwise_score_cache_misses_total", "Score cache misses", nil, nil),
		entries: prometheus.NewDesc("cropwise_score_cache_entries", "Entries held by the score cache", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.hits
	ch <- c.misses
	ch <- c.entries
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.stats()
	ch <- prometheus.MustNewConstMetric(c.hits, prometheus.CounterValue, float64(s.Hits))
	ch <- prometheus.MustNewConstMetric(c.misses, prometheus.CounterValue, float64(s.Misses))
	ch <- prometheus.MustNewConstMetric(c.entries, prometheus.GaugeValue, float64(s.Entries))
}

// RegisterCacheCollector registers a collector for stats on the default
// registry. Registering a second time is a no-op.
func RegisterCacheCollector(stats func() scoring.CacheStats) error {
	err := prometheus.Register(NewCacheCollector(stats))
	if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
		return nil
	}
	return err
}
