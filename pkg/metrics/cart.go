package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CartMetrics records cart activity for one process.
type CartMetrics struct {
	items           prometheus.Gauge
	mutations       *prometheus.CounterVec
	fetchFailures   *prometheus.CounterVec
	syncReloads     prometheus.Counter
	persistFailures prometheus.Counter
	enrichment      prometheus.Histogram
	checkouts       *prometheus.CounterVec
}

// NewCartMetrics registers the cart metrics on the provided registerer. A nil
// registerer yields a no-op recorder.
func NewCartMetrics(reg prometheus.Registerer) *CartMetrics {
	if reg == nil {
		return &CartMetrics{}
	}
	items := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_items",
		Help: "Number of entries currently in the cart.",
	})
	mutations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_total",
		Help: "Cart mutations by operation.",
	}, []string{"op"})
	fetchFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_fetch_failures_total",
		Help: "Failed backend fetches during enrichment.",
	}, []string{"kind"})
	syncReloads := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_sync_reloads_total",
		Help: "Reloads triggered by writes from other contexts.",
	})
	persistFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_persist_failures_total",
		Help: "Failed writes to the durable slot.",
	})
	enrichment := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_enrichment_duration_seconds",
		Help:    "Duration of enrichment runs in seconds.",
		Buckets: prometheus.DefBuckets,
	})
	checkouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_checkouts_total",
		Help: "Checkout attempts by outcome.",
	}, []string{"outcome"})
	reg.MustRegister(items, mutations, fetchFailures, syncReloads, persistFailures, enrichment, checkouts)
	return &CartMetrics{
		items:           items,
		mutations:       mutations,
		fetchFailures:   fetchFailures,
		syncReloads:     syncReloads,
		persistFailures: persistFailures,
		enrichment:      enrichment,
		checkouts:       checkouts,
	}
}

// SetItems records the current entry count.
func (c *CartMetrics) SetItems(n int) {
	if c == nil || c.items == nil {
		return
	}
	c.items.Set(float64(n))
}

// IncMutation counts one applied mutation.
func (c *CartMetrics) IncMutation(op string) {
	if c == nil || c.mutations == nil {
		return
	}
	c.mutations.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncFetchFailure counts a failed product or availability fetch.
func (c *CartMetrics) IncFetchFailure(kind string) {
	if c == nil || c.fetchFailures == nil {
		return
	}
	c.fetchFailures.WithLabelValues(normalizeLabel(kind)).Inc()
}

func (c *CartMetrics) IncSyncReload() {
	if c == nil || c.syncReloads == nil {
		return
	}
	c.syncReloads.Inc()
}

func (c *CartMetrics) IncPersistFailure() {
	if c == nil || c.persistFailures == nil {
		return
	}
	c.persistFailures.Inc()
}

// ObserveEnrichment records the duration of one enrichment run.
func (c *CartMetrics) ObserveEnrichment(duration time.Duration) {
	if c == nil || c.enrichment == nil {
		return
	}
	c.enrichment.Observe(duration.Seconds())
}

// IncCheckout counts a checkout attempt by outcome.
func (c *CartMetrics) IncCheckout(outcome string) {
	if c == nil || c.checkouts == nil {
		return
	}
	c.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
