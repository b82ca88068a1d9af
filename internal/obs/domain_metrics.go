package obs

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// RepriceTotal counts pipeline runs by trigger and outcome.
	RepriceTotal *prometheus.CounterVec
	// RepriceDuration records pipeline latency in milliseconds per trigger.
	RepriceDuration *prometheus.HistogramVec
	// RepriceLockWait counts reprice requests that had to wait on the per-cart lock.
	RepriceLockWait prometheus.Counter
	// SnapshotLookups counts breakdown snapshot store lookups by outcome.
	SnapshotLookups *prometheus.CounterVec
	// DiscountSkipped counts malformed discount definitions skipped during pricing.
	DiscountSkipped prometheus.Counter
)

// MustRegisterDomainMetrics initialises and registers pricing Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		RepriceTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reprice_total",
			Help:      "Count of pricing pipeline runs by trigger and result.",
		}, []string{"trigger", "result"})
		RepriceDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reprice_duration_ms",
			Help:      "Latency of pricing pipeline runs in milliseconds.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"trigger"})
		RepriceLockWait = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reprice_lock_wait_total",
			Help:      "Reprice requests that contended on the per-cart lock.",
		})
		SnapshotLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_lookups_total",
			Help:      "Breakdown snapshot lookups by outcome.",
		}, []string{"result"})
		DiscountSkipped = prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discount_skipped_total",
			Help:      "Malformed discount definitions skipped during pricing.",
		})

		mustRegisterCollector(reg, RepriceTotal, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				RepriceTotal = v
			}
		})
		mustRegisterCollector(reg, RepriceDuration, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.HistogramVec); ok {
				RepriceDuration = v
			}
		})
		mustRegisterCollector(reg, RepriceLockWait, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				RepriceLockWait = v
			}
		})
		mustRegisterCollector(reg, SnapshotLookups, func(existing prometheus.Collector) {
			if v, ok := existing.(*prometheus.CounterVec); ok {
				SnapshotLookups = v
			}
		})
		mustRegisterCollector(reg, DiscountSkipped, func(existing prometheus.Collector) {
			if v, ok := existing.(prometheus.Counter); ok {
				DiscountSkipped = v
			}
		})
	})
}

func mustRegisterCollector(reg prometheus.Registerer, collector prometheus.Collector, reuse func(prometheus.Collector)) {
	if err := reg.Register(collector); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if reuse != nil {
				reuse(are.ExistingCollector)
			}
			return
		}
		panic(fmt.Errorf("register domain metric: %w", err))
	}
}
