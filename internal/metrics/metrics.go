package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	FeedMessagesTotal      = prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_messages_total", Help: "Diff messages applied to the mirror"})
	FeedDecodeErrorsTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_decode_errors_total", Help: "Feed messages dropped as undecodable"})
	FeedLevelsAppliedTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "feed_levels_applied_total", Help: "Individual level updates applied"})
	WSReconnectsTotal      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ws_reconnects_total", Help: "Feed reconnects by reason"}, []string{"reason"})
	ReconcileTicksTotal    = prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_ticks_total", Help: "Reconciliation ticks that pruned the mirror"})
	ReconcileFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{Name: "reconcile_failures_total", Help: "Reference fetches that failed and skipped a tick"})
	PrunedLevelsTotal      = prometheus.NewCounterVec(prometheus.CounterOpts{Name: "pruned_levels_total", Help: "Stale levels removed by reconciliation"}, []string{"side"})
	BookLevels             = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "book_levels", Help: "Resting price levels per side"}, []string{"side"})
	SnapshotRequestsTotal  = prometheus.NewCounter(prometheus.CounterOpts{Name: "snapshot_requests_total", Help: "Snapshot projections served"})
)

// Init registers all collectors on a fresh registry.
func Init(logger zerolog.Logger) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	toRegister := []prometheus.Collector{
		FeedMessagesTotal, FeedDecodeErrorsTotal, FeedLevelsAppliedTotal,
		WSReconnectsTotal, ReconcileTicksTotal, ReconcileFailuresTotal,
		PrunedLevelsTotal, BookLevels, SnapshotRequestsTotal,
		collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	for _, c := range toRegister {
		_ = reg.Register(c)
	}
	logger.Info().Msg("Prometheus metrics initialized")
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
