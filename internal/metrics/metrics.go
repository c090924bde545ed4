// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - per-entity ingest and flush throughput
//   - stall and transient-error counts per exchange
//   - broadcast fan-out and subscriber churn
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest metrics
	RecordsIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_records_ingested_total",
		Help: "Normalized records appended to a sink, by entity type",
	}, []string{"entity"})

	TradesDeduplicated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_trades_deduplicated_total",
		Help: "Trade prints discarded because their id matched the last seen id",
	})

	TradesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_trades_dropped_total",
		Help: "Trade prints dropped for missing a venue timestamp",
	})

	// Monitor metrics
	StreamStalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_stream_stalls_total",
		Help: "Stalled subscriptions recycled after the bounded wait elapsed",
	}, []string{"exchange"})

	StreamErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_stream_errors_total",
		Help: "Transient receive or normalize failures",
	}, []string{"exchange"})

	// Flush metrics
	BatchesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_batches_written_total",
		Help: "Batch files written, by entity type",
	}, []string{"entity"})

	BatchWriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "collector_batch_write_failures_total",
		Help: "Batch flushes that failed and lost their snapshot",
	}, []string{"entity"})

	// Broadcast metrics
	EventsBroadcast = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_events_broadcast_total",
		Help: "Events fanned out to live subscribers",
	})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "collector_subscribers",
		Help: "Currently connected broadcast subscribers",
	})

	SubscribersPruned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "collector_subscribers_pruned_total",
		Help: "Subscribers removed after a failed send",
	})
)
