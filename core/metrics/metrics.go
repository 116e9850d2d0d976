// Package metrics provides Prometheus metrics for catalog synchronization.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"catalog-sync/core/reconcile"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Sync run metrics
	syncRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_runs_total",
			Help: "Total number of datasource sync runs",
		},
		[]string{"backend", "status"},
	)

	syncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_sync_duration_seconds",
			Help:    "Datasource sync duration in seconds",
			Buckets: []float64{.1, .5, 1, 5, 15, 30, 60, 300, 900},
		},
		[]string{"backend"},
	)

	syncEntriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_entries_total",
			Help: "Catalog entries classified by sync runs",
		},
		[]string{"backend", "outcome"},
	)

	syncEntityErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_sync_entity_errors_total",
			Help: "Per-entity failures reported by sync runs",
		},
		[]string{"backend", "op"},
	)

	lastSyncTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "catalog_sync_last_success_timestamp_seconds",
			Help: "Unix time of the last successful sync per datasource",
		},
		[]string{"datasource"},
	)

	duplicatesRemovedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_duplicates_removed_total",
			Help: "Duplicate catalog rows removed by cleanup",
		},
	)

	// Remote store metrics
	remoteOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "catalog_remote_operation_duration_seconds",
			Help:    "Remote store operation duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	remoteOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_remote_operations_total",
			Help: "Total remote store operations",
		},
		[]string{"backend", "operation", "status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordSync records the outcome of one sync run. result may be nil on failure.
func RecordSync(backend string, datasourceID uint, result *reconcile.SyncResult, duration time.Duration, err error) {
	syncDuration.WithLabelValues(backend).Observe(duration.Seconds())
	if err != nil {
		syncRunsTotal.WithLabelValues(backend, "error").Inc()
		return
	}
	syncRunsTotal.WithLabelValues(backend, "success").Inc()
	if result == nil || result.DryRun {
		return
	}

	syncEntriesTotal.WithLabelValues(backend, "created").Add(float64(result.Created))
	syncEntriesTotal.WithLabelValues(backend, "updated").Add(float64(result.Updated))
	syncEntriesTotal.WithLabelValues(backend, "identical").Add(float64(result.Identical))
	syncEntriesTotal.WithLabelValues(backend, "merged").Add(float64(result.Merged))
	syncEntriesTotal.WithLabelValues(backend, "orphaned").Add(float64(result.Orphaned))
	for _, e := range result.Errors {
		syncEntityErrorsTotal.WithLabelValues(backend, string(e.Op)).Inc()
	}
	lastSyncTimestamp.WithLabelValues(strconv.FormatUint(uint64(datasourceID), 10)).SetToCurrentTime()
}

// RecordSyncSkipped records a run refused because another one holds the datasource.
func RecordSyncSkipped(backend string) {
	syncRunsTotal.WithLabelValues(backend, "skipped").Inc()
}

// RecordDuplicatesRemoved records rows deleted by duplicate cleanup.
func RecordDuplicatesRemoved(n int64) {
	duplicatesRemovedTotal.Add(float64(n))
}

// RecordRemoteOperation records one call against a remote store.
func RecordRemoteOperation(backend, operation string, duration time.Duration, success bool) {
	remoteOperationDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
	status := "success"
	if !success {
		status = "error"
	}
	remoteOperationsTotal.WithLabelValues(backend, operation, status).Inc()
}

// RecordHTTPRequest records a served API request.
func RecordHTTPRequest(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
