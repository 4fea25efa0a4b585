package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// NamespacePrefix is the namespace of all metrics exposed by this module.
const NamespacePrefix = "notifications"

var (
	queryDurationHist      *prometheus.HistogramVec
	queryTotal             *prometheus.CounterVec
	migrationDurationHist  *prometheus.HistogramVec
	migrationsAppliedTotal *prometheus.CounterVec

	timeSince = time.Since // for test purposes only
)

const (
	subsystem      = "database"
	queryNameLabel = "name"
	directionLabel = "direction"

	queryDurationName = "query_duration_seconds"
	queryDurationDesc = "A histogram of latencies for database queries."
	queryTotalName    = "queries_total"
	queryTotalDesc    = "A counter for database queries."

	migrationDurationName = "migration_run_duration_seconds"
	migrationDurationDesc = "A histogram of latencies for schema migration runs."
	migrationsAppliedName = "migrations_applied_total"
	migrationsAppliedDesc = "A counter for schema migrations applied, by direction."
)

func init() {
	queryDurationHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: NamespacePrefix,
			Subsystem: subsystem,
			Name:      queryDurationName,
			Help:      queryDurationDesc,
			Buckets:   prometheus.DefBuckets,
		},
		[]string{queryNameLabel},
	)

	queryTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NamespacePrefix,
			Subsystem: subsystem,
			Name:      queryTotalName,
			Help:      queryTotalDesc,
		},
		[]string{queryNameLabel},
	)

	migrationDurationHist = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: NamespacePrefix,
			Subsystem: subsystem,
			Name:      migrationDurationName,
			Help:      migrationDurationDesc,
			Buckets:   []float64{.1, .5, 1, 5, 10, 30, 60, 300, 600},
		},
		[]string{directionLabel},
	)

	migrationsAppliedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: NamespacePrefix,
			Subsystem: subsystem,
			Name:      migrationsAppliedName,
			Help:      migrationsAppliedDesc,
		},
		[]string{directionLabel},
	)

	prometheus.MustRegister(queryDurationHist, queryTotal, migrationDurationHist, migrationsAppliedTotal)
}

// InstrumentQuery starts timing the query identified by name. Call the returned function once the query completes.
func InstrumentQuery(name string) func() {
	start := time.Now()
	return func() {
		queryTotal.WithLabelValues(name).Inc()
		queryDurationHist.WithLabelValues(name).Observe(timeSince(start).Seconds())
	}
}

// MigrationRun records a migration run in the given direction ("up" or "down") that applied n migrations.
func MigrationRun(direction string, n int, start time.Time) {
	migrationDurationHist.WithLabelValues(direction).Observe(timeSince(start).Seconds())
	migrationsAppliedTotal.WithLabelValues(direction).Add(float64(n))
}
