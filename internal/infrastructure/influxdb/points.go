package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

// Measurement names written by this package.
const (
	measurementTransactions = "transactions"
	measurementRunnerStats  = "runner_stats"
)

// transactionPoint builds the point for one run. The unit-of-work name and
// outcome are tags; the run ID is a field to keep series cardinality low.
func transactionPoint(report persistence.RunReport, at time.Time) *write.Point {
	fields := map[string]interface{}{
		"run_id":      report.ID,
		"attempts":    report.Attempts,
		"retries":     max(report.Attempts-1, 0),
		"duration_ms": float64(report.Duration) / float64(time.Millisecond),
	}
	if report.Err != nil {
		fields["error"] = report.Err.Error()
	}

	return write.NewPoint(
		measurementTransactions,
		map[string]string{
			"tx":      report.Name,
			"outcome": string(report.Outcome),
		},
		fields,
		at,
	)
}

func statsPoint(stats persistence.Stats, pool persistence.PoolStats, sink SinkStats, at time.Time) *write.Point {
	return write.NewPoint(
		measurementRunnerStats,
		nil,
		map[string]interface{}{
			"runs":                   stats.Runs,
			"attempts":               stats.Attempts,
			"commits":                stats.Commits,
			"rollbacks":              stats.Rollbacks,
			"retries":                stats.Retries,
			"failures":               stats.Failures,
			"authorization_failures": stats.AuthorizationFailures,
			"active_leases":          pool.Active,
			"connections_opened":     pool.Opened,
			"connections_closed":     pool.Closed,
			"points_dropped":         sink.Dropped,
			"write_errors":           sink.WriteErrors,
		},
		at,
	)
}
