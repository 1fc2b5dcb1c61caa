package migrate

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

var (
	migrationsSucceeded = metrics.NewCounter(`docrepo_migrations_total{status="success"}`)
	migrationsFailed    = metrics.NewCounter(`docrepo_migrations_total{status="fail"}`)
	migrationsSkipped   = metrics.NewCounter(`docrepo_migrations_total{status="skipped"}`)
	migrationDuration   = metrics.NewHistogram(`docrepo_migration_duration_seconds`)
)

// WritePrometheus writes the migration metrics in the prometheus text format
func WritePrometheus(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
