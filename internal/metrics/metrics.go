// Package metrics holds the Prometheus collectors for the tracker.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	JobsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_jobs_created_total",
		Help: "The total number of jobs created",
	})

	JobsDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "archive_jobs_deleted_total",
		Help: "The total number of jobs deleted",
	})

	StageTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_stage_transitions_total",
		Help: "The total number of applied stage transitions",
	}, []string{"stage"})

	OutsourcingEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_outsourcing_events_total",
		Help: "Outsourcing timestamps recorded, by field",
	}, []string{"field"})

	AuditEntries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "archive_audit_entries_total",
		Help: "Audit log entries written, by action",
	}, []string{"action"})

	BackupDaysUntilDue = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "archive_backup_days_until_due",
		Help: "Days until the next backup is due; negative when overdue",
	})
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
