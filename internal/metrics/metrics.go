package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TaskOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "studytracker_task_operations_total",
			Help: "Total number of task service operations",
		},
		[]string{"operation", "status"},
	)

	TaskOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "studytracker_task_operation_duration_seconds",
			Help:    "Duration of task service operations in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	OverdueTasks = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "studytracker_tasks_overdue",
			Help: "Number of incomplete tasks past their due date at the last worker check",
		},
	)
)

// Observe фиксирует длительность и итог операции; status "success", "not_found", "invalid" или "error"
func Observe(operation, status string, start time.Time) {
	TaskOperations.WithLabelValues(operation, status).Inc()
	TaskOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
