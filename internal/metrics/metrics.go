package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_runs_total",
			Help: "Total pipeline runs by final state",
		},
		[]string{"state"},
	)

	tasksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_tasks_total",
			Help: "Total task instances by final status",
		},
		[]string{"group", "task", "status"},
	)

	taskDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_task_duration_seconds",
			Help:    "Duration of task instances including retries",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~163s
		},
		[]string{"group", "task"},
	)

	rowsExtractedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_rows_extracted_total",
			Help: "Total rows written to snapshots by table",
		},
		[]string{"table"},
	)

	watermarkTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_watermark_timestamp_seconds",
			Help: "Current observations watermark as Unix epoch seconds",
		},
	)

	apiRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weather_api_requests_total",
			Help: "Requests made to the weather API",
		},
		[]string{"endpoint", "status"},
	)
)

func ObserveRun(state string) {
	runsTotal.WithLabelValues(state).Inc()
}

func ObserveTask(group, task, status string, d time.Duration) {
	tasksTotal.WithLabelValues(group, task, status).Inc()
	taskDurationSeconds.WithLabelValues(group, task).Observe(d.Seconds())
}

func ObserveRows(table string, n int) {
	rowsExtractedTotal.WithLabelValues(table).Add(float64(n))
}

func SetWatermark(t time.Time) {
	watermarkTimestamp.Set(float64(t.Unix()))
}

func ObserveAPIRequest(endpoint, status string) {
	apiRequestsTotal.WithLabelValues(endpoint, status).Inc()
}
