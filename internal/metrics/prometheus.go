package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ClickAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uyap_click_attempts_total",
			Help: "Click attempts by outcome",
		},
		[]string{"result"},
	)

	QueryOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uyap_query_outcomes_total",
			Help: "Query executor results by query type and status",
		},
		[]string{"query_type", "status"},
	)

	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "uyap_query_duration_seconds",
			Help:    "Query executor duration in seconds",
			Buckets: []float64{1, 2, 5, 10, 20, 40, 80, 160},
		},
		[]string{"query_type"},
	)

	PersistedRows = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uyap_persisted_rows_total",
			Help: "Rows written by the persistence layer",
		},
		[]string{"table", "result"},
	)

	BackupWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "uyap_backup_writes_total",
			Help: "JSON backup file writes by outcome",
		},
		[]string{"result"},
	)

	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "uyap_active_sessions",
			Help: "Browser sessions currently held by the session manager",
		},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call twice.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(ClickAttempts)
		prometheus.MustRegister(QueryOutcomes)
		prometheus.MustRegister(QueryDuration)
		prometheus.MustRegister(PersistedRows)
		prometheus.MustRegister(BackupWrites)
		prometheus.MustRegister(ActiveSessions)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}
