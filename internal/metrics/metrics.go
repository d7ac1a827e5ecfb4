package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder holds the service collectors. A nil *Recorder is valid and
// records nothing.
type Recorder struct {
	scanRows      *prometheus.CounterVec
	backtestRuns  *prometheus.CounterVec
	alertsSent    *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	anomalies     *prometheus.CounterVec
	latency       *prometheus.HistogramVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		scanRows: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_scan_rows_total",
				Help: "Scan rows produced, by outcome",
			},
			[]string{"outcome"},
		),
		backtestRuns: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_backtest_runs_total",
				Help: "Backtest runs, by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		alertsSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_alerts_total",
				Help: "Alert evaluations, by result",
			},
			[]string{"result"},
		),
		cacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_bar_cache_lookups_total",
				Help: "Bar cache lookups, by result",
			},
			[]string{"result"},
		),
		anomalies: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_trigger_anomalies_total",
				Help: "Bars where both triggers fired",
			},
			[]string{"kind"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macmarket_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "macmarket_http_requests_total",
				Help: "HTTP requests, by route, method and status",
			},
			[]string{"route", "method", "status"},
		),
		httpDurations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "macmarket_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),
	}
}

func (r *Recorder) ScanRow(failed bool) {
	if r == nil {
		return
	}
	outcome := "ok"
	if failed {
		outcome = "error"
	}
	r.scanRows.WithLabelValues(outcome).Inc()
}

func (r *Recorder) BacktestRun(strategy string, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.backtestRuns.WithLabelValues(strategy, outcome).Inc()
}

// Alert records one evaluation; result is "notified", "suppressed" or "quiet".
func (r *Recorder) Alert(result string) {
	if r == nil {
		return
	}
	r.alertsSent.WithLabelValues(result).Inc()
}

func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

func (r *Recorder) Anomaly(kind string) {
	if r == nil {
		return
	}
	r.anomalies.WithLabelValues(kind).Inc()
}

// Since observes the time elapsed from start for op.
func (r *Recorder) Since(op string, start time.Time) {
	if r == nil {
		return
	}
	r.latency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

// GinMiddleware records request counts and latency by route template.
func (r *Recorder) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if r == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		r.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		r.httpDurations.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
