package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "stationportal"

// Collectors holds the portal's prometheus collectors.
type Collectors struct {
	logins         *prometheus.CounterVec
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	wsConnections  prometheus.Gauge
	forceLogouts   *prometheus.CounterVec
	apiKeyAuth     *prometheus.CounterVec
	sessionCleanup prometheus.Counter
}

var (
	collectorsOnce sync.Once
	collectorsInst *Collectors
)

// Global returns the process-wide collectors, registering them on first use.
func Global() *Collectors {
	collectorsOnce.Do(func() {
		collectorsInst = newCollectors()
	})
	return collectorsInst
}

func newCollectors() *Collectors {
	return &Collectors{
		logins: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "logins_total",
			Help:      "Login attempts labeled by result",
		}, []string{"result"}),
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests labeled by method, route and status",
		}, []string{"method", "route", "status"}),
		requestLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency labeled by method and route",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		wsConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "connections",
			Help:      "Open notification websocket connections",
		}),
		forceLogouts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ws",
			Name:      "force_logout_deliveries_total",
			Help:      "Force logout messages labeled by whether a local connection received them",
		}, []string{"delivered"}),
		apiKeyAuth: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api_key",
			Name:      "authentications_total",
			Help:      "API key authentications labeled by result",
		}, []string{"result"}),
		sessionCleanup: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sessions",
			Name:      "history_deleted_total",
			Help:      "Session history rows removed by retention cleanup",
		}),
	}
}

// RecordLogin counts a login attempt.
func (c *Collectors) RecordLogin(success bool) {
	if c == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	c.logins.WithLabelValues(result).Inc()
}

// RecordRequest counts a finished HTTP request.
func (c *Collectors) RecordRequest(method, route string, status int, latency time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(method, route).Observe(latency.Seconds())
}

// WSConnected adjusts the open websocket gauge by delta.
func (c *Collectors) WSConnected(delta int) {
	if c == nil {
		return
	}
	c.wsConnections.Add(float64(delta))
}

// RecordForceLogout counts a force logout fan-out on this node.
func (c *Collectors) RecordForceLogout(deliveredTo int) {
	if c == nil {
		return
	}
	c.forceLogouts.WithLabelValues(strconv.FormatBool(deliveredTo > 0)).Inc()
}

// RecordAPIKeyAuth counts an API key authentication outcome.
func (c *Collectors) RecordAPIKeyAuth(result string) {
	if c == nil {
		return
	}
	c.apiKeyAuth.WithLabelValues(result).Inc()
}

// RecordSessionCleanup counts removed session history rows.
func (c *Collectors) RecordSessionCleanup(deleted int64) {
	if c == nil || deleted <= 0 {
		return
	}
	c.sessionCleanup.Add(float64(deleted))
}
