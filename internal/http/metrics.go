package httpx

import (
	"errors"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var histogramBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Auth flows and results recorded on matchd_api_auth_total.
const (
	authFlowBearer = "bearer"
	authFlowAPIKey = "api_key"

	authResultOK        = "ok"
	authResultMissing   = "missing"
	authResultInvalid   = "invalid"
	authResultForbidden = "forbidden"
)

// stageAll labels whole-run executions on matchd_api_stage_requests_total.
const stageAll = "all"

func (r *Router) initMetrics() {
	r.metricsOnce.Do(func() {
		reg := r.registerer
		r.requestTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "http_requests_total",
			Help:      "Count of processed HTTP requests by route and status class",
		}, []string{"method", "route", "code"}))

		r.requestLatency = registerOrReuse(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "http_request_duration_seconds",
			Help:      "Latency distribution of HTTP handlers; stage routes include the pipeline work",
			Buckets:   histogramBuckets,
		}, []string{"route"}))

		r.stageRequests = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "stage_requests_total",
			Help:      "Stage and execute requests by stage and outcome",
		}, []string{"stage", "outcome"}))

		r.authTotal = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "auth_total",
			Help:      "Authentication attempts by flow and result",
		}, []string{"flow", "result"}))

		r.progressStreams = registerOrReuse(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "progress_subscribers",
			Help:      "Open progress streams by transport",
		}, []string{"transport"}))

		r.rateLimitHits = registerOrReuse(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchd",
			Subsystem: "api",
			Name:      "rate_limit_hits_total",
			Help:      "Number of rate-limited responses",
		}, []string{"route", "key"}))

		r.metricsInitialized = true
	})
}

// registerOrReuse registers c, returning the collector already registered
// under the same descriptor when there is one.
func registerOrReuse[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}

func (r *Router) recordRequestMetrics(method, route string, status int, duration time.Duration) {
	if !r.metricsInitialized {
		return
	}
	r.requestTotal.WithLabelValues(method, route, statusClass(status)).Inc()
	r.requestLatency.WithLabelValues(route).Observe(duration.Seconds())
}

// recordStage counts a stage or execute request; outcome is "ok" or the
// error code written to the client.
func (r *Router) recordStage(stage, outcome string) {
	if !r.metricsInitialized {
		return
	}
	r.stageRequests.WithLabelValues(stage, outcome).Inc()
}

// stageLabel bounds the stage label to the pipeline's stages.
func stageLabel(n int) string {
	if n < 1 || n > 3 {
		return "other"
	}
	return strconv.Itoa(n)
}

func (r *Router) recordAuth(flow, result string) {
	if !r.metricsInitialized {
		return
	}
	r.authTotal.WithLabelValues(flow, result).Inc()
}

// trackStream bumps the subscriber gauge and returns the matching release.
func (r *Router) trackStream(transport string) func() {
	if !r.metricsInitialized {
		return func() {}
	}
	g := r.progressStreams.WithLabelValues(transport)
	g.Inc()
	return g.Dec
}

func (r *Router) recordRateLimitHit(route, key string) {
	if !r.metricsInitialized {
		return
	}
	r.rateLimitHits.With(prometheus.Labels{"route": route, "key": key}).Inc()
}
