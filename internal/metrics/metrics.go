package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	SummaryOutcomes     *prometheus.CounterVec
	ProfileEvaluations  *prometheus.CounterVec
	LLMRequests         *prometheus.CounterVec
	SourceFetches       *prometheus.CounterVec
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	gatherer prometheus.Gatherer
}

// New creates the counters and registers them on reg.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SummaryOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alpha_summaries_total",
			Help: "Channel summaries by channel and outcome (ai, placeholder, failed)",
		}, []string{"channel", "outcome"}),
		ProfileEvaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alpha_profile_evaluations_total",
			Help: "Signal profile evaluations by outcome",
		}, []string{"outcome"}),
		LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alpha_llm_requests_total",
			Help: "Completion calls by provider and status",
		}, []string{"provider", "status"}),
		SourceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alpha_source_fetches_total",
			Help: "Source adapter fetches by source and status",
		}, []string{"source", "status"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "feed_alpha_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "endpoint", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "feed_alpha_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "endpoint"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.SummaryOutcomes,
		m.ProfileEvaluations,
		m.LLMRequests,
		m.SourceFetches,
		m.HTTPRequests,
		m.HTTPRequestDuration,
	)
	return m
}

func (m *Metrics) IncSummary(channel, outcome string) {
	if m == nil || m.SummaryOutcomes == nil {
		return
	}

	m.SummaryOutcomes.WithLabelValues(channel, outcome).Inc()
}

func (m *Metrics) IncProfile(outcome string) {
	if m == nil || m.ProfileEvaluations == nil {
		return
	}

	m.ProfileEvaluations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncLLM(provider, status string) {
	if m == nil || m.LLMRequests == nil {
		return
	}

	m.LLMRequests.WithLabelValues(provider, status).Inc()
}

func (m *Metrics) IncFetch(source string, err error) {
	if m == nil || m.SourceFetches == nil {
		return
	}

	status := "ok"
	if err != nil {
		status = "error"
	}
	m.SourceFetches.WithLabelValues(source, status).Inc()
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
