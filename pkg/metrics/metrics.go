package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "azpublish"

// Collector holds the publish engine metrics on a dedicated registry.
type Collector struct {
	registry *prometheus.Registry

	postsClaimed   prometheus.Counter
	postsFinalized *prometheus.CounterVec
	targetOutcomes *prometheus.CounterVec
	pollAttempts   *prometheus.HistogramVec
	runDuration    prometheus.Histogram
	runErrors      prometheus.Counter
}

func NewCollector() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.postsClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_claimed_total",
		Help:      "Posts moved from scheduled to processing.",
	})
	c.postsFinalized = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "posts_finalized_total",
		Help:      "Posts moved to a final status.",
	}, []string{"status"})
	c.targetOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "target_outcomes_total",
		Help:      "Terminal target outcomes by channel.",
	}, []string{"channel", "outcome"})
	c.pollAttempts = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "media_poll_attempts",
		Help:      "Status checks needed before a media container was ready or gave up.",
		Buckets:   []float64{1, 2, 3, 5, 8, 10},
	}, []string{"channel"})
	c.runDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Wall time of one engine invocation.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
	})
	c.runErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "run_errors_total",
		Help:      "Engine invocations that aborted.",
	})

	c.registry.MustRegister(
		c.postsClaimed,
		c.postsFinalized,
		c.targetOutcomes,
		c.pollAttempts,
		c.runDuration,
		c.runErrors,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) PostsClaimed(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.postsClaimed.Add(float64(n))
}

func (c *Collector) PostFinalized(status string) {
	if c == nil {
		return
	}
	c.postsFinalized.WithLabelValues(status).Inc()
}

func (c *Collector) TargetOutcome(channel, outcome string) {
	if c == nil {
		return
	}
	c.targetOutcomes.WithLabelValues(channel, outcome).Inc()
}

func (c *Collector) PollAttempts(channel string, attempts int) {
	if c == nil {
		return
	}
	c.pollAttempts.WithLabelValues(channel).Observe(float64(attempts))
}

func (c *Collector) RunFinished(d time.Duration, err error) {
	if c == nil {
		return
	}
	c.runDuration.Observe(d.Seconds())
	if err != nil {
		c.runErrors.Inc()
	}
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler exposes the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
