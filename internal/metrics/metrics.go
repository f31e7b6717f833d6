// Package metrics exposes the Prometheus collectors of the zone router.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"

	"github.com/sells-group/zone-router/internal/resilience"
)

const namespace = "zonerouter"

// Collector bundles the engine and HTTP metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	CacheLookups    *prometheus.CounterVec
	ComputeDuration *prometheus.HistogramVec
	SourceFailures  *prometheus.CounterVec
	BreakerState    *prometheus.GaugeVec
	RoutesScored    prometheus.Counter
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
}

// New registers the collectors against reg, defaulting to the global
// registry when nil. Registering twice against the same registry reuses the
// existing collectors.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error

	if c.CacheLookups, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "cache_lookups_total",
		Help:      "Cache lookups by cached kind and result (hit or miss).",
	}, []string{"kind", "result"})); err != nil {
		return nil, err
	}
	if c.ComputeDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "compute_duration_seconds",
		Help:      "Duration of engine computations, cache misses only.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	}, []string{"operation"})); err != nil {
		return nil, err
	}
	if c.SourceFailures, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_failures_total",
		Help:      "Upstream data sources degraded to synthesized fallback values.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if c.BreakerState, err = register(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "breaker_state",
		Help:      "Circuit breaker state per upstream: 0 closed, 1 open, 2 half-open.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if c.RoutesScored, err = register(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "routes_scored_total",
		Help:      "Route candidates scored.",
	})); err != nil {
		return nil, err
	}
	if c.HTTPRequests, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "code"})); err != nil {
		return nil, err
	}
	if c.HTTPDuration, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})); err != nil {
		return nil, err
	}
	return c, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if eris.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
			return c, eris.Wrap(err, "metrics: collector registered with incompatible type")
		}
		return c, eris.Wrap(err, "metrics: register collector")
	}
	return c, nil
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// CacheLookup records a cache hit or miss for kind.
func (c *Collector) CacheLookup(kind string, hit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	c.CacheLookups.WithLabelValues(kind, result).Inc()
}

// ObserveCompute records how long operation took since start.
func (c *Collector) ObserveCompute(operation string, start time.Time) {
	if c == nil {
		return
	}
	c.ComputeDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// SourceFailed counts a degraded upstream source.
func (c *Collector) SourceFailed(source string) {
	if c == nil {
		return
	}
	c.SourceFailures.WithLabelValues(source).Inc()
}

// BreakerChanged matches the resilience state-change callback.
func (c *Collector) BreakerChanged(source string, _, to resilience.BreakerState) {
	if c == nil {
		return
	}
	c.BreakerState.WithLabelValues(source).Set(float64(to))
}

// RoutesScoredAdd counts scored route candidates.
func (c *Collector) RoutesScoredAdd(n int) {
	if c == nil {
		return
	}
	c.RoutesScored.Add(float64(n))
}

// ObserveHTTP records one served request.
func (c *Collector) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	c.HTTPRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
