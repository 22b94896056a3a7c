package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. All methods
// are safe on a nil receiver.
type Metrics struct {
	ActiveSessions     prometheus.Gauge
	SessionEvents      *prometheus.CounterVec
	WSMessages         *prometheus.CounterVec
	UpstreamErrors     *prometheus.CounterVec
	UpstreamLatency    *prometheus.HistogramVec
	TokensMinted       prometheus.Counter
	SupervisorTimeouts *prometheus.CounterVec
	RateLimited        *prometheus.CounterVec

	registerer prometheus.Registerer
	gatherer   prometheus.Gatherer
	namespace  string
}

// NewMetrics registers instruments on reg. A nil reg uses a fresh registry so
// tests and tools never collide on the global one.
func NewMetrics(namespace string, reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of live viewer sessions.",
		}),
		SessionEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		UpstreamErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream failures by dependency and reason.",
		}, []string{"upstream", "reason"}),
		UpstreamLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_ms",
			Help:      "Upstream call latency in milliseconds.",
			Buckets:   []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}, []string{"upstream"}),
		TokensMinted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tokens_minted_total",
			Help:      "Room access tokens issued.",
		}),
		SupervisorTimeouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_timeouts_total",
			Help:      "Forced disconnects by the liveness supervisor.",
		}, []string{"kind"}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
		registerer: reg,
		gatherer:   reg,
		namespace:  namespace,
	}
}

// CacheStats is implemented by the tiered cache.
type CacheStats interface {
	Stats() (hits, misses int64)
}

// RegisterCache exposes cache hit and miss counters.
func (m *Metrics) RegisterCache(c CacheStats) {
	if m == nil || c == nil {
		return
	}
	factory := promauto.With(m.registerer)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_hits_total",
		Help:      "Cache hits across both tiers.",
	}, func() float64 {
		hits, _ := c.Stats()
		return float64(hits)
	})
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "cache_misses_total",
		Help:      "Cache misses across both tiers.",
	}, func() float64 {
		_, misses := c.Stats()
		return float64(misses)
	})
}

func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.ActiveSessions.Inc()
	m.SessionEvents.WithLabelValues("created").Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.ActiveSessions.Dec()
	m.SessionEvents.WithLabelValues("ended").Inc()
}

func (m *Metrics) WSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// ObserveUpstream records latency and, when err is non-nil, a failure.
func (m *Metrics) ObserveUpstream(upstream string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.UpstreamLatency.WithLabelValues(upstream).Observe(float64(time.Since(started).Milliseconds()))
	if err != nil {
		m.UpstreamErrors.WithLabelValues(upstream, "error").Inc()
	}
}

func (m *Metrics) TokenMinted() {
	if m == nil {
		return
	}
	m.TokensMinted.Inc()
}

func (m *Metrics) SupervisorTimeout(kind string) {
	if m == nil {
		return
	}
	m.SupervisorTimeouts.WithLabelValues(kind).Inc()
}

func (m *Metrics) RateLimitRejected(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
