package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spire-dev/spire/pkg/dispatch"
	"github.com/spire-dev/spire/pkg/frame"
)

// Config configures a Collector.
type Config struct {
	// Namespace prefixes every metric name (default: "spire").
	Namespace string

	// ConstLabels are added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the dispatch duration histogram buckets.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry receives the metrics.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// Option configures a Collector.
type Option func(*Config)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(c *Config) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) Option {
	return func(c *Config) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

func defaultConfig() Config {
	return Config{
		Namespace: "spire",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Collector records session, dispatch and pool metrics. It implements
// session.Observer and dispatch.Observer and is safe for concurrent use by
// many sessions.
type Collector struct {
	cfg Config

	activeSessions   prometheus.Gauge
	sessionsTotal    prometheus.Counter
	framesSent       *prometheus.CounterVec
	bytesSent        prometheus.Counter
	framesReceived   *prometheus.CounterVec
	bytesReceived    prometheus.Counter
	transportErrors  *prometheus.CounterVec
	dispatched       *prometheus.HistogramVec
	dispatchFailures *prometheus.CounterVec
}

// New creates a Collector and registers its metrics.
// It panics if a metric with the same name is already registered.
func New(opts ...Option) *Collector {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	factory := promauto.With(cfg.Registry)

	return &Collector{
		cfg: cfg,

		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "active",
			Help:        "Number of running sessions",
			ConstLabels: cfg.ConstLabels,
		}),

		sessionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "started_total",
			Help:        "Total number of sessions that reached the running state",
			ConstLabels: cfg.ConstLabels,
		}),

		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "frames_sent_total",
			Help:        "Frames written to the transport by protocol id",
			ConstLabels: cfg.ConstLabels,
		}, []string{"protocol_id"}),

		bytesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "bytes_sent_total",
			Help:        "Bytes written to the transport, headers included",
			ConstLabels: cfg.ConstLabels,
		}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "frames_received_total",
			Help:        "Frames read from the transport by protocol id",
			ConstLabels: cfg.ConstLabels,
		}, []string{"protocol_id"}),

		bytesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "bytes_received_total",
			Help:        "Bytes read from the transport, headers included",
			ConstLabels: cfg.ConstLabels,
		}),

		transportErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "session",
			Name:        "transport_errors_total",
			Help:        "Transport failures by operation",
			ConstLabels: cfg.ConstLabels,
		}, []string{"op"}),

		dispatched: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "dispatch",
			Name:        "duration_seconds",
			Help:        "Handler duration by message name",
			ConstLabels: cfg.ConstLabels,
			Buckets:     cfg.Buckets,
		}, []string{"message"}),

		dispatchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   cfg.Namespace,
			Subsystem:   "dispatch",
			Name:        "errors_total",
			Help:        "Dispatch errors by kind",
			ConstLabels: cfg.ConstLabels,
		}, []string{"kind"}),
	}
}

func (c *Collector) SessionStarted() {
	c.activeSessions.Inc()
	c.sessionsTotal.Inc()
}

func (c *Collector) SessionStopped() {
	c.activeSessions.Dec()
}

func (c *Collector) FrameSent(id uint16, size int) {
	c.framesSent.WithLabelValues(idLabel(id)).Inc()
	c.bytesSent.Add(float64(size))
}

func (c *Collector) FrameReceived(id uint16, size int) {
	c.framesReceived.WithLabelValues(idLabel(id)).Inc()
	c.bytesReceived.Add(float64(size))
}

func (c *Collector) TransportFailed(op string) {
	c.transportErrors.WithLabelValues(op).Inc()
}

func (c *Collector) Dispatched(id uint16, name string, took time.Duration) {
	if name == "" {
		name = idLabel(id)
	}
	c.dispatched.WithLabelValues(name).Observe(took.Seconds())
}

func (c *Collector) DispatchFailed(kind dispatch.Kind, id uint16) {
	c.dispatchFailures.WithLabelValues(kind.String()).Inc()
}

// WatchPool exports the counters of pool as gauges.
func (c *Collector) WatchPool(pool *frame.Pool) error {
	opts := func(name, help string) prometheus.GaugeOpts {
		return prometheus.GaugeOpts{
			Namespace:   c.cfg.Namespace,
			Subsystem:   "pool",
			Name:        name,
			Help:        help,
			ConstLabels: c.cfg.ConstLabels,
		}
	}

	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(opts("buffers_in_use", "Buffers rented and not yet returned"),
			func() float64 { return float64(pool.Stats().InUse()) }),
		prometheus.NewGaugeFunc(opts("double_releases", "Release calls on an already released frame"),
			func() float64 { return float64(pool.Stats().DoubleReleases) }),
		prometheus.NewGaugeFunc(opts("oversize_rents", "Rents larger than the biggest size class"),
			func() float64 { return float64(pool.Stats().Oversize) }),
	}
	for _, col := range collectors {
		if err := c.cfg.Registry.Register(col); err != nil {
			return err
		}
	}
	return nil
}

func idLabel(id uint16) string {
	return strconv.FormatUint(uint64(id), 10)
}
