// Package metrics collects Prometheus counters for frame traffic.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// guard their calls.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Drop reasons.
const (
	ReasonUnknownKind   = "unknown_kind"
	ReasonMalformed     = "malformed"
	ReasonPayloadDecode = "payload_decode"
	ReasonHandlerPanic  = "handler_panic"
	ReasonInject        = "inject"
)

type Config struct {
	// Namespace is the metrics namespace (default: "gamecontroller").
	Namespace string

	// Subsystem is the metrics subsystem, e.g. "player" or "host".
	Subsystem string

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

type Option func(*Config)

func WithNamespace(namespace string) Option {
	return func(c *Config) {
		c.Namespace = namespace
	}
}

func WithSubsystem(subsystem string) Option {
	return func(c *Config) {
		c.Subsystem = subsystem
	}
}

func WithRegistry(registry prometheus.Registerer) Option {
	return func(c *Config) {
		c.Registry = registry
	}
}

type Metrics struct {
	framesSent     *prometheus.CounterVec
	framesReceived *prometheus.CounterVec
	framesDropped  *prometheus.CounterVec
	routingMisses  *prometheus.CounterVec
	handlerPanics  *prometheus.CounterVec
}

func New(opts ...Option) *Metrics {
	config := Config{
		Namespace: "gamecontroller",
		Registry:  prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(&config)
	}

	factory := promauto.With(config.Registry)

	return &Metrics{
		framesSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "frames_sent_total",
			Help:      "Total number of frames handed to the transport, by message kind",
		}, []string{"kind"}),

		framesReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "frames_received_total",
			Help:      "Total number of inbound frames decoded, by message kind",
		}, []string{"kind"}),

		framesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "frames_dropped_total",
			Help:      "Total number of inbound frames dropped, by reason",
		}, []string{"reason"}),

		routingMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "routing_misses_total",
			Help:      "Inbound payloads or events with no registered handler",
		}, []string{"registry"}),

		handlerPanics: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.Namespace,
			Subsystem: config.Subsystem,
			Name:      "handler_panics_total",
			Help:      "Handlers that panicked while processing a message",
		}, []string{"registry"}),
	}
}

func (m *Metrics) FrameSent(kind string) {
	if m == nil {
		return
	}
	m.framesSent.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameReceived(kind string) {
	if m == nil {
		return
	}
	m.framesReceived.WithLabelValues(kind).Inc()
}

func (m *Metrics) FrameDropped(reason string) {
	if m == nil {
		return
	}
	m.framesDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) RoutingMiss(registry string) {
	if m == nil {
		return
	}
	m.routingMisses.WithLabelValues(registry).Inc()
}

func (m *Metrics) HandlerPanic(registry string) {
	if m == nil {
		return
	}
	m.handlerPanics.WithLabelValues(registry).Inc()
}
