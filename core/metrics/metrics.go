// Package metrics defines the reactor's error-kind counter hook and
// one concrete sink backed by github.com/prometheus/client_golang. The
// core only ever calls through the Hooks interface — the specification
// treats metrics as a hook with the sink out of scope — but a runnable
// service needs a real implementation, so this package provides the
// one the rest of the corpus actually uses for counters and gauges.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorKind enumerates the error taxonomy from the specification's
// error-handling section. Every kind is recoverable locally by closing
// the affected connection; none are fatal to the worker.
type ErrorKind string

const (
	ClientDisconnect  ErrorKind = "client_disconnect"
	TransientIO       ErrorKind = "transient_io"
	FatalIO           ErrorKind = "fatal_io"
	ProtocolError     ErrorKind = "protocol_error"
	Timeout           ErrorKind = "timeout"
	ResourceExhausted ErrorKind = "resource_exhaustion"
	InternalOverflow  ErrorKind = "internal_overflow"
)

// Hooks is the metrics boundary the reactor calls through. Nil-safe
// default is NoOp.
type Hooks interface {
	IncError(kind ErrorKind)
	SetActiveConnections(worker int, n int)
	SetFallbackPoolDepth(n int)
}

// NoOp discards every observation; used when no sink is configured.
type NoOp struct{}

func (NoOp) IncError(ErrorKind)                {}
func (NoOp) SetActiveConnections(int, int)     {}
func (NoOp) SetFallbackPoolDepth(int)          {}

// Prometheus is a Hooks implementation backed by a counter vector
// keyed by error kind plus two gauges for live connections (per
// worker, labeled) and fallback-pool depth.
type Prometheus struct {
	reg      *prometheus.Registry
	errors   *prometheus.CounterVec
	active   *prometheus.GaugeVec
	fallback prometheus.Gauge
}

// NewPrometheus registers its collectors on reg and returns the sink.
func NewPrometheus(reg *prometheus.Registry) *Prometheus {
	p := &Prometheus{
		reg: reg,
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bff",
			Subsystem: "reactor",
			Name:      "errors_total",
			Help:      "Connection-closing errors by kind.",
		}, []string{"kind"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "bff",
			Subsystem: "reactor",
			Name:      "active_connections",
			Help:      "Live connections per worker.",
		}, []string{"worker"}),
		fallback: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "bff",
			Subsystem: "reactor",
			Name:      "fallback_pool_depth",
			Help:      "Free records remaining in the shared fallback connection pool.",
		}),
	}
	reg.MustRegister(p.errors, p.active, p.fallback)
	return p
}

func (p *Prometheus) IncError(kind ErrorKind) {
	p.errors.WithLabelValues(string(kind)).Inc()
}

func (p *Prometheus) SetActiveConnections(worker int, n int) {
	p.active.WithLabelValues(workerLabel(worker)).Set(float64(n))
}

func (p *Prometheus) SetFallbackPoolDepth(n int) {
	p.fallback.Set(float64(n))
}

// Registry exposes the registry collectors were registered on, for
// wiring a promhttp handler.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.reg
}

func workerLabel(worker int) string {
	return strconv.Itoa(worker)
}
