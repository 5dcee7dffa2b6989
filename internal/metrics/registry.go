// Package metrics provides JADE's Prometheus instrumentation. ComponentRegistry
// is a small reconstruction of the namespace/subsystem-prefixing registry
// pattern used by the wider codebase's own internal/network and x/publisher
// metrics (whose shared pkg/metrics.ComponentRegistry helper this module does
// not carry); it exists so every component can register its own metrics
// without repeating the namespace/subsystem boilerplate.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// ComponentRegistry registers metrics under a fixed namespace/subsystem
// prefix against a shared prometheus.Registerer.
type ComponentRegistry struct {
	namespace string
	subsystem string
	reg       prometheus.Registerer
}

// NewComponentRegistry returns a registry that prefixes every metric name
// with namespace_subsystem_ (subsystem may be empty).
func NewComponentRegistry(namespace, subsystem string) *ComponentRegistry {
	return NewComponentRegistryWith(namespace, subsystem, prometheus.DefaultRegisterer)
}

// NewComponentRegistryWith is NewComponentRegistry against an explicit
// prometheus.Registerer, used in tests to avoid colliding with metrics
// registered by other packages against the global default registry.
func NewComponentRegistryWith(namespace, subsystem string, reg prometheus.Registerer) *ComponentRegistry {
	return &ComponentRegistry{
		namespace: namespace,
		subsystem: subsystem,
		reg:       reg,
	}
}

func (r *ComponentRegistry) NewCounter(opts prometheus.CounterOpts) prometheus.Counter {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	c := prometheus.NewCounter(opts)
	r.reg.MustRegister(c)
	return c
}

func (r *ComponentRegistry) NewCounterVec(opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	c := prometheus.NewCounterVec(opts, labels)
	r.reg.MustRegister(c)
	return c
}

func (r *ComponentRegistry) NewGauge(opts prometheus.GaugeOpts) prometheus.Gauge {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	g := prometheus.NewGauge(opts)
	r.reg.MustRegister(g)
	return g
}

func (r *ComponentRegistry) NewGaugeVec(opts prometheus.GaugeOpts, labels []string) *prometheus.GaugeVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	g := prometheus.NewGaugeVec(opts, labels)
	r.reg.MustRegister(g)
	return g
}

func (r *ComponentRegistry) NewHistogram(opts prometheus.HistogramOpts) prometheus.Histogram {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	h := prometheus.NewHistogram(opts)
	r.reg.MustRegister(h)
	return h
}

func (r *ComponentRegistry) NewHistogramVec(opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	opts.Namespace = r.namespace
	opts.Subsystem = r.subsystem
	h := prometheus.NewHistogramVec(opts, labels)
	r.reg.MustRegister(h)
	return h
}

// DurationBuckets are general-purpose latency buckets in seconds.
var DurationBuckets = []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 300, 600}
