package prometrics

import (
	"sync"

	"github.com/Zhima-Mochi/minishop-fulfillment/internal/observability"
	"github.com/prometheus/client_golang/prometheus"
)

// Registry exposes the subset of Prometheus registry functionality needed by the application.
type Registry interface {
	Counter(name string, help string, labelKeys ...string) observability.Counter
	Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram
}

type registry struct {
	counters   sync.Map // name -> *prometheus.CounterVec
	histograms sync.Map // name -> *prometheus.HistogramVec
	namespace  string
	subsystem  string
	reg        prometheus.Registerer
	mu         sync.Mutex
}

// New registers collectors on reg, or on the default registerer when reg is nil.
func New(namespace, subsystem string, reg prometheus.Registerer) Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &registry{namespace: namespace, subsystem: subsystem, reg: reg}
}

type counter struct{ v *prometheus.CounterVec }

func (c *counter) Add(d float64, labels ...observability.Label) {
	c.v.With(labelMap(labels)).Add(d)
}

func (c *counter) Bind(labels ...observability.Label) observability.BoundCounter {
	return &boundCounter{v: c.v, labels: labelMap(labels)}
}

type boundCounter struct {
	v      *prometheus.CounterVec
	labels prometheus.Labels
}

func (c *boundCounter) Add(d float64) {
	if c == nil || c.v == nil {
		return
	}
	c.v.With(c.labels).Add(d)
}

type histogram struct{ v *prometheus.HistogramVec }

func (h *histogram) Observe(v float64, labels ...observability.Label) {
	h.v.With(labelMap(labels)).Observe(v)
}

func (h *histogram) Bind(labels ...observability.Label) observability.BoundHistogram {
	return &boundHistogram{v: h.v, labels: labelMap(labels)}
}

type boundHistogram struct {
	v      *prometheus.HistogramVec
	labels prometheus.Labels
}

func (h *boundHistogram) Observe(v float64) {
	if h == nil || h.v == nil {
		return
	}
	h.v.With(h.labels).Observe(v)
}

func labelMap(ls []observability.Label) prometheus.Labels {
	m := make(prometheus.Labels, len(ls))
	for _, l := range ls {
		m[l.Key] = l.Value
	}
	return m
}

func (r *registry) Counter(name string, help string, labelKeys ...string) observability.Counter {
	if v, ok := r.counters.Load(name); ok {
		return &counter{v: v.(*prometheus.CounterVec)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.counters.Load(name); ok {
		return &counter{v: v.(*prometheus.CounterVec)}
	}
	cv := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help,
	}, labelKeys)
	r.reg.MustRegister(cv)
	r.counters.Store(name, cv)
	return &counter{v: cv}
}

func (r *registry) Histogram(name string, help string, buckets []float64, labelKeys ...string) observability.Histogram {
	if v, ok := r.histograms.Load(name); ok {
		return &histogram{v: v.(*prometheus.HistogramVec)}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.histograms.Load(name); ok {
		return &histogram{v: v.(*prometheus.HistogramVec)}
	}
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: r.namespace, Subsystem: r.subsystem, Name: name, Help: help, Buckets: buckets,
	}, labelKeys)
	r.reg.MustRegister(hv)
	r.histograms.Store(name, hv)
	return &histogram{v: hv}
}

// Instruments registers every metric the service emits.
func Instruments(r Registry) (map[observability.MetricKey]observability.Counter, map[observability.MetricKey]observability.Histogram) {
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: r.Counter(string(observability.MUsecaseRequests),
			"Total number of use case invocations.", "use_case", "outcome"),
		observability.MHTTPRequests: r.Counter(string(observability.MHTTPRequests),
			"Total number of HTTP requests.", "method", "route", "status"),
		observability.MExternalRequests: r.Counter(string(observability.MExternalRequests),
			"Calls to external peers such as the payment gateway or the event bus.", "peer", "endpoint", "outcome"),
		observability.MStockReservations: r.Counter(string(observability.MStockReservations),
			"Cart reservation attempts by outcome.", "outcome"),
		observability.MOrdersExpired: r.Counter(string(observability.MOrdersExpired),
			"Expiry actions by outcome.", "outcome"),
		observability.MEventsDispatched: r.Counter(string(observability.MEventsDispatched),
			"Domain events delivered to subscribers, by event and outcome.", "event", "outcome"),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: r.Histogram(string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.", nil, "use_case"),
		observability.MHTTPRequestDuration: r.Histogram(string(observability.MHTTPRequestDuration),
			"Duration of HTTP requests in seconds.", nil, "method", "route", "status"),
		observability.MExternalRequestDuration: r.Histogram(string(observability.MExternalRequestDuration),
			"Duration of external calls in seconds.", nil, "peer", "endpoint"),
	}
	return counters, histograms
}
