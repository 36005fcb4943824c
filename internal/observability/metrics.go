package observability

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
)

// Decision outcomes recorded per state-machine domain.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeDenied   = "denied"
)

const namespace = "fleet"

// Metrics holds the service counters on a private Prometheus registry.
type Metrics struct {
	registry  *prometheus.Registry
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	errors    *prometheus.CounterVec
	decisions *prometheus.CounterVec
	breaches  *prometheus.CounterVec
	fallbacks prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status.",
		}, []string{"path", "method", "status"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_errors_total",
			Help:      "Error responses by route, method and error code.",
		}, []string{"path", "method", "code"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transition_decisions_total",
			Help:      "State transition attempts by domain and outcome.",
		}, []string{"domain", "outcome"}),
		breaches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_breaches_total",
			Help:      "Incidents marked as out of SLA, by priority.",
		}, []string{"priority"}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sla_priority_fallbacks_total",
			Help:      "SLA evaluations that used the default priority tier.",
		}),
	}
	m.registry.MustRegister(
		m.requests, m.latency, m.errors, m.decisions, m.breaches, m.fallbacks,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(path, method, code).Inc()
	m.latency.WithLabelValues(path, method, code).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordDecision counts a transition attempt in domain by outcome.
func (m *Metrics) RecordDecision(domain, outcome string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(domain, outcome).Inc()
}

// RecordBreach counts an SLA breach by priority.
func (m *Metrics) RecordBreach(priority string) {
	if m == nil {
		return
	}
	m.breaches.WithLabelValues(priority).Inc()
}

// RecordPriorityFallback counts SLA evaluations that used the default tier.
func (m *Metrics) RecordPriorityFallback() {
	if m == nil {
		return
	}
	m.fallbacks.Inc()
}

// Counter is one exported metric value.
type Counter struct {
	Key   string `json:"key"`
	Value int64  `json:"value"`
}

// Snapshot is a point-in-time copy of the service counters, keys sorted.
// Keys join label values with "|" in declaration order.
type Snapshot struct {
	Requests          []Counter `json:"requests"`
	RequestAvgMillis  []Counter `json:"request_avg_ms"`
	Errors            []Counter `json:"errors"`
	Decisions         []Counter `json:"decisions"`
	Breaches          []Counter `json:"breaches"`
	PriorityFallbacks int64     `json:"priority_fallbacks"`
}

// Snapshot gathers the registry into the JSON-friendly form served on the
// admin API.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	families, err := m.registry.Gather()
	if err != nil {
		return Snapshot{}
	}

	snap := Snapshot{
		Requests:         []Counter{},
		RequestAvgMillis: []Counter{},
		Errors:           []Counter{},
		Decisions:        []Counter{},
		Breaches:         []Counter{},
	}
	for _, mf := range families {
		switch strings.TrimPrefix(mf.GetName(), namespace+"_") {
		case "http_requests_total":
			snap.Requests = counterValues(mf, "path", "method", "status")
		case "http_request_duration_seconds":
			for _, metric := range mf.GetMetric() {
				h := metric.GetHistogram()
				if h.GetSampleCount() == 0 {
					continue
				}
				avg := math.Round(h.GetSampleSum() / float64(h.GetSampleCount()) * 1000)
				snap.RequestAvgMillis = append(snap.RequestAvgMillis, Counter{
					Key:   labelKey(metric, "path", "method", "status"),
					Value: int64(avg),
				})
			}
			sortCounters(snap.RequestAvgMillis)
		case "http_errors_total":
			snap.Errors = counterValues(mf, "path", "method", "code")
		case "transition_decisions_total":
			snap.Decisions = counterValues(mf, "domain", "outcome")
		case "sla_breaches_total":
			snap.Breaches = counterValues(mf, "priority")
		case "sla_priority_fallbacks_total":
			for _, metric := range mf.GetMetric() {
				snap.PriorityFallbacks += int64(metric.GetCounter().GetValue())
			}
		}
	}
	return snap
}

func counterValues(mf *dto.MetricFamily, labels ...string) []Counter {
	out := make([]Counter, 0, len(mf.GetMetric()))
	for _, metric := range mf.GetMetric() {
		out = append(out, Counter{
			Key:   labelKey(metric, labels...),
			Value: int64(metric.GetCounter().GetValue()),
		})
	}
	sortCounters(out)
	return out
}

// labelKey joins the values of names in the given order; the exposition
// format sorts label pairs by name.
func labelKey(metric *dto.Metric, names ...string) string {
	values := make([]string, len(names))
	for i, name := range names {
		for _, pair := range metric.GetLabel() {
			if pair.GetName() == name {
				values[i] = pair.GetValue()
				break
			}
		}
	}
	return strings.Join(values, "|")
}

func sortCounters(cs []Counter) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].Key < cs[j].Key })
}
