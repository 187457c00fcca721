package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lcx/gatesvr/log"
)

// Namespace prefixes every exported metric name.
const Namespace = "gatesvr"

// ErrUnsupportedPolicy is returned by Record for policies that need
// windowed aggregation (avg, max, min, mid).
var ErrUnsupportedPolicy = errors.New("metrics: unsupported policy")

var _stopwatchBuckets = []float64{
	.00005, .0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1,
}

type vec[T any] struct {
	vec    T
	labels []string
}

type store struct {
	mu         sync.Mutex
	reg        *prometheus.Registry
	counters   map[string]*vec[*prometheus.CounterVec]
	gauges     map[string]*vec[*prometheus.GaugeVec]
	histograms map[string]*vec[*prometheus.HistogramVec]
}

var _store = newStore()

func newStore() *store {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &store{
		reg:        reg,
		counters:   make(map[string]*vec[*prometheus.CounterVec]),
		gauges:     make(map[string]*vec[*prometheus.GaugeVec]),
		histograms: make(map[string]*vec[*prometheus.HistogramVec]),
	}
}

// Registry exposes the private registry every helper records into.
func Registry() *prometheus.Registry {
	return _store.reg
}

// Handler serves the registry in the prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(_store.reg, promhttp.HandlerOpts{Registry: _store.reg})
}

// FullName is the exported name of name in group: the group's dots become
// underscores, e.g. ("net.stateful", "x_total") -> gatesvr_net_stateful_x_total.
func FullName(group, name string) string {
	return prometheus.BuildFQName(Namespace, sanitize(group), sanitize(name))
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}

func labelNames(dims Dimension) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, sanitize(k))
	}
	sort.Strings(names)
	return names
}

// labelValues orders dims by the label set fixed at creation. Missing
// labels become "" and labels unknown to the vector are dropped.
func labelValues(labels []string, dims Dimension) []string {
	values := make([]string, len(labels))
	for i, l := range labels {
		values[i] = dims[l]
	}
	return values
}

func (s *store) counter(group, name string, dims Dimension) (*prometheus.CounterVec, []string) {
	key := FullName(group, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.counters[key]
	if !ok {
		labels := labelNames(dims)
		v = &vec[*prometheus.CounterVec]{
			vec:    prometheus.NewCounterVec(prometheus.CounterOpts{Name: key, Help: group + " " + name}, labels),
			labels: labels,
		}
		s.register(key, v.vec)
		s.counters[key] = v
	}
	return v.vec, labelValues(v.labels, dims)
}

func (s *store) gauge(group, name string, dims Dimension) (*prometheus.GaugeVec, []string) {
	key := FullName(group, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.gauges[key]
	if !ok {
		labels := labelNames(dims)
		v = &vec[*prometheus.GaugeVec]{
			vec:    prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: key, Help: group + " " + name}, labels),
			labels: labels,
		}
		s.register(key, v.vec)
		s.gauges[key] = v
	}
	return v.vec, labelValues(v.labels, dims)
}

func (s *store) histogram(group, name string, dims Dimension) (*prometheus.HistogramVec, []string) {
	key := FullName(group, name)
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.histograms[key]
	if !ok {
		labels := labelNames(dims)
		v = &vec[*prometheus.HistogramVec]{
			vec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    key,
				Help:    group + " " + name,
				Buckets: _stopwatchBuckets,
			}, labels),
			labels: labels,
		}
		s.register(key, v.vec)
		s.histograms[key] = v
	}
	return v.vec, labelValues(v.labels, dims)
}

// register logs a name clash; the vector still works but is not exported.
func (s *store) register(key string, c prometheus.Collector) {
	if err := s.reg.Register(c); err != nil {
		log.Warn().Str("metric", key).Err(err).Msg("metric registration failed")
	}
}

// IncrCounterWithGroup adds value to the counter name in group. Negative
// values are ignored.
func IncrCounterWithGroup(group, name string, value Value) {
	IncrCounterWithDimGroup(group, name, value, nil)
}

// IncrCounterWithDimGroup is IncrCounterWithGroup with labels. The label
// names of a metric are fixed by its first use.
func IncrCounterWithDimGroup(group, name string, value Value, dims Dimension) {
	if value < 0 {
		return
	}
	v, values := _store.counter(group, name, dims)
	if c, err := v.GetMetricWithLabelValues(values...); err == nil {
		c.Add(float64(value))
	}
}

func UpdateGaugeWithGroup(group, name string, value Value) {
	UpdateGaugeWithDimGroup(group, name, value, nil)
}

func UpdateGaugeWithDimGroup(group, name string, value Value, dims Dimension) {
	v, values := _store.gauge(group, name, dims)
	if g, err := v.GetMetricWithLabelValues(values...); err == nil {
		g.Set(float64(value))
	}
}

// RecordStopwatchWithGroup observes the seconds elapsed since start.
func RecordStopwatchWithGroup(group, name string, start time.Time) {
	RecordStopwatchWithDimGroup(group, name, start, nil)
}

func RecordStopwatchWithDimGroup(group, name string, start time.Time, dims Dimension) {
	observe(group, name, time.Since(start).Seconds(), dims)
}

func observe(group, name string, value float64, dims Dimension) {
	v, values := _store.histogram(group, name, dims)
	if h, err := v.GetMetricWithLabelValues(values...); err == nil {
		h.Observe(value)
	}
}

// Record dispatches value by policy: sum to a counter, set to a gauge,
// histogram and stopwatch (value in seconds) to a histogram.
func Record(group, name string, policy Policy, value Value, dims Dimension) error {
	switch policy {
	case PolicySum:
		IncrCounterWithDimGroup(group, name, value, dims)
	case PolicySet, PolicyNone:
		UpdateGaugeWithDimGroup(group, name, value, dims)
	case PolicyHistogram, PolicyStopwatch:
		observe(group, name, float64(value), dims)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedPolicy, policy)
	}
	return nil
}
