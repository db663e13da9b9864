// Package metrics provides Prometheus instrumentation for the rule engine.
//
// All metrics are registered in a custom [prometheus.Registry] (not the
// global default) so embedding applications decide where they are exposed.
package metrics

import (
	"sort"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/ruleware/internal/engine"
)

// Metrics holds the Prometheus collectors for rule selection. It
// implements engine.Observer.
type Metrics struct {
	Registry *prometheus.Registry

	DispatchesTotal   *prometheus.CounterVec
	RuleFiredTotal    *prometheus.CounterVec
	RuleSkippedTotal  *prometheus.CounterVec
	ChainLength       prometheus.Histogram
	PassthroughsTotal prometheus.Counter
}

// New creates and registers all ruleware metrics in a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,

		DispatchesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleware_dispatches_total",
			Help: "Total number of actions seen by the rule engine.",
		}, []string{"action_type"}),

		RuleFiredTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleware_rule_fired_total",
			Help: "Total number of times a rule's reaction was chained.",
		}, []string{"rule"}),

		RuleSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ruleware_rule_skipped_total",
			Help: "Total number of times a rule matched the action type but its condition was false.",
		}, []string{"rule"}),

		ChainLength: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ruleware_chain_length",
			Help:    "Number of reactions chained per dispatch.",
			Buckets: []float64{0, 1, 2, 4, 8, 16},
		}),

		PassthroughsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ruleware_passthroughs_total",
			Help: "Total number of dispatches where no rule fired.",
		}),
	}

	reg.MustRegister(
		m.DispatchesTotal,
		m.RuleFiredTotal,
		m.RuleSkippedTotal,
		m.ChainLength,
		m.PassthroughsTotal,
	)

	return m
}

// Evaluated implements engine.Observer.
func (m *Metrics) Evaluated(ev engine.Evaluation) {
	m.DispatchesTotal.WithLabelValues(ev.Action.Type).Inc()
	for _, rule := range ev.Fired {
		m.RuleFiredTotal.WithLabelValues(rule).Inc()
	}
	for _, rule := range ev.Skipped() {
		m.RuleSkippedTotal.WithLabelValues(rule).Inc()
	}
	m.ChainLength.Observe(float64(len(ev.Fired)))
	if len(ev.Fired) == 0 {
		m.PassthroughsTotal.Inc()
	}
}

// Sample is one counter or histogram-count value, flattened for display.
type Sample struct {
	Name   string
	Labels string // "k=v,k=v" in label order, empty when unlabelled
	Value  float64
}

// Snapshot gathers the registry into samples sorted by name then labels.
// Histograms contribute their sample count under "<name>_count".
func (m *Metrics) Snapshot() ([]Sample, error) {
	families, err := m.Registry.Gather()
	if err != nil {
		return nil, err
	}

	var out []Sample
	for _, fam := range families {
		for _, metric := range fam.GetMetric() {
			labels := ""
			for i, lp := range metric.GetLabel() {
				if i > 0 {
					labels += ","
				}
				labels += lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case metric.GetCounter() != nil:
				out = append(out, Sample{Name: fam.GetName(), Labels: labels, Value: metric.GetCounter().GetValue()})
			case metric.GetHistogram() != nil:
				out = append(out, Sample{
					Name:   fam.GetName() + "_count",
					Labels: labels,
					Value:  float64(metric.GetHistogram().GetSampleCount()),
				})
			}
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].Labels < out[j].Labels
	})
	return out, nil
}

// String renders a sample as "name{labels} value".
func (s Sample) String() string {
	value := strconv.FormatFloat(s.Value, 'f', -1, 64)
	if s.Labels == "" {
		return s.Name + " " + value
	}
	return s.Name + "{" + s.Labels + "} " + value
}
