package compiler

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/lethe-lang/lethe/internal/diag"
)

// Metrics collects compile-farm observability: compile counts, per-pass
// durations, and diagnostic counts by kind. Optional; an Engine with no
// Metrics attached skips collection entirely.
type Metrics struct {
	compiles      prometheus.Counter
	unitsCompiled prometheus.Counter
	passDuration  *prometheus.HistogramVec
	diagnostics   *prometheus.CounterVec
}

// NewMetrics creates and registers the compiler's collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		compiles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lethe",
			Name:      "compiles_total",
			Help:      "Number of successful Link calls.",
		}),
		unitsCompiled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "lethe",
			Name:      "units_compiled_total",
			Help:      "Number of compilation units linked.",
		}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lethe",
			Name:      "pass_duration_seconds",
			Help:      "Duration of each compiler pass.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"pass"}),
		diagnostics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lethe",
			Name:      "diagnostics_total",
			Help:      "Diagnostics emitted, by kind and severity.",
		}, []string{"kind", "severity"}),
	}
	for _, c := range []prometheus.Collector{m.compiles, m.unitsCompiled, m.passDuration, m.diagnostics} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// PassTimer starts timing one pass; the returned hook observes the
// elapsed duration.
func (m *Metrics) PassTimer(pass string) func() {
	t := prometheus.NewTimer(m.passDuration.WithLabelValues(pass))
	return func() { t.ObserveDuration() }
}

// CompileDone records a successful Link of n units.
func (m *Metrics) CompileDone(units int) {
	m.compiles.Inc()
	m.unitsCompiled.Add(float64(units))
}

// Diagnostic records one emitted diagnostic.
func (m *Metrics) Diagnostic(d diag.Diagnostic) {
	sev := "error"
	if d.Severity == diag.SeverityWarning {
		sev = "warning"
	}
	m.diagnostics.WithLabelValues(string(d.Kind), sev).Inc()
}
