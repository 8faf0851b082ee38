// Package metrics holds the Prometheus collectors of one runtime.
package metrics

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"

	"github.com/vcrobe/cove/loader"
	"github.com/vcrobe/cove/vdom"
)

const namespace = "cove"

// Metrics is safe for concurrent use. Each value owns its registry, so
// several runtimes can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	Compiles       *prometheus.CounterVec
	ModuleBuilds   *prometheus.CounterVec
	Passes         *prometheus.CounterVec
	PassDuration   prometheus.Histogram
	Mutations      *prometheus.CounterVec
	PatchFailures  prometheus.Counter
	ScriptErrors   *prometheus.CounterVec
	Instances      prometheus.Gauge
	Degraded       prometheus.Counter
	DiscoveryRuns  *prometheus.CounterVec
	SchedulerTicks prometheus.Counter
}

// New creates and registers the collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		Compiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "compiler",
			Name:      "compiles_total",
			Help:      "Markup compilations by result.",
		}, []string{"result"}),
		ModuleBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loader",
			Name:      "builds_total",
			Help:      "Module builds by result.",
		}, []string{"result"}),
		Passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "passes_total",
			Help:      "Reconciliation passes by component tag.",
		}, []string{"tag"}),
		PassDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "render",
			Name:      "pass_duration_seconds",
			Help:      "Reconciliation pass duration in seconds.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
		}),
		Mutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vdom",
			Name:      "mutations_total",
			Help:      "Live tree mutations by kind.",
		}, []string{"kind"}),
		PatchFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vdom",
			Name:      "patch_failures_total",
			Help:      "Nodes whose patch step failed and was skipped.",
		}),
		ScriptErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "script",
			Name:      "errors_total",
			Help:      "Script errors by component tag and stage.",
		}, []string{"tag", "stage"}),
		Instances: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "instances",
			Help:      "Live component instances.",
		}),
		Degraded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "runtime",
			Name:      "degraded_total",
			Help:      "Instances degraded by a load policy violation.",
		}),
		DiscoveryRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "runs_total",
			Help:      "Discovery invocations by result.",
		}, []string{"result"}),
		SchedulerTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "ticks_total",
			Help:      "Scheduler ticks that ran at least one task.",
		}),
	}
	m.Registry.MustRegister(
		m.Compiles, m.ModuleBuilds, m.Passes, m.PassDuration, m.Mutations,
		m.PatchFailures, m.ScriptErrors, m.Instances, m.Degraded,
		m.DiscoveryRuns, m.SchedulerTicks,
	)
	return m
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// RecordCompile counts one compilation.
func (m *Metrics) RecordCompile(err error) {
	m.Compiles.WithLabelValues(result(err)).Inc()
}

// RecordBuild counts one module build. Policy rejections are counted
// separately from other failures.
func (m *Metrics) RecordBuild(_ string, err error) {
	label := result(err)
	if errors.Is(err, loader.ErrPolicy) {
		label = "policy"
	}
	m.ModuleBuilds.WithLabelValues(label).Inc()
}

// RecordPass counts one reconciliation pass and the mutations it made.
func (m *Metrics) RecordPass(tag string, d time.Duration, st vdom.Stats) {
	m.Passes.WithLabelValues(tag).Inc()
	m.PassDuration.Observe(d.Seconds())
	for kind, n := range map[string]int{
		"append":  st.Appended,
		"replace": st.Replaced,
		"remove":  st.Removed,
		"text":    st.TextUpdates,
		"clear":   st.Cleared,
		"fill":    st.Filled,
		"attr":    st.AttrUpdates,
	} {
		if n > 0 {
			m.Mutations.WithLabelValues(kind).Add(float64(n))
		}
	}
	if st.Failures > 0 {
		m.PatchFailures.Add(float64(st.Failures))
	}
}

// RecordScriptError counts a script failure at stage ("construct",
// "render", "handler", a hook name).
func (m *Metrics) RecordScriptError(tag, stage string) {
	m.ScriptErrors.WithLabelValues(tag, stage).Inc()
}

// RecordDiscovery counts one discovery invocation.
func (m *Metrics) RecordDiscovery(err error) {
	m.DiscoveryRuns.WithLabelValues(result(err)).Inc()
}

// WriteText writes every collected metric in the Prometheus text format.
func (m *Metrics) WriteText(w io.Writer) error {
	families, err := m.Registry.Gather()
	if err != nil {
		return fmt.Errorf("metrics: gather: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("metrics: write %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
