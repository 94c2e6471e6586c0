package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	registry       *prom.Registry
	targetDuration *prom.HistogramVec
	targetOutcomes *prom.CounterVec
	ignoredSteps   *prom.CounterVec
	buildDuration  prom.Histogram
	buildOutcomes  *prom.CounterVec
	lastBuild      prom.Gauge
}

// NewPrometheusRecorder constructs and registers the metrics on reg
// (a fresh registry when nil).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		registry: reg,
		targetDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "smpybuild",
			Name:      "target_duration_seconds",
			Help:      "Duration of executed build targets",
			Buckets:   prom.DefBuckets,
		}, []string{"target"}),
		targetOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "smpybuild",
			Name:      "target_outcomes_total",
			Help:      "Target outcomes by final state",
		}, []string{"target", "outcome"}),
		ignoredSteps: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "smpybuild",
			Name:      "ignored_step_failures_total",
			Help:      "Failed best-effort steps that did not fail their target",
		}, []string{"target"}),
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "smpybuild",
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.DefBuckets,
		}),
		buildOutcomes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "smpybuild",
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final status",
		}, []string{"outcome"}),
		lastBuild: prom.NewGauge(prom.GaugeOpts{
			Namespace: "smpybuild",
			Name:      "last_build_timestamp_seconds",
			Help:      "Unix time the last build finished",
		}),
	}
	reg.MustRegister(pr.targetDuration, pr.targetOutcomes, pr.ignoredSteps, pr.buildDuration, pr.buildOutcomes, pr.lastBuild)
	return pr
}

// Registry returns the registry the metrics live in.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.registry }

func (p *PrometheusRecorder) ObserveTargetDuration(target string, d time.Duration) {
	if p == nil {
		return
	}
	p.targetDuration.WithLabelValues(target).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncTargetOutcome(target string, outcome TargetOutcome) {
	if p == nil {
		return
	}
	p.targetOutcomes.WithLabelValues(target, string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncIgnoredStep(target string) {
	if p == nil {
		return
	}
	p.ignoredSteps.WithLabelValues(target).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
	p.lastBuild.SetToCurrentTime()
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome string) {
	if p == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(outcome).Inc()
}

// WriteTextfile exports the registry in the node_exporter textfile format.
// The write is atomic so a concurrent scrape never sees a partial file.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating metrics directory: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
