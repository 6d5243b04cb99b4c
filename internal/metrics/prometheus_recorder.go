package metrics

import (
	"strconv"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "sitebuilder"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	stageDuration   *prom.HistogramVec
	stageResults    *prom.CounterVec
	runDuration     prom.Histogram
	runOutcome      *prom.CounterVec
	contentResults  *prom.CounterVec
	artifactSize    *prom.HistogramVec
	themeSelections *prom.CounterVec
	runsInFlight    prom.Gauge
}

// NewPrometheusRecorder constructs the metrics and registers them with reg.
// A nil registry gets a private one, which keeps tests isolated.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of individual pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		stageResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "stage_results_total",
			Help:      "Stage result counts by outcome",
		}, []string{"stage", "result"}),
		runDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		runOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "run_outcomes_total",
			Help:      "Pipeline runs by terminal state",
		}, []string{"outcome"}),
		contentResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "content_records_total",
			Help:      "Content records written, by type and success",
		}, []string{"type", "success"}),
		artifactSize: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "artifact_size_bytes",
			Help:      "Size of produced archives",
			Buckets:   prom.ExponentialBuckets(64*1024, 4, 8),
		}, []string{"kind"}),
		themeSelections: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "theme_selections_total",
			Help:      "Selected themes, split by explicit override",
		}, []string{"theme", "override"}),
		runsInFlight: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_in_flight",
			Help:      "Pipeline runs currently executing",
		}),
	}
	reg.MustRegister(pr.stageDuration, pr.stageResults, pr.runDuration, pr.runOutcome,
		pr.contentResults, pr.artifactSize, pr.themeSelections, pr.runsInFlight)
	return pr
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncStageResult(stage string, result ResultLabel) {
	p.stageResults.WithLabelValues(stage, string(result)).Inc()
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncRunOutcome(outcome string) {
	p.runOutcome.WithLabelValues(outcome).Inc()
}

func (p *PrometheusRecorder) IncContentResult(contentType string, success bool) {
	p.contentResults.WithLabelValues(contentType, strconv.FormatBool(success)).Inc()
}

func (p *PrometheusRecorder) ObserveArtifactSize(kind string, bytes int64) {
	p.artifactSize.WithLabelValues(kind).Observe(float64(bytes))
}

func (p *PrometheusRecorder) IncThemeSelection(themeID string, override bool) {
	p.themeSelections.WithLabelValues(themeID, strconv.FormatBool(override)).Inc()
}

func (p *PrometheusRecorder) SetRunsInFlight(n int) {
	p.runsInFlight.Set(float64(n))
}
