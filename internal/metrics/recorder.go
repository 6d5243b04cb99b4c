package metrics

import "time"

// ResultLabel enumerates stage result categories for counters.
type ResultLabel string

const (
	ResultSuccess  ResultLabel = "success"
	ResultFatal    ResultLabel = "fatal"
	ResultCanceled ResultLabel = "canceled"
)

// Recorder defines observability hooks for pipeline runs. Implementations
// may forward to Prometheus or any other backend.
type Recorder interface {
	ObserveStageDuration(stage string, d time.Duration)
	IncStageResult(stage string, result ResultLabel)
	ObserveRunDuration(d time.Duration)
	IncRunOutcome(outcome string) // outcome: complete|failed
	IncContentResult(contentType string, success bool)
	ObserveArtifactSize(kind string, bytes int64)
	IncThemeSelection(themeID string, override bool)
	SetRunsInFlight(n int)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) IncStageResult(string, ResultLabel)         {}
func (NoopRecorder) ObserveRunDuration(time.Duration)           {}
func (NoopRecorder) IncRunOutcome(string)                       {}
func (NoopRecorder) IncContentResult(string, bool)              {}
func (NoopRecorder) ObserveArtifactSize(string, int64)          {}
func (NoopRecorder) IncThemeSelection(string, bool)             {}
func (NoopRecorder) SetRunsInFlight(int)                        {}
