package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// Log levels of a LogLine.
const (
	LevelInfo  = "info"
	LevelWarn  = "warn"
	LevelError = "error"
)

// LogLine is one stage-tagged entry of a run log.
type LogLine struct {
	Time    time.Time `json:"time"`
	Stage   State     `json:"stage"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	// Stream is "stdout" or "stderr" for lines captured from the builder.
	Stream string `json:"stream,omitempty"`
}

// Metadata describes what a run produced.
type Metadata struct {
	ThemeID          string                  `json:"themeId,omitempty"`
	ThemeReason      string                  `json:"themeReason,omitempty"`
	Category         string                  `json:"category,omitempty"`
	ContentFileCount int                     `json:"contentFileCount"`
	ContentFailures  int                     `json:"contentFailures"`
	BuiltSize        int64                   `json:"builtSize"`
	SourceSize       int64                   `json:"sourceSize"`
	BuilderVersion   string                  `json:"builderVersion,omitempty"`
	SiteArtifact     string                  `json:"siteArtifact,omitempty"`
	SourceArtifact   string                  `json:"sourceArtifact,omitempty"`
	RetainedPath     string                  `json:"retainedPath,omitempty"`
	Tracking         []content.TrackingEntry `json:"tracking"`
}

// BuildResult is the terminal outcome of one run. It is not modified after Run returns.
type BuildResult struct {
	RunID          string                   `json:"runId"`
	Success        bool                     `json:"success"`
	State          State                    `json:"state"`
	FailedStage    *State                   `json:"failedStage,omitempty"`
	Log            []LogLine                `json:"log"`
	Errors         []string                 `json:"errors"`
	Warnings       []string                 `json:"warnings"`
	Started        time.Time                `json:"started"`
	Elapsed        time.Duration            `json:"elapsed"`
	StageDurations map[string]time.Duration `json:"stageDurations"`
	Metadata       Metadata                 `json:"metadata"`
}

// LinesFor returns the log lines recorded while in stage.
func (r *BuildResult) LinesFor(stage State) []LogLine {
	var out []LogLine
	for _, l := range r.Log {
		if l.Stage == stage {
			out = append(out, l)
		}
	}
	return out
}

// runLog collects the ordered log of a run and mirrors every line to slog.
type runLog struct {
	mu     sync.Mutex
	runID  string
	now    func() time.Time
	lines  []LogLine
	warns  []string
	logger *slog.Logger
}

func newRunLog(runID string, now func() time.Time) *runLog {
	return &runLog{runID: runID, now: now, logger: slog.Default().With(logfields.RunID(runID))}
}

func (l *runLog) add(stage State, level, stream, msg string, attrs ...slog.Attr) {
	line := LogLine{Time: l.now(), Stage: stage, Level: level, Message: withAttrs(msg, attrs), Stream: stream}

	l.mu.Lock()
	l.lines = append(l.lines, line)
	if level == LevelWarn && stream == "" {
		l.warns = append(l.warns, line.Message)
	}
	l.mu.Unlock()

	slevel := slog.LevelInfo
	switch level {
	case LevelWarn:
		slevel = slog.LevelWarn
	case LevelError:
		slevel = slog.LevelError
	}
	if stream != "" {
		// builder output is already in the run log; keep the process log quiet
		slevel = slog.LevelDebug
		attrs = append(attrs, slog.String("stream", stream))
	}
	l.logger.LogAttrs(context.Background(), slevel, msg, append(attrs, logfields.State(stage.String()))...)
}

func (l *runLog) info(stage State, msg string, attrs ...slog.Attr) {
	l.add(stage, LevelInfo, "", msg, attrs...)
}

func (l *runLog) warn(stage State, msg string, attrs ...slog.Attr) {
	l.add(stage, LevelWarn, "", msg, attrs...)
}

func (l *runLog) errorLine(stage State, msg string, attrs ...slog.Attr) {
	l.add(stage, LevelError, "", msg, attrs...)
}

func (l *runLog) snapshot() ([]LogLine, []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogLine(nil), l.lines...), append([]string(nil), l.warns...)
}

func withAttrs(msg string, attrs []slog.Attr) string {
	if len(attrs) == 0 {
		return msg
	}
	var b strings.Builder
	b.WriteString(msg)
	for _, a := range attrs {
		fmt.Fprintf(&b, " %s=%s", a.Key, a.Value.String())
	}
	return b.String()
}
