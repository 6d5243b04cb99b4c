package watch

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/queue"
)

// ResultDocument is written as result.json next to a run's archives.
type ResultDocument struct {
	Job    queue.Job             `json:"job"`
	Result *pipeline.BuildResult `json:"result,omitempty"`
}

// ResultWriter persists job outcomes into the artifact directory of each run.
type ResultWriter struct {
	dirFor func(runID string) string
}

// NewResultWriter writes below the run directories of p.
func NewResultWriter(p *packager.Packager) *ResultWriter {
	return &ResultWriter{dirFor: p.RunDir}
}

// Write stores the outcome of job. Failed runs get a run directory too, so
// every accepted job leaves a result behind.
func (w *ResultWriter) Write(job *queue.Job) (string, error) {
	dir := w.dirFor(job.ID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create result directory: %w", err)
	}
	data, err := json.MarshalIndent(ResultDocument{Job: *job, Result: job.Result}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	path := filepath.Join(dir, packager.ResultFileName)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", fmt.Errorf("write result: %w", err)
	}
	return path, nil
}

// Completion adapts Write to queue.WithCompletion.
func (w *ResultWriter) Completion(job *queue.Job) {
	path, err := w.Write(job)
	if err != nil {
		slog.Error("Failed to write run result", logfields.RunID(job.ID), logfields.Error(err))
		return
	}
	slog.Info("Run finished",
		logfields.RunID(job.ID),
		slog.String("status", string(job.Status)),
		logfields.Path(path),
		logfields.Duration(job.Duration))
}
