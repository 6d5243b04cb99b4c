// Package eventstore journals pipeline events in SQLite and rebuilds run
// summaries from them.
package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

const (
	runStatusRunning   = "running"
	runStatusCompleted = "completed"
	runStatusFailed    = "failed"
)

// Step is one journaled transition.
type Step struct {
	At      time.Time      `json:"at"`
	From    pipeline.State `json:"from"`
	To      pipeline.State `json:"to"`
	Percent int            `json:"percent"`
	Err     string         `json:"error,omitempty"`
}

// RunSummary is the read model of one run rebuilt from its events.
type RunSummary struct {
	RunID       string     `json:"runId"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	Percent     int        `json:"percent"`
	Steps       []Step     `json:"steps"`
	Result      *RunRecord `json:"result,omitempty"`
}

// Summarize folds the events of one run, in insertion order, into a summary.
// A run without a RunCompleted event is reported as running.
func Summarize(events []Event) (*RunSummary, error) {
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	s := &RunSummary{RunID: events[0].RunID(), Status: runStatusRunning, StartedAt: events[0].Timestamp()}
	for _, e := range events {
		switch e.Type() {
		case TypeTransition:
			var ev pipeline.ProgressEvent
			if err := json.Unmarshal(e.Payload(), &ev); err != nil {
				return nil, fmt.Errorf("event %d: decode transition: %w", e.ID(), err)
			}
			s.Steps = append(s.Steps, Step{At: e.Timestamp(), From: ev.From, To: ev.To, Percent: ev.Percent, Err: ev.Err})
			s.Percent = ev.Percent
		case TypeRunCompleted:
			var rec RunRecord
			if err := json.Unmarshal(e.Payload(), &rec); err != nil {
				return nil, fmt.Errorf("event %d: decode result: %w", e.ID(), err)
			}
			at := e.Timestamp()
			s.Result, s.CompletedAt = &rec, &at
			s.Status = runStatusFailed
			if rec.Success {
				s.Status = runStatusCompleted
			}
		}
	}
	return s, nil
}

// History loads and summarizes one run.
func History(ctx context.Context, store Store, runID string) (*RunSummary, error) {
	events, err := store.ByRunID(ctx, runID)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoEvents, runID)
	}
	return Summarize(events)
}
