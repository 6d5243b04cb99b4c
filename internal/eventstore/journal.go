package eventstore

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

const defaultWriteTimeout = 5 * time.Second

// RunRecord is the payload of a RunCompleted event.
type RunRecord struct {
	RunID          string         `json:"runId"`
	Success        bool           `json:"success"`
	State          pipeline.State `json:"state"`
	FailedStage    string         `json:"failedStage,omitempty"`
	ThemeID        string         `json:"themeId,omitempty"`
	ContentFiles   int            `json:"contentFiles"`
	Errors         []string       `json:"errors,omitempty"`
	Warnings       int            `json:"warnings"`
	ElapsedMS      int64          `json:"elapsedMs"`
	SiteArtifact   string         `json:"siteArtifact,omitempty"`
	SourceArtifact string         `json:"sourceArtifact,omitempty"`
	RetainedPath   string         `json:"retainedPath,omitempty"`
}

// NewRunRecord condenses a build result for the journal.
func NewRunRecord(res *pipeline.BuildResult) RunRecord {
	rec := RunRecord{
		RunID:          res.RunID,
		Success:        res.Success,
		State:          res.State,
		ThemeID:        res.Metadata.ThemeID,
		ContentFiles:   res.Metadata.ContentFileCount,
		Errors:         res.Errors,
		Warnings:       len(res.Warnings),
		ElapsedMS:      res.Elapsed.Milliseconds(),
		SiteArtifact:   res.Metadata.SiteArtifact,
		SourceArtifact: res.Metadata.SourceArtifact,
		RetainedPath:   res.Metadata.RetainedPath,
	}
	if res.FailedStage != nil {
		rec.FailedStage = res.FailedStage.String()
	}
	return rec
}

// Journal is a pipeline.Observer that appends every transition and the final
// result of a run to a Store. Write failures are logged and never affect the run.
type Journal struct {
	store   Store
	timeout time.Duration
	now     func() time.Time
}

var _ pipeline.Observer = (*Journal)(nil)

// NewJournal creates a Journal writing to store.
func NewJournal(store Store) *Journal {
	return &Journal{store: store, timeout: defaultWriteTimeout, now: time.Now}
}

func (j *Journal) OnTransition(ev pipeline.ProgressEvent) {
	meta := map[string]string{"from": ev.From.String(), "to": ev.To.String()}
	j.append(ev.RunID, TypeTransition, ev.Time, ev, meta)
}

func (j *Journal) OnRunComplete(res *pipeline.BuildResult) {
	if res == nil {
		return
	}
	meta := map[string]string{"state": res.State.String()}
	if res.Metadata.ThemeID != "" {
		meta["theme"] = res.Metadata.ThemeID
	}
	j.append(res.RunID, TypeRunCompleted, j.now(), NewRunRecord(res), meta)
}

func (j *Journal) append(runID, eventType string, at time.Time, body any, meta map[string]string) {
	payload, err := json.Marshal(body)
	if err != nil {
		slog.Warn("Cannot encode journal event", logfields.RunID(runID), logfields.Error(err))
		return
	}
	if at.IsZero() {
		at = j.now()
	}
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()
	if err := j.store.Append(ctx, runID, eventType, at, payload, meta); err != nil {
		slog.Warn("Cannot journal pipeline event",
			logfields.RunID(runID),
			slog.String("event_type", eventType),
			logfields.Error(err))
	}
}
