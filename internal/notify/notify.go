// Package notify publishes pipeline progress to NATS.
package notify

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
)

// DefaultSubjectPrefix is the subject root; events go to <prefix>.<run-id>.
const DefaultSubjectPrefix = "sitebuilder.progress"

// Publisher is the part of a NATS connection the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Completion is published to <prefix>.<run-id>.result when a run ends.
type Completion struct {
	RunID       string         `json:"runId"`
	Success     bool           `json:"success"`
	State       pipeline.State `json:"state"`
	FailedStage string         `json:"failedStage,omitempty"`
	ThemeID     string         `json:"themeId,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
	ElapsedMS   int64          `json:"elapsedMs"`
}

// Notifier is a pipeline.Observer publishing JSON progress events.
type Notifier struct {
	pub    Publisher
	prefix string
}

var _ pipeline.Observer = (*Notifier)(nil)

// New creates a Notifier. An empty prefix uses DefaultSubjectPrefix.
func New(pub Publisher, prefix string) *Notifier {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Notifier{pub: pub, prefix: prefix}
}

// Subject returns the progress subject of a run.
func (n *Notifier) Subject(runID string) string {
	return n.prefix + "." + runID
}

func (n *Notifier) OnTransition(ev pipeline.ProgressEvent) {
	n.publish(n.Subject(ev.RunID), ev.RunID, ev)
}

func (n *Notifier) OnRunComplete(res *pipeline.BuildResult) {
	if res == nil {
		return
	}
	c := Completion{
		RunID:     res.RunID,
		Success:   res.Success,
		State:     res.State,
		ThemeID:   res.Metadata.ThemeID,
		Errors:    res.Errors,
		ElapsedMS: res.Elapsed.Milliseconds(),
	}
	if res.FailedStage != nil {
		c.FailedStage = res.FailedStage.String()
	}
	n.publish(n.Subject(res.RunID)+".result", res.RunID, c)
}

func (n *Notifier) publish(subject, runID string, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		slog.Warn("Cannot encode progress event", logfields.RunID(runID), logfields.Error(err))
		return
	}
	if err := n.pub.Publish(subject, data); err != nil {
		slog.Warn("Failed to publish progress event",
			logfields.RunID(runID),
			slog.String("subject", subject),
			logfields.Error(err))
		return
	}
	slog.Debug("Published progress event", logfields.RunID(runID), slog.String("subject", subject))
}

// Connect dials the NATS server at url.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("sitebuilder"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	slog.Info("Connected to NATS", logfields.URL(conn.ConnectedUrlRedacted()))
	return conn, nil
}
