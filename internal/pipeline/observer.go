package pipeline

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// ProgressEvent reports one state transition. The first event of a run has
// From == To == StateInitializing.
type ProgressEvent struct {
	RunID   string    `json:"runId"`
	From    State     `json:"from"`
	To      State     `json:"to"`
	Percent int       `json:"percent"`
	Time    time.Time `json:"time"`
	// Err is set on transitions to FAILED.
	Err string `json:"error,omitempty"`
}

// Observer receives progress callbacks. Calls for one run are sequential and
// happen on the goroutine executing the run; implementations must not block.
type Observer interface {
	OnTransition(ev ProgressEvent)
	OnRunComplete(res *BuildResult)
}

// NoopObserver ignores every callback.
type NoopObserver struct{}

func (NoopObserver) OnTransition(ProgressEvent)  {}
func (NoopObserver) OnRunComplete(*BuildResult) {}

// MultiObserver fans callbacks out in order.
type MultiObserver []Observer

func (m MultiObserver) OnTransition(ev ProgressEvent) {
	for _, o := range m {
		o.OnTransition(ev)
	}
}

func (m MultiObserver) OnRunComplete(res *BuildResult) {
	for _, o := range m {
		o.OnRunComplete(res)
	}
}

// ChannelObserver delivers events of a single run on a buffered channel. The
// channel is closed once the run completes. Events that do not fit the buffer
// are dropped and counted rather than blocking the run.
type ChannelObserver struct {
	ch      chan ProgressEvent
	once    sync.Once
	dropped atomic.Int64
}

// NewChannelObserver creates an observer whose channel holds buffer events.
// A buffer of 8 holds every transition of one run.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 8
	}
	return &ChannelObserver{ch: make(chan ProgressEvent, buffer)}
}

// Events returns the receive side.
func (c *ChannelObserver) Events() <-chan ProgressEvent { return c.ch }

// Dropped returns how many events did not fit the buffer.
func (c *ChannelObserver) Dropped() int64 { return c.dropped.Load() }

func (c *ChannelObserver) OnTransition(ev ProgressEvent) {
	select {
	case c.ch <- ev:
	default:
		c.dropped.Add(1)
		slog.Warn("Dropped progress event", logfields.RunID(ev.RunID), logfields.State(ev.To.String()))
	}
}

func (c *ChannelObserver) OnRunComplete(*BuildResult) {
	c.once.Do(func() { close(c.ch) })
}

// FuncObserver adapts plain functions; nil fields are skipped.
type FuncObserver struct {
	Transition func(ProgressEvent)
	Complete   func(*BuildResult)
}

func (f FuncObserver) OnTransition(ev ProgressEvent) {
	if f.Transition != nil {
		f.Transition(ev)
	}
}

func (f FuncObserver) OnRunComplete(res *BuildResult) {
	if f.Complete != nil {
		f.Complete(res)
	}
}
