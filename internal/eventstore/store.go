package eventstore

import (
	"context"
	"time"
)

// Store persists and retrieves journaled events.
type Store interface {
	// Append adds an event stamped with at.
	Append(ctx context.Context, runID, eventType string, at time.Time, payload []byte, metadata map[string]string) error

	// ByRunID returns the events of one run in insertion order.
	ByRunID(ctx context.Context, runID string) ([]Event, error)

	// Range returns events with timestamps in [start, end].
	Range(ctx context.Context, start, end time.Time) ([]Event, error)

	// Runs lists run IDs with events at or after since, most recent first.
	Runs(ctx context.Context, since time.Time) ([]string, error)

	Close() error
}
