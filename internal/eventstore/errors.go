package eventstore

import (
	"errors"
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("event store is closed")

	// ErrNoEvents is returned when a run has no journaled events.
	ErrNoEvents = errors.New("no events recorded for run")
)
