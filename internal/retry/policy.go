// Package retry computes backoff delays for retried pipeline runs.
package retry

import (
	"fmt"
	"strings"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Mode enumerates backoff growth strategies.
type Mode string

const (
	ModeFixed       Mode = "fixed"
	ModeLinear      Mode = "linear"
	ModeExponential Mode = "exponential"
)

// ParseMode accepts a mode case-insensitively.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case ModeFixed, ModeLinear, ModeExponential:
		return m, nil
	default:
		return "", fmt.Errorf("unknown backoff mode %q (want fixed, linear or exponential)", raw)
	}
}

// Policy encapsulates retry/backoff settings. It is immutable after construction.
type Policy struct {
	Mode       Mode
	Initial    time.Duration
	Max        time.Duration
	MaxRetries int
}

// DefaultPolicy is linear, 1s initial, 30s cap and no retries.
func DefaultPolicy() Policy {
	return Policy{Mode: ModeLinear, Initial: time.Second, Max: 30 * time.Second}
}

// NewPolicy builds a policy; zero or invalid values fall back to defaults.
func NewPolicy(mode Mode, initial, maxDelay time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDelay > 0 {
		p.Max = maxDelay
	}
	if m, err := ParseMode(string(mode)); err == nil {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// Delay returns the backoff before retry number n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case ModeFixed:
		return p.Initial
	case ModeExponential:
		if n > 30 {
			return p.Max
		}
		d = p.Initial * (1 << (n - 1))
	default:
		d = time.Duration(n) * p.Initial
	}
	return min(d, p.Max)
}

// Retryable reports whether err is a classified error marked for backoff retry.
func Retryable(err error) bool {
	ce, ok := ferrors.AsClassified(err)
	return ok && ce.RetryStrategy() == ferrors.RetryBackoff
}
