// Package executor runs external programs with captured output, a time budget
// and prompt termination on cancellation.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Run waits for output pipes after the process was killed.
const waitDelay = 5 * time.Second

// ErrTimeout is wrapped by Run when a command exceeds its time budget.
var ErrTimeout = errors.New("command timed out")

// Command describes one program invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory. Empty means the current directory.
	Dir string
	// Env entries (KEY=VALUE) are appended to the inherited environment.
	Env []string
	// Timeout bounds the run. Zero means only ctx bounds it.
	Timeout time.Duration
}

// Result holds everything observed about a finished command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
	TimedOut bool
}

// Run executes cmd and waits for it. The process (and its process group where
// supported) is killed when ctx is canceled or the timeout expires. A non-nil
// Result is returned whenever the process was started.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	runCtx := ctx
	if cmd.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(runCtx, cmd.Name, cmd.Args...) // #nosec G204 -- program names come from configuration
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = &stdout
	c.Stderr = &stderr
	c.WaitDelay = waitDelay
	configureProcessGroup(c)

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: -1,
		Duration: time.Since(start),
	}
	if c.ProcessState != nil {
		res.ExitCode = c.ProcessState.ExitCode()
	}

	switch {
	case err == nil:
		return res, nil
	case c.ProcessState == nil && runCtx.Err() == nil:
		return nil, fmt.Errorf("start %s: %w", cmd.Name, err)
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.TimedOut = true
		budget := cmd.Timeout
		if budget == 0 {
			budget = res.Duration.Round(time.Millisecond)
		}
		return res, fmt.Errorf("%s: %w after %s", cmd.Name, ErrTimeout, budget)
	case ctx.Err() != nil:
		return res, fmt.Errorf("%s canceled: %w", cmd.Name, ctx.Err())
	default:
		return res, fmt.Errorf("%s exited with status %d: %w", cmd.Name, res.ExitCode, err)
	}
}
