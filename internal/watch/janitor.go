package watch

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// JanitorPolicy sets how long things survive.
type JanitorPolicy struct {
	// RetainFailed applies to workspaces kept after a packaging failure.
	RetainFailed time.Duration
	// StaleAfter applies to unmarked workspaces left behind by crashed processes.
	StaleAfter time.Duration
	// ArtifactRetention applies to run artifact directories.
	ArtifactRetention time.Duration
}

// Sweep reports what one janitor pass removed.
type Sweep struct {
	Workspaces []string
	Artifacts  []string
}

// Janitor removes expired workspaces and artifacts, once or on a schedule.
type Janitor struct {
	workspaces *workspace.Manager
	artifacts  *packager.Packager
	policy     JanitorPolicy
	now        func() time.Time
	scheduler  gocron.Scheduler
}

// NewJanitor creates a Janitor.
func NewJanitor(ws *workspace.Manager, p *packager.Packager, policy JanitorPolicy) *Janitor {
	return &Janitor{workspaces: ws, artifacts: p, policy: policy, now: time.Now}
}

// Sweep runs one pass. Both stores are always visited; errors are joined.
func (j *Janitor) Sweep() (Sweep, error) {
	now := j.now()
	var out Sweep
	var errs []error

	removed, err := j.workspaces.Prune(now, j.policy.RetainFailed, j.policy.StaleAfter)
	out.Workspaces = removed
	if err != nil {
		errs = append(errs, fmt.Errorf("prune workspaces: %w", err))
	}
	if j.policy.ArtifactRetention > 0 {
		removed, err = j.artifacts.Prune(now, j.policy.ArtifactRetention)
		out.Artifacts = removed
		if err != nil {
			errs = append(errs, fmt.Errorf("prune artifacts: %w", err))
		}
	}
	return out, errors.Join(errs...)
}

// Start sweeps every interval until Stop.
func (j *Janitor) Start(interval time.Duration) error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create gocron scheduler: %w", err)
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(j.scheduledSweep),
		gocron.WithName("janitor"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	j.scheduler = s
	s.Start()
	slog.Info("Janitor scheduled", logfields.Job("janitor"), logfields.Duration(interval))
	return nil
}

// Stop shuts the schedule down.
func (j *Janitor) Stop() error {
	if j.scheduler == nil {
		return nil
	}
	return j.scheduler.Shutdown()
}

func (j *Janitor) scheduledSweep() {
	sw, err := j.Sweep()
	if err != nil {
		slog.Error("Janitor pass failed", logfields.Job("janitor"), logfields.Error(err))
	}
	if n := len(sw.Workspaces) + len(sw.Artifacts); n > 0 {
		slog.Info("Janitor removed expired data",
			logfields.Job("janitor"),
			slog.Int("workspaces", len(sw.Workspaces)),
			slog.Int("artifacts", len(sw.Artifacts)))
	}
}
