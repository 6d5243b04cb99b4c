package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hugo"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/themes"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// ThemeInstaller places a selected theme into a workspace.
type ThemeInstaller interface {
	Install(ctx context.Context, ws themes.Workspace, d themes.Descriptor) (themes.InstallOutcome, error)
}

// ContentWriter writes content records and reports one entry per record.
type ContentWriter interface {
	Write(ctx context.Context, root string, records []content.Record) []content.TrackingEntry
}

// Packager produces the run's archives.
type Packager interface {
	Package(ctx context.Context, runID, root string) (packager.Artifacts, error)
}

// Dependencies are the collaborators of an Orchestrator. All are required.
type Dependencies struct {
	Selector   *themes.Selector
	Installer  ThemeInstaller
	Writer     ContentWriter
	Builder    hugo.Builder
	Packager   Packager
	Workspaces *workspace.Manager
}

// Request is the input of one run.
type Request struct {
	// RunID namespaces the workspace and artifacts; a UUID is generated when empty.
	RunID   string
	Wizard  *wizard.WizardData
	Records []content.Record
	// RequireContent rejects runs without records at INITIALIZING.
	RequireContent bool
	// Observers receive this run's events in addition to the orchestrator-wide ones.
	Observers []Observer
}

// Orchestrator runs requests through the stage state machine. It holds no
// per-run state, so independent runs may execute concurrently.
type Orchestrator struct {
	deps      Dependencies
	recorder  metrics.Recorder
	observers []Observer
	now       func() time.Time
	baseURL   string
	language  string
	inFlight  atomic.Int64
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithObserver adds observers notified for every run.
func WithObserver(obs ...Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs...) }
}

// WithSiteDefaults sets the base URL and language used when the wizard has none.
func WithSiteDefaults(baseURL, language string) Option {
	return func(o *Orchestrator) {
		o.baseURL = baseURL
		o.language = language
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New validates deps and creates an Orchestrator.
func New(deps Dependencies, opts ...Option) (*Orchestrator, error) {
	var missing []string
	for name, ok := range map[string]bool{
		"selector":   deps.Selector != nil,
		"installer":  deps.Installer != nil,
		"writer":     deps.Writer != nil,
		"builder":    deps.Builder != nil,
		"packager":   deps.Packager != nil,
		"workspaces": deps.Workspaces != nil,
	} {
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return nil, ferrors.InternalError(fmt.Sprintf("pipeline dependencies missing: %v", missing)).Fatal().Build()
	}
	o := &Orchestrator{deps: deps, recorder: metrics.NoopRecorder{}, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// stage is one step of the machine; it runs while the machine is in state.
type stage struct {
	state State
	fn    func(ctx context.Context, r *run) error
}

var stages = []stage{
	{StateInitializing, stageInitialize},
	{StateBuildingStructure, stageBuildStructure},
	{StateApplyingTheme, stageApplyTheme},
	{StateGeneratingContent, stageGenerateContent},
	{StateBuildingSite, stageBuildSite},
	{StatePackaging, stagePackage},
}

// run is the mutable state of one execution.
type run struct {
	o         *Orchestrator
	req       Request
	res       *BuildResult
	log       *runLog
	machine   *machine
	observer  Observer
	ws        *workspace.Workspace
	selection themes.Selection
	retain    bool
}

// Run executes req to completion and returns its result, which is never nil.
// The returned error is the fatal error that moved the run to FAILED.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*BuildResult, error) {
	if req.RunID == "" {
		req.RunID = uuid.NewString()
	}
	start := o.now()
	r := &run{
		o:       o,
		req:     req,
		machine: newMachine(),
		log:     newRunLog(req.RunID, o.now),
		res: &BuildResult{
			RunID:          req.RunID,
			Started:        start,
			StageDurations: make(map[string]time.Duration),
		},
	}
	r.observer = MultiObserver(append(append([]Observer{}, o.observers...), req.Observers...))

	o.recorder.SetRunsInFlight(int(o.inFlight.Add(1)))
	defer func() { o.recorder.SetRunsInFlight(int(o.inFlight.Add(-1))) }()

	r.emit(StateInitializing, StateInitializing, "")
	r.log.info(StateInitializing, "Entered state", logfields.State(StateInitializing.String()))
	err := r.execute(ctx)
	r.finish(err, start)
	return r.res, err
}

func (r *run) execute(ctx context.Context) error {
	for i, st := range stages {
		if i > 0 {
			if err := r.transition(st.state, ""); err != nil {
				return r.fail(ctx, st.state, ferrors.InternalError("state machine rejected transition").WithCause(err).Build())
			}
		}
		if ctx.Err() != nil {
			return r.fail(ctx, st.state, ferrors.CanceledError("run canceled").WithCause(ctx.Err()).Build())
		}

		t0 := r.o.now()
		err := st.fn(ctx, r)
		d := r.o.now().Sub(t0)
		r.res.StageDurations[st.state.String()] = d
		r.o.recorder.ObserveStageDuration(st.state.String(), d)

		if err == nil && ctx.Err() != nil {
			err = ferrors.CanceledError("run canceled").WithCause(ctx.Err()).Build()
		}
		if err != nil {
			return r.fail(ctx, st.state, err)
		}
		r.o.recorder.IncStageResult(st.state.String(), metrics.ResultSuccess)
	}

	if err := r.transition(StateComplete, ""); err != nil {
		return r.fail(ctx, StatePackaging, ferrors.InternalError("state machine rejected transition").WithCause(err).Build())
	}
	r.cleanup(StateComplete)
	return nil
}

// fail records err, moves to FAILED and disposes of the workspace.
func (r *run) fail(ctx context.Context, at State, err error) error {
	canceled := ctx.Err() != nil || ferrors.HasCategory(err, ferrors.CategoryCanceled)
	if canceled && !ferrors.HasCategory(err, ferrors.CategoryCanceled) {
		err = ferrors.CanceledError("run canceled").WithCause(err).Build()
	}

	result := metrics.ResultFatal
	if canceled {
		result = metrics.ResultCanceled
	}
	r.o.recorder.IncStageResult(at.String(), result)

	r.res.Errors = append(r.res.Errors, err.Error())
	r.retain = at == StatePackaging && !canceled && ferrors.HasCategory(err, ferrors.CategoryPackaging)
	failed := at
	r.res.FailedStage = &failed
	r.log.errorLine(at, "Stage failed",
		logfields.Stage(at.String()),
		logfields.Category(string(ferrors.GetCategory(err))),
		logfields.Error(err))

	if _, tErr := r.machine.transition(StateFailed); tErr != nil {
		slog.Error("Cannot enter failed state", logfields.RunID(r.req.RunID), logfields.Error(tErr))
	}
	r.emit(at, StateFailed, err.Error())

	r.cleanup(at)
	return err
}

// cleanup removes the workspace, or keeps it when the run asked for retention.
func (r *run) cleanup(at State) {
	if r.ws == nil {
		return
	}
	if r.retain {
		if err := r.ws.Retain(r.o.now()); err != nil {
			r.log.warn(at, "Failed to retain workspace", logfields.Error(err))
			return
		}
		r.res.Metadata.RetainedPath = r.ws.Root()
		r.log.warn(at, "Workspace retained for inspection", logfields.Path(r.ws.Root()))
		return
	}
	if err := r.ws.Cleanup(); err != nil {
		r.log.warn(at, "Failed to remove workspace", logfields.Path(r.ws.Root()), logfields.Error(err))
	}
}

func (r *run) transition(to State, errMsg string) error {
	from, err := r.machine.transition(to)
	if err != nil {
		return err
	}
	r.emit(from, to, errMsg)
	r.log.info(to, "Entered state", logfields.State(to.String()))
	return nil
}

func (r *run) emit(from, to State, errMsg string) {
	r.observer.OnTransition(ProgressEvent{
		RunID:   r.req.RunID,
		From:    from,
		To:      to,
		Percent: r.machine.percent,
		Time:    r.o.now(),
		Err:     errMsg,
	})
}

func (r *run) finish(err error, start time.Time) {
	r.res.State = r.machine.state
	r.res.Success = err == nil && r.machine.state == StateComplete
	r.res.Elapsed = r.o.now().Sub(start)
	r.res.Log, r.res.Warnings = r.log.snapshot()
	if r.res.Errors == nil {
		r.res.Errors = []string{}
	}
	if r.res.Metadata.Tracking == nil {
		r.res.Metadata.Tracking = []content.TrackingEntry{}
	}

	outcome := "complete"
	if !r.res.Success {
		outcome = "failed"
		if ferrors.HasCategory(err, ferrors.CategoryCanceled) {
			outcome = "canceled"
		}
	}
	r.o.recorder.ObserveRunDuration(r.res.Elapsed)
	r.o.recorder.IncRunOutcome(outcome)

	attrs := []any{
		logfields.RunID(r.req.RunID),
		logfields.State(r.res.State.String()),
		logfields.Duration(r.res.Elapsed),
	}
	if r.res.Success {
		slog.Info("Run complete", attrs...)
	} else {
		slog.Error("Run failed", append(attrs, logfields.Error(err))...)
	}
	r.observer.OnRunComplete(r.res)
}
