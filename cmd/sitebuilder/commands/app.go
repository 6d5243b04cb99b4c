package commands

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/nats-io/nats.go"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	"git.home.luguber.info/inful/sitebuilder/internal/hugo"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/metrics"
	"git.home.luguber.info/inful/sitebuilder/internal/notify"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/themes"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// app holds the wired collaborators of one process.
type app struct {
	cfg          *config.Config
	registry     *themes.Registry
	workspaces   *workspace.Manager
	packager     *packager.Packager
	orchestrator *pipeline.Orchestrator

	store      *eventstore.SQLiteStore
	conn       *nats.Conn
	metricsSrv *http.Server
}

// newApp wires the pipeline from cfg. Optional sinks (journal, NATS, metrics
// endpoint) are only started when configured.
func newApp(cfg *config.Config) (*app, error) {
	registry, err := themes.NewBuiltinRegistry(cfg.Themes.Default)
	if err != nil {
		return nil, err
	}
	a := &app{
		cfg:        cfg,
		registry:   registry,
		workspaces: workspace.NewManager(cfg.Workspace.BaseDir),
		packager:   packager.New(cfg.Artifacts.Dir),
	}

	var fetcher themes.Fetcher = themes.GitFetcher{}
	if cfg.Themes.Fetcher == config.FetcherCommand {
		fetcher = themes.CommandFetcher{Executable: cfg.Themes.GitExecutable}
	}

	var observers []pipeline.Observer
	if cfg.Events.Journal != "" {
		store, err := eventstore.NewSQLiteStore(cfg.Events.Journal)
		if err != nil {
			return nil, err
		}
		a.store = store
		observers = append(observers, eventstore.NewJournal(store))
	}
	if cfg.Events.NATSURL != "" {
		conn, err := notify.Connect(cfg.Events.NATSURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.conn = conn
		observers = append(observers, notify.New(conn, cfg.Events.Subject))
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	if cfg.Monitoring.MetricsAddr != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		a.metricsSrv = &http.Server{
			Addr:              cfg.Monitoring.MetricsAddr,
			Handler:           metrics.HTTPHandler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	orch, err := pipeline.New(pipeline.Dependencies{
		Selector:   themes.NewSelector(registry),
		Installer:  themes.NewInstaller(themes.WithFetcher(fetcher), themes.WithTimeout(cfg.Themes.InstallTimeout.Std())),
		Writer:     hugo.NewContentWriter(cfg.Build.ContentWorkers),
		Builder:    hugo.NewBinaryBuilder(cfg.Build.Executable, cfg.Build.Args, cfg.Build.Timeout.Std()),
		Packager:   a.packager,
		Workspaces: a.workspaces,
	},
		pipeline.WithRecorder(recorder),
		pipeline.WithObserver(observers...),
		pipeline.WithSiteDefaults(cfg.Build.BaseURL, cfg.Build.Language),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.orchestrator = orch
	return a, nil
}

// serveMetrics starts the metrics endpoint, if configured, until ctx ends.
func (a *app) serveMetrics(ctx context.Context) {
	if a.metricsSrv == nil {
		return
	}
	go func() {
		slog.Info("Serving metrics", logfields.URL(a.metricsSrv.Addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics endpoint failed", logfields.Error(err))
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(shutdownCtx)
	}()
}

// Close releases the optional sinks.
func (a *app) Close() {
	if a.conn != nil {
		if err := a.conn.Drain(); err != nil {
			slog.Warn("NATS drain failed", logfields.Error(err))
		}
		a.conn = nil
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			slog.Warn("Closing event journal failed", logfields.Error(err))
		}
		a.store = nil
	}
}
