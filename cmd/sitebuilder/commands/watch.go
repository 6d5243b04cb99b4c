package commands

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
)

// WatchCmd implements the 'watch' command.
type WatchCmd struct {
	Inbox string `short:"i" help:"Inbox directory; overrides watch.inbox"`
}

func (w *WatchCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if w.Inbox != "" {
		cfg.Watch.Inbox = w.Inbox
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	a.serveMetrics(ctx)

	results := watch.NewResultWriter(a.packager)
	q := queue.New(a.orchestrator, cfg.Watch.Concurrency, cfg.Watch.QueueSize,
		queue.WithRetryPolicy(cfg.Watch.RetryPolicy()),
		queue.WithCompletion(results.Completion),
	)
	q.Start(ctx)
	defer q.Stop()

	janitor := watch.NewJanitor(a.workspaces, a.packager, janitorPolicy(cfg))
	if err := janitor.Start(cfg.Watch.JanitorInterval.Std()); err != nil {
		return err
	}
	defer func() {
		if err := janitor.Stop(); err != nil {
			slog.Warn("Janitor shutdown failed", logfields.Error(err))
		}
	}()

	inbox, err := watch.NewInbox(cfg.Watch.Inbox, q)
	if err != nil {
		return err
	}
	slog.Info("Watch mode started",
		logfields.Path(inbox.Dir()),
		slog.Int("concurrency", cfg.Watch.Concurrency),
		slog.Int("queue_size", cfg.Watch.QueueSize))
	if err := inbox.Run(ctx); err != nil {
		return err
	}
	slog.Info("Shutdown signal received, stopping watch mode")
	return nil
}

func janitorPolicy(cfg *config.Config) watch.JanitorPolicy {
	return watch.JanitorPolicy{
		RetainFailed:      cfg.Workspace.RetainFailed.Std(),
		StaleAfter:        cfg.Workspace.StaleAfter.Std(),
		ArtifactRetention: cfg.Artifacts.Retention.Std(),
	}
}
