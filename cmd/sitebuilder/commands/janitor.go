package commands

import (
	"log/slog"

	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/watch"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// JanitorCmd implements the 'janitor' command.
type JanitorCmd struct{}

func (j *JanitorCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	sweep, err := watch.NewJanitor(
		workspace.NewManager(cfg.Workspace.BaseDir),
		packager.New(cfg.Artifacts.Dir),
		janitorPolicy(cfg),
	).Sweep()
	slog.Info("Janitor pass finished", "workspaces", len(sweep.Workspaces), "artifacts", len(sweep.Artifacts))
	return err
}
