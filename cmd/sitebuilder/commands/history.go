package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/eventstore"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// HistoryCmd implements the 'history' command.
type HistoryCmd struct {
	RunID string        `arg:"" optional:"" name:"run-id" help:"Run identifier; lists recent runs when omitted"`
	Since time.Duration `help:"How far back to list runs" default:"24h"`
}

func (h *HistoryCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	if cfg.Events.Journal == "" {
		return ferrors.ConfigError("no event journal configured (events.journal)").Build()
	}
	store, err := eventstore.NewSQLiteStore(cfg.Events.Journal)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	if h.RunID == "" {
		ids, err := store.Runs(ctx, time.Now().Add(-h.Since))
		if err != nil {
			return err
		}
		for _, id := range ids {
			fmt.Println(id)
		}
		return nil
	}

	summary, err := eventstore.History(ctx, store, h.RunID)
	if err != nil {
		return err
	}
	return printJSON(os.Stdout, summary)
}
