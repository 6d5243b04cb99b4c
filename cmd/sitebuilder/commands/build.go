package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Wizard         string `arg:"" help:"Wizard document (JSON or YAML)" type:"existingfile"`
	Records        string `short:"r" help:"Content records file (JSON or YAML)" type:"existingfile"`
	RunID          string `name:"run-id" help:"Run identifier; generated when empty"`
	Theme          string `short:"t" help:"Force a theme, overriding the wizard document"`
	Output         string `short:"o" help:"Write the result document here instead of stdout"`
	RequireContent bool   `name:"require-content" help:"Fail when no content records are given"`
}

func (b *BuildCmd) Run(_ *Global, root *CLI) error {
	cfg, err := root.loadConfig()
	if err != nil {
		return err
	}
	w, err := wizard.Load(b.Wizard)
	if err != nil {
		return err
	}
	if b.Theme != "" {
		w.ThemeID = b.Theme
	}
	var records []content.Record
	if b.Records != "" {
		if records, err = content.LoadRecords(b.Records); err != nil {
			return err
		}
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	a.serveMetrics(ctx)

	progress := pipeline.FuncObserver{Transition: func(ev pipeline.ProgressEvent) {
		_, _ = fmt.Fprintf(os.Stderr, "[%3d%%] %s\n", ev.Percent, ev.To)
	}}
	res, runErr := a.orchestrator.Run(ctx, pipeline.Request{
		RunID:          b.RunID,
		Wizard:         w,
		Records:        records,
		RequireContent: b.RequireContent || cfg.Build.RequireContent,
		Observers:      []pipeline.Observer{progress},
	})

	if err := b.writeResult(res); err != nil {
		slog.Error("Failed to write result", "error", err)
	}
	return runErr
}

func (b *BuildCmd) writeResult(res *pipeline.BuildResult) error {
	if b.Output == "" {
		return printJSON(os.Stdout, res)
	}
	f, err := os.Create(b.Output)
	if err != nil {
		return err
	}
	if err := printJSON(f, res); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
