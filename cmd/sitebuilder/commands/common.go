package commands

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
)

// DefaultConfigPath is used when --config is not given.
const DefaultConfigPath = "sitebuilder.yaml"

// Global is shared by all subcommands.
type Global struct {
	Logger *slog.Logger
}

// CLI definition & global flags.
type CLI struct {
	Config  string           `short:"c" help:"Configuration file path" default:"sitebuilder.yaml" env:"SITEBUILDER_CONFIG"`
	Verbose bool             `short:"v" help:"Enable verbose logging"`
	Version kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Run the pipeline once for a wizard document"`
	Select  SelectCmd  `cmd:"" help:"Show which theme a wizard document selects"`
	Themes  ThemesCmd  `cmd:"" help:"List the registered themes"`
	Watch   WatchCmd   `cmd:"" help:"Process job files dropped into the inbox directory"`
	Janitor JanitorCmd `cmd:"" help:"Remove expired workspaces and artifacts once"`
	History HistoryCmd `cmd:"" help:"Show the journaled history of a run"`
	Init    InitCmd    `cmd:"" help:"Write an example configuration file"`
}

// AfterApply runs after flag parsing; logging is reconfigured once the
// configuration is known.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	level := slog.LevelInfo
	if c.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return nil
}

// loadConfig reads the configuration. A missing file at the default path
// falls back to the built-in defaults.
func (c *CLI) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(c.Config)
	if err != nil {
		if c.Config == DefaultConfigPath && errors.Is(err, os.ErrNotExist) {
			slog.Debug("No configuration file, using defaults", "path", c.Config)
			cfg = config.Default()
		} else {
			return nil, err
		}
	}
	setupLogging(cfg.Monitoring.Logging, c.Verbose)
	return cfg, nil
}

func setupLogging(lc config.LoggingConfig, verbose bool) {
	level := lc.Level.SlogLevel()
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
	if lc.Format == config.LogFormatJSON {
		h = slog.NewJSONHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(h))
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
