package config

import (
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/foundation/normalization"
)

// DefaultApplier applies defaults for one configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// Defaults used when the configuration leaves a value empty.
const (
	DefaultTheme           = "ananke"
	DefaultExecutable      = "hugo"
	DefaultBuildTimeout    = 5 * time.Minute
	DefaultInstallTimeout  = 60 * time.Second
	DefaultContentWorkers  = 4
	DefaultConcurrency     = 2
	DefaultQueueSize       = 32
	DefaultJanitorInterval = 15 * time.Minute
	DefaultRetainFailed    = 24 * time.Hour
	DefaultStaleAfter      = 6 * time.Hour
	DefaultRetention       = 7 * 24 * time.Hour
	DefaultSubject         = "sitebuilder.progress"
)

var fetcherNormalizer = normalization.NewNormalizer("theme fetcher", map[string]FetcherKind{
	"git":     FetcherGit,
	"go-git":  FetcherGit,
	"command": FetcherCommand,
	"cli":     FetcherCommand,
}, FetcherGit)

func durationOr(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

func stringOr(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

type workspaceDefaults struct{}

func (workspaceDefaults) Domain() string { return "workspace" }

func (workspaceDefaults) ApplyDefaults(cfg *Config) error {
	stringOr(&cfg.Workspace.BaseDir, filepath.Join(os.TempDir(), "sitebuilder", "workspaces"))
	durationOr(&cfg.Workspace.RetainFailed, DefaultRetainFailed)
	durationOr(&cfg.Workspace.StaleAfter, DefaultStaleAfter)
	stringOr(&cfg.Artifacts.Dir, "artifacts")
	durationOr(&cfg.Artifacts.Retention, DefaultRetention)
	return nil
}

type themesDefaults struct{}

func (themesDefaults) Domain() string { return "themes" }

func (themesDefaults) ApplyDefaults(cfg *Config) error {
	stringOr(&cfg.Themes.Default, DefaultTheme)
	durationOr(&cfg.Themes.InstallTimeout, DefaultInstallTimeout)
	if cfg.Themes.Fetcher == "" {
		cfg.Themes.Fetcher = FetcherGit
	} else if kind, ok := fetcherNormalizer.Lookup(string(cfg.Themes.Fetcher)); ok {
		cfg.Themes.Fetcher = kind
	}
	return nil
}

type buildDefaults struct{}

func (buildDefaults) Domain() string { return "build" }

func (buildDefaults) ApplyDefaults(cfg *Config) error {
	stringOr(&cfg.Build.Executable, DefaultExecutable)
	durationOr(&cfg.Build.Timeout, DefaultBuildTimeout)
	if cfg.Build.ContentWorkers == 0 {
		cfg.Build.ContentWorkers = DefaultContentWorkers
	}
	stringOr(&cfg.Build.BaseURL, "/")
	stringOr(&cfg.Build.Language, "en")
	return nil
}

type monitoringDefaults struct{}

func (monitoringDefaults) Domain() string { return "monitoring" }

func (monitoringDefaults) ApplyDefaults(cfg *Config) error {
	stringOr(&cfg.Events.Subject, DefaultSubject)
	l := &cfg.Monitoring.Logging
	if l.Level == "" {
		l.Level = LogLevelInfo
	} else if v, ok := logLevelNormalizer.Lookup(string(l.Level)); ok {
		l.Level = v
	}
	if l.Format == "" {
		l.Format = LogFormatText
	} else if v, ok := logFormatNormalizer.Lookup(string(l.Format)); ok {
		l.Format = v
	}
	return nil
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) error {
	w := &cfg.Watch
	stringOr(&w.Inbox, "inbox")
	if w.Concurrency == 0 {
		w.Concurrency = DefaultConcurrency
	}
	if w.QueueSize == 0 {
		w.QueueSize = DefaultQueueSize
	}
	durationOr(&w.JanitorInterval, DefaultJanitorInterval)
	stringOr(&w.Retry.Backoff, "linear")
	durationOr(&w.Retry.Initial, 2*time.Second)
	durationOr(&w.Retry.Max, 30*time.Second)
	return nil
}

var defaultAppliers = []DefaultApplier{
	workspaceDefaults{},
	themesDefaults{},
	buildDefaults{},
	monitoringDefaults{},
	watchDefaults{},
}

// ApplyDefaults fills every empty value. Enumerations are case-folded; unknown
// spellings are left for Validate to reject.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}
