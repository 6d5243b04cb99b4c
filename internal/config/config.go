// Package config loads the sitebuilder configuration file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

// Version is the only configuration format version this build reads.
const Version = "1.0"

// Config is the complete sitebuilder configuration.
type Config struct {
	Version    string           `yaml:"version"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Artifacts  ArtifactsConfig  `yaml:"artifacts"`
	Themes     ThemesConfig     `yaml:"themes"`
	Build      BuildConfig      `yaml:"build"`
	Events     EventsConfig     `yaml:"events"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
	Watch      WatchConfig      `yaml:"watch"`
}

// WorkspaceConfig places per-run workspaces.
type WorkspaceConfig struct {
	BaseDir string `yaml:"base_dir"`
	// RetainFailed is how long a workspace kept after a packaging failure survives.
	RetainFailed Duration `yaml:"retain_failed"`
	// StaleAfter removes unmarked workspaces left behind by crashed processes.
	StaleAfter Duration `yaml:"stale_after"`
}

// ArtifactsConfig places the packaged archives.
type ArtifactsConfig struct {
	Dir       string   `yaml:"dir"`
	Retention Duration `yaml:"retention"`
}

// FetcherKind selects how remote themes are cloned.
type FetcherKind string

const (
	FetcherGit     FetcherKind = "git"
	FetcherCommand FetcherKind = "command"
)

// ThemesConfig configures selection and installation.
type ThemesConfig struct {
	Default        string      `yaml:"default"`
	InstallTimeout Duration    `yaml:"install_timeout"`
	Fetcher        FetcherKind `yaml:"fetcher"`
	// GitExecutable is used by the command fetcher.
	GitExecutable string `yaml:"git_executable,omitempty"`
}

// BuildConfig configures content writing and the site builder.
type BuildConfig struct {
	Executable     string   `yaml:"executable"`
	Args           []string `yaml:"args,omitempty"`
	Timeout        Duration `yaml:"timeout"`
	ContentWorkers int      `yaml:"content_workers"`
	RequireContent bool     `yaml:"require_content"`
	BaseURL        string   `yaml:"base_url"`
	Language       string   `yaml:"language"`
}

// EventsConfig configures the event journal and the NATS publisher. Empty
// values disable the respective sink.
type EventsConfig struct {
	Journal string `yaml:"journal"`
	NATSURL string `yaml:"nats_url"`
	Subject string `yaml:"subject"`
}

// MonitoringConfig configures logging and metrics.
type MonitoringConfig struct {
	Logging     LoggingConfig `yaml:"logging"`
	MetricsAddr string        `yaml:"metrics_addr"`
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// WatchConfig configures the job inbox and the janitor.
type WatchConfig struct {
	Inbox           string      `yaml:"inbox"`
	Concurrency     int         `yaml:"concurrency"`
	QueueSize       int         `yaml:"queue_size"`
	JanitorInterval Duration    `yaml:"janitor_interval"`
	Retry           RetryConfig `yaml:"retry"`
}

// RetryConfig bounds automatic retries of transient run failures.
type RetryConfig struct {
	Backoff    string   `yaml:"backoff"`
	Initial    Duration `yaml:"initial"`
	Max        Duration `yaml:"max"`
	MaxRetries int      `yaml:"max_retries"`
}

// Load reads the configuration at path. A .env file next to the working
// directory is loaded first; ${VAR} references in the file are expanded
// before parsing. Defaults are applied and the result is validated.
func Load(path string) (*Config, error) {
	if loaded, err := loadEnvFile(); err != nil {
		slog.Warn("Ignoring unreadable .env file", slog.String("file", loaded), slog.String("error", err.Error()))
	} else if loaded != "" {
		slog.Debug("Loaded environment file", slog.String("file", loaded))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ferrors.ConfigError("configuration file not found").WithContext("path", path).WithCause(err).Build()
		}
		return nil, ferrors.ConfigError("failed to read configuration file").WithContext("path", path).WithCause(err).Build()
	}
	return Parse(data)
}

// Parse decodes, defaults and validates configuration bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, ferrors.ConfigError("failed to parse configuration").WithCause(err).Build()
	}
	if cfg.Version != Version {
		return nil, ferrors.ConfigError(fmt.Sprintf("unsupported configuration version %q (expected %s)", cfg.Version, Version)).Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a configuration with every default applied, for runs
// without a configuration file.
func Default() *Config {
	cfg := &Config{Version: Version}
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").WithContext("path", path).Build()
	}
	cfg := Default()
	cfg.Events.Journal = "./sitebuilder-events.db"
	cfg.Events.NATSURL = "${NATS_URL}"
	cfg.Monitoring.MetricsAddr = ":9464"

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return ferrors.FileSystemError("failed to write configuration file").WithContext("path", path).WithCause(err).Build()
	}
	return nil
}
