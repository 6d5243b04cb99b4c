package config

import (
	"fmt"
	"net/url"
	"strings"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
)

// Validate checks enumerations and bounds. All problems are reported in one
// configuration error.
func Validate(cfg *Config) error {
	v := &configurationValidator{cfg: cfg}
	v.validateWorkspace()
	v.validateThemes()
	v.validateBuild()
	v.validateEvents()
	v.validateMonitoring()
	v.validateWatch()
	if len(v.problems) == 0 {
		return nil
	}
	return ferrors.ConfigError("invalid configuration: " + strings.Join(v.problems, "; ")).
		WithContext("problems", v.problems).
		Build()
}

type configurationValidator struct {
	cfg      *Config
	problems []string
}

func (v *configurationValidator) add(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *configurationValidator) positive(field string, d Duration) {
	if d <= 0 {
		v.add("%s must be positive", field)
	}
}

func (v *configurationValidator) validateWorkspace() {
	if strings.TrimSpace(v.cfg.Workspace.BaseDir) == "" {
		v.add("workspace.base_dir is required")
	}
	if strings.TrimSpace(v.cfg.Artifacts.Dir) == "" {
		v.add("artifacts.dir is required")
	}
	v.positive("workspace.retain_failed", v.cfg.Workspace.RetainFailed)
	v.positive("artifacts.retention", v.cfg.Artifacts.Retention)
}

func (v *configurationValidator) validateThemes() {
	if _, err := fetcherNormalizer.NormalizeWithError(string(v.cfg.Themes.Fetcher)); err != nil {
		v.add("themes.fetcher: %v", err)
	}
	v.positive("themes.install_timeout", v.cfg.Themes.InstallTimeout)
}

func (v *configurationValidator) validateBuild() {
	b := v.cfg.Build
	v.positive("build.timeout", b.Timeout)
	if b.ContentWorkers < 1 {
		v.add("build.content_workers must be at least 1")
	}
	if b.BaseURL != "/" {
		u, err := url.Parse(b.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			v.add("build.base_url %q must be an absolute URL", b.BaseURL)
		}
	}
}

func (v *configurationValidator) validateEvents() {
	if raw := v.cfg.Events.NATSURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" {
			v.add("events.nats_url %q is not a server URL", raw)
		}
	}
	if strings.ContainsAny(v.cfg.Events.Subject, " *>") {
		v.add("events.subject %q must be a literal subject", v.cfg.Events.Subject)
	}
}

func (v *configurationValidator) validateMonitoring() {
	l := v.cfg.Monitoring.Logging
	if _, err := logLevelNormalizer.NormalizeWithError(string(l.Level)); err != nil {
		v.add("monitoring.logging.level: %v", err)
	}
	if _, err := logFormatNormalizer.NormalizeWithError(string(l.Format)); err != nil {
		v.add("monitoring.logging.format: %v", err)
	}
}

func (v *configurationValidator) validateWatch() {
	w := v.cfg.Watch
	if w.Concurrency < 1 {
		v.add("watch.concurrency must be at least 1")
	}
	if w.QueueSize < 1 {
		v.add("watch.queue_size must be at least 1")
	}
	v.positive("watch.janitor_interval", w.JanitorInterval)
	if _, err := retry.ParseMode(w.Retry.Backoff); err != nil {
		v.add("watch.retry.backoff: %v", err)
	}
	if w.Retry.MaxRetries < 0 {
		v.add("watch.retry.max_retries cannot be negative")
	}
}

// RetryPolicy converts the retry section into a policy.
func (w WatchConfig) RetryPolicy() retry.Policy {
	mode, _ := retry.ParseMode(w.Retry.Backoff)
	return retry.NewPolicy(mode, w.Retry.Initial.Std(), w.Retry.Max.Std(), w.Retry.MaxRetries)
}
