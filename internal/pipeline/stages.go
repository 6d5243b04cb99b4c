package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hugo"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/themes"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

// stageInitialize validates the request and creates the run's workspace.
func stageInitialize(_ context.Context, r *run) error {
	if r.req.Wizard == nil {
		return ferrors.ValidationError("wizard data is required").Build()
	}
	if err := r.req.Wizard.Validate(); err != nil {
		return err
	}
	if r.req.RequireContent && len(r.req.Records) == 0 {
		return ferrors.ValidationError("at least one content record is required").Build()
	}

	ws, err := r.o.deps.Workspaces.Create(r.req.RunID)
	switch {
	case errors.Is(err, workspace.ErrInvalidRunID), errors.Is(err, workspace.ErrExists):
		return ferrors.ValidationError("cannot use run identifier").WithCause(err).WithContext("run_id", r.req.RunID).Build()
	case err != nil:
		return ferrors.FileSystemError("cannot create workspace").WithCause(err).Fatal().Build()
	}
	r.ws = ws
	r.log.info(StateInitializing, "Workspace created",
		logfields.Path(ws.Root()),
		logfields.Count(len(r.req.Records)))
	return nil
}

func stageBuildStructure(_ context.Context, r *run) error {
	if err := hugo.BuildStructure(r.ws.Root()); err != nil {
		return err
	}
	r.log.info(StateBuildingStructure, "Project skeleton ready", logfields.Count(len(hugo.SkeletonDirs)))
	return nil
}

// stageApplyTheme selects, installs and configures the theme, in that order.
func stageApplyTheme(ctx context.Context, r *run) error {
	w := r.req.Wizard
	sel, err := r.o.deps.Selector.Select(w)
	if err != nil {
		return err
	}
	r.selection = sel
	md := &r.res.Metadata
	md.ThemeID, md.ThemeReason, md.Category = sel.Theme.ID, string(sel.Reason), string(sel.Category)
	r.o.recorder.IncThemeSelection(sel.Theme.ID, sel.Reason == themes.ReasonOverride)
	if id := strings.TrimSpace(w.ThemeID); id != "" && sel.Reason != themes.ReasonOverride {
		r.log.warn(StateApplyingTheme, "Requested theme is not registered; selected by category", logfields.Theme(id))
	}
	r.log.info(StateApplyingTheme, "Theme selected",
		logfields.Theme(sel.Theme.ID),
		logfields.Category(string(sel.Category)),
		slog.String("reason", string(sel.Reason)),
		slog.Int("score", sel.Score))

	r.checkBuilderVersion(ctx, sel.Theme)

	outcome, err := r.o.deps.Installer.Install(ctx, r.ws, sel.Theme)
	if err != nil {
		return err
	}
	for _, warning := range outcome.Warnings {
		r.log.warn(StateApplyingTheme, warning, logfields.Theme(sel.Theme.ID))
	}
	r.log.info(StateApplyingTheme, "Theme installed",
		logfields.Theme(sel.Theme.ID),
		logfields.Origin(string(outcome.Origin)),
		logfields.Count(outcome.Files))

	cfg, err := hugo.WriteConfig(r.ws.Root(), hugo.SiteConfig{
		ThemeID:      sel.Theme.ID,
		Title:        w.SiteTitle(),
		BaseURL:      firstNonEmpty(w.Site.BaseURL, r.o.baseURL),
		LanguageCode: firstNonEmpty(w.Site.LanguageCode, r.o.language),
		Params:       sel.Parameters,
		Menu:         hugo.NavigationFromContent(r.req.Records),
	})
	if err != nil {
		return err
	}
	r.log.info(StateApplyingTheme, "Site configuration written",
		logfields.Path(hugo.ConfigFileName),
		logfields.Bytes(cfg.Bytes),
		slog.Int("menu_entries", cfg.MenuEntries))
	return nil
}

// checkBuilderVersion records the builder version and warns when the theme
// declares a minimum the builder does not meet. Nothing here fails the run.
func (r *run) checkBuilderVersion(ctx context.Context, theme themes.Descriptor) {
	vr, ok := r.o.deps.Builder.(hugo.VersionReporter)
	if !ok {
		return
	}
	v, err := vr.Version(ctx)
	if err != nil {
		r.log.warn(StateApplyingTheme, "Cannot determine builder version", logfields.Error(err))
		return
	}
	r.res.Metadata.BuilderVersion = v
	supported, err := theme.SupportsBuilder(v)
	switch {
	case err != nil:
		r.log.warn(StateApplyingTheme, "Cannot compare builder version", logfields.Version(v), logfields.Error(err))
	case !supported:
		r.log.warn(StateApplyingTheme,
			fmt.Sprintf("Theme %s expects builder %s", theme.ID, theme.MinBuilderVersion),
			logfields.Version(v))
	}
}

// stageGenerateContent writes every record. Individual failures are recorded,
// never fatal.
func stageGenerateContent(ctx context.Context, r *run) error {
	entries := r.o.deps.Writer.Write(ctx, r.ws.Root(), r.req.Records)
	r.res.Metadata.Tracking = entries

	for _, e := range entries {
		r.o.recorder.IncContentResult(string(e.Type), e.Success)
		switch {
		case !e.Success:
			r.res.Metadata.ContentFailures++
			r.log.warn(StateGeneratingContent, "Content record failed",
				slog.String("key", e.Key),
				logfields.ContentType(string(e.Type)),
				slog.String("reason", e.Error))
		case e.Overwrote:
			r.res.Metadata.ContentFileCount++
			r.log.warn(StateGeneratingContent, "Content path overwritten by a later record",
				logfields.Path(e.Path), slog.String("key", e.Key))
		default:
			r.res.Metadata.ContentFileCount++
		}
	}
	r.log.info(StateGeneratingContent, "Content written",
		logfields.Count(r.res.Metadata.ContentFileCount),
		slog.Int("failed", r.res.Metadata.ContentFailures))

	if err := ctx.Err(); err != nil {
		return ferrors.CanceledError("content generation interrupted").WithCause(err).Build()
	}
	return nil
}

// stageBuildSite runs the builder once and folds its output into the log.
func stageBuildSite(ctx context.Context, r *run) error {
	out, err := r.o.deps.Builder.Build(ctx, r.ws.Root())
	stdout, stderr := out.Lines()
	for _, line := range stdout {
		r.log.add(StateBuildingSite, LevelInfo, "stdout", line)
	}
	for _, line := range stderr {
		r.log.add(StateBuildingSite, LevelWarn, "stderr", line)
	}
	if err != nil {
		return err
	}
	r.log.info(StateBuildingSite, "Site built", logfields.Duration(out.Duration))

	check := hugo.CheckRenderedSite(r.ws.Root())
	for _, warning := range check.Warnings {
		r.log.warn(StateBuildingSite, warning)
	}
	return nil
}

func stagePackage(ctx context.Context, r *run) error {
	art, err := r.o.deps.Packager.Package(ctx, r.req.RunID, r.ws.Root())
	if err != nil {
		return err
	}
	md := &r.res.Metadata
	md.SiteArtifact, md.SourceArtifact = art.SitePath, art.SourcePath
	md.BuiltSize, md.SourceSize = art.SiteSize, art.SourceSize
	for _, warning := range art.Warnings {
		r.log.warn(StatePackaging, warning)
	}
	r.o.recorder.ObserveArtifactSize(packager.KindSite, art.SiteSize)
	r.o.recorder.ObserveArtifactSize(packager.KindSource, art.SourceSize)
	r.log.info(StatePackaging, "Artifacts written",
		logfields.Path(art.Dir),
		slog.Int64("site_bytes", art.SiteSize),
		slog.Int64("source_bytes", art.SourceSize))
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
