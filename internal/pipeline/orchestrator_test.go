package pipeline

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/hugo"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/themes"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

type harness struct {
	orch       *Orchestrator
	workspaces string
	artifacts  string
	fetches    int
	mu         sync.Mutex
}

type harnessConfig struct {
	fetcher  themes.FetcherFunc
	timeout  time.Duration
	builder  hugo.Builder
	packager Packager
}

// renderSite writes a minimal rendered site, standing in for the builder binary.
func renderSite(_ context.Context, root string) (hugo.BuildOutcome, error) {
	public := filepath.Join(root, hugo.OutputDir)
	if err := os.MkdirAll(public, 0o750); err != nil {
		return hugo.BuildOutcome{}, err
	}
	page := "<html><head><title>Site</title></head><body><h1>Hi</h1></body></html>"
	if err := os.WriteFile(filepath.Join(public, "index.html"), []byte(page), 0o600); err != nil {
		return hugo.BuildOutcome{}, err
	}
	return hugo.BuildOutcome{Stdout: "Start building sites …\nTotal in 12 ms\n"}, nil
}

func newHarness(t *testing.T, cfg harnessConfig) *harness {
	t.Helper()
	h := &harness{
		workspaces: filepath.Join(t.TempDir(), "work"),
		artifacts:  filepath.Join(t.TempDir(), "artifacts"),
	}
	fetcher := cfg.fetcher
	if fetcher == nil {
		fetcher = func(_ context.Context, _ themes.Origin, dest string) error {
			h.mu.Lock()
			h.fetches++
			h.mu.Unlock()
			if err := os.MkdirAll(filepath.Join(dest, "layouts"), 0o750); err != nil {
				return err
			}
			return os.WriteFile(filepath.Join(dest, "layouts", "index.html"), []byte("{{ .Content }}"), 0o600)
		}
	}
	builder := cfg.builder
	if builder == nil {
		builder = hugo.BuilderFunc(renderSite)
	}
	var pkg Packager = packager.New(h.artifacts)
	if cfg.packager != nil {
		pkg = cfg.packager
	}

	reg, err := themes.NewBuiltinRegistry("ananke")
	require.NoError(t, err)
	installerOpts := []themes.InstallerOption{themes.WithFetcher(fetcher)}
	if cfg.timeout > 0 {
		installerOpts = append(installerOpts, themes.WithTimeout(cfg.timeout))
	}

	h.orch, err = New(Dependencies{
		Selector:   themes.NewSelector(reg),
		Installer:  themes.NewInstaller(installerOpts...),
		Writer:     hugo.NewContentWriter(2),
		Builder:    builder,
		Packager:   pkg,
		Workspaces: workspace.NewManager(h.workspaces),
	})
	require.NoError(t, err)
	return h
}

func clinicWizard() *wizard.WizardData {
	return &wizard.WizardData{
		WebsiteType:  wizard.WebsiteType{Category: "healthcare", Subcategory: "medical"},
		BusinessInfo: wizard.BusinessInfo{Name: "Bright Smile Dental", Tagline: "Gentle care"},
	}
}

func sampleRecords() []content.Record {
	return []content.Record{
		{Key: "home", Type: content.TypeHome, Body: "# Welcome\n\nWe care for your teeth."},
		{Key: "about", Type: content.TypePage, Title: "About Us", Body: "Family practice since 1998."},
		{Key: "cleaning", Type: content.TypeService, Title: "Cleaning", Body: "Twice a year."},
	}
}

// archiveEntries lists the regular files of a tar.gz archive with their contents.
func archiveEntries(t *testing.T, path string) map[string]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	zr, err := gzip.NewReader(f)
	require.NoError(t, err)
	defer zr.Close()

	out := map[string]string{}
	tr := tar.NewReader(zr)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		data, err := io.ReadAll(tr)
		require.NoError(t, err)
		out[hdr.Name] = string(data)
	}
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestRun_HealthcareSiteCompletes(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	events := NewChannelObserver(16)

	res, err := h.orch.Run(context.Background(), Request{
		RunID:     "run-clinic",
		Wizard:    clinicWizard(),
		Records:   sampleRecords(),
		Observers: []Observer{events},
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, StateComplete, res.State)
	assert.Nil(t, res.FailedStage)
	assert.Empty(t, res.Errors)

	md := res.Metadata
	assert.Equal(t, "clinic", md.ThemeID)
	assert.Equal(t, string(themes.ReasonCategory), md.ThemeReason)
	assert.Equal(t, "healthcare", md.Category)
	assert.Equal(t, 3, md.ContentFileCount)
	assert.Zero(t, md.ContentFailures)
	assert.Positive(t, md.BuiltSize)
	assert.Positive(t, md.SourceSize)
	assert.Zero(t, h.fetches, "clinic is bundled")

	assert.Empty(t, dirEntries(t, h.workspaces), "workspace removed after success")
	assert.FileExists(t, md.SiteArtifact)

	src := archiveEntries(t, md.SourceArtifact)
	assert.Contains(t, src, "themes/clinic/layouts/index.html")
	assert.Contains(t, src, "content/_index.md")
	assert.Contains(t, src, "content/services/cleaning.md")
	assert.Contains(t, src[hugo.ConfigFileName], "theme: clinic")
	assert.Contains(t, src[hugo.ConfigFileName], "title: Bright Smile Dental")
	assert.NotContains(t, src, "public/index.html")

	site := archiveEntries(t, md.SiteArtifact)
	assert.Contains(t, site, "index.html")

	var percents []int
	var states []State
	for ev := range events.Events() {
		percents = append(percents, ev.Percent)
		states = append(states, ev.To)
		assert.Equal(t, "run-clinic", ev.RunID)
	}
	assert.Equal(t, []int{5, 15, 30, 50, 75, 90, 100}, percents)
	assert.Equal(t, []State{
		StateInitializing, StateBuildingStructure, StateApplyingTheme,
		StateGeneratingContent, StateBuildingSite, StatePackaging, StateComplete,
	}, states)

	for _, s := range stages {
		assert.Contains(t, res.StageDurations, s.state.String())
	}
	stdout := res.LinesFor(StateBuildingSite)
	require.NotEmpty(t, stdout)
}

func TestRun_OverrideInstallsRemoteTheme(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	w := &wizard.WizardData{
		WebsiteType:  wizard.WebsiteType{Category: "restaurant"},
		BusinessInfo: wizard.BusinessInfo{Name: "Trattoria Nonna"},
		ThemeID:      "ananke",
	}

	res, err := h.orch.Run(context.Background(), Request{RunID: "run-override", Wizard: w, Records: sampleRecords()})
	require.NoError(t, err)
	assert.Equal(t, "ananke", res.Metadata.ThemeID)
	assert.Equal(t, string(themes.ReasonOverride), res.Metadata.ThemeReason)
	assert.Equal(t, 1, h.fetches)

	src := archiveEntries(t, res.Metadata.SourceArtifact)
	assert.Contains(t, src, "themes/ananke/layouts/index.html")
	assert.Contains(t, src[hugo.ConfigFileName], "theme: ananke")
}

func TestRun_UnknownOverrideWarnsAndFallsBack(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	w := &wizard.WizardData{
		WebsiteType:  wizard.WebsiteType{Category: "restaurant"},
		BusinessInfo: wizard.BusinessInfo{Name: "Trattoria Nonna"},
		ThemeID:      "missing",
	}
	res, err := h.orch.Run(context.Background(), Request{Wizard: w, Records: sampleRecords()})
	require.NoError(t, err)
	assert.Equal(t, "bistro", res.Metadata.ThemeID)
	assert.NotEmpty(t, res.RunID)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "theme=missing")
}

func TestRun_CollidingRecordsLastWriteWins(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	records := []content.Record{
		{Key: "about/_index", Type: content.TypePage, Body: "First version"},
		{Key: "about/_index", Type: content.TypePage, Body: "Second version"},
	}

	res, err := h.orch.Run(context.Background(), Request{RunID: "run-collide", Wizard: clinicWizard(), Records: records})
	require.NoError(t, err)
	require.Len(t, res.Metadata.Tracking, 2)
	for _, e := range res.Metadata.Tracking {
		assert.True(t, e.Success)
		assert.Equal(t, "content/about/_index.md", e.Path)
	}
	assert.Equal(t, 2, res.Metadata.ContentFileCount)

	src := archiveEntries(t, res.Metadata.SourceArtifact)
	assert.Contains(t, src["content/about/_index.md"], "Second version")
	assert.NotContains(t, src["content/about/_index.md"], "First version")
}

func TestRun_ThemeFetchTimeoutFails(t *testing.T) {
	h := newHarness(t, harnessConfig{
		timeout: 50 * time.Millisecond,
		fetcher: func(ctx context.Context, _ themes.Origin, _ string) error {
			<-ctx.Done()
			return ctx.Err()
		},
	})
	w := clinicWizard()
	w.ThemeID = "ananke"
	events := NewChannelObserver(16)

	start := time.Now()
	res, err := h.orch.Run(context.Background(), Request{RunID: "run-timeout", Wizard: w, Records: sampleRecords(), Observers: []Observer{events}})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, ferrors.IsTimeout(err))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryThemeInstall))
	assert.False(t, res.Success)
	assert.Equal(t, StateFailed, res.State)
	require.NotNil(t, res.FailedStage)
	assert.Equal(t, StateApplyingTheme, *res.FailedStage)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "[timeout]")

	assert.Empty(t, dirEntries(t, h.workspaces), "workspace removed after failure")
	assert.Empty(t, dirEntries(t, h.artifacts))

	var last ProgressEvent
	for ev := range events.Events() {
		last = ev
	}
	assert.Equal(t, StateFailed, last.To)
	assert.Equal(t, StateApplyingTheme, last.From)
	assert.Equal(t, 30, last.Percent)
	assert.NotEmpty(t, last.Err)
}

func TestRun_BuildFailureCleansUp(t *testing.T) {
	h := newHarness(t, harnessConfig{
		builder: hugo.BuilderFunc(func(context.Context, string) (hugo.BuildOutcome, error) {
			out := hugo.BuildOutcome{Stderr: "ERROR template: index.html:3: unexpected EOF\n", ExitCode: 1}
			return out, ferrors.BuildToolError("site build failed: ERROR template").WithCause(hugo.ErrBuildFailed).Build()
		}),
	})

	res, err := h.orch.Run(context.Background(), Request{RunID: "run-broken", Wizard: clinicWizard(), Records: sampleRecords()})
	require.ErrorIs(t, err, hugo.ErrBuildFailed)
	require.NotNil(t, res.FailedStage)
	assert.Equal(t, StateBuildingSite, *res.FailedStage)
	assert.Empty(t, res.Metadata.SiteArtifact)
	assert.Empty(t, dirEntries(t, h.workspaces))
	assert.Empty(t, dirEntries(t, h.artifacts))

	lines := res.LinesFor(StateBuildingSite)
	var sawStderr bool
	for _, l := range lines {
		if l.Stream == "stderr" {
			sawStderr = true
			assert.Equal(t, LevelWarn, l.Level)
		}
	}
	assert.True(t, sawStderr, "builder stderr is kept in the run log")
}

type failingPackager struct{}

func (failingPackager) Package(context.Context, string, string) (packager.Artifacts, error) {
	return packager.Artifacts{}, ferrors.PackagingError("disk full").Build()
}

func TestRun_PackagingFailureRetainsWorkspace(t *testing.T) {
	h := newHarness(t, harnessConfig{packager: failingPackager{}})

	res, err := h.orch.Run(context.Background(), Request{RunID: "run-retain", Wizard: clinicWizard(), Records: sampleRecords()})
	require.Error(t, err)
	require.NotNil(t, res.FailedStage)
	assert.Equal(t, StatePackaging, *res.FailedStage)
	require.NotEmpty(t, res.Metadata.RetainedPath)
	assert.DirExists(t, res.Metadata.RetainedPath)
	assert.FileExists(t, filepath.Join(res.Metadata.RetainedPath, workspace.RetainedMarker))
	assert.FileExists(t, filepath.Join(res.Metadata.RetainedPath, hugo.OutputDir, "index.html"))
}

func TestRun_CancellationStopsBeforeNextStage(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var built bool
	h.orch.deps.Builder = hugo.BuilderFunc(func(ctx context.Context, root string) (hugo.BuildOutcome, error) {
		built = true
		return renderSite(ctx, root)
	})
	cancelOnContent := FuncObserver{Transition: func(ev ProgressEvent) {
		if ev.To == StateGeneratingContent {
			cancel()
		}
	}}

	res, err := h.orch.Run(ctx, Request{RunID: "run-cancel", Wizard: clinicWizard(), Records: sampleRecords(), Observers: []Observer{cancelOnContent}})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryCanceled))
	assert.False(t, built)
	require.NotNil(t, res.FailedStage)
	assert.Equal(t, StateGeneratingContent, *res.FailedStage)
	assert.Empty(t, dirEntries(t, h.workspaces))
}

func TestRun_InvalidInputFailsAtInitializing(t *testing.T) {
	h := newHarness(t, harnessConfig{})

	cases := map[string]Request{
		"nil wizard":      {RunID: "r1"},
		"invalid wizard":  {RunID: "r2", Wizard: &wizard.WizardData{}},
		"missing content": {RunID: "r3", Wizard: clinicWizard(), RequireContent: true},
		"bad run id":      {RunID: "../escape", Wizard: clinicWizard()},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := h.orch.Run(context.Background(), req)
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), err.Error())
			require.NotNil(t, res.FailedStage)
			assert.Equal(t, StateInitializing, *res.FailedStage)
			assert.NotNil(t, res.Errors)
		})
	}
	assert.Empty(t, dirEntries(t, h.workspaces))
}

func TestRun_ConcurrentRunsAreIsolated(t *testing.T) {
	h := newHarness(t, harnessConfig{})
	const runs = 4

	results := make([]*BuildResult, runs)
	var wg sync.WaitGroup
	for i := range runs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := clinicWizard()
			w.BusinessInfo.Name = fmt.Sprintf("Practice %d", i)
			res, err := h.orch.Run(context.Background(), Request{RunID: fmt.Sprintf("run-%d", i), Wizard: w, Records: sampleRecords()})
			assert.NoError(t, err)
			results[i] = res
		}()
	}
	wg.Wait()

	for i, res := range results {
		require.NotNil(t, res)
		assert.True(t, res.Success)
		src := archiveEntries(t, res.Metadata.SourceArtifact)
		assert.Contains(t, src[hugo.ConfigFileName], fmt.Sprintf("title: Practice %d", i))
	}
	assert.Len(t, dirEntries(t, h.artifacts), runs)
	assert.Empty(t, dirEntries(t, h.workspaces))
}

func TestRun_DuplicateRunIDRejected(t *testing.T) {
	h := newHarness(t, harnessConfig{packager: failingPackager{}})

	_, err := h.orch.Run(context.Background(), Request{RunID: "same", Wizard: clinicWizard(), Records: sampleRecords()})
	require.Error(t, err)

	// the first run's workspace is retained, so the id is still taken
	res, err := h.orch.Run(context.Background(), Request{RunID: "same", Wizard: clinicWizard(), Records: sampleRecords()})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	assert.Equal(t, StateInitializing, *res.FailedStage)
}

func TestNew_ReportsMissingDependencies(t *testing.T) {
	_, err := New(Dependencies{Builder: hugo.BuilderFunc(renderSite)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[installer packager selector workspaces writer]")
}
