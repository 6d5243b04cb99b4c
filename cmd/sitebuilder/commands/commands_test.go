package commands

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/config"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

func newParser(t *testing.T, cli *CLI) *kong.Kong {
	t.Helper()
	parser, err := kong.New(cli, kong.Vars{"version": "test"}, kong.Exit(func(int) { t.Fatal("unexpected exit") }))
	require.NoError(t, err)
	return parser
}

func TestCLI_ParsesBuild(t *testing.T) {
	dir := t.TempDir()
	wizardPath := filepath.Join(dir, "wizard.json")
	recordsPath := filepath.Join(dir, "records.yaml")
	require.NoError(t, os.WriteFile(wizardPath, []byte(`{}`), 0o600))
	require.NoError(t, os.WriteFile(recordsPath, []byte(`[]`), 0o600))

	var cli CLI
	ctx, err := newParser(t, &cli).Parse([]string{"build", wizardPath, "-r", recordsPath, "--run-id", "r1", "-t", "hugo-book"})
	require.NoError(t, err)
	assert.Equal(t, "build <wizard>", ctx.Command())
	assert.Equal(t, "r1", cli.Build.RunID)
	assert.Equal(t, "hugo-book", cli.Build.Theme)
	assert.Equal(t, DefaultConfigPath, cli.Config)
}

func TestCLI_BuildRequiresExistingWizard(t *testing.T) {
	var cli CLI
	_, err := newParser(t, &cli).Parse([]string{"build", filepath.Join(t.TempDir(), "missing.json")})
	require.Error(t, err)
}

func TestCLI_ParsesHistory(t *testing.T) {
	var cli CLI
	ctx, err := newParser(t, &cli).Parse([]string{"-c", "other.yaml", "history", "run-7"})
	require.NoError(t, err)
	assert.Equal(t, "history <run-id>", ctx.Command())
	assert.Equal(t, 24*time.Hour, cli.History.Since)
	assert.Equal(t, "run-7", cli.History.RunID)
	assert.Equal(t, "other.yaml", cli.Config)
}

func TestLoadConfig_DefaultPathFallsBack(t *testing.T) {
	t.Chdir(t.TempDir())
	cli := &CLI{Config: DefaultConfigPath}
	cfg, err := cli.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, config.DefaultTheme, cfg.Themes.Default)
}

func TestLoadConfig_ExplicitPathMustExist(t *testing.T) {
	cli := &CLI{Config: filepath.Join(t.TempDir(), "nope.yaml")}
	_, err := cli.loadConfig()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryConfig))
}

func TestInitThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitebuilder.yaml")
	cli := &CLI{Config: path}
	require.NoError(t, (&InitCmd{}).Run(&Global{}, cli))
	require.Error(t, (&InitCmd{}).Run(&Global{}, cli), "refuses to overwrite")
	require.NoError(t, (&InitCmd{Force: true}).Run(&Global{}, cli))

	cfg, err := cli.loadConfig()
	require.NoError(t, err)
	assert.Equal(t, ":9464", cfg.Monitoring.MetricsAddr)
}

func TestJanitorPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Workspace.RetainFailed = config.Duration(time.Hour)
	p := janitorPolicy(cfg)
	assert.Equal(t, time.Hour, p.RetainFailed)
	assert.Equal(t, cfg.Workspace.StaleAfter.Std(), p.StaleAfter)
	assert.Equal(t, cfg.Artifacts.Retention.Std(), p.ArtifactRetention)
}

func TestNewApp_WiresJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Workspace.BaseDir = filepath.Join(dir, "work")
	cfg.Artifacts.Dir = filepath.Join(dir, "artifacts")
	cfg.Events.Journal = filepath.Join(dir, "events.db")
	cfg.Monitoring.MetricsAddr = "127.0.0.1:0"

	a, err := newApp(cfg)
	require.NoError(t, err)
	t.Cleanup(a.Close)
	assert.NotNil(t, a.orchestrator)
	assert.NotNil(t, a.store)
	assert.NotNil(t, a.metricsSrv)
	assert.Nil(t, a.conn)
	assert.FileExists(t, cfg.Events.Journal)
}
