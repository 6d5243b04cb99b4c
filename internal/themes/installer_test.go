package themes

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
)

type dirWorkspace string

func (d dirWorkspace) Path(elem ...string) string {
	return filepath.Join(append([]string{string(d)}, elem...)...)
}

func remoteTheme(id string) Descriptor {
	return Descriptor{ID: id, Origin: Origin{Kind: OriginRemote, URL: "https://example.org/" + id + ".git"}}
}

// writeTree creates files (relative path -> content) below dest.
func writeTree(t *testing.T, dest string, files map[string]string) {
	t.Helper()
	for name, body := range files {
		p := filepath.Join(dest, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o750))
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	}
}

func TestInstall_BundledTheme(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	r, err := NewBuiltinRegistry("")
	require.NoError(t, err)

	out, err := NewInstaller().Install(context.Background(), ws, r.MustGet("clinic"))
	require.NoError(t, err)
	assert.Empty(t, out.Warnings)
	assert.Positive(t, out.Files)
	assert.FileExists(t, ws.Path("themes", "clinic", "layouts", "_default", "baseof.html"))
	assert.FileExists(t, ws.Path("themes", "clinic", "theme.toml"))
}

func TestInstall_IsIdempotent(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	fsys := fstest.MapFS{
		"mini/layouts/index.html": {Data: []byte("<h1>{{ .Title }}</h1>")},
		"mini/theme.toml":         {Data: []byte("name = \"mini\"")},
	}
	d := Descriptor{ID: "mini", Origin: Origin{Kind: OriginLocal, Path: "mini"}}
	inst := NewInstaller(WithBundledFS(fsys))

	first, err := inst.Install(context.Background(), ws, d)
	require.NoError(t, err)

	// leftovers from a previous attempt must not survive a reinstall
	stray := ws.Path("themes", "mini", "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("x"), 0o600))

	second, err := inst.Install(context.Background(), ws, d)
	require.NoError(t, err)
	assert.Equal(t, first.Files, second.Files)
	assert.NoFileExists(t, stray)
	assert.FileExists(t, ws.Path("themes", "mini", "layouts", "index.html"))
}

func TestInstall_RemoteStripsVCSAndHonorsSubdir(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	fetcher := FetcherFunc(func(_ context.Context, origin Origin, dest string) error {
		assert.Equal(t, "https://example.org/fancy.git", origin.URL)
		writeTree(t, dest, map[string]string{
			".git/HEAD":                 "ref: refs/heads/main",
			"README.md":                 "repo readme",
			"theme/layouts/index.html":  "<main></main>",
			"theme/static/.git":         "gitdir: ../.git/modules/x",
			"theme/static/css/site.css": "body{}",
		})
		return nil
	})

	d := remoteTheme("fancy")
	d.Install.Subdir = "theme"
	out, err := NewInstaller(WithFetcher(fetcher)).Install(context.Background(), ws, d)
	require.NoError(t, err)

	root := ws.Path("themes", "fancy")
	assert.FileExists(t, filepath.Join(root, "layouts", "index.html"))
	assert.FileExists(t, filepath.Join(root, "static", "css", "site.css"))
	assert.NoFileExists(t, filepath.Join(root, "static", ".git"))
	assert.NoFileExists(t, filepath.Join(root, "README.md"))
	assert.Equal(t, 2, out.Files)

	entries, err := os.ReadDir(ws.Path("themes"))
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary fetch directory must be removed")
	assert.Equal(t, "fancy", entries[0].Name())
}

func TestInstall_MissingLayoutsIsWarning(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	fetcher := FetcherFunc(func(_ context.Context, _ Origin, dest string) error {
		writeTree(t, dest, map[string]string{"static/logo.svg": "<svg/>"})
		return nil
	})

	out, err := NewInstaller(WithFetcher(fetcher)).Install(context.Background(), ws, remoteTheme("bare"))
	require.NoError(t, err)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "layouts")
}

func TestInstall_RemoteTimeout(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	fetcher := FetcherFunc(func(ctx context.Context, _ Origin, dest string) error {
		writeTree(t, dest, map[string]string{"layouts/partial.html": "half"})
		<-ctx.Done()
		return ctx.Err()
	})

	start := time.Now()
	_, err := NewInstaller(WithFetcher(fetcher), WithTimeout(50*time.Millisecond)).
		Install(context.Background(), ws, remoteTheme("slow"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryThemeInstall))
	assert.True(t, ferrors.IsTimeout(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.NoDirExists(t, ws.Path("themes", "slow"))

	entries, readErr := os.ReadDir(ws.Path("themes"))
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestInstall_FetchFailureCleansUp(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	boom := errors.New("connection reset")
	fetcher := FetcherFunc(func(_ context.Context, _ Origin, dest string) error {
		writeTree(t, dest, map[string]string{"layouts/x.html": "x"})
		return boom
	})

	_, err := NewInstaller(WithFetcher(fetcher)).Install(context.Background(), ws, remoteTheme("flaky"))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.False(t, ferrors.IsTimeout(err))

	ce, ok := ferrors.AsClassified(err)
	require.True(t, ok)
	assert.Equal(t, ferrors.CategoryThemeInstall, ce.Category())
	theme, _ := ce.Context().GetString("theme")
	assert.Equal(t, "flaky", theme)
	assert.NoDirExists(t, ws.Path("themes", "flaky"))
}

func TestInstall_CanceledContext(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fetcher := FetcherFunc(func(ctx context.Context, _ Origin, _ string) error { return ctx.Err() })
	_, err := NewInstaller(WithFetcher(fetcher)).Install(ctx, ws, remoteTheme("any"))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, ferrors.IsTimeout(err))
}

func TestInstall_UnknownBundledPath(t *testing.T) {
	ws := dirWorkspace(t.TempDir())
	d := Descriptor{ID: "ghost", Origin: Origin{Kind: OriginLocal, Path: "ghost"}}
	_, err := NewInstaller(WithBundledFS(fstest.MapFS{})).Install(context.Background(), ws, d)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryThemeInstall))
}

func TestReferenceName(t *testing.T) {
	assert.Equal(t, "refs/heads/main", referenceName("main").String())
	assert.Equal(t, "refs/tags/v1.0.0", referenceName("refs/tags/v1.0.0").String())
	assert.Equal(t, "", referenceName("").String())
}
