package themes

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// DefaultInstallTimeout bounds a remote fetch when the installer has no explicit budget.
const DefaultInstallTimeout = 60 * time.Second

// vcsDirs are stripped from installed trees so the source artifact carries no
// fetch provenance.
var vcsDirs = map[string]bool{".git": true, ".hg": true, ".svn": true}

// Workspace is the part of a pipeline workspace the installer needs.
type Workspace interface {
	Path(elem ...string) string
}

// InstallOutcome describes a completed install.
type InstallOutcome struct {
	ThemeID  string
	Dir      string
	Origin   OriginKind
	Files    int
	Warnings []string
	Duration time.Duration
}

// Installer materializes theme trees into workspaces.
type Installer struct {
	bundled fs.FS
	fetcher Fetcher
	timeout time.Duration
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithBundledFS replaces the embedded bundled themes, e.g. with os.DirFS(dir).
func WithBundledFS(fsys fs.FS) InstallerOption {
	return func(i *Installer) { i.bundled = fsys }
}

// WithFetcher sets the remote fetcher. Defaults to GitFetcher.
func WithFetcher(f Fetcher) InstallerOption {
	return func(i *Installer) { i.fetcher = f }
}

// WithTimeout sets the hard time budget for remote fetches.
func WithTimeout(d time.Duration) InstallerOption {
	return func(i *Installer) {
		if d > 0 {
			i.timeout = d
		}
	}
}

// NewInstaller creates an Installer with the embedded bundled themes and go-git fetcher.
func NewInstaller(opts ...InstallerOption) *Installer {
	i := &Installer{bundled: BundledFS(), fetcher: GitFetcher{}, timeout: DefaultInstallTimeout}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Install places theme d at <workspace>/themes/<id>. An existing directory from an
// earlier attempt is removed first, so repeated installs converge on the same tree.
// A missing structural marker is a warning. On failure the theme directory is
// removed and a theme_install error is returned.
func (i *Installer) Install(ctx context.Context, ws Workspace, d Descriptor) (InstallOutcome, error) {
	start := time.Now()
	target := ws.Path("themes", d.ID)
	out := InstallOutcome{ThemeID: d.ID, Dir: target, Origin: d.Origin.Kind}

	fail := func(b *ferrors.ErrorBuilder) (InstallOutcome, error) {
		removeBestEffort(target, d.ID)
		return out, b.WithContext("theme", d.ID).WithContext("origin", string(d.Origin.Kind)).Build()
	}

	if err := os.RemoveAll(target); err != nil {
		return fail(ferrors.ThemeInstallError("cannot clear previous theme directory").WithCause(err))
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fail(ferrors.ThemeInstallError("cannot create themes directory").WithCause(err))
	}

	switch d.Origin.Kind {
	case OriginLocal:
		if err := i.copyBundled(ctx, d, target); err != nil {
			return fail(ferrors.ThemeInstallError("copy bundled theme").WithCause(err))
		}
	case OriginRemote:
		if b := i.fetchRemote(ctx, d, target); b != nil {
			return fail(b)
		}
	default:
		return fail(ferrors.ThemeInstallError(fmt.Sprintf("unsupported theme origin %q", d.Origin.Kind)))
	}

	files, err := stripVCS(target)
	if err != nil {
		return fail(ferrors.ThemeInstallError("strip version control metadata").WithCause(err))
	}
	out.Files = files

	for _, marker := range d.RequiredDirs() {
		if info, statErr := os.Stat(filepath.Join(target, marker)); statErr != nil || !info.IsDir() {
			msg := fmt.Sprintf("theme %s has no %s directory; the build may be incomplete", d.ID, marker)
			out.Warnings = append(out.Warnings, msg)
			slog.Warn("Theme is missing a structural marker", logfields.Theme(d.ID), logfields.Path(marker))
		}
	}

	out.Duration = time.Since(start)
	slog.Info("Installed theme",
		logfields.Theme(d.ID),
		logfields.Origin(string(d.Origin.Kind)),
		logfields.Count(out.Files),
		logfields.Duration(out.Duration))
	return out, nil
}

func (i *Installer) copyBundled(ctx context.Context, d Descriptor, target string) error {
	if i.bundled == nil {
		return errors.New("no bundled theme file system configured")
	}
	src, err := fs.Sub(i.bundled, d.Origin.Path)
	if err != nil {
		return err
	}
	if _, err := fs.Stat(src, "."); err != nil {
		return fmt.Errorf("bundled theme %s not found: %w", d.Origin.Path, err)
	}
	return copyFS(ctx, src, target)
}

// fetchRemote fetches into a hidden sibling of target, then moves the selected
// subtree into place. The temporary tree is always removed.
func (i *Installer) fetchRemote(ctx context.Context, d Descriptor, target string) *ferrors.ErrorBuilder {
	if i.fetcher == nil {
		return ferrors.ThemeInstallError("no theme fetcher configured")
	}
	tmp, err := os.MkdirTemp(filepath.Dir(target), "."+d.ID+"-fetch-")
	if err != nil {
		return ferrors.ThemeInstallError("create temporary fetch directory").WithCause(err)
	}
	defer removeBestEffort(tmp, d.ID)

	fetchCtx, cancel := context.WithTimeout(ctx, i.timeout)
	defer cancel()

	slog.Info("Fetching remote theme", logfields.Theme(d.ID), logfields.URL(d.Origin.URL))
	fetchErr := i.fetcher.Fetch(fetchCtx, d.Origin, tmp)
	switch {
	case errors.Is(fetchCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		return ferrors.ThemeInstallError(fmt.Sprintf("theme fetch timed out after %s", i.timeout)).
			WithCause(context.DeadlineExceeded).
			WithContext("url", d.Origin.URL).
			Timeout()
	case ctx.Err() != nil:
		return ferrors.ThemeInstallError("theme fetch interrupted").WithCause(ctx.Err())
	case fetchErr != nil:
		return ferrors.ThemeInstallError("theme fetch failed").
			WithCause(fetchErr).
			WithContext("url", d.Origin.URL)
	}

	src := tmp
	if sub := d.Install.Subdir; sub != "" {
		src = filepath.Join(tmp, filepath.FromSlash(sub))
		if info, err := os.Stat(src); err != nil || !info.IsDir() {
			return ferrors.ThemeInstallError(fmt.Sprintf("fetched theme has no %s directory", sub))
		}
	}
	if err := os.Rename(src, target); err != nil {
		return ferrors.ThemeInstallError("move fetched theme into place").WithCause(err)
	}
	return nil
}

func copyFS(ctx context.Context, src fs.FS, target string) error {
	return fs.WalkDir(src, ".", func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		dst := filepath.Join(target, filepath.FromSlash(p))
		if entry.IsDir() {
			if vcsDirs[entry.Name()] {
				return fs.SkipDir
			}
			return os.MkdirAll(dst, 0o750)
		}
		if !entry.Type().IsRegular() {
			return nil
		}
		return copyFile(src, p, dst)
	})
}

func copyFile(src fs.FS, name, dst string) error {
	in, err := src.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 -- dst is inside the workspace
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return err
	}
	return out.Close()
}

// stripVCS removes version control directories and gitlink files below root
// and returns the number of regular files left.
func stripVCS(root string) (int, error) {
	var doomed []string
	files := 0
	err := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if vcsDirs[entry.Name()] {
			doomed = append(doomed, p)
			if entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.Type().IsRegular() {
			files++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	for _, p := range doomed {
		if err := os.RemoveAll(p); err != nil {
			return 0, err
		}
	}
	return files, nil
}

func removeBestEffort(path, themeID string) {
	if err := os.RemoveAll(path); err != nil {
		slog.Warn("Failed to remove theme directory", logfields.Theme(themeID), logfields.Path(path), logfields.Error(err))
	}
}
