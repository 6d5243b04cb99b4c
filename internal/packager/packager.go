// Package packager turns a finished workspace into its two deliverables: the
// rendered site and the portable project source, each a gzip-compressed tarball.
package packager

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/klauspost/compress/gzip"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

const (
	SiteArchiveName   = "site.tar.gz"
	SourceArchiveName = "source.tar.gz"
	// ResultFileName is written next to the archives by callers that persist results.
	ResultFileName = "result.json"
)

// Archive kinds, also used as metric labels.
const (
	KindSite   = "site"
	KindSource = "source"
)

// ErrNoBuiltOutput is returned when the workspace has no rendered site to package.
var ErrNoBuiltOutput = errors.New("no built output to package")

// sourceExcludes are build-tool cache and output entries left out of the source
// archive, matched against the workspace-relative slash path.
var sourceExcludes = []string{
	"public",
	"resources/_gen",
	".hugo_build.lock",
	workspace.RetainedMarker,
}

// excludedNames are skipped at any depth in the source archive.
var excludedNames = map[string]bool{".git": true, "node_modules": true, ".DS_Store": true}

// Artifacts references the produced archives. A size of zero means unknown.
type Artifacts struct {
	Dir         string
	SitePath    string
	SourcePath  string
	SiteSize    int64
	SourceSize  int64
	SiteFiles   int
	SourceFiles int
	Warnings    []string
}

// Packager writes archives below <dir>/<run id>.
type Packager struct {
	dir       string
	outputDir string
	stat      func(string) (os.FileInfo, error)
}

// Option configures a Packager.
type Option func(*Packager)

// WithOutputDir names the rendered output directory inside the workspace.
func WithOutputDir(name string) Option {
	return func(p *Packager) {
		if name != "" {
			p.outputDir = name
		}
	}
}

// New creates a Packager storing artifacts below dir.
func New(dir string, opts ...Option) *Packager {
	p := &Packager{dir: dir, outputDir: "public", stat: os.Stat}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Dir returns the artifact root.
func (p *Packager) Dir() string { return p.dir }

// RunDir returns the artifact directory of one run.
func (p *Packager) RunDir(runID string) string { return filepath.Join(p.dir, runID) }

// Package archives the rendered output and the source tree of the workspace at
// root. Either archive failing is a fatal packaging error and removes whatever
// was written for the run; failing to measure an archive is only a warning.
func (p *Packager) Package(ctx context.Context, runID, root string) (Artifacts, error) {
	out := Artifacts{
		Dir:        p.RunDir(runID),
		SitePath:   filepath.Join(p.RunDir(runID), SiteArchiveName),
		SourcePath: filepath.Join(p.RunDir(runID), SourceArchiveName),
	}
	fail := func(msg string, err error) (Artifacts, error) {
		if rmErr := os.RemoveAll(out.Dir); rmErr != nil {
			slog.Warn("Failed to remove partial artifacts", logfields.Path(out.Dir), logfields.Error(rmErr))
		}
		b := ferrors.PackagingError(msg).WithCause(err).WithContext("run_id", runID)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			b = ferrors.CanceledError("packaging interrupted").WithCause(err)
		}
		return Artifacts{}, b.Build()
	}

	built := filepath.Join(root, p.outputDir)
	if info, err := os.Stat(built); err != nil || !info.IsDir() {
		return fail("built output directory is missing", ErrNoBuiltOutput)
	}
	if err := os.MkdirAll(out.Dir, 0o750); err != nil {
		return fail("cannot create artifact directory", err)
	}

	n, err := writeArchive(ctx, out.SitePath, built, nil)
	if err != nil {
		return fail("cannot archive built site", err)
	}
	out.SiteFiles = n

	n, err = writeArchive(ctx, out.SourcePath, root, excludeSource)
	if err != nil {
		return fail("cannot archive project source", err)
	}
	out.SourceFiles = n

	out.SiteSize = p.size(&out, KindSite, out.SitePath)
	out.SourceSize = p.size(&out, KindSource, out.SourcePath)

	slog.Info("Packaged artifacts",
		logfields.RunID(runID),
		logfields.Path(out.Dir),
		slog.Int64("site_bytes", out.SiteSize),
		slog.Int64("source_bytes", out.SourceSize))
	return out, nil
}

func (p *Packager) size(out *Artifacts, kind, path string) int64 {
	info, err := p.stat(path)
	if err != nil {
		msg := fmt.Sprintf("cannot determine %s archive size: %v", kind, err)
		out.Warnings = append(out.Warnings, msg)
		slog.Warn("Archive size unknown", logfields.Path(path), logfields.Error(err))
		return 0
	}
	return info.Size()
}

// Prune removes run artifact directories whose modification time is older than
// retention and returns the removed paths.
func (p *Packager) Prune(now time.Time, retention time.Duration) ([]string, error) {
	entries, err := os.ReadDir(p.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < retention {
			continue
		}
		path := filepath.Join(p.dir, e.Name())
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

func excludeSource(rel string, d fs.DirEntry) bool {
	if excludedNames[d.Name()] {
		return true
	}
	for _, ex := range sourceExcludes {
		if rel == ex {
			return true
		}
	}
	return false
}

// writeArchive tars src into a gzip stream at dst and returns the number of
// regular files written. skip, when set, prunes entries by relative slash path.
func writeArchive(ctx context.Context, dst, src string, skip func(rel string, d fs.DirEntry) bool) (int, error) {
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640) // #nosec G304 -- dst is below the artifact dir
	if err != nil {
		return 0, err
	}
	gw := gzip.NewWriter(f)
	tw := tar.NewWriter(gw)

	files := 0
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if skip != nil && skip(rel, d) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		wrote, err := addEntry(tw, path, rel)
		if wrote {
			files++
		}
		return err
	})

	// close in order; every failure is reported
	errs := []error{walkErr, tw.Close(), gw.Close(), f.Close()}
	if err := errors.Join(errs...); err != nil {
		return 0, err
	}
	return files, nil
}

func addEntry(tw *tar.Writer, path, rel string) (bool, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return false, err
	}
	mode := info.Mode()
	switch {
	case mode.IsDir():
		return false, tw.WriteHeader(&tar.Header{
			Name:     rel + "/",
			Typeflag: tar.TypeDir,
			Mode:     int64(mode.Perm()),
			ModTime:  info.ModTime(),
		})
	case mode&os.ModeSymlink != 0:
		target, err := os.Readlink(path)
		if err != nil {
			return false, err
		}
		resolved := filepath.ToSlash(filepath.Clean(filepath.Join(filepath.Dir(rel), target)))
		if filepath.IsAbs(target) || resolved == ".." || strings.HasPrefix(resolved, "../") {
			slog.Warn("Skipping symlink leaving the archive root", logfields.Path(rel))
			return false, nil
		}
		return false, tw.WriteHeader(&tar.Header{
			Name:     rel,
			Typeflag: tar.TypeSymlink,
			Linkname: target,
			Mode:     int64(mode.Perm()),
			ModTime:  info.ModTime(),
		})
	case mode.IsRegular():
		if err := tw.WriteHeader(&tar.Header{
			Name:     rel,
			Typeflag: tar.TypeReg,
			Mode:     int64(mode.Perm()),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		}); err != nil {
			return false, err
		}
		r, err := os.Open(path) // #nosec G304 -- path comes from walking the workspace
		if err != nil {
			return false, err
		}
		_, copyErr := io.Copy(tw, r)
		_ = r.Close()
		return copyErr == nil, copyErr
	default:
		return false, nil
	}
}
