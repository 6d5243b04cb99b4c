package hugo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/markdown"
)

// DefaultContentWorkers bounds parallel writes when no worker count is configured.
const DefaultContentWorkers = 4

// ContentWriter materializes content records into a project tree.
type ContentWriter struct {
	workers int
}

// NewContentWriter returns a writer using up to workers goroutines.
func NewContentWriter(workers int) *ContentWriter {
	if workers <= 0 {
		workers = DefaultContentWorkers
	}
	return &ContentWriter{workers: workers}
}

// Write processes every record and returns one tracking entry per record, in
// input order. A failing record never stops the others. Records resolving to
// the same path are written one after another in submission order, so the last
// one wins; distinct paths are written in parallel.
func (w *ContentWriter) Write(ctx context.Context, root string, records []content.Record) []content.TrackingEntry {
	entries := make([]content.TrackingEntry, len(records))

	groups := make(map[string][]int)
	var order []string
	for i, r := range records {
		entries[i] = content.TrackingEntry{Key: r.Key, Type: r.Type}
		rel, err := content.ResolvePath(r)
		if err != nil {
			entries[i].Error = contentError(r, "cannot resolve target path", err).Error()
			logContentFailure(entries[i])
			continue
		}
		entries[i].Path = rel
		if _, ok := groups[rel]; !ok {
			order = append(order, rel)
		}
		groups[rel] = append(groups[rel], i)
	}

	var g errgroup.Group
	g.SetLimit(w.workers)
	for _, rel := range order {
		idxs := groups[rel]
		g.Go(func() error {
			written := false
			for _, i := range idxs {
				entry := &entries[i]
				n, err := w.writeOne(ctx, root, records[i], rel)
				if err != nil {
					entry.Error = err.Error()
					logContentFailure(*entry)
					continue
				}
				entry.Success, entry.Bytes = true, n
				if written {
					entry.Overwrote = true
					slog.Warn("Content path written more than once; last write wins",
						logfields.Path(rel), slog.String("key", records[i].Key))
				}
				written = true
			}
			return nil
		})
	}
	_ = g.Wait()
	return entries
}

func (w *ContentWriter) writeOne(ctx context.Context, root string, r content.Record, rel string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, ferrors.CanceledError("content writing interrupted").WithCause(err).Build()
	}
	if r.Body == "" {
		return 0, contentError(r, "record has an empty payload", ErrEmptyPayload)
	}

	data := []byte(r.Body)
	if r.Type.IsMarkdown() {
		var err error
		if data, err = renderPage(r); err != nil {
			return 0, contentError(r, "cannot render front matter", err)
		}
	}

	dst := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return 0, contentError(r, "cannot create target directory", err)
	}
	if err := os.WriteFile(dst, data, 0o640); err != nil {
		return 0, contentError(r, "cannot write target file", err)
	}
	return int64(len(data)), nil
}

// renderPage builds the front matter of a Markdown record. Record params come
// first so the structural fields below always win.
func renderPage(r content.Record) ([]byte, error) {
	fields := make(map[string]any, len(r.Params)+6)
	for k, v := range r.Params {
		fields[k] = v
	}
	fields["title"] = pageTitle(r)
	fields["draft"] = false
	fields["contentType"] = string(r.Type)
	if r.Date != nil {
		fields["date"] = r.Date.UTC()
	}
	if r.Weight != 0 {
		fields["weight"] = r.Weight
	}
	fp, err := frontmatter.Fingerprint(fields, r.Body)
	if err != nil {
		return nil, err
	}
	fields[frontmatter.FingerprintField] = fp
	return frontmatter.Render(fields, r.Body)
}

// pageTitle prefers the explicit title, then the first heading of the body,
// then a label derived from the last key segment.
func pageTitle(r content.Record) string {
	if t := strings.TrimSpace(r.Title); t != "" {
		return t
	}
	if t := markdown.Title([]byte(r.Body)); t != "" {
		return t
	}
	if r.Type == content.TypeHome {
		return "Home"
	}
	base := strings.TrimSuffix(strings.Trim(r.Key, "/"), "/_index")
	return label(content.Slugify(path.Base(base)))
}

func contentError(r content.Record, msg string, cause error) error {
	return ferrors.ContentWriteError(fmt.Sprintf("%s %q: %s", r.Type, r.Key, msg)).
		WithCause(cause).
		WithContext("key", r.Key).
		Build()
}

func logContentFailure(e content.TrackingEntry) {
	slog.Warn("Content record failed",
		slog.String("key", e.Key),
		logfields.ContentType(string(e.Type)),
		logfields.Path(e.Path),
		slog.String("reason", e.Error))
}

// Failed counts unsuccessful entries.
func Failed(entries []content.TrackingEntry) int {
	n := 0
	for _, e := range entries {
		if !e.Success {
			n++
		}
	}
	return n
}
