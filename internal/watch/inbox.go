// Package watch turns job files dropped into a directory into pipeline runs and
// periodically removes expired workspaces and artifacts.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
	"git.home.luguber.info/inful/sitebuilder/internal/queue"
)

// Subdirectories of the inbox that receive handled job files.
const (
	AcceptedDir = "accepted"
	RejectedDir = "rejected"
)

// Enqueuer accepts parsed jobs. *queue.Queue implements it.
type Enqueuer interface {
	Enqueue(job *queue.Job) error
}

// Inbox watches a directory for *.json job files. A file is picked up once it
// has not been written for the settle delay; it is then moved to accepted/ or,
// with a .error note, to rejected/.
type Inbox struct {
	dir    string
	queue  Enqueuer
	settle time.Duration

	mu     sync.Mutex
	timers map[string]*time.Timer
	wg     sync.WaitGroup
}

// NewInbox creates an inbox over dir, creating it when missing.
func NewInbox(dir string, q Enqueuer) (*Inbox, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve inbox path: %w", err)
	}
	for _, d := range []string{abs, filepath.Join(abs, AcceptedDir), filepath.Join(abs, RejectedDir)} {
		if err := os.MkdirAll(d, 0o750); err != nil {
			return nil, fmt.Errorf("create inbox directory: %w", err)
		}
	}
	return &Inbox{dir: abs, queue: q, settle: 250 * time.Millisecond, timers: make(map[string]*time.Timer)}, nil
}

// Dir returns the watched directory.
func (in *Inbox) Dir() string { return in.dir }

// Run watches until ctx ends. Files already present are picked up first.
func (in *Inbox) Run(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(in.dir); err != nil {
		return fmt.Errorf("failed to watch inbox %s: %w", in.dir, err)
	}
	slog.Info("Watching job inbox", logfields.Path(in.dir))

	if err := in.Scan(); err != nil {
		slog.Warn("Initial inbox scan failed", logfields.Path(in.dir), logfields.Error(err))
	}

	defer in.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 || !isJobFile(ev.Name) {
				continue
			}
			in.schedule(ev.Name)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			slog.Error("Inbox watcher error", logfields.Error(err))
		}
	}
}

// Scan handles every job file currently in the inbox.
func (in *Inbox) Scan() error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if !e.IsDir() && isJobFile(e.Name()) {
			in.handle(filepath.Join(in.dir, e.Name()))
		}
	}
	return nil
}

func isJobFile(name string) bool {
	base := filepath.Base(name)
	return strings.EqualFold(filepath.Ext(base), ".json") && !strings.HasPrefix(base, ".")
}

// schedule (re)starts the settle timer of path.
func (in *Inbox) schedule(path string) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if t, ok := in.timers[path]; ok && t.Stop() {
		in.wg.Done()
	}
	in.wg.Add(1)
	in.timers[path] = time.AfterFunc(in.settle, func() {
		defer in.wg.Done()
		in.mu.Lock()
		delete(in.timers, path)
		in.mu.Unlock()
		in.handle(path)
	})
}

func (in *Inbox) stopTimers() {
	in.mu.Lock()
	for path, t := range in.timers {
		if t.Stop() {
			in.wg.Done()
		}
		delete(in.timers, path)
	}
	in.mu.Unlock()
	in.wg.Wait()
}

// handle parses, enqueues and files away one job file.
func (in *Inbox) handle(path string) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is inside the inbox
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	name := filepath.Base(path)
	if err == nil {
		var job *queue.Job
		if job, err = ParseJobFile(name, data); err == nil {
			err = in.queue.Enqueue(job)
		}
		if err == nil {
			slog.Info("Accepted job file", logfields.Path(name), logfields.RunID(job.ID))
			in.move(path, AcceptedDir, "")
			return
		}
	}
	slog.Warn("Rejected job file", logfields.Path(name), logfields.Error(err))
	in.move(path, RejectedDir, err.Error())
}

func (in *Inbox) move(path, sub, note string) {
	dest := filepath.Join(in.dir, sub, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		slog.Error("Cannot move job file", logfields.Path(path), logfields.Error(err))
		return
	}
	if note != "" {
		if err := os.WriteFile(dest+".error", []byte(note+"\n"), 0o600); err != nil {
			slog.Warn("Cannot write rejection note", logfields.Path(dest), logfields.Error(err))
		}
	}
}
