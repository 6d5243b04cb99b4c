package workspace

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// RetainedMarker is written into a workspace kept for inspection after a failed run.
const RetainedMarker = ".retained"

var (
	// ErrExists is returned when a workspace for the run identifier already exists.
	ErrExists = errors.New("workspace already exists")
	// ErrInvalidRunID is returned for identifiers that are not a single path segment.
	ErrInvalidRunID = errors.New("invalid run identifier")
)

// Manager creates and prunes workspaces below a base directory.
type Manager struct {
	baseDir string
}

// NewManager creates a workspace manager. An empty baseDir uses the OS temp directory.
func NewManager(baseDir string) *Manager {
	if baseDir == "" {
		baseDir = filepath.Join(os.TempDir(), "sitebuilder-work")
	}
	return &Manager{baseDir: baseDir}
}

// BaseDir returns the directory holding all workspaces.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// Create makes the workspace for runID. It fails with ErrExists if the directory is
// already present, which keeps workspaces exclusively owned by one run.
func (m *Manager) Create(runID string) (*Workspace, error) {
	if err := ValidateRunID(runID); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(m.baseDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create workspace base directory: %w", err)
	}
	root := filepath.Join(m.baseDir, runID)
	if err := os.Mkdir(root, 0o750); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", ErrExists, root)
		}
		return nil, fmt.Errorf("failed to create workspace directory: %w", err)
	}
	slog.Info("Created workspace", logfields.RunID(runID), logfields.Path(root))
	return &Workspace{runID: runID, root: root}, nil
}

// Prune removes retained workspaces older than retainFor and unmarked workspaces
// older than staleAfter. It returns the removed paths. Zero durations disable the
// respective rule.
func (m *Manager) Prune(now time.Time, retainFor, staleAfter time.Duration) ([]string, error) {
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}

	var removed []string
	var errs []error
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		root := filepath.Join(m.baseDir, e.Name())
		limit := staleAfter
		stamp, retained := retainedAt(root)
		if retained {
			limit = retainFor
		} else if info, infoErr := e.Info(); infoErr == nil {
			stamp = info.ModTime()
		} else {
			continue
		}
		if limit <= 0 || now.Sub(stamp) < limit {
			continue
		}
		if err := os.RemoveAll(root); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, root)
	}
	return removed, errors.Join(errs...)
}

func retainedAt(root string) (time.Time, bool) {
	data, err := os.ReadFile(filepath.Join(root, RetainedMarker))
	if err != nil {
		return time.Time{}, false
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(string(data)))
	if err != nil {
		return time.Time{}, false
	}
	return ts, true
}

// ValidateRunID ensures the identifier can be used as a single directory name.
func ValidateRunID(runID string) error {
	if runID == "" || runID == "." || runID == ".." ||
		strings.ContainsAny(runID, `/\`) || filepath.Base(runID) != runID {
		return fmt.Errorf("%w: %q", ErrInvalidRunID, runID)
	}
	return nil
}

// Workspace is the pipeline-private directory tree of one run.
type Workspace struct {
	runID string
	root  string

	mu     sync.Mutex
	closed bool
}

// RunID returns the identifier the workspace is keyed by.
func (w *Workspace) RunID() string {
	return w.runID
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Path joins elem onto the workspace root.
func (w *Workspace) Path(elem ...string) string {
	return filepath.Join(append([]string{w.root}, elem...)...)
}

// CreateSubdir creates a directory within the workspace.
func (w *Workspace) CreateSubdir(name string) (string, error) {
	subdir := w.Path(name)
	if err := os.MkdirAll(subdir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create subdirectory %s: %w", name, err)
	}
	return subdir, nil
}

// Cleanup removes the workspace tree. Calling it more than once is a no-op.
func (w *Workspace) Cleanup() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := os.RemoveAll(w.root); err != nil {
		return fmt.Errorf("failed to cleanup workspace: %w", err)
	}
	w.closed = true
	slog.Info("Cleaned up workspace", logfields.RunID(w.runID), logfields.Path(w.root))
	return nil
}

// Retain keeps the tree for inspection and stamps it so Prune can expire it later.
func (w *Workspace) Retain(now time.Time) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	if err := os.WriteFile(w.Path(RetainedMarker), []byte(now.UTC().Format(time.RFC3339)+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to mark workspace retained: %w", err)
	}
	w.closed = true
	slog.Warn("Retained workspace for inspection", logfields.RunID(w.runID), logfields.Path(w.root))
	return nil
}

// Closed reports whether the workspace was cleaned up or retained.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
