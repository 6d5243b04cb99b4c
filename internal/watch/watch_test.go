package watch

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/packager"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/queue"
	"git.home.luguber.info/inful/sitebuilder/internal/workspace"
)

const jobDoc = `{
  "id": "bakery-1",
  "wizard": {
    "websiteType": {"category": "restaurant"},
    "businessInfo": {"name": "Corner Bakery"}
  },
  "records": [
    {"key": "home", "type": "home", "body": "# Fresh bread daily"}
  ]
}`

type recordingQueue struct {
	mu   sync.Mutex
	jobs []*queue.Job
	err  error
}

func (q *recordingQueue) Enqueue(job *queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *recordingQueue) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

func TestParseJobFile(t *testing.T) {
	job, err := ParseJobFile("bakery.json", []byte(jobDoc))
	require.NoError(t, err)
	assert.Equal(t, "bakery-1", job.ID)
	assert.Equal(t, "Corner Bakery", job.Request.Wizard.BusinessInfo.Name)
	require.Len(t, job.Request.Records, 1)
	assert.Equal(t, content.TypeHome, job.Request.Records[0].Type)

	job, err = ParseJobFile("spring-menu.json", []byte(`{"wizard":{"websiteType":{"category":"restaurant"},"businessInfo":{"name":"B"}}}`))
	require.NoError(t, err)
	assert.Equal(t, "spring-menu", job.ID, "file stem becomes the id")
}

func TestParseJobFile_Rejects(t *testing.T) {
	cases := map[string]string{
		"not json":      `{`,
		"unknown field": `{"wizard":{},"extra":1}`,
		"no wizard":     `{"id":"x"}`,
		"bad wizard":    `{"wizard":{"colour":"red"}}`,
		"bad id":        `{"id":"../up","wizard":{"websiteType":{"category":"x"},"businessInfo":{"name":"B"}}}`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseJobFile("job.json", []byte(doc))
			require.Error(t, err)
			assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation), err.Error())
		})
	}
}

func TestInbox_ScanAcceptsAndRejects(t *testing.T) {
	dir := t.TempDir()
	q := &recordingQueue{}
	in, err := NewInbox(dir, q)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(jobDoc), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte(`ignored`), 0o600))

	require.NoError(t, in.Scan())
	assert.Equal(t, 1, q.count())
	assert.FileExists(t, filepath.Join(dir, AcceptedDir, "good.json"))
	assert.FileExists(t, filepath.Join(dir, RejectedDir, "bad.json"))
	assert.FileExists(t, filepath.Join(dir, RejectedDir, "bad.json.error"))
	assert.FileExists(t, filepath.Join(dir, "notes.txt"))
}

func TestInbox_QueueRefusalRejects(t *testing.T) {
	dir := t.TempDir()
	in, err := NewInbox(dir, &recordingQueue{err: queue.ErrQueueFull})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "good.json"), []byte(jobDoc), 0o600))

	require.NoError(t, in.Scan())
	note, err := os.ReadFile(filepath.Join(dir, RejectedDir, "good.json.error"))
	require.NoError(t, err)
	assert.Contains(t, string(note), "run queue is full")
}

func TestInbox_RunPicksUpNewFiles(t *testing.T) {
	dir := t.TempDir()
	q := &recordingQueue{}
	in, err := NewInbox(dir, q)
	require.NoError(t, err)
	in.settle = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- in.Run(ctx) }()

	// Either the startup scan or the watcher sees it, depending on timing.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "late.json"), []byte(jobDoc), 0o600))
	require.Eventually(t, func() bool { return q.count() == 1 }, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.FileExists(t, filepath.Join(dir, AcceptedDir, "late.json"))
}

func TestResultWriter(t *testing.T) {
	p := packager.New(t.TempDir())
	w := NewResultWriter(p)
	job := &queue.Job{
		ID:     "run-9",
		Status: queue.StatusFailed,
		Error:  "boom",
		Result: &pipeline.BuildResult{RunID: "run-9", State: pipeline.StateFailed},
	}

	path, err := w.Write(job)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(p.RunDir("run-9"), packager.ResultFileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "failed", doc["job"]["status"])
	assert.Equal(t, "FAILED", doc["result"]["state"])
}

func TestJanitor_Sweep(t *testing.T) {
	base := t.TempDir()
	mgr := workspace.NewManager(filepath.Join(base, "work"))
	pkg := packager.New(filepath.Join(base, "artifacts"))

	old := time.Now().Add(-48 * time.Hour)
	retained, err := mgr.Create("retained")
	require.NoError(t, err)
	require.NoError(t, retained.Retain(old))
	_, err = mgr.Create("fresh")
	require.NoError(t, err)

	oldRun := pkg.RunDir("old-run")
	require.NoError(t, os.MkdirAll(oldRun, 0o750))
	require.NoError(t, os.Chtimes(oldRun, old, old))
	require.NoError(t, os.MkdirAll(pkg.RunDir("new-run"), 0o750))

	j := NewJanitor(mgr, pkg, JanitorPolicy{RetainFailed: 24 * time.Hour, StaleAfter: 24 * time.Hour, ArtifactRetention: 24 * time.Hour})
	sw, err := j.Sweep()
	require.NoError(t, err)
	assert.Equal(t, []string{retained.Root()}, sw.Workspaces)
	assert.Equal(t, []string{oldRun}, sw.Artifacts)
	assert.DirExists(t, filepath.Join(mgr.BaseDir(), "fresh"))
	assert.DirExists(t, pkg.RunDir("new-run"))
}

func TestJanitor_StartStop(t *testing.T) {
	base := t.TempDir()
	j := NewJanitor(workspace.NewManager(base), packager.New(base), JanitorPolicy{})
	require.NoError(t, j.Start(time.Hour))
	require.NoError(t, j.Stop())
	require.NoError(t, NewJanitor(nil, nil, JanitorPolicy{}).Stop())
}
