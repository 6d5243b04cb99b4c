package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/sitebuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/sitebuilder/internal/pipeline"
	"git.home.luguber.info/inful/sitebuilder/internal/retry"
	"git.home.luguber.info/inful/sitebuilder/internal/wizard"
)

type runnerFunc func(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error)

func (f runnerFunc) Run(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
	return f(ctx, req)
}

func succeed(_ context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
	return &pipeline.BuildResult{RunID: req.RunID, Success: true, State: pipeline.StateComplete}, nil
}

func newJob(id string) *Job {
	return &Job{ID: id, Source: "test", Request: pipeline.Request{Wizard: &wizard.WizardData{}}}
}

// collect returns a completion hook and a function waiting for n jobs.
func collect(t *testing.T, n int) (func(*Job), func() []*Job) {
	t.Helper()
	var mu sync.Mutex
	var done []*Job
	ch := make(chan struct{}, n)
	hook := func(j *Job) {
		mu.Lock()
		done = append(done, j)
		mu.Unlock()
		ch <- struct{}{}
	}
	wait := func() []*Job {
		for range n {
			select {
			case <-ch:
			case <-time.After(5 * time.Second):
				t.Fatal("timed out waiting for jobs")
			}
		}
		mu.Lock()
		defer mu.Unlock()
		return append([]*Job(nil), done...)
	}
	return hook, wait
}

func TestQueue_RunsJobsWithBoundedConcurrency(t *testing.T) {
	var running, peak atomic.Int32
	runner := runnerFunc(func(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return succeed(ctx, req)
	})

	hook, wait := collect(t, 6)
	q := New(runner, 2, 10, WithCompletion(hook))
	q.Start(t.Context())
	defer q.Stop()

	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		require.NoError(t, q.Enqueue(newJob(id)))
	}
	jobs := wait()
	require.Len(t, jobs, 6)
	for _, j := range jobs {
		assert.Equal(t, StatusCompleted, j.Status)
		assert.Equal(t, j.ID, j.Result.RunID, "job id becomes the run id")
		assert.Equal(t, 1, j.Attempts)
	}
	assert.LessOrEqual(t, peak.Load(), int32(2))

	snap, ok := q.Snapshot("c")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, snap.Status)
}

func TestQueue_RejectsInvalidAndFull(t *testing.T) {
	block := make(chan struct{})
	q := New(runnerFunc(func(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
		<-block
		return succeed(ctx, req)
	}), 1, 1)

	require.ErrorIs(t, q.Enqueue(&Job{ID: "x"}), ErrInvalidJob)
	require.ErrorIs(t, q.Enqueue(nil), ErrInvalidJob)

	require.NoError(t, q.Enqueue(newJob("one")))
	require.ErrorIs(t, q.Enqueue(newJob("one")), ErrDuplicateID)
	require.ErrorIs(t, q.Enqueue(newJob("two")), ErrQueueFull)
	assert.Equal(t, 1, q.Length())

	close(block)
	q.Stop()
	require.ErrorIs(t, q.Enqueue(newJob("three")), ErrStopped)
}

func TestQueue_RetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	runner := runnerFunc(func(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
		if calls.Add(1) < 3 {
			return &pipeline.BuildResult{RunID: req.RunID, State: pipeline.StateFailed},
				ferrors.ThemeInstallError("clone failed").Build()
		}
		return succeed(ctx, req)
	})

	hook, wait := collect(t, 1)
	q := New(runner, 1, 1,
		WithCompletion(hook),
		WithRetryPolicy(retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 2)))
	q.Start(t.Context())
	defer q.Stop()

	require.NoError(t, q.Enqueue(newJob("flaky")))
	job := wait()[0]
	assert.Equal(t, StatusCompleted, job.Status)
	assert.Equal(t, 3, job.Attempts)
}

func TestQueue_DoesNotRetryRetainedOrPermanentFailures(t *testing.T) {
	cases := map[string]struct {
		res *pipeline.BuildResult
		err error
	}{
		"validation": {&pipeline.BuildResult{}, ferrors.ValidationError("bad").Build()},
		"retained": {
			&pipeline.BuildResult{Metadata: pipeline.Metadata{RetainedPath: "/tmp/ws"}},
			ferrors.PackagingError("disk full").Build(),
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var calls atomic.Int32
			runner := runnerFunc(func(context.Context, pipeline.Request) (*pipeline.BuildResult, error) {
				calls.Add(1)
				return tc.res, tc.err
			})
			hook, wait := collect(t, 1)
			q := New(runner, 1, 1,
				WithCompletion(hook),
				WithRetryPolicy(retry.NewPolicy(retry.ModeFixed, time.Millisecond, time.Millisecond, 3)))
			q.Start(t.Context())
			defer q.Stop()

			require.NoError(t, q.Enqueue(newJob("j")))
			job := wait()[0]
			assert.Equal(t, StatusFailed, job.Status)
			assert.NotEmpty(t, job.Error)
			assert.Equal(t, int32(1), calls.Load())
		})
	}
}

func TestQueue_StopCancelsRunningJob(t *testing.T) {
	started := make(chan struct{})
	runner := runnerFunc(func(ctx context.Context, req pipeline.Request) (*pipeline.BuildResult, error) {
		close(started)
		<-ctx.Done()
		return &pipeline.BuildResult{RunID: req.RunID, State: pipeline.StateFailed},
			ferrors.CanceledError("run canceled").WithCause(ctx.Err()).Build()
	})
	hook, wait := collect(t, 1)
	q := New(runner, 1, 1, WithCompletion(hook))
	q.Start(context.Background())
	require.NoError(t, q.Enqueue(newJob("long")))
	<-started

	q.Stop()
	job := wait()[0]
	assert.Equal(t, StatusCanceled, job.Status)
}
