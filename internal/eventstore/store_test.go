package eventstore

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRunID = "run-123"

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestEventStoreAppendAndRetrieve(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	at := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, testRunID, "TestEvent", at, []byte(`{"test":"data"}`), map[string]string{"key": "value"}))
	require.NoError(t, store.Append(ctx, "other", "TestEvent", at, []byte(`{}`), nil))

	events, err := store.ByRunID(ctx, testRunID)
	require.NoError(t, err)
	require.Len(t, events, 1)

	e := events[0]
	assert.Equal(t, testRunID, e.RunID())
	assert.Equal(t, "TestEvent", e.Type())
	assert.JSONEq(t, `{"test":"data"}`, string(e.Payload()))
	assert.Equal(t, "value", e.Metadata()["key"])
	assert.True(t, at.Equal(e.Timestamp()))
	assert.Positive(t, e.ID())
}

func TestEventStoreRange(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	for i := range 3 {
		at := base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, store.Append(ctx, testRunID, "Tick", at, []byte(`{}`), nil))
	}

	events, err := store.Range(ctx, base.Add(30*time.Minute), base.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestEventStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Append(t.Context(), testRunID, "Tick", time.Now(), []byte(`{}`), nil))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = reopened.Close() }()
	events, err := reopened.ByRunID(t.Context(), testRunID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestEventStoreClosed(t *testing.T) {
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	err = store.Append(t.Context(), testRunID, "Tick", time.Now(), []byte(`{}`), nil)
	require.ErrorIs(t, err, ErrClosed)
	_, err = store.ByRunID(t.Context(), testRunID)
	require.ErrorIs(t, err, ErrClosed)
}

func TestEventStoreRuns(t *testing.T) {
	store := newTestStore(t)
	ctx := t.Context()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, store.Append(ctx, "old", "Tick", base, []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "first", "Tick", base.Add(time.Hour), []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "second", "Tick", base.Add(2*time.Hour), []byte(`{}`), nil))
	require.NoError(t, store.Append(ctx, "first", "Tick", base.Add(3*time.Hour), []byte(`{}`), nil))

	ids, err := store.Runs(ctx, base.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, ids)

	require.NoError(t, store.Close())
	_, err = store.Runs(ctx, base)
	require.ErrorIs(t, err, ErrClosed)
}
