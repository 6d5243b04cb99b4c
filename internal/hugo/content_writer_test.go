package hugo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/sitebuilder/internal/content"
	"git.home.luguber.info/inful/sitebuilder/internal/frontmatter"
)

func readPage(t *testing.T, root, rel string) (map[string]any, string) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	require.NoError(t, err)
	fields, body, err := frontmatter.Split(data)
	require.NoError(t, err)
	return fields, string(body)
}

func TestContentWriter_CollidingPathsLastWriteWins(t *testing.T) {
	root := t.TempDir()
	records := []content.Record{
		{Key: "about/_index", Type: content.TypePage, Body: "First version"},
		{Key: "about/_index", Type: content.TypePage, Body: "Second version"},
	}

	entries := NewContentWriter(4).Write(context.Background(), root, records)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.True(t, e.Success)
		assert.Equal(t, "content/about/_index.md", e.Path)
		assert.Positive(t, e.Bytes)
	}
	assert.False(t, entries[0].Overwrote)
	assert.True(t, entries[1].Overwrote)

	_, body := readPage(t, root, "content/about/_index.md")
	assert.Equal(t, "Second version\n", body)
}

func TestContentWriter_IsolatesFailures(t *testing.T) {
	root := t.TempDir()
	records := []content.Record{
		{Key: "home", Type: content.TypeHome, Body: "# Welcome"},
		{Key: "menu", Type: content.TypePage, Body: ""},
		{Key: "opening-day", Type: content.TypePost, Body: "We are open"},
		{Key: "../escape", Type: content.TypePage, Body: "nope"},
		{Key: "hours", Type: content.TypeData, Body: "monday: closed\n"},
	}

	entries := NewContentWriter(2).Write(context.Background(), root, records)
	require.Len(t, entries, len(records))
	assert.Equal(t, 2, Failed(entries))

	for i, e := range entries {
		assert.Equal(t, records[i].Key, e.Key, "entries keep input order")
	}
	assert.False(t, entries[1].Success)
	assert.Contains(t, entries[1].Error, "empty payload")
	assert.Equal(t, "content/menu.md", entries[1].Path)
	assert.NoFileExists(t, filepath.Join(root, "content", "menu.md"))

	assert.False(t, entries[3].Success)
	assert.Empty(t, entries[3].Path)

	assert.True(t, entries[2].Success)
	assert.FileExists(t, filepath.Join(root, "content", "posts", "opening-day.md"))
}

func TestContentWriter_FrontMatter(t *testing.T) {
	root := t.TempDir()
	date := time.Date(2026, 3, 14, 8, 0, 0, 0, time.UTC)
	records := []content.Record{
		{Key: "Grand Opening", Type: content.TypePost, Body: "## Doors open at nine\n\nSee you.", Date: &date, Weight: 3,
			Params: map[string]any{"title": "ignored", "featured": true}},
		{Key: "teeth-whitening", Type: content.TypeService, Body: "Bright results."},
	}
	entries := NewContentWriter(1).Write(context.Background(), root, records)
	require.Equal(t, 0, Failed(entries))

	fields, body := readPage(t, root, "content/posts/grand-opening.md")
	assert.Equal(t, "Doors open at nine", fields["title"])
	assert.Equal(t, false, fields["draft"])
	assert.Equal(t, true, fields["featured"])
	assert.Equal(t, 3, fields["weight"])
	assert.Equal(t, "post", fields["contentType"])
	assert.Equal(t, "2026-03-14T08:00:00Z", fields["date"])
	assert.NotEmpty(t, fields[frontmatter.FingerprintField])
	assert.True(t, strings.HasPrefix(body, "## Doors open"))

	fields, _ = readPage(t, root, "content/services/teeth-whitening.md")
	assert.Equal(t, "Teeth Whitening", fields["title"])
	_, hasWeight := fields["weight"]
	assert.False(t, hasWeight)
}

func TestContentWriter_VerbatimTypes(t *testing.T) {
	root := t.TempDir()
	records := []content.Record{
		{Key: "hours", Type: content.TypeData, Body: "monday: closed"},
		{Key: "robots.txt", Type: content.TypeStatic, Body: "User-agent: *\n"},
	}
	entries := NewContentWriter(0).Write(context.Background(), root, records)
	require.Equal(t, 0, Failed(entries))

	data, err := os.ReadFile(filepath.Join(root, "data", "hours.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "monday: closed", string(data))
	assert.Equal(t, int64(len("monday: closed")), entries[0].Bytes)

	data, err = os.ReadFile(filepath.Join(root, "static", "robots.txt"))
	require.NoError(t, err)
	assert.Equal(t, "User-agent: *\n", string(data))
}

func TestContentWriter_ManyRecordsDeterministic(t *testing.T) {
	var records []content.Record
	for i := range 60 {
		// every third record collides with its predecessor group
		key := fmt.Sprintf("page-%d", i/3)
		records = append(records, content.Record{Key: key, Type: content.TypePage, Body: fmt.Sprintf("payload %d", i)})
	}

	for range 3 {
		root := t.TempDir()
		entries := NewContentWriter(8).Write(context.Background(), root, records)
		require.Len(t, entries, 60)
		for g := range 20 {
			_, body := readPage(t, root, fmt.Sprintf("content/page-%d.md", g))
			assert.Equal(t, fmt.Sprintf("payload %d\n", g*3+2), body)
			assert.True(t, entries[g*3+2].Overwrote)
			assert.False(t, entries[g*3].Overwrote)
		}
	}
}

func TestContentWriter_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	records := []content.Record{{Key: "home", Type: content.TypeHome, Body: "x"}}
	entries := NewContentWriter(1).Write(ctx, t.TempDir(), records)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Success)
	assert.Contains(t, entries[0].Error, "interrupted")
}
