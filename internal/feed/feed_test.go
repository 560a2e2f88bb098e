package feed

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const onePixelPNG = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

func setupTestFeed(t *testing.T, prompts ...string) (*Generator, []string) {
	t.Helper()
	s, err := store.NewFileStore(t.TempDir())
	require.NoError(t, err)

	var paths []string
	for i, prompt := range prompts {
		created := time.Date(2025, 5, i+1, 0, 0, 0, 0, time.UTC)
		path, err := s.Write(context.Background(), onePixelPNG, "png", store.Metadata{
			ID:        prompt,
			Prompt:    prompt,
			CreatedAt: created,
		})
		require.NoError(t, err)
		paths = append(paths, path)
		time.Sleep(2 * time.Millisecond)
	}
	return &Generator{store: s}, paths
}

func TestGenerator_Entries(t *testing.T) {
	g, paths := setupTestFeed(t, "first", "second", "third")
	ctx := context.Background()

	entries, err := g.Entries(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, paths[2], entries[0].Path)
	assert.Equal(t, "third", entries[0].Metadata.Prompt)
	assert.Equal(t, "first", entries[2].Metadata.Prompt)

	limited, err := g.Entries(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGenerator_EntriesWithoutMetadata(t *testing.T) {
	g, paths := setupTestFeed(t, "lonely")
	require.NoError(t, os.Remove(paths[0]+".json"))

	entries, err := g.Entries(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(paths[0]), entries[0].Metadata.Filename)
	assert.False(t, entries[0].Updated.IsZero())
}

func TestGenerator_Export(t *testing.T) {
	g, _ := setupTestFeed(t, "a fox", "an owl")
	ctx := context.Background()

	path, err := g.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(g.store.Dir(), FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "<rss")
	assert.Contains(t, string(data), "a fox")
	assert.Contains(t, string(data), "an owl")
	assert.Contains(t, string(data), "file://")

	assert.Len(t, g.store.List(ctx), 2, "feed file is not an artifact")
}

func TestGenerator_ExportLeavesForeignFeedAlone(t *testing.T) {
	g, _ := setupTestFeed(t, "a fox")
	foreign := filepath.Join(g.store.Dir(), "feed.xml")
	require.NoError(t, os.WriteFile(foreign, []byte("mine"), 0o644))

	path, err := g.Export(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, foreign, path)
	assert.False(t, store.IsArtifact(filepath.Base(path)))

	data, err := os.ReadFile(foreign)
	require.NoError(t, err)
	assert.Equal(t, "mine", string(data))
}

func TestGenerator_EmptyDirectory(t *testing.T) {
	g, _ := setupTestFeed(t)

	rss, err := g.Generate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, string(rss), "Generated images")
}
