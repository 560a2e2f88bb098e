package feed

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/gorilla/feeds"
	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

// FileName carries the store prefix so Export never replaces a file the
// store did not name.
const FileName = store.Prefix + "-feed.xml"

// Entry is one artifact as seen by the history views.
type Entry struct {
	Path     string
	Metadata store.Metadata
	Updated  time.Time
}

type Generator struct {
	store *store.FileStore
}

func NewGenerator(i *do.Injector) (*Generator, error) {
	return &Generator{store: do.MustInvoke[*store.FileStore](i)}, nil
}

// Entries returns up to limit artifacts newest first, with their metadata.
// Missing or unreadable sidecars fall back to the file's modification time.
func (g *Generator) Entries(ctx context.Context, limit int) ([]Entry, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")

	paths := g.store.List(ctx)
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	entries := make([]Entry, len(paths))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for idx, path := range paths {
		idx, path := idx, path
		group.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			entry := Entry{Path: path}
			meta, err := g.store.ReadMetadata(path)
			if err != nil {
				log.Debug("metadata unavailable", "file", filepath.Base(path), "error", err)
				meta = store.Metadata{Filename: filepath.Base(path)}
			}
			entry.Metadata = meta
			entry.Updated = meta.CreatedAt
			if entry.Updated.IsZero() {
				if info, err := os.Stat(path); err == nil {
					entry.Updated = info.ModTime().UTC()
				}
			}
			entries[idx] = entry
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (g *Generator) Generate(ctx context.Context) ([]byte, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("feed")
	log.Info("generating rss feed")

	entries, err := g.Entries(ctx, 0)
	if err != nil {
		return nil, err
	}

	feed := feeds.Feed{
		Title:       "Generated images",
		Description: "Images generated with gpt-image-1",
		Link:        &feeds.Link{Href: fileURL(g.store.Dir())},
		Updated:     time.Now(),
	}
	for _, e := range entries {
		title := e.Metadata.Prompt
		if title == "" {
			title = e.Metadata.Filename
		}
		feed.Add(&feeds.Item{
			Id:          e.Metadata.ID,
			Title:       title,
			Description: fmt.Sprintf("%s:%s:%s", e.Metadata.Size, e.Metadata.Quality, e.Metadata.Format),
			Link:        &feeds.Link{Href: fileURL(e.Path)},
			Updated:     e.Updated,
			Created:     e.Updated,
		})
	}

	feed.Sort(func(a, b *feeds.Item) bool {
		return a.Updated.After(b.Updated)
	})
	rss, err := feed.ToRss()
	return []byte(rss), err
}

// Export writes the feed into the output directory and returns its path.
func (g *Generator) Export(ctx context.Context) (string, error) {
	rss, err := g.Generate(ctx)
	if err != nil {
		return "", err
	}
	path := filepath.Join(g.store.Dir(), FileName)
	if err := os.WriteFile(path, rss, 0o644); err != nil {
		return "", fmt.Errorf("write feed: %w", err)
	}
	return path, nil
}

func fileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(path)}).String()
}
