package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
)

var contentTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"webp": "image/webp",
}

// Publisher copies finished artifacts to the mirror bucket and refreshes the
// CDN. It never deletes remote objects; retention is local only.
type Publisher struct {
	Uploader    Uploader
	Invalidator Invalidator
	Prefix      string
}

func (p *Publisher) Publish(ctx context.Context, artifact string, meta Metadata) error {
	logger := log.FromContextOrDiscard(ctx).WithGroup("mirror").With("artifact", filepath.Base(artifact))

	data, err := os.ReadFile(artifact)
	if err != nil {
		return fmt.Errorf("read artifact: %w", err)
	}
	sidecar, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("encode metadata: %w", err)
	}

	name := filepath.Base(artifact)
	key := path.Join(p.Prefix, name)
	ext := filepath.Ext(name)
	if len(ext) > 0 {
		ext = ext[1:]
	}
	tags := meta.Tags()

	uploads := []UploadParams{
		{Name: key, Data: data, ContentType: contentTypes[ext], Metadata: tags},
		{Name: key + metadataExt, Data: sidecar, ContentType: "application/json", Metadata: tags},
	}
	for _, u := range uploads {
		if err := p.Uploader.Upload(ctx, u); err != nil {
			return fmt.Errorf("upload %s: %w", u.Name, err)
		}
	}

	if err := p.Invalidator.Invalidate(ctx, []string{"/" + key, "/" + key + metadataExt}); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	logger.Info("published artifact", "key", key)
	return nil
}
