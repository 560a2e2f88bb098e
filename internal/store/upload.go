package store

import (
	"context"

	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
)

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// NopUploader is used when no mirror bucket is configured.
type NopUploader struct{}

func (NopUploader) Upload(ctx context.Context, params UploadParams) error {
	log.FromContextOrDiscard(ctx).WithGroup("mirror").Debug("mirror disabled, skipping", "name", params.Name)
	return nil
}
