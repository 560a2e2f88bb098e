package image

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/google/uuid"
	"github.com/samber/do"
)

const maxSourceImageBytes = 50 << 20

// Client runs generation requests end to end and never returns an error:
// every outcome is a Result.
type Client struct {
	creds     *credential.Store
	store     *store.FileStore
	generator Generator
	publisher *store.Publisher
	keep      int
}

func NewClient(i *do.Injector) (*Client, error) {
	return &Client{
		creds:     do.MustInvoke[*credential.Store](i),
		store:     do.MustInvoke[*store.FileStore](i),
		generator: do.MustInvoke[Generator](i),
		publisher: do.MustInvoke[*store.Publisher](i),
		keep:      do.MustInvokeNamed[int](i, "keep"),
	}, nil
}

func (c *Client) Generate(ctx context.Context, p Params) Result {
	return c.run(ctx, OpGenerate, p)
}

// Edit changes an existing image. Without ImagePath the newest artifact in
// the output directory is used.
func (c *Client) Edit(ctx context.Context, p Params) Result {
	return c.run(ctx, OpEdit, p)
}

// Stream generates with partial frames enabled and stores the final image.
func (c *Client) Stream(ctx context.Context, p Params) Result {
	return c.run(ctx, OpStream, p)
}

func (c *Client) run(ctx context.Context, op Operation, p Params) Result {
	logger := log.FromContextOrDiscard(ctx).WithGroup("client").With("operation", op)

	record := c.creds.Load(ctx)
	resolved, err := Resolve(p, DefaultsFrom(record))
	if err != nil {
		logger.Info("rejected parameters", "error", err)
		return fail(FailureFrom(err))
	}
	if !record.Configured() {
		return fail(FailureFrom(fault.New(fault.InvalidCredential, "OpenAI API key is not configured")))
	}

	req := Request{Params: resolved}
	if op == OpEdit {
		if req, err = c.withSource(ctx, req); err != nil {
			return fail(FailureFrom(err))
		}
	}

	creds := credential.Credentials{APIKey: record.APIKey, Organization: record.Organization}
	var resp Response
	switch op {
	case OpEdit:
		resp, err = c.generator.Edit(ctx, creds, req)
	case OpStream:
		resp, err = c.generator.Stream(ctx, creds, req)
	default:
		resp, err = c.generator.Generate(ctx, creds, req)
	}
	if err != nil {
		logger.Warn("upstream request failed", "error", Redact(err.Error()))
		return fail(FailureFrom(err))
	}

	meta := store.Metadata{
		ID:            uuid.NewString(),
		Operation:     string(op),
		Prompt:        resolved.Prompt,
		RevisedPrompt: resp.RevisedPrompt,
		Size:          resolved.Size,
		Quality:       resolved.Quality,
		Background:    resolved.Background,
		Compression:   resolved.Compression,
		ResponseID:    resp.ID,
		SourceImage:   req.ImagePath,
	}
	path, err := c.store.Write(ctx, resp.Image, resolved.Format, meta)
	if err != nil {
		logger.Error("saving image", "error", err)
		return fail(FailureFrom(err))
	}

	if err := c.creds.TouchLastUsed(ctx); err != nil {
		logger.Warn("recording last use", "error", err)
	}
	c.store.Prune(ctx, c.keep)
	if written, err := c.store.ReadMetadata(path); err == nil {
		if err := c.publisher.Publish(ctx, path, written); err != nil {
			logger.Warn("publishing to mirror", "error", err)
		}
	}

	logger.Info("image saved", "path", path)
	return succeed(Success{
		Operation:     op,
		Path:          path,
		Filename:      filepath.Base(path),
		Prompt:        resolved.Prompt,
		RevisedPrompt: resp.RevisedPrompt,
		Size:          resolved.Size,
		Quality:       resolved.Quality,
		Format:        resolved.Format,
		Background:    resolved.Background,
		Compression:   resolved.Compression,
		ResponseID:    resp.ID,
		SourceImage:   req.ImagePath,
		PartialImages: resp.Partials,
	})
}

func (c *Client) withSource(ctx context.Context, req Request) (Request, error) {
	if req.ImagePath == "" {
		latest, ok := c.store.Latest(ctx)
		if !ok {
			return req, fault.New(fault.InvalidParameter, "no image_path given and no previous image to edit in %s", c.store.Dir())
		}
		req.ImagePath = latest
	}

	info, err := os.Stat(req.ImagePath)
	if err != nil {
		return req, fault.Wrap(fault.InvalidParameter, err, "source image %s cannot be read", req.ImagePath)
	}
	if info.Size() > maxSourceImageBytes {
		return req, fault.New(fault.InvalidParameter, "source image is larger than %d MB", maxSourceImageBytes>>20)
	}
	data, err := os.ReadFile(req.ImagePath)
	if err != nil {
		return req, fault.Wrap(fault.InvalidParameter, err, "source image %s cannot be read", req.ImagePath)
	}
	if len(data) == 0 {
		return req, fault.New(fault.InvalidParameter, "source image %s is empty", req.ImagePath)
	}

	req.Image = data
	req.ImageName = filepath.Base(req.ImagePath)
	return req, nil
}

// Describe reports the fixed upstream model together with the user's
// preference, for status output.
func (c *Client) Describe(ctx context.Context) string {
	return fmt.Sprintf("%s (preference model %s)", Model, c.creds.Load(ctx).Model)
}
