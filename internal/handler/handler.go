package handler

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/feed"
	"github.com/AiondaDotCom/mcp-openai-image/internal/image"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/AiondaDotCom/mcp-openai-image/internal/store"
	"github.com/samber/do"
	"github.com/samber/lo"
)

const defaultListLimit = 10

// Response is the text rendering of a tool call.
type Response struct {
	Text    string
	IsError bool
}

type call func(context.Context, map[string]any) Response

type Handler struct {
	creds  *credential.Store
	client *image.Client
	store  *store.FileStore
	feed   *feed.Generator
	calls  map[string]call
}

func NewHandler(i *do.Injector) (*Handler, error) {
	h := &Handler{
		creds:  do.MustInvoke[*credential.Store](i),
		client: do.MustInvoke[*image.Client](i),
		store:  do.MustInvoke[*store.FileStore](i),
		feed:   do.MustInvoke[*feed.Generator](i),
	}
	h.calls = map[string]call{
		"generate_image":   h.generate(image.OpGenerate),
		"edit_image":       h.generate(image.OpEdit),
		"stream_image":     h.generate(image.OpStream),
		"configure_openai": h.configure,
		"set_model":        h.setModel,
		"get_status":       h.status,
		"list_images":      h.listImages,
		"export_feed":      h.exportFeed,
	}
	return h, nil
}

func (h *Handler) Tools() []Tool {
	return catalog
}

func (h *Handler) Call(ctx context.Context, name string, args map[string]any) Response {
	log := log.FromContextOrDiscard(ctx).WithGroup("Handler").With("tool", name)
	log.Info("handling tool call")

	fn, ok := h.calls[name]
	if !ok {
		return Response{Text: fmt.Sprintf("Error: unknown tool %q", name), IsError: true}
	}
	if args == nil {
		args = map[string]any{}
	}
	resp := fn(ctx, args)
	if resp.IsError {
		log.Info("tool call failed")
	}
	return resp
}

func errorResponse(err error) Response {
	return failureResponse(image.FailureFrom(err))
}

func failureResponse(f image.Failure) Response {
	var b strings.Builder
	fmt.Fprintf(&b, "Error (%s): %s\n", f.Kind, f.Message)
	if len(f.Suggestions) > 0 {
		b.WriteString("\nSuggestions:\n")
		for _, s := range f.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}
	return Response{Text: b.String(), IsError: true}
}

func (h *Handler) generate(op image.Operation) call {
	return func(ctx context.Context, args map[string]any) Response {
		params, err := parseParams(op, args)
		if err != nil {
			return errorResponse(err)
		}

		var result image.Result
		switch op {
		case image.OpEdit:
			result = h.client.Edit(ctx, params)
		case image.OpStream:
			result = h.client.Stream(ctx, params)
		default:
			result = h.client.Generate(ctx, params)
		}
		if !result.OK() {
			return failureResponse(*result.Failure)
		}
		return Response{Text: renderSuccess(*result.Success)}
	}
}

type stringField struct {
	name string
	dst  *string
}

func parseParams(op image.Operation, args map[string]any) (image.Params, error) {
	var (
		p   image.Params
		err error
	)
	fields := []stringField{
		{"prompt", &p.Prompt},
		{"size", &p.Size},
		{"quality", &p.Quality},
		{"format", &p.Format},
		{"background", &p.Background},
	}
	if op == image.OpEdit {
		fields = append(fields, stringField{"image_path", &p.ImagePath})
	}
	for _, f := range fields {
		if *f.dst, err = stringArg(args, f.name); err != nil {
			return image.Params{}, err
		}
	}
	if p.Compression, err = intArg(args, "compression"); err != nil {
		return image.Params{}, err
	}
	if op == image.OpStream {
		if p.PartialImages, err = intArg(args, "partial_images"); err != nil {
			return image.Params{}, err
		}
	}
	return p, nil
}

func renderSuccess(s image.Success) string {
	var b strings.Builder
	switch s.Operation {
	case image.OpEdit:
		b.WriteString("Image edited successfully.\n\n")
	case image.OpStream:
		b.WriteString("Image streamed successfully.\n\n")
	default:
		b.WriteString("Image generated successfully.\n\n")
	}
	fmt.Fprintf(&b, "File: %s\n", s.Path)
	if s.SourceImage != "" {
		fmt.Fprintf(&b, "Source image: %s\n", s.SourceImage)
	}
	fmt.Fprintf(&b, "Prompt: %s\n", s.Prompt)
	if s.RevisedPrompt != "" && s.RevisedPrompt != s.Prompt {
		fmt.Fprintf(&b, "Revised prompt: %s\n", s.RevisedPrompt)
	}
	fmt.Fprintf(&b, "Size: %s | Quality: %s | Format: %s | Background: %s\n", s.Size, s.Quality, s.Format, s.Background)
	if s.Compression != nil {
		fmt.Fprintf(&b, "Compression: %d\n", *s.Compression)
	}
	if s.Operation == image.OpStream {
		fmt.Fprintf(&b, "Partial images received: %d\n", s.PartialImages)
	}
	if s.ResponseID != "" {
		fmt.Fprintf(&b, "Response ID: %s\n", s.ResponseID)
	}
	return b.String()
}

func (h *Handler) configure(ctx context.Context, args map[string]any) Response {
	key, ok := args["api_key"].(string)
	if !ok {
		return errorResponse(fault.New(fault.InvalidCredential, "api_key must be a string starting with %q", credential.KeyPrefix))
	}
	org, err := stringArg(args, "organization")
	if err != nil {
		return errorResponse(err)
	}
	model, err := stringArg(args, "model")
	if err != nil {
		return errorResponse(err)
	}
	if model != "" && !lo.Contains(credential.SupportedModels, model) {
		return errorResponse(fault.New(fault.UnsupportedModel, "model %q is not supported, use one of: %s",
			model, strings.Join(credential.SupportedModels, ", ")))
	}

	if err := h.creds.UpdateKey(ctx, key, org); err != nil {
		return errorResponse(err)
	}
	if model != "" {
		if err := h.creds.UpdateModel(ctx, model); err != nil {
			return errorResponse(err)
		}
	}

	status := h.creds.Status(ctx)
	return Response{Text: fmt.Sprintf("OpenAI API configured successfully.\n\nOrganization: %s\nModel: %s\nConfig file: %s\n",
		lo.Ternary(status.Organization != "", status.Organization, "(none)"), status.Model, h.creds.Path())}
}

func (h *Handler) setModel(ctx context.Context, args map[string]any) Response {
	model, err := stringArg(args, "model")
	if err != nil {
		return errorResponse(err)
	}
	if err := h.creds.UpdateModel(ctx, model); err != nil {
		return errorResponse(err)
	}
	return Response{Text: fmt.Sprintf("Model set to %s.\n", model)}
}

func (h *Handler) status(ctx context.Context, _ map[string]any) Response {
	status := h.creds.Status(ctx)
	lastUsed := "never"
	if status.LastUsedAt != nil {
		lastUsed = status.LastUsedAt.Format(time.RFC3339)
	}
	access := "writable"
	if err := h.store.EnsureAccessible(); err != nil {
		access = "inaccessible"
	} else if !h.store.CheckWritable() {
		access = "not writable"
	}

	var b strings.Builder
	b.WriteString("OpenAI image server status\n\n")
	fmt.Fprintf(&b, "Configured: %s\n", lo.Ternary(status.Configured, "yes", "no"))
	fmt.Fprintf(&b, "API key: %s\n", lo.Ternary(status.HasAPIKey, "set", "not set"))
	fmt.Fprintf(&b, "Organization: %s\n", lo.Ternary(status.Organization != "", status.Organization, "(none)"))
	fmt.Fprintf(&b, "Model: %s\n", h.client.Describe(ctx))
	fmt.Fprintf(&b, "Last used: %s\n", lastUsed)
	fmt.Fprintf(&b, "Output directory: %s (%s)\n", h.store.Dir(), access)
	fmt.Fprintf(&b, "Images stored: %d\n", len(h.store.List(ctx)))
	fmt.Fprintf(&b, "Config file: %s\n", h.creds.Path())
	if !status.Configured {
		b.WriteString("\nRun configure_openai with your API key to get started.\n")
	}
	return Response{Text: b.String()}
}

func (h *Handler) listImages(ctx context.Context, args map[string]any) Response {
	limit, err := intArg(args, "limit")
	if err != nil {
		return errorResponse(err)
	}
	n := defaultListLimit
	if limit != nil {
		if *limit < 1 {
			return errorResponse(fault.New(fault.InvalidParameter, "limit must be at least 1"))
		}
		n = *limit
	}

	entries, err := h.feed.Entries(ctx, n)
	if err != nil {
		return errorResponse(err)
	}
	if len(entries) == 0 {
		return Response{Text: fmt.Sprintf("No images in %s yet.\n", h.store.Dir())}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d most recent images in %s:\n\n", len(entries), h.store.Dir())
	for i, e := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, filepath.Base(e.Path))
		if e.Metadata.Prompt != "" {
			fmt.Fprintf(&b, "   Prompt: %s\n", e.Metadata.Prompt)
		}
		if !e.Updated.IsZero() {
			fmt.Fprintf(&b, "   Created: %s\n", e.Updated.Format(time.RFC3339))
		}
	}
	return Response{Text: b.String()}
}

func (h *Handler) exportFeed(ctx context.Context, _ map[string]any) Response {
	path, err := h.feed.Export(ctx)
	if err != nil {
		return errorResponse(fault.Wrap(fault.WriteFailed, err, "exporting feed"))
	}
	return Response{Text: fmt.Sprintf("Feed written to %s\n", path)}
}
