package image

import (
	"context"
	"strings"
	"unicode/utf8"

	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/samber/lo"
)

// Model is the upstream image model. The user's preference model in the
// credential record does not affect it.
const Model = "gpt-image-1"

const (
	maxPromptLength      = 32000
	defaultPartialImages = 2
	maxPartialImages     = 3
)

var (
	Sizes       = []string{"1024x1024", "1536x1024", "1024x1536", "auto"}
	Qualities   = []string{"low", "medium", "high", "auto"}
	Formats     = []string{"png", "jpeg", "webp"}
	Backgrounds = []string{"transparent", "opaque", "auto"}
)

type Operation string

const (
	OpGenerate Operation = "generate"
	OpEdit     Operation = "edit"
	OpStream   Operation = "stream"
)

// Params are the caller's generation options. Empty strings and nil pointers
// mean "use the default".
type Params struct {
	Prompt        string
	Size          string
	Quality       string
	Format        string
	Background    string
	Compression   *int
	PartialImages *int
	ImagePath     string
}

type Defaults struct {
	Size    string
	Quality string
	Format  string
}

func DefaultsFrom(record credential.Record) Defaults {
	return Defaults{
		Size:    lo.Ternary(record.DefaultSize != "", record.DefaultSize, credential.DefaultSize),
		Quality: lo.Ternary(record.DefaultQuality != "", record.DefaultQuality, credential.DefaultQuality),
		Format:  lo.Ternary(record.DefaultFormat != "", record.DefaultFormat, credential.DefaultFormat),
	}
}

// Resolve fills in defaults and checks every field against the supported
// values. It performs no I/O.
func Resolve(p Params, d Defaults) (Params, error) {
	p.Prompt = strings.TrimSpace(p.Prompt)
	if p.Prompt == "" {
		return Params{}, fault.New(fault.InvalidParameter, "prompt is required")
	}
	if utf8.RuneCountInString(p.Prompt) > maxPromptLength {
		return Params{}, fault.New(fault.InvalidParameter, "prompt exceeds %d characters", maxPromptLength)
	}

	p.Size = lo.Ternary(p.Size != "", p.Size, d.Size)
	p.Quality = lo.Ternary(p.Quality != "", p.Quality, d.Quality)
	p.Format = lo.Ternary(p.Format != "", p.Format, d.Format)
	p.Background = lo.Ternary(p.Background != "", p.Background, "auto")

	checks := []struct {
		field   string
		value   string
		allowed []string
		kind    fault.Kind
	}{
		{"size", p.Size, Sizes, fault.UnsupportedSize},
		{"quality", p.Quality, Qualities, fault.UnsupportedQuality},
		{"format", p.Format, Formats, fault.UnsupportedFormat},
		{"background", p.Background, Backgrounds, fault.UnsupportedBackground},
	}
	for _, c := range checks {
		if !lo.Contains(c.allowed, c.value) {
			return Params{}, fault.New(c.kind, "%s %q is not supported, use one of: %s",
				c.field, c.value, strings.Join(c.allowed, ", "))
		}
	}

	if p.Background == "transparent" && p.Format == "jpeg" {
		return Params{}, fault.New(fault.UnsupportedBackground, "background %q requires png or webp format", p.Background)
	}
	if p.Compression != nil {
		if *p.Compression < 0 || *p.Compression > 100 {
			return Params{}, fault.New(fault.InvalidParameter, "compression must be between 0 and 100, got %d", *p.Compression)
		}
		if p.Format == "png" {
			return Params{}, fault.New(fault.InvalidParameter, "compression applies to jpeg and webp only")
		}
	}
	if p.PartialImages != nil && (*p.PartialImages < 0 || *p.PartialImages > maxPartialImages) {
		return Params{}, fault.New(fault.InvalidParameter, "partial_images must be between 0 and %d, got %d",
			maxPartialImages, *p.PartialImages)
	}
	return p, nil
}

// Request is a resolved generation request as sent upstream.
type Request struct {
	Params
	Image     []byte
	ImageName string
}

type Response struct {
	Image         string
	RevisedPrompt string
	ID            string
	Partials      int
}

type Generator interface {
	Generate(context.Context, credential.Credentials, Request) (Response, error)
	Edit(context.Context, credential.Credentials, Request) (Response, error)
	Stream(context.Context, credential.Credentials, Request) (Response, error)
}
