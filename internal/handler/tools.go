package handler

import (
	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/image"
)

type ParamType string

const (
	String ParamType = "string"
	Number ParamType = "number"
)

type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
	Enum        []string
	Min, Max    *float64
}

type Tool struct {
	Name        string
	Description string
	Params      []Param
}

func bound(v float64) *float64 {
	return &v
}

var (
	promptParam = Param{Name: "prompt", Type: String, Required: true,
		Description: "Text description of the desired image"}
	sizeParam = Param{Name: "size", Type: String, Enum: image.Sizes,
		Description: "Image dimensions; defaults to the configured size"}
	qualityParam = Param{Name: "quality", Type: String, Enum: image.Qualities,
		Description: "Rendering quality; defaults to the configured quality"}
	formatParam = Param{Name: "format", Type: String, Enum: image.Formats,
		Description: "Output file format; defaults to the configured format"}
	backgroundParam = Param{Name: "background", Type: String, Enum: image.Backgrounds,
		Description: "Background treatment; transparent needs png or webp"}
	compressionParam = Param{Name: "compression", Type: Number, Min: bound(0), Max: bound(100),
		Description: "Compression level 0-100 for jpeg and webp"}
)

var catalog = []Tool{
	{
		Name:        "generate_image",
		Description: "Generate an image with OpenAI gpt-image-1 and save it to the output directory",
		Params:      []Param{promptParam, sizeParam, qualityParam, formatParam, backgroundParam, compressionParam},
	},
	{
		Name:        "edit_image",
		Description: "Edit an existing image with a text instruction. Without image_path the most recent generated image is edited",
		Params: []Param{
			{Name: "prompt", Type: String, Required: true, Description: "Edit instruction"},
			{Name: "image_path", Type: String, Description: "Path of the image to edit"},
			sizeParam, qualityParam, formatParam, backgroundParam, compressionParam,
		},
	},
	{
		Name:        "stream_image",
		Description: "Generate an image while streaming partial previews; the final image is saved",
		Params: []Param{
			promptParam,
			{Name: "partial_images", Type: Number, Min: bound(0), Max: bound(3),
				Description: "Number of partial previews to request (0-3, default 2)"},
			sizeParam, qualityParam, formatParam, backgroundParam, compressionParam,
		},
	},
	{
		Name:        "configure_openai",
		Description: "Store the OpenAI API key and optional organization and model",
		Params: []Param{
			{Name: "api_key", Type: String, Required: true, Description: "OpenAI API key starting with sk-"},
			{Name: "organization", Type: String, Description: "OpenAI organization ID"},
			{Name: "model", Type: String, Enum: credential.SupportedModels, Description: "Preferred model"},
		},
	},
	{
		Name:        "set_model",
		Description: "Select the preferred model",
		Params: []Param{
			{Name: "model", Type: String, Required: true, Enum: credential.SupportedModels, Description: "Preferred model"},
		},
	},
	{
		Name:        "get_status",
		Description: "Show configuration status and the output directory",
	},
	{
		Name:        "list_images",
		Description: "List the most recently generated images",
		Params: []Param{
			{Name: "limit", Type: Number, Min: bound(1), Max: bound(100), Description: "Maximum number of images (default 10)"},
		},
	},
	{
		Name:        "export_feed",
		Description: "Write an RSS feed of all generated images into the output directory",
	},
}
