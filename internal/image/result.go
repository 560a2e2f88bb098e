package image

import (
	"errors"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
)

// Result is returned by every client operation. Exactly one of Success and
// Failure is set.
type Result struct {
	Success *Success
	Failure *Failure
}

type Success struct {
	Operation     Operation
	Path          string
	Filename      string
	Prompt        string
	RevisedPrompt string
	Size          string
	Quality       string
	Format        string
	Background    string
	Compression   *int
	ResponseID    string
	SourceImage   string
	PartialImages int
}

type Failure struct {
	Kind        fault.Kind
	Message     string
	Detail      string
	Suggestions []string
}

func succeed(s Success) Result {
	return Result{Success: &s}
}

func fail(f Failure) Result {
	return Result{Failure: &f}
}

func (r Result) OK() bool {
	return r.Success != nil
}

var kindSuggestions = map[fault.Kind][]string{
	fault.InvalidCredential: {
		"Run configure_openai with an API key starting with sk-",
		"Create a key at https://platform.openai.com/api-keys",
	},
	fault.UnsupportedSize:       {"Use 1024x1024, 1536x1024, 1024x1536 or auto"},
	fault.UnsupportedQuality:    {"Use low, medium, high or auto"},
	fault.UnsupportedFormat:     {"Use png, jpeg or webp"},
	fault.UnsupportedBackground: {"Use transparent, opaque or auto", "Transparent backgrounds need png or webp"},
	fault.UnsupportedModel:      {"Run get_status to see the current model"},
	fault.InvalidParameter:      {"Check the tool arguments and try again"},
	fault.InvalidPayload:        {"Try again; the upstream response contained no usable image"},
	fault.WriteFailed: {
		"Check free disk space",
		"Check write permissions of the output directory",
	},
	fault.DirectoryInaccessible: {"Check that the output directory exists and is accessible"},
	fault.ConfigSaveFailed:      {"Check write permissions of the configuration directory"},
}

// FailureFrom converts any error into a failure. Errors without a local kind
// are treated as upstream failures and classified.
func FailureFrom(err error) Failure {
	var fe *fault.Error
	if !errors.As(err, &fe) || fe.Kind == fault.UpstreamFailure {
		return Classify(err)
	}
	return Failure{
		Kind:        fe.Kind,
		Message:     Redact(fe.Message),
		Suggestions: kindSuggestions[fe.Kind],
	}
}
