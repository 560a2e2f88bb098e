package image

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/samber/lo"
)

// APIError is an error body returned by the OpenAI API.
type APIError struct {
	Status  int
	Type    string
	Code    string
	Param   string
	Message string
}

func (e *APIError) Error() string {
	code := lo.Ternary(e.Code != "", e.Code, e.Type)
	if e.Status != 0 {
		return fmt.Sprintf("openai: %d %s: %s", e.Status, code, e.Message)
	}
	return fmt.Sprintf("openai: %s: %s", code, e.Message)
}

func parseAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	var body struct {
		Error struct {
			Type    string  `json:"type"`
			Message string  `json:"message"`
			Code    *string `json:"code"`
			Param   *string `json:"param"`
		} `json:"error"`
	}
	apiErr := &APIError{Status: resp.StatusCode}
	if err := json.Unmarshal(data, &body); err == nil && body.Error.Message != "" {
		apiErr.Type = body.Error.Type
		apiErr.Message = body.Error.Message
		apiErr.Code = lo.FromPtr(body.Error.Code)
		apiErr.Param = lo.FromPtr(body.Error.Param)
	} else {
		apiErr.Message = lo.Ternary(len(data) > 0, strings.TrimSpace(string(data)), http.StatusText(resp.StatusCode))
	}
	return apiErr
}

type category struct {
	name        string
	codes       []string
	statuses    []int
	substrings  []string
	suggestions []string
}

// Order matters: "model" is the broadest substring and is checked last.
var categories = []category{
	{
		name:       "authentication",
		codes:      []string{"invalid_api_key", "invalid_organization"},
		statuses:   []int{http.StatusUnauthorized},
		substrings: []string{"incorrect api key", "invalid api key", "unauthorized"},
		suggestions: []string{
			"Check that the API key is correct and still active",
			"Run configure_openai again with a valid key",
			"Verify the organization ID if one is configured",
		},
	},
	{
		name:       "rate limit",
		codes:      []string{"rate_limit_exceeded"},
		statuses:   []int{http.StatusTooManyRequests},
		substrings: []string{"rate limit", "too many requests"},
		suggestions: []string{
			"Wait a minute before generating again",
			"Reduce the number of parallel requests",
			"Check the rate limits of your usage tier",
		},
	},
	{
		name:       "billing",
		codes:      []string{"billing_hard_limit_reached", "billing_not_active"},
		substrings: []string{"billing"},
		suggestions: []string{
			"Check the billing settings of your OpenAI account",
			"Add a payment method or raise the spending limit",
		},
	},
	{
		name:       "quota",
		codes:      []string{"insufficient_quota"},
		substrings: []string{"quota"},
		suggestions: []string{
			"Your account has exhausted its quota",
			"Check usage in the OpenAI dashboard",
			"Upgrade the plan or wait for the quota to reset",
		},
	},
	{
		name:       "content policy",
		codes:      []string{"moderation_blocked", "content_policy_violation"},
		substrings: []string{"safety", "content policy", "moderation", "policy"},
		suggestions: []string{
			"Rephrase the prompt to avoid restricted content",
			"Remove references to real people or trademarks",
			"Describe the scene in more neutral terms",
		},
	},
	{
		name:       "timeout",
		substrings: []string{"deadline exceeded", "timeout", "context canceled"},
		suggestions: []string{
			"Try again; high quality images can take over a minute",
			"Use a lower quality or smaller size",
		},
	},
	{
		name:       "model access",
		codes:      []string{"model_not_found"},
		substrings: []string{"model"},
		suggestions: []string{
			"Your organization may need verification to use gpt-image-1",
			"Check model access in the OpenAI dashboard",
		},
	},
}

var genericSuggestions = []string{
	"Check your internet connection",
	"Verify the API key with get_status",
	"Try again in a few moments",
}

var secretPattern = regexp.MustCompile(`sk-[A-Za-z0-9_\-*]+`)

// Redact removes anything that looks like an API key.
func Redact(s string) string {
	return secretPattern.ReplaceAllString(s, "sk-***")
}

// Classify maps an upstream error to a failure with remediation hints. This
// is the only place that interprets upstream error text; structured codes
// win over substring matches.
func Classify(err error) Failure {
	var apiErr *APIError
	hasAPIErr := errors.As(err, &apiErr)

	message := Redact(err.Error())
	if hasAPIErr {
		message = Redact(apiErr.Message)
	}
	failure := Failure{
		Kind:    fault.UpstreamFailure,
		Message: "Image generation failed: " + message,
	}

	// OpenAI reports quota and billing exhaustion as 429, so every code is
	// tried before any status.
	if hasAPIErr && apiErr.Code != "" {
		if c, ok := lo.Find(categories, func(c category) bool { return lo.Contains(c.codes, apiErr.Code) }); ok {
			return c.apply(failure)
		}
	}
	if hasAPIErr {
		if c, ok := lo.Find(categories, func(c category) bool { return lo.Contains(c.statuses, apiErr.Status) }); ok {
			return c.apply(failure)
		}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		c, _ := lo.Find(categories, func(c category) bool { return c.name == "timeout" })
		return c.apply(failure)
	}

	text := strings.ToLower(message)
	if c, ok := lo.Find(categories, func(c category) bool {
		return lo.SomeBy(c.substrings, func(s string) bool { return strings.Contains(text, s) })
	}); ok {
		return c.apply(failure)
	}
	failure.Suggestions = genericSuggestions
	return failure
}

func (c category) apply(f Failure) Failure {
	f.Detail = c.name
	f.Suggestions = c.suggestions
	return f
}
