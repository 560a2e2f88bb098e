package image

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"

	"github.com/AiondaDotCom/mcp-openai-image/internal/credential"
	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"golang.org/x/time/rate"
)

type apiRequest struct {
	Model             string `json:"model"`
	Prompt            string `json:"prompt"`
	N                 int    `json:"n"`
	Size              string `json:"size"`
	Quality           string `json:"quality"`
	OutputFormat      string `json:"output_format"`
	Background        string `json:"background"`
	OutputCompression *int   `json:"output_compression,omitempty"`
	Stream            bool   `json:"stream,omitempty"`
	PartialImages     *int   `json:"partial_images,omitempty"`
}

type apiResponse struct {
	Created int64 `json:"created"`
	Data    []struct {
		B64JSON       string `json:"b64_json"`
		RevisedPrompt string `json:"revised_prompt"`
	} `json:"data"`
}

// OpenAIGenerator talks to the OpenAI Images API. All requests share one
// limiter so bursts from a chatty host do not trip upstream rate limits.
type OpenAIGenerator struct {
	Client  *http.Client
	BaseURL string
	Limiter *rate.Limiter
}

func newAPIRequest(req Request, stream bool) apiRequest {
	body := apiRequest{
		Model:             Model,
		Prompt:            req.Prompt,
		N:                 1,
		Size:              req.Size,
		Quality:           req.Quality,
		OutputFormat:      req.Format,
		Background:        req.Background,
		OutputCompression: req.Compression,
		Stream:            stream,
	}
	if stream {
		partials := defaultPartialImages
		if req.PartialImages != nil {
			partials = *req.PartialImages
		}
		body.PartialImages = &partials
	}
	return body
}

func (g *OpenAIGenerator) Generate(ctx context.Context, creds credential.Credentials, req Request) (Response, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openai").With("size", req.Size, "quality", req.Quality, "format", req.Format)
	log.Info("generating image via openai")

	body, err := json.Marshal(newAPIRequest(req, false))
	if err != nil {
		return Response{}, err
	}
	resp, err := g.do(ctx, creds, "/images/generations", "application/json", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (g *OpenAIGenerator) Edit(ctx context.Context, creds credential.Credentials, req Request) (Response, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openai").With("source", req.ImageName)
	log.Info("editing image via openai")

	body, contentType, err := editForm(req)
	if err != nil {
		return Response{}, err
	}
	resp, err := g.do(ctx, creds, "/images/edits", contentType, body)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()
	return decodeResponse(resp)
}

func (g *OpenAIGenerator) Stream(ctx context.Context, creds credential.Credentials, req Request) (Response, error) {
	log := log.FromContextOrDiscard(ctx).WithGroup("openai").With("size", req.Size, "format", req.Format)
	log.Info("streaming image via openai")

	body, err := json.Marshal(newAPIRequest(req, true))
	if err != nil {
		return Response{}, err
	}
	resp, err := g.do(ctx, creds, "/images/generations", "application/json", bytes.NewReader(body))
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	out, err := readStream(ctx, resp.Body)
	if err != nil {
		return Response{}, err
	}
	out.ID = resp.Header.Get("x-request-id")
	log.Info("received streamed image", "partials", out.Partials, "request-id", out.ID)
	return out, nil
}

func (g *OpenAIGenerator) do(ctx context.Context, creds credential.Credentials, path, contentType string, body io.Reader) (*http.Response, error) {
	if g.Limiter != nil {
		if err := g.Limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimSuffix(g.BaseURL, "/")+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	if creds.Organization != "" {
		req.Header.Set("OpenAI-Organization", creds.Organization)
	}

	client := g.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		return nil, parseAPIError(resp)
	}
	return resp, nil
}

func decodeResponse(resp *http.Response) (Response, error) {
	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Response{}, fmt.Errorf("decode image response: %w", err)
	}
	if len(body.Data) == 0 || body.Data[0].B64JSON == "" {
		return Response{}, fault.New(fault.InvalidPayload, "upstream returned no image data")
	}
	return Response{
		Image:         body.Data[0].B64JSON,
		RevisedPrompt: body.Data[0].RevisedPrompt,
		ID:            resp.Header.Get("x-request-id"),
	}, nil
}

func editForm(req Request) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"model", Model},
		{"prompt", req.Prompt},
		{"n", "1"},
		{"size", req.Size},
		{"quality", req.Quality},
		{"output_format", req.Format},
		{"background", req.Background},
	}
	if req.Compression != nil {
		fields = append(fields, [2]string{"output_compression", strconv.Itoa(*req.Compression)})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, req.ImageName))
	header.Set("Content-Type", http.DetectContentType(req.Image))
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(req.Image); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
