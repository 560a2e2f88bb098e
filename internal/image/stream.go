package image

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AiondaDotCom/mcp-openai-image/internal/fault"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
)

type streamEvent struct {
	Type              string `json:"type"`
	B64JSON           string `json:"b64_json"`
	PartialImageIndex int    `json:"partial_image_index"`
	RevisedPrompt     string `json:"revised_prompt"`
	Error             *struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// readStream consumes a server-sent event body until the completed event.
// Partial frames are counted but not kept.
func readStream(ctx context.Context, r io.Reader) (Response, error) {
	logger := log.FromContextOrDiscard(ctx).WithGroup("openai")

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	var (
		out  Response
		data strings.Builder
	)
	flush := func() (bool, error) {
		defer data.Reset()
		if data.Len() == 0 || data.String() == "[DONE]" {
			return false, nil
		}
		var ev streamEvent
		if err := json.Unmarshal([]byte(data.String()), &ev); err != nil {
			return false, fmt.Errorf("decode stream event: %w", err)
		}
		switch {
		case ev.Error != nil:
			return false, &APIError{Type: ev.Error.Type, Code: ev.Error.Code, Message: ev.Error.Message}
		case strings.HasSuffix(ev.Type, ".partial_image"):
			out.Partials++
			logger.Debug("received partial image", "index", ev.PartialImageIndex)
		case strings.HasSuffix(ev.Type, ".completed"):
			out.Image = ev.B64JSON
			out.RevisedPrompt = ev.RevisedPrompt
			return true, nil
		}
		return false, nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			done, err := flush()
			if err != nil || done {
				return out, err
			}
			continue
		}
		if payload, ok := strings.CutPrefix(line, "data:"); ok {
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimSpace(payload))
		}
	}
	if err := scanner.Err(); err != nil {
		return out, fmt.Errorf("read stream: %w", err)
	}
	if done, err := flush(); err != nil || done {
		return out, err
	}
	return out, fault.New(fault.InvalidPayload, "stream ended without a completed image")
}
