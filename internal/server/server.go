// Package server exposes the handler's tool catalog over MCP on stdio.
package server

import (
	"context"
	"io"
	"log/slog"

	"github.com/AiondaDotCom/mcp-openai-image/internal/handler"
	"github.com/AiondaDotCom/mcp-openai-image/internal/log"
	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/samber/do"
)

const (
	Name    = "mcp-openai-image"
	Version = "1.2.0"
)

type Server struct {
	mcp     *mcpserver.MCPServer
	handler *handler.Handler
}

func New(i *do.Injector) (*Server, error) {
	h := do.MustInvoke[*handler.Handler](i)

	s := &Server{
		mcp:     mcpserver.NewMCPServer(Name, Version, mcpserver.WithToolCapabilities(false), mcpserver.WithRecovery()),
		handler: h,
	}
	for _, tool := range h.Tools() {
		s.mcp.AddTool(toMCPTool(tool), s.call(tool.Name))
	}
	return s, nil
}

func (s *Server) call(name string) mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp := s.handler.Call(ctx, name, req.GetArguments())
		if resp.IsError {
			return mcp.NewToolResultError(resp.Text), nil
		}
		return mcp.NewToolResultText(resp.Text), nil
	}
}

func toMCPTool(t handler.Tool) mcp.Tool {
	opts := []mcp.ToolOption{mcp.WithDescription(t.Description)}
	for _, p := range t.Params {
		props := []mcp.PropertyOption{mcp.Description(p.Description)}
		if p.Required {
			props = append(props, mcp.Required())
		}
		if len(p.Enum) > 0 {
			props = append(props, mcp.Enum(p.Enum...))
		}
		if p.Min != nil {
			props = append(props, mcp.Min(*p.Min))
		}
		if p.Max != nil {
			props = append(props, mcp.Max(*p.Max))
		}

		switch p.Type {
		case handler.Number:
			opts = append(opts, mcp.WithNumber(p.Name, props...))
		default:
			opts = append(opts, mcp.WithString(p.Name, props...))
		}
	}
	return mcp.NewTool(t.Name, opts...)
}

// Serve blocks until ctx is done or in is closed. The logger in ctx must not
// write to out.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	logger := log.FromContextOrDiscard(ctx)
	logger.Info("serving mcp over stdio", "name", Name, "version", Version, "tools", len(s.handler.Tools()))

	stdio := mcpserver.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))
	stdio.SetContextFunc(func(ctx context.Context) context.Context {
		return log.NewContext(ctx, logger)
	})
	return stdio.Listen(ctx, in, out)
}
