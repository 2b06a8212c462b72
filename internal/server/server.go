package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ironsheep/image-annotator-mcp/internal/clock"
	"github.com/ironsheep/image-annotator-mcp/internal/config"
	"github.com/ironsheep/image-annotator-mcp/internal/imageview"
	"github.com/ironsheep/image-annotator-mcp/internal/input"
	"github.com/ironsheep/image-annotator-mcp/internal/ocr"
)

const (
	// Name is reported to clients during initialization.
	Name = "image-annotator-mcp"
	// Version is the server version.
	Version = "0.1.0"
)

// Deps are optional collaborators of a Server.
type Deps struct {
	// Clock drives the canvas timers. A *clock.Manual makes the wait tool
	// advance simulated time instead of sleeping.
	Clock clock.Clock
	// OCR recognizes region text. Nil uses Tesseract when built with cgo.
	OCR    ocr.Engine
	Logger *slog.Logger
}

// Server exposes one annotation canvas as MCP tools.
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	clk    clock.Clock
	mcp    *server.MCPServer
	view   *imageview.View
	ocr    *ocr.Transcriber

	// pressed holds the buttons of the last pointer_down. Loop only.
	pressed input.Buttons

	// handlers mirrors the registered tools for direct dispatch.
	handlers map[string]server.ToolHandlerFunc
	tools    []mcp.Tool
}

// New creates a server with a fresh canvas. A nil cfg uses the defaults.
func New(cfg *config.Config, deps Deps) (*Server, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	clk := deps.Clock
	if clk == nil {
		clk = clock.Real()
	}

	view, err := imageview.New(cfg, imageview.Deps{Clock: clk, Logger: logger})
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger.With("component", "server"),
		clk:      clk,
		view:     view,
		ocr:      ocr.NewTranscriber(deps.OCR, cfg.OCROptions()),
		handlers: map[string]server.ToolHandlerFunc{},
	}
	s.mcp = server.NewMCPServer(Name, Version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s, nil
}

// Run serves MCP over stdin and stdout until stdin closes.
func (s *Server) Run() error {
	s.logger.Info("serving on stdio", "tools", len(s.tools))
	return server.ServeStdio(s.mcp)
}

// Close releases the canvas.
func (s *Server) Close() error {
	return s.view.Close()
}

// MCP returns the underlying protocol server.
func (s *Server) MCP() *server.MCPServer { return s.mcp }

// Tools lists the registered tool definitions in registration order.
func (s *Server) Tools() []mcp.Tool { return append([]mcp.Tool(nil), s.tools...) }

// Call invokes a tool by name, bypassing the transport.
func (s *Server) Call(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return h(ctx, req)
}

func (s *Server) addTool(tool mcp.Tool, h server.ToolHandlerFunc) {
	logged := func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		res, err := h(ctx, req)
		attrs := []any{"tool", tool.Name, "elapsed", time.Since(start)}
		switch {
		case err != nil:
			s.logger.Error("tool failed", append(attrs, "error", err)...)
		case res != nil && res.IsError:
			s.logger.Warn("tool returned error", attrs...)
		default:
			s.logger.Debug("tool called", attrs...)
		}
		return res, err
	}
	s.handlers[tool.Name] = logged
	s.tools = append(s.tools, tool)
	s.mcp.AddTool(tool, logged)
}

// jsonResult wraps v as pretty-printed JSON text content.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return mcp.NewToolResultText(string(b)), nil
}

// errorResult reports a failed tool call to the client. Tool failures are
// results, not protocol errors.
func errorResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(err.Error()), nil
}

// withState runs fn on the canvas loop and reports the resulting state.
func (s *Server) withState(ctx context.Context, fn func() error) (*mcp.CallToolResult, error) {
	var st imageview.State
	err := s.view.Do(ctx, func() error {
		if err := fn(); err != nil {
			return err
		}
		st = s.view.State()
		return nil
	})
	if err != nil {
		return errorResult(err)
	}
	return jsonResult(st)
}
