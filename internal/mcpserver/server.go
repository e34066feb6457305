// Package mcpserver exposes the control plane as MCP tools over stdio or
// HTTP/SSE transports.
package mcpserver

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/AltairaLabs/guiagent-mcp/internal/executor"
)

// Config identifies the server to MCP clients.
type Config struct {
	Name    string
	Version string
}

// Operations is the orchestrator surface the tools call into.
type Operations interface {
	Execute(ctx context.Context, req executor.ExecuteRequest) *executor.Result
	Continue(ctx context.Context, req executor.ContinueRequest) *executor.Result
	Tap(ctx context.Context, req executor.TapRequest) *executor.Result
	Status(ctx context.Context, req executor.StatusRequest) *executor.Result
	Devices(ctx context.Context) *executor.Result
	Sessions(ctx context.Context, deviceID string) *executor.Result
	Providers(ctx context.Context) *executor.Result
}

// Server wires the operation surface into an MCP server.
type Server struct {
	server *server.MCPServer
	ops    Operations
	logger *slog.Logger
}

// New creates the MCP server and registers all tools.
func New(cfg Config, ops Operations, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	mcpServer := server.NewMCPServer(
		cfg.Name,
		cfg.Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s := &Server{
		server: mcpServer,
		ops:    ops,
		logger: logger,
	}
	s.registerTools()
	return s
}

// Serve runs the server on stdio until the client disconnects.
func (s *Server) Serve() error {
	s.logger.Info("starting MCP server", "transport", "stdio")
	return server.ServeStdio(s.server)
}

// ServeHTTP runs the server with the HTTP/SSE transport on addr.
func (s *Server) ServeHTTP(addr string) error {
	s.logger.Info("starting MCP server", "transport", "sse", "address", addr, "base_path", "/mcp")
	sseServer := server.NewSSEServer(s.server,
		server.WithBaseURL("http://"+addr),
		server.WithStaticBasePath("/mcp"),
	)
	return sseServer.Start(addr)
}
