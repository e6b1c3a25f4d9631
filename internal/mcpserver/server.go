// Package mcpserver exposes the scanning pipeline as MCP tools.
package mcpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/nocsi/drip-api-sub008/internal/config"
	"github.com/nocsi/drip-api-sub008/internal/pipeline"
	"github.com/nocsi/drip-api-sub008/internal/report"
	"github.com/nocsi/drip-api-sub008/pkg/models"
	"go.uber.org/zap"
)

// Server wraps an MCP server with the mdguard tools registered
type Server struct {
	Server   *mcp.Server
	orch     *pipeline.Orchestrator
	cfg      config.ServerConfig
	defaults models.Options
	logger   *zap.Logger
}

// New creates a server and registers scan_markdown, security_report and
// document_stats
func New(orch *pipeline.Orchestrator, cfg config.ServerConfig, defaults models.Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := mcp.NewServer(
		&mcp.Implementation{
			Name:    "mdguard",
			Version: report.ScannerVersion,
		},
		&mcp.ServerOptions{},
	)
	s := &Server{
		Server:   srv,
		orch:     orch,
		cfg:      cfg,
		defaults: defaults,
		logger:   logger.With(zap.String("area", "mcp")),
	}
	s.registerTools()
	return s
}

// Run serves on the configured transport and blocks until ctx is cancelled
// or the transport closes
func (s *Server) Run(ctx context.Context) error {
	switch s.cfg.Transport {
	case "stdio", "":
		s.logger.Info("Starting stdio transport")
		return s.Server.Run(ctx, &mcp.StdioTransport{})
	case "http":
		return s.runHTTP(ctx)
	default:
		return fmt.Errorf("unsupported MCP transport: %s", s.cfg.Transport)
	}
}

// Handler returns the streamable HTTP handler for the server
func (s *Server) Handler() http.Handler {
	path := s.cfg.Path
	if path == "" {
		path = "/mcp"
	}
	handler := mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server { return s.Server },
		&mcp.StreamableHTTPOptions{},
	)
	mux := http.NewServeMux()
	mux.Handle(path, handler)
	return mux
}

func (s *Server) runHTTP(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.logger.Info("Starting HTTP transport",
		zap.String("addr", ln.Addr().String()),
		zap.String("path", s.cfg.Path))

	srv := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down HTTP transport")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
