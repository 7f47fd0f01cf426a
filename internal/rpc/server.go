// Package rpc implements the daemon's RPC surface: a fixed inventory of
// tools (compute actions) and resources (URI-addressed reads) served
// over long-lived streamable HTTP, per spec.md §4.6/§6. The server
// shape (mcp.NewTool/WithString/WithNumber registration, AddTool with a
// typed handler, TextContent results) is grounded verbatim on the
// teacher's internal/mcp/server.go and handlers.go; this package swaps
// the teacher's performance-profiling tool set for the host-monitoring
// one and adds the resource half mcp-go also exposes, which the teacher
// never used.
package rpc

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mark3labs/mcp-go/server"

	"github.com/baikal/syswatch/internal/adapter/rag"
	"github.com/baikal/syswatch/internal/config"
	"github.com/baikal/syswatch/internal/event"
	"github.com/baikal/syswatch/internal/logging"
)

// QueryAPI is the narrow read-only slice of writer.Writer the RPC layer
// is allowed to touch, matching spec.md §3's "RPC layer is a read-only
// consumer of the writer's query API".
type QueryAPI interface {
	GetRecentEvents(ctx context.Context, eventType event.Type, limit int) ([]map[string]any, error)
}

const shutdownGrace = 5 * time.Second

// Server wraps the MCP server instance and its HTTP transport.
type Server struct {
	mcpServer *server.MCPServer
	httpSrv   *server.StreamableHTTPServer
	addr      string
}

// Deps bundles everything tool/resource handlers need. Only Query and
// Config are required; RAG may be nil if no LLM/vector-index is
// configured, in which case search_findings degrades to a fallback
// answer rather than failing startup.
type Deps struct {
	Query QueryAPI
	RAG   *rag.Engine
	Cfg   config.Config
}

// NewServer builds the MCP server with every tool and resource spec.md
// §4.6 names already registered.
func NewServer(version string, deps Deps) *Server {
	s := server.NewMCPServer("syswatchd", version, server.WithLogging())

	h := &handlers{deps: deps}
	registerTools(s, h)
	registerResources(s, h)

	addr := fmt.Sprintf("%s:%d", deps.Cfg.ServerHost, deps.Cfg.ServerPort)
	httpSrv := server.NewStreamableHTTPServer(s)

	return &Server{mcpServer: s, httpSrv: httpSrv, addr: addr}
}

// Start binds and serves until ctx is cancelled. A bind failure is
// returned to the caller as a startup error (spec.md §6 "non-zero on
// unrecoverable startup failure").
func (s *Server) Start(ctx context.Context) error {
	log := logging.WithComponent("rpc")
	log.Info().Str("addr", s.addr).Msg("rpc server listening")

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Start(s.addr)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("rpc server shutdown error")
		}
		return nil
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
