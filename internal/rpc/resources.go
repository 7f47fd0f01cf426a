package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/baikal/syswatch/internal/event"
)

func registerResources(s *server.MCPServer, h *handlers) {
	s.AddResource(mcp.NewResource("data://config", "config",
		mcp.WithResourceDescription("Sanitized daemon configuration (no secrets)."),
		mcp.WithMIMEType("application/json"),
	), h.readConfig)

	s.AddResource(mcp.NewResource("data://system/processes", "processes",
		mcp.WithResourceDescription("Most recent process snapshot events."),
		mcp.WithMIMEType("application/json"),
	), h.readProcesses)

	s.AddResource(mcp.NewResource("data://system/network_flows", "network_flows",
		mcp.WithResourceDescription("Most recent network flow events."),
		mcp.WithMIMEType("application/json"),
	), h.readNetworkFlows)

	s.AddResourceTemplate(mcp.NewResourceTemplate(
		"data://system/service_events/{limit}", "service_events",
		mcp.WithTemplateDescription("Most recent service-state-change events, bounded by {limit}."),
		mcp.WithTemplateMIMEType("application/json"),
	), h.readServiceEvents)

	s.AddResourceTemplate(mcp.NewResourceTemplate(
		"data://system/rag/{query}", "rag_query",
		mcp.WithTemplateDescription("RAG answer for the natural-language {query}."),
		mcp.WithTemplateMIMEType("application/json"),
	), h.readRAGQuery)
}

func (h *handlers) readConfig(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	sanitized := map[string]any{
		"events_dir":      h.deps.Cfg.EventsDir,
		"chroma_dir":      h.deps.Cfg.ChromaDir,
		"chroma_url":      h.deps.Cfg.ChromaURL,
		"ollama_base_url": h.deps.Cfg.OllamaBaseURL,
		"server_host":     h.deps.Cfg.ServerHost,
		"server_port":     h.deps.Cfg.ServerPort,
		"threat_intel_enabled": h.deps.Cfg.ThreatIntelEnabled(),
	}
	return jsonResource(request.Params.URI, sanitized)
}

func (h *handlers) readProcesses(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	rows, err := h.deps.Query.GetRecentEvents(ctx, event.TypeProcess, defaultListLimit)
	if err != nil {
		return nil, err
	}
	return jsonResource(request.Params.URI, rows)
}

func (h *handlers) readNetworkFlows(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	rows, err := h.deps.Query.GetRecentEvents(ctx, event.TypeNetworkFlow, defaultListLimit)
	if err != nil {
		return nil, err
	}
	return jsonResource(request.Params.URI, rows)
}

// readServiceEvents parses the {limit} path segment off the end of the
// requested URI; mcp-go resolves the template match but hands handlers
// the concrete URI, not the extracted variable, so we recover it here.
func (h *handlers) readServiceEvents(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	const prefix = "data://system/service_events/"
	limit := defaultListLimit
	if strings.HasPrefix(request.Params.URI, prefix) {
		if n, err := strconv.Atoi(strings.TrimPrefix(request.Params.URI, prefix)); err == nil && n > 0 {
			limit = n
		}
	}

	rows, err := h.deps.Query.GetRecentEvents(ctx, event.TypeServiceEvent, limit)
	if err != nil {
		return nil, err
	}
	return jsonResource(request.Params.URI, rows)
}

func (h *handlers) readRAGQuery(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	const prefix = "data://system/rag/"
	query := strings.TrimPrefix(request.Params.URI, prefix)

	if h.deps.RAG == nil {
		return jsonResource(request.Params.URI, map[string]any{
			"answer":    "search is unavailable: no vector index or LLM configured",
			"citations": []string{},
		})
	}

	resp := h.deps.RAG.Answer(ctx, query)
	return jsonResource(request.Params.URI, resp)
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("resource json marshal: %w", err)
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
