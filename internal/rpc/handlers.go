package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/baikal/syswatch/internal/analysis"
	"github.com/baikal/syswatch/internal/event"
)

// defaultListLimit bounds the unfiltered get_running_* tools; spec.md
// §4.6 only specifies explicit defaults for get_network_flows (10) and
// analyze_hardware_spikes (15), so the remaining list tools use this one.
const defaultListLimit = 100

// analyzeWindowLimit bounds how much history each analyze-* tool pulls
// before scoring, per spec.md §4.6 "pull the last window".
const analyzeWindowLimit = 200

type handlers struct {
	deps Deps
}

func registerTools(s *server.MCPServer, h *handlers) {
	s.AddTool(mcp.NewTool("ping",
		mcp.WithDescription("Liveness check; always returns pong."),
	), h.handlePing)

	s.AddTool(mcp.NewTool("get_running_processes",
		mcp.WithDescription("Returns the most recently observed process snapshot events from the writer's store."),
	), h.handleGetRunningProcesses)

	s.AddTool(mcp.NewTool("get_running_services",
		mcp.WithDescription("Returns the most recently observed service-state-change events from the writer's store."),
	), h.handleGetRunningServices)

	s.AddTool(mcp.NewTool("get_network_flows",
		mcp.WithDescription("Returns the most recently observed network flow events from the writer's store."),
		mcp.WithNumber("limit", mcp.Description("Maximum flows to return"), mcp.DefaultNumber(10)),
	), h.handleGetNetworkFlows)

	s.AddTool(mcp.NewTool("analyze_processes",
		mcp.WithDescription("Scores recent process events for risk and returns them sorted descending by risk_score."),
	), h.handleAnalyzeProcesses)

	s.AddTool(mcp.NewTool("analyze_network",
		mcp.WithDescription("Scores recent network flow events for risk and returns them sorted descending by risk_score."),
	), h.handleAnalyzeNetwork)

	s.AddTool(mcp.NewTool("analyze_services",
		mcp.WithDescription("Scores recent service events for risk and returns them sorted descending by risk_score."),
	), h.handleAnalyzeServices)

	s.AddTool(mcp.NewTool("analyze_hardware_spikes",
		mcp.WithDescription("Scores recent hardware spike events for risk and returns them sorted descending by risk_score."),
		mcp.WithNumber("limit", mcp.Description("Maximum spikes to return"), mcp.DefaultNumber(15)),
	), h.handleAnalyzeHardwareSpikes)

	s.AddTool(mcp.NewTool("analyze_all",
		mcp.WithDescription("Runs all four analyzers and returns one envelope with every category's findings."),
		mcp.WithNumber("process_limit", mcp.Description("Per-category override for processes")),
		mcp.WithNumber("service_limit", mcp.Description("Per-category override for services")),
		mcp.WithNumber("network_limit", mcp.Description("Per-category override for network flows")),
		mcp.WithNumber("hardware_limit", mcp.Description("Per-category override for hardware spikes")),
	), h.handleAnalyzeAll)

	s.AddTool(mcp.NewTool("search_findings",
		mcp.WithDescription("Answers a natural-language question against recent events via retrieval-augmented generation."),
		mcp.WithString("query", mcp.Required(), mcp.Description("Natural-language question")),
	), h.handleSearchFindings)
}

func (h *handlers) handlePing(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return newTextResult(`{"message": "pong"}`), nil
}

func (h *handlers) handleGetRunningProcesses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.listEvents(ctx, event.TypeProcess, defaultListLimit)
}

func (h *handlers) handleGetRunningServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.listEvents(ctx, event.TypeServiceEvent, defaultListLimit)
}

func (h *handlers) handleGetNetworkFlows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(getArgs(request), "limit", 10)
	return h.listEvents(ctx, event.TypeNetworkFlow, limit)
}

func (h *handlers) listEvents(ctx context.Context, t event.Type, limit int) (*mcp.CallToolResult, error) {
	rows, err := h.deps.Query.GetRecentEvents(ctx, t, limit)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}
	return jsonResult(map[string]any{"events": rows, "total": len(rows)})
}

func (h *handlers) handleAnalyzeProcesses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyzeCategory(ctx, event.TypeProcess, analysis.Process, "total_processes", analyzeWindowLimit)
}

func (h *handlers) handleAnalyzeNetwork(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyzeCategory(ctx, event.TypeNetworkFlow, analysis.Network, "total_flows", analyzeWindowLimit)
}

func (h *handlers) handleAnalyzeServices(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return h.analyzeCategory(ctx, event.TypeServiceEvent, analysis.Service, "total_services", analyzeWindowLimit)
}

func (h *handlers) handleAnalyzeHardwareSpikes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := intArg(getArgs(request), "limit", 15)
	return h.analyzeCategory(ctx, event.TypeHardwareSpike, analysis.Hardware, "total_spikes", limit)
}

// analyzeCategory implements the shared analyze-* shape spec.md §4.6
// describes: pull the window, score every row, sort descending by
// risk_score, return {analysis, total_*}.
func (h *handlers) analyzeCategory(ctx context.Context, t event.Type, score func(map[string]any) analysis.Finding, totalKey string, limit int) (*mcp.CallToolResult, error) {
	rows, err := h.deps.Query.GetRecentEvents(ctx, t, limit)
	if err != nil {
		return errResult(fmt.Sprintf("query failed: %v", err)), nil
	}

	findings := make([]analysis.Finding, 0, len(rows))
	for _, r := range rows {
		findings = append(findings, score(r))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RiskScore > findings[j].RiskScore
	})

	return jsonResult(map[string]any{"analysis": findings, totalKey: len(findings)})
}

// handleAnalyzeAll implements the decided reading of spec.md §9's open
// question: analyze_all DOES honor per-category limit overrides when
// given, defaulting to analyzeWindowLimit (or 15 for hardware, matching
// the single-category tool's own default) when omitted. See DESIGN.md.
func (h *handlers) handleAnalyzeAll(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	processLimit := intArg(args, "process_limit", analyzeWindowLimit)
	serviceLimit := intArg(args, "service_limit", analyzeWindowLimit)
	networkLimit := intArg(args, "network_limit", analyzeWindowLimit)
	hardwareLimit := intArg(args, "hardware_limit", 15)

	processes, err := h.scoreAll(ctx, event.TypeProcess, analysis.Process, processLimit)
	if err != nil {
		return errResult(err.Error()), nil
	}
	services, err := h.scoreAll(ctx, event.TypeServiceEvent, analysis.Service, serviceLimit)
	if err != nil {
		return errResult(err.Error()), nil
	}
	networks, err := h.scoreAll(ctx, event.TypeNetworkFlow, analysis.Network, networkLimit)
	if err != nil {
		return errResult(err.Error()), nil
	}
	hardware, err := h.scoreAll(ctx, event.TypeHardwareSpike, analysis.Hardware, hardwareLimit)
	if err != nil {
		return errResult(err.Error()), nil
	}

	return jsonResult(map[string]any{
		"processes":      processes,
		"services":       services,
		"network_flows":  networks,
		"hardware_spikes": hardware,
	})
}

func (h *handlers) scoreAll(ctx context.Context, t event.Type, score func(map[string]any) analysis.Finding, limit int) ([]analysis.Finding, error) {
	rows, err := h.deps.Query.GetRecentEvents(ctx, t, limit)
	if err != nil {
		return nil, fmt.Errorf("query failed for %s: %w", t, err)
	}
	findings := make([]analysis.Finding, 0, len(rows))
	for _, r := range rows {
		findings = append(findings, score(r))
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].RiskScore > findings[j].RiskScore
	})
	return findings, nil
}

func (h *handlers) handleSearchFindings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	query := stringArg(args, "query", "")
	if query == "" {
		return errResult("query is required"), nil
	}

	if h.deps.RAG == nil {
		return jsonResult(map[string]any{
			"answer":    "search is unavailable: no vector index or LLM configured",
			"citations": []string{},
		})
	}

	resp := h.deps.RAG.Answer(ctx, query)
	return jsonResult(resp)
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]any {
	if request.Params.Arguments == nil {
		return map[string]any{}
	}
	args, ok := request.Params.Arguments.(map[string]any)
	if !ok {
		return map[string]any{}
	}
	return args
}

func stringArg(args map[string]any, key, defaultVal string) string {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return defaultVal
	}
	return s
}

func intArg(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok || v == nil {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		if n <= 0 {
			return defaultVal
		}
		return int(n)
	case int:
		if n <= 0 {
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: text}},
	}
}

func errResult(msg string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: msg}},
	}
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return errResult(fmt.Sprintf("json marshal failed: %v", err)), nil
	}
	return newTextResult(string(data)), nil
}
