// Package tools exposes the New Relic client as MCP tools. Handlers are typed
// per tool; every handler error is converted at the dispatch boundary into a
// structured error result so the protocol loop survives bad calls.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

// Registry wires tool handlers onto the MCP server and keeps the
// name-to-handler dispatch table.
type Registry struct {
	client   *nrclient.Client
	settings config.Settings
	logger   *slog.Logger
	table    map[string]rawHandler
}

type rawHandler func(ctx context.Context, rawArgs json.RawMessage) (*mcp.CallToolResult, error)

// NewRegistry creates a registry over the unified client.
func NewRegistry(client *nrclient.Client, settings config.Settings, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		client:   client,
		settings: settings,
		logger:   logger,
		table:    make(map[string]rawHandler),
	}
}

// RegisterAll registers every tool on the server.
func (r *Registry) RegisterAll(server *mcp.Server) {
	r.registerMonitoringTools(server)
	r.registerDashboardTools(server)
	r.registerAlertTools(server)
}

// Tools returns the registered tool names.
func (r *Registry) Tools() []string {
	names := make([]string, 0, len(r.table))
	for name := range r.table {
		names = append(names, name)
	}
	return names
}

// Dispatch invokes a tool by name with raw JSON arguments. An unknown name
// yields an unsupported-tool error result without touching any domain client.
func (r *Registry) Dispatch(ctx context.Context, name string, rawArgs json.RawMessage) (*mcp.CallToolResult, error) {
	h, ok := r.table[name]
	if !ok {
		return errorResult(nrclient.UnsupportedTool(name)), nil
	}
	return h(ctx, rawArgs)
}

// addTool registers a typed handler both with the SDK and in the dispatch
// table, wrapping it so handler errors come back as uniform error results.
func addTool[In any](r *Registry, server *mcp.Server, tool *mcp.Tool, h mcp.ToolHandlerFor[In, any]) {
	wrapped := func(ctx context.Context, req *mcp.CallToolRequest, in In) (*mcp.CallToolResult, any, error) {
		res, out, err := h(ctx, req, in)
		if err != nil {
			r.logger.Error("tool call failed", "tool", tool.Name, "kind", nrclient.KindOf(err), "error", err)
			return errorResult(err), nil, nil
		}
		return res, out, nil
	}
	mcp.AddTool(server, tool, wrapped)

	r.table[tool.Name] = func(ctx context.Context, rawArgs json.RawMessage) (*mcp.CallToolResult, error) {
		var in In
		if len(rawArgs) > 0 {
			if err := json.Unmarshal(rawArgs, &in); err != nil {
				return errorResult(nrclient.Validationf("invalid arguments for %s: %v", tool.Name, err)), nil
			}
		}
		res, _, err := wrapped(ctx, nil, in)
		return res, err
	}
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.Content{&mcp.TextContent{Text: text}}}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: fmt.Sprintf("%s: %s", nrclient.KindOf(err), err.Error())}},
		IsError: true,
	}
}

// accountID applies the per-call override or falls back to the configured
// default, validating either before any network call happens.
func (r *Registry) accountID(override string) (string, error) {
	id := override
	if id == "" {
		id = r.settings.AccountID
	}
	if err := config.ValidateAccountID(id); err != nil {
		return "", nrclient.Validationf("%s", err.Error())
	}
	return id, nil
}
