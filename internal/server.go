package internal

import (
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
	"github.com/telemetrydev/newrelic-mcp/internal/resources"
	"github.com/telemetrydev/newrelic-mcp/internal/tools"
)

// Version is the server version reported during MCP initialization.
const Version = "0.1.0"

// BuildServer creates a configured MCP server with all tools and resources
// registered against a NerdGraph client built from settings.
func BuildServer(settings config.Settings, logger *slog.Logger) *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "newrelic-mcp",
		Version: Version,
	}, &mcp.ServerOptions{
		Logger:       logger,
		Instructions: "New Relic observability assistant. Query NRQL, inspect application performance and incidents, and manage dashboards, alert policies, conditions and notification workflows.",
	})

	client := nrclient.New(settings, logger)

	tools.NewRegistry(client, settings, logger).RegisterAll(server)
	resources.NewHandlers(client, settings, logger).RegisterAll(server)

	return server
}
