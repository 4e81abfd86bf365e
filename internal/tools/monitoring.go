package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type QueryNRQLInput struct {
	Query     string `json:"query" jsonschema:"NRQL query to execute"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional, uses the configured default)"`
}

type AppPerformanceInput struct {
	AppName   string `json:"app_name" jsonschema:"Name of the application"`
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 1)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type AppErrorsInput struct {
	AppName   string `json:"app_name" jsonschema:"Name of the application"`
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 1)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type IncidentsInput struct {
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 24)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type InfrastructureInput struct {
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 1)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type AlertViolationsInput struct {
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 24)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type DeploymentsInput struct {
	AppName   string `json:"app_name,omitempty" jsonschema:"Name of the application (optional, all deployments if unset)"`
	Hours     int    `json:"hours,omitempty" jsonschema:"Number of hours to look back (default: 168 = 1 week)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

func (r *Registry) registerMonitoringTools(server *mcp.Server) {
	addTool(r, server, &mcp.Tool{
		Name:        "query_nrql",
		Description: "Execute a NRQL query against New Relic and return the raw result rows.",
	}, r.handleQueryNRQL)

	addTool(r, server, &mcp.Tool{
		Name:        "get_app_performance",
		Description: "Get response time, throughput, and Apdex for a specific application.",
	}, r.handleAppPerformance)

	addTool(r, server, &mcp.Tool{
		Name:        "get_app_errors",
		Description: "Get error metrics for a specific application.",
	}, r.handleAppErrors)

	addTool(r, server, &mcp.Tool{
		Name:        "get_incidents",
		Description: "Get recent incidents from New Relic.",
	}, r.handleIncidents)

	addTool(r, server, &mcp.Tool{
		Name:        "get_infrastructure_hosts",
		Description: "Get infrastructure hosts with CPU, memory, and disk utilization.",
	}, r.handleInfrastructureHosts)

	addTool(r, server, &mcp.Tool{
		Name:        "get_alert_violations",
		Description: "Get recent alert violations and incidents.",
	}, r.handleAlertViolations)

	addTool(r, server, &mcp.Tool{
		Name:        "get_deployments",
		Description: "Get deployment markers, optionally scoped to one application.",
	}, r.handleDeployments)
}

func (r *Registry) handleQueryNRQL(ctx context.Context, _ *mcp.CallToolRequest, in QueryNRQLInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	query, err := ValidateNRQL(in.Query)
	if err != nil {
		return nil, nil, err
	}

	rows, err := r.client.QueryNRQL(ctx, accountID, query)
	if err != nil {
		return nil, nil, err
	}

	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("NRQL Query Results:\n```json\n%s\n```", encoded)), nil, nil
}

func (r *Registry) handleAppPerformance(ctx context.Context, _ *mcp.CallToolRequest, in AppPerformanceInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	appName, err := ValidateAppName(in.AppName)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 1)
	if err != nil {
		return nil, nil, err
	}

	metrics, err := r.client.PerformanceMetrics(ctx, accountID, appName, hours)
	if err != nil {
		return nil, nil, err
	}

	text := fmt.Sprintf("Performance metrics for '%s' (last %dh):\n", appName, hours) +
		fmt.Sprintf("- Average response time: %s\n", formatDuration(metrics.AvgDuration)) +
		fmt.Sprintf("- 95th percentile: %s\n", formatDuration(metrics.P95Duration)) +
		fmt.Sprintf("- Throughput: %s\n", formatThroughput(metrics.Throughput)) +
		fmt.Sprintf("- Apdex: %s", formatScore(metrics.Apdex))
	return textResult(text), nil, nil
}

func (r *Registry) handleAppErrors(ctx context.Context, _ *mcp.CallToolRequest, in AppErrorsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	appName, err := ValidateAppName(in.AppName)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 1)
	if err != nil {
		return nil, nil, err
	}

	metrics, err := r.client.ErrorMetrics(ctx, accountID, appName, hours)
	if err != nil {
		return nil, nil, err
	}

	text := fmt.Sprintf("Error metrics for '%s' (last %dh):\n", appName, hours) +
		fmt.Sprintf("- Error count: %.0f\n", metrics.ErrorCount) +
		fmt.Sprintf("- Average error duration: %s", formatDuration(metrics.AvgDuration))
	return textResult(text), nil, nil
}

func (r *Registry) handleIncidents(ctx context.Context, _ *mcp.CallToolRequest, in IncidentsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 24)
	if err != nil {
		return nil, nil, err
	}

	incidents, err := r.client.RecentIncidents(ctx, accountID, hours)
	if err != nil {
		return nil, nil, err
	}
	if len(incidents) == 0 {
		return textResult(fmt.Sprintf("No incidents found in the last %d hours.", hours)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d incidents in the last %d hours:\n\n", len(incidents), hours)
	for _, incident := range incidents {
		fmt.Fprintf(&b, "- **%s**\n  State: %s\n  Time: %s\n\n",
			stringField(incident, "title"), stringField(incident, "state"), stringField(incident, "timestamp"))
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleInfrastructureHosts(ctx context.Context, _ *mcp.CallToolRequest, in InfrastructureInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 1)
	if err != nil {
		return nil, nil, err
	}

	hosts, err := r.client.InfrastructureHosts(ctx, accountID, hours)
	if err != nil {
		return nil, nil, err
	}
	if len(hosts) == 0 {
		return textResult(fmt.Sprintf("No infrastructure hosts found in the last %d hours.", hours)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d infrastructure hosts (last %dh):\n\n", len(hosts), hours)
	for _, host := range hosts {
		fmt.Fprintf(&b, "- **%s**\n", stringField(host, "hostname"))
		if v, ok := host["cpu_percent"].(float64); ok {
			fmt.Fprintf(&b, "  CPU: %.1f%%\n", v)
		}
		if v, ok := host["memory_percent"].(float64); ok {
			fmt.Fprintf(&b, "  Memory: %.1f%%\n", v)
		}
		if v, ok := host["disk_percent"].(float64); ok {
			fmt.Fprintf(&b, "  Disk: %.1f%%\n", v)
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleAlertViolations(ctx context.Context, _ *mcp.CallToolRequest, in AlertViolationsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 24)
	if err != nil {
		return nil, nil, err
	}

	violations, err := r.client.AlertViolations(ctx, accountID, hours)
	if err != nil {
		return nil, nil, err
	}
	if len(violations) == 0 {
		return textResult(fmt.Sprintf("No alert violations found in the last %d hours.", hours)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d alert violations (last %dh):\n\n", len(violations), hours)
	for _, v := range violations {
		title := stringField(v, "title")
		if title == "Unknown" {
			title = stringField(v, "name")
		}
		timestamp := stringField(v, "timestamp")
		if timestamp == "Unknown" {
			timestamp = stringField(v, "createdAt")
		}
		fmt.Fprintf(&b, "- **%s**\n  State: %s\n  Priority: %s\n  Time: %s\n\n",
			title, stringField(v, "state"), stringField(v, "priority"), timestamp)
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleDeployments(ctx context.Context, _ *mcp.CallToolRequest, in DeploymentsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	hours, err := ValidateHours(in.Hours, 168)
	if err != nil {
		return nil, nil, err
	}
	appName := strings.TrimSpace(in.AppName)
	if appName != "" {
		if appName, err = ValidateAppName(appName); err != nil {
			return nil, nil, err
		}
	}

	deployments, err := r.client.Deployments(ctx, accountID, appName, hours)
	if err != nil {
		return nil, nil, err
	}

	scope := ""
	if appName != "" {
		scope = fmt.Sprintf("for %s ", appName)
	}
	if len(deployments) == 0 {
		return textResult(fmt.Sprintf("No deployments found %sin the last %d hours.", scope, hours)), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d deployments %s(last %dh):\n\n", len(deployments), scope, hours)
	for _, d := range deployments {
		timestamp := stringField(d, "timestamp")
		if timestamp == "Unknown" {
			timestamp = stringField(d, "createdAt")
		}
		fmt.Fprintf(&b, "- **%s**\n  Time: %s\n  Revision: %s\n",
			stringField(d, "appName"), timestamp, stringField(d, "revision"))
		if desc, ok := d["description"].(string); ok && desc != "" {
			fmt.Fprintf(&b, "  Description: %s\n", desc)
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil, nil
}

func stringField(row map[string]any, key string) string {
	switch v := row[key].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return fmt.Sprintf("%.0f", v)
	}
	return "Unknown"
}

func formatDuration(d *float64) string {
	if d == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2fms", *d)
}

func formatThroughput(t *float64) string {
	if t == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f req/min", *t)
}

func formatScore(s *float64) string {
	if s == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.2f", *s)
}
