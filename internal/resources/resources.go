// Package resources serves read-only newrelic:// aggregate views over the
// domain clients. Each view is a markdown snapshot composed per read; no
// state is held between calls.
package resources

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

// Handlers reads the newrelic:// resource URIs.
type Handlers struct {
	client   *nrclient.Client
	settings config.Settings
	logger   *slog.Logger
}

// NewHandlers creates resource handlers over the unified client.
func NewHandlers(client *nrclient.Client, settings config.Settings, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{client: client, settings: settings, logger: logger}
}

type resourceDef struct {
	uri         string
	name        string
	description string
}

var defs = []resourceDef{
	{"newrelic://applications", "New Relic Applications", "List of applications monitored by New Relic"},
	{"newrelic://incidents/recent", "Recent Incidents", "Recent incidents from New Relic"},
	{"newrelic://dashboards", "New Relic Dashboards", "List of available dashboards"},
	{"newrelic://alerts/policies", "Alert Policies", "List of alert policies and their configurations"},
	{"newrelic://alerts/conditions", "Alert Conditions", "List of all alert conditions across policies"},
	{"newrelic://alerts/workflows", "Alert Workflows", "List of alert workflows and notification configurations"},
}

// RegisterAll registers every resource on the server.
func (h *Handlers) RegisterAll(server *mcp.Server) {
	for _, def := range defs {
		server.AddResource(&mcp.Resource{
			URI:         def.uri,
			Name:        def.name,
			Description: def.description,
			MIMEType:    "text/markdown",
		}, h.readHandler())
	}
}

func (h *Handlers) readHandler() func(context.Context, *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	return func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		text, err := h.Read(ctx, req.Params.URI)
		if err != nil {
			return nil, err
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{{
				URI:      req.Params.URI,
				MIMEType: "text/markdown",
				Text:     text,
			}},
		}, nil
	}
}

// Read renders the snapshot for one resource URI.
func (h *Handlers) Read(ctx context.Context, uri string) (string, error) {
	switch uri {
	case "newrelic://applications":
		return h.readApplications(ctx)
	case "newrelic://incidents/recent":
		return h.readIncidents(ctx)
	case "newrelic://dashboards":
		return h.readDashboards(ctx)
	case "newrelic://alerts/policies":
		return h.readAlertPolicies(ctx)
	case "newrelic://alerts/conditions":
		return h.readAlertConditions(ctx)
	case "newrelic://alerts/workflows":
		return h.readAlertWorkflows(ctx)
	default:
		return "", fmt.Errorf("unknown resource URI: %s", uri)
	}
}

func (h *Handlers) readApplications(ctx context.Context) (string, error) {
	apps, err := h.client.Applications(ctx, h.settings.AccountID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# New Relic Applications\n\n%d applications found:\n\n", len(apps))
	for _, app := range apps {
		fmt.Fprintf(&b, "- **%s**\n", app.Name)
	}
	return b.String(), nil
}

func (h *Handlers) readIncidents(ctx context.Context) (string, error) {
	incidents, err := h.client.RecentIncidents(ctx, h.settings.AccountID, 24)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Recent Incidents\n\n%d incidents found:\n\n", len(incidents))
	for _, inc := range incidents {
		fmt.Fprintf(&b, "- **%s** - %s - %s\n", field(inc, "title"), field(inc, "state"), field(inc, "timestamp"))
	}
	return b.String(), nil
}

func (h *Handlers) readDashboards(ctx context.Context) (string, error) {
	list, err := h.client.Dashboards(ctx, h.settings.AccountID, "", "", 0)
	if err != nil {
		return "", err
	}
	if len(list.Dashboards) == 0 {
		return "# New Relic Dashboards\n\nNo dashboards found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# New Relic Dashboards\n\n%d dashboards found:\n\n", len(list.Dashboards))
	for _, d := range list.Dashboards {
		fmt.Fprintf(&b, "## %s\n- **GUID**: %s\n- **Created**: %s\n", d.Name, d.GUID, d.CreatedAt)
		if d.Permalink != "" {
			fmt.Fprintf(&b, "- **URL**: %s\n", d.Permalink)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (h *Handlers) readAlertPolicies(ctx context.Context) (string, error) {
	list, err := h.client.ListAlertPolicies(ctx, h.settings.AccountID)
	if err != nil {
		return "", err
	}
	if len(list.Policies) == 0 {
		return "# Alert Policies\n\nNo alert policies found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Alert Policies\n\n%d alert policies found:\n\n", list.TotalCount)
	for _, p := range list.Policies {
		fmt.Fprintf(&b, "## %s\n- **Policy ID**: %s\n- **Incident Preference**: %s\n\n", p.Name, p.ID, p.IncidentPreference)
	}
	return b.String(), nil
}

func (h *Handlers) readAlertConditions(ctx context.Context) (string, error) {
	list, err := h.client.ListAlertConditions(ctx, h.settings.AccountID, "")
	if err != nil {
		return "", err
	}
	if len(list.Conditions) == 0 {
		return "# Alert Conditions\n\nNo alert conditions found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Alert Conditions\n\n%d alert conditions found:\n\n", list.TotalCount)
	for _, c := range list.Conditions {
		fmt.Fprintf(&b, "## %s\n- **Condition ID**: %s\n- **Policy ID**: %s\n- **Enabled**: %t\n- **NRQL Query**: `%s`\n",
			c.Name, c.ID, c.PolicyID, c.Enabled, c.Nrql.Query)
		if len(c.Terms) > 0 {
			t := c.Terms[0]
			fmt.Fprintf(&b, "- **Threshold**: %s %g (%s)\n", t.Operator, t.Threshold, t.Priority)
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (h *Handlers) readAlertWorkflows(ctx context.Context) (string, error) {
	list, err := h.client.ListWorkflows(ctx, h.settings.AccountID)
	if err != nil {
		return "", err
	}
	if len(list.Workflows) == 0 {
		return "# Alert Workflows\n\nNo alert workflows found.", nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Alert Workflows\n\n%d alert workflows found:\n\n", list.TotalCount)
	for _, w := range list.Workflows {
		fmt.Fprintf(&b, "## %s\n- **Workflow ID**: %s\n- **Enabled**: %t\n- **Destinations**: %d configured\n",
			w.Name, w.ID, w.Enabled, len(w.DestinationConfigurations))
		for i, d := range w.DestinationConfigurations {
			if i == 3 {
				fmt.Fprintf(&b, "  - ... and %d more\n", len(w.DestinationConfigurations)-3)
				break
			}
			fmt.Fprintf(&b, "  - %s (%s)\n", d.Name, d.Type)
		}
		filterName := w.IssuesFilter.Name
		if filterName == "" {
			filterName = "No filter"
		}
		fmt.Fprintf(&b, "- **Filter**: %s\n\n", filterName)
	}
	return b.String(), nil
}

func field(row map[string]any, key string) string {
	if v, ok := row[key].(string); ok && v != "" {
		return v
	}
	if v, ok := row[key].(float64); ok {
		return fmt.Sprintf("%.0f", v)
	}
	return "Unknown"
}
