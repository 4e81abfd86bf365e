package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

type GetDashboardsInput struct {
	Search    string `json:"search,omitempty" jsonschema:"Search term to filter dashboards by name (case-insensitive)"`
	GUID      string `json:"guid,omitempty" jsonschema:"Specific dashboard GUID to retrieve"`
	Limit     int    `json:"limit,omitempty" jsonschema:"Number of dashboards to retrieve (default and API max: 200)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type CreateDashboardInput struct {
	Name        string `json:"name" jsonschema:"Name of the dashboard"`
	Description string `json:"description,omitempty" jsonschema:"Description of the dashboard (optional)"`
	AccountID   string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type AddWidgetInput struct {
	DashboardGUID string `json:"dashboard_guid" jsonschema:"GUID of the dashboard to add the widget to"`
	WidgetTitle   string `json:"widget_title" jsonschema:"Title for the widget"`
	WidgetQuery   string `json:"widget_query" jsonschema:"NRQL query for the widget"`
	WidgetType    string `json:"widget_type,omitempty" jsonschema:"Widget type (line, area, bar, pie, table, billboard; default: line)"`
	AccountID     string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type SearchDashboardsInput struct {
	Search    string `json:"search,omitempty" jsonschema:"Search term to filter dashboards by name (case-insensitive)"`
	GUID      string `json:"guid,omitempty" jsonschema:"Specific dashboard GUID to find"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type GetDashboardWidgetsInput struct {
	DashboardGUID string `json:"dashboard_guid" jsonschema:"Dashboard GUID to get widgets from"`
}

type UpdateWidgetInput struct {
	PageGUID    string `json:"page_guid" jsonschema:"Page GUID where the widget is located"`
	WidgetID    string `json:"widget_id" jsonschema:"Widget ID to update"`
	WidgetTitle string `json:"widget_title,omitempty" jsonschema:"New title for the widget"`
	WidgetQuery string `json:"widget_query,omitempty" jsonschema:"New NRQL query for the widget"`
	WidgetType  string `json:"widget_type,omitempty" jsonschema:"New widget type (line, area, bar, pie, table, billboard)"`
	AccountID   string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type DeleteWidgetInput struct {
	PageGUID string `json:"page_guid" jsonschema:"Page GUID where the widget is located"`
	WidgetID string `json:"widget_id" jsonschema:"Widget ID to delete"`
}

func (r *Registry) registerDashboardTools(server *mcp.Server) {
	addTool(r, server, &mcp.Tool{
		Name:        "get_dashboards",
		Description: "Get New Relic dashboards (max 200 due to API limits). Use the search parameter to find specific dashboards efficiently.",
	}, r.handleGetDashboards)

	addTool(r, server, &mcp.Tool{
		Name:        "create_dashboard",
		Description: "Create a new New Relic dashboard.",
	}, r.handleCreateDashboard)

	addTool(r, server, &mcp.Tool{
		Name:        "add_widget_to_dashboard",
		Description: "Add a widget to an existing dashboard. The widget lands on the dashboard's first page.",
	}, r.handleAddWidget)

	addTool(r, server, &mcp.Tool{
		Name:        "search_all_dashboards",
		Description: "Search dashboards with local filtering (retrieves up to 200 from the API, then filters). Better for complex searches.",
	}, r.handleSearchDashboards)

	addTool(r, server, &mcp.Tool{
		Name:        "get_dashboard_widgets",
		Description: "Get all widgets from a dashboard with their details and IDs.",
	}, r.handleGetDashboardWidgets)

	addTool(r, server, &mcp.Tool{
		Name:        "update_widget",
		Description: "Update an existing widget on a dashboard page.",
	}, r.handleUpdateWidget)

	addTool(r, server, &mcp.Tool{
		Name:        "delete_widget",
		Description: "Delete a widget from a dashboard page.",
	}, r.handleDeleteWidget)
}

func (r *Registry) handleGetDashboards(ctx context.Context, _ *mcp.CallToolRequest, in GetDashboardsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if in.GUID != "" {
		if err := ValidateGUID(in.GUID); err != nil {
			return nil, nil, err
		}
	}

	list, err := r.client.Dashboards(ctx, accountID, in.Search, in.GUID, in.Limit)
	if err != nil {
		return nil, nil, err
	}
	return textResult(formatDashboardList(list.Dashboards, in.Search, in.GUID)), nil, nil
}

func (r *Registry) handleCreateDashboard(ctx context.Context, _ *mcp.CallToolRequest, in CreateDashboardInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	created, err := r.client.CreateDashboard(ctx, accountID, in.Name, in.Description)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Dashboard '%s' created successfully.\nGUID: %s", created.Name, created.GUID)), nil, nil
}

func (r *Registry) handleAddWidget(ctx context.Context, _ *mcp.CallToolRequest, in AddWidgetInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateGUID(in.DashboardGUID); err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.WidgetTitle) == "" {
		return nil, nil, nrclient.Validationf("widget_title cannot be empty")
	}
	query, err := ValidateNRQL(in.WidgetQuery)
	if err != nil {
		return nil, nil, err
	}

	result, err := r.client.AddWidget(ctx, in.DashboardGUID, in.WidgetTitle, query, in.WidgetType, accountID)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Widget '%s' added to page '%s' (page GUID: %s).", in.WidgetTitle, result.PageName, result.PageGUID)), nil, nil
}

func (r *Registry) handleSearchDashboards(ctx context.Context, _ *mcp.CallToolRequest, in SearchDashboardsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.Dashboards(ctx, accountID, "", "", 0)
	if err != nil {
		return nil, nil, err
	}

	matched := list.Dashboards
	if in.Search != "" || in.GUID != "" {
		matched = nil
		needle := strings.ToLower(in.Search)
		for _, d := range list.Dashboards {
			if in.GUID != "" && d.GUID != in.GUID {
				continue
			}
			if needle != "" && !strings.Contains(strings.ToLower(d.Name), needle) {
				continue
			}
			matched = append(matched, d)
		}
	}
	return textResult(formatDashboardList(matched, in.Search, in.GUID)), nil, nil
}

func (r *Registry) handleGetDashboardWidgets(ctx context.Context, _ *mcp.CallToolRequest, in GetDashboardWidgetsInput) (*mcp.CallToolResult, any, error) {
	if err := ValidateGUID(in.DashboardGUID); err != nil {
		return nil, nil, err
	}

	widgets, err := r.client.DashboardWidgets(ctx, in.DashboardGUID)
	if err != nil {
		return nil, nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dashboard '%s' (%s), %d pages:\n\n", widgets.DashboardName, widgets.DashboardGUID, len(widgets.Pages))
	for _, page := range widgets.Pages {
		fmt.Fprintf(&b, "## Page '%s' (GUID: %s)\n", page.Name, page.GUID)
		if len(page.Widgets) == 0 {
			b.WriteString("No widgets.\n\n")
			continue
		}
		for _, w := range page.Widgets {
			fmt.Fprintf(&b, "- **%s** (ID: %s, type: %s)\n", w.Title, w.ID, w.Visualization)
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleUpdateWidget(ctx context.Context, _ *mcp.CallToolRequest, in UpdateWidgetInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := ValidateGUID(in.PageGUID); err != nil {
		return nil, nil, err
	}
	query := in.WidgetQuery
	if query != "" {
		if query, err = ValidateNRQL(query); err != nil {
			return nil, nil, err
		}
	}

	if err := r.client.UpdateWidget(ctx, in.PageGUID, in.WidgetID, in.WidgetTitle, query, in.WidgetType, accountID); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Widget '%s' updated successfully.", in.WidgetID)), nil, nil
}

func (r *Registry) handleDeleteWidget(ctx context.Context, _ *mcp.CallToolRequest, in DeleteWidgetInput) (*mcp.CallToolResult, any, error) {
	if err := ValidateGUID(in.PageGUID); err != nil {
		return nil, nil, err
	}

	if err := r.client.DeleteWidget(ctx, in.PageGUID, in.WidgetID); err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Widget '%s' deleted successfully.", in.WidgetID)), nil, nil
}

func formatDashboardList(dashboards []nrclient.Dashboard, search, guid string) string {
	if len(dashboards) == 0 {
		switch {
		case search != "":
			return fmt.Sprintf("No dashboards found matching '%s'.", search)
		case guid != "":
			return fmt.Sprintf("No dashboards found with GUID '%s'.", guid)
		default:
			return "No dashboards found."
		}
	}

	var b strings.Builder
	switch {
	case guid != "":
		fmt.Fprintf(&b, "Found dashboard with GUID %s:\n\n", guid)
	case search != "":
		fmt.Fprintf(&b, "Found %d dashboards matching '%s':\n\n", len(dashboards), search)
	default:
		fmt.Fprintf(&b, "Found %d dashboards:\n\n", len(dashboards))
		if len(dashboards) >= 200 {
			b.WriteString("Note: the API caps results at 200 dashboards. Use the search parameter to narrow down.\n\n")
		}
	}

	for _, d := range dashboards {
		fmt.Fprintf(&b, "- **%s**\n  GUID: %s\n  Created: %s\n", d.Name, d.GUID, d.CreatedAt)
		if d.Permalink != "" {
			fmt.Fprintf(&b, "  URL: %s\n", d.Permalink)
		}
		b.WriteString("\n")
	}
	return b.String()
}
