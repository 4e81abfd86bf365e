package nrclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Dashboard is a dashboard entity as returned by entity search.
type Dashboard struct {
	Name      string `json:"name"`
	GUID      string `json:"guid"`
	Permalink string `json:"permalink"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// DashboardList is the result of a dashboard entity search.
type DashboardList struct {
	Dashboards []Dashboard
	NextCursor string
	HasMore    bool
}

// The entity search API caps results regardless of the requested limit.
const maxDashboardLimit = 200

const dashboardSearchDocument = `query($searchQuery: String!, $limit: Int) {
  actor {
    entitySearch(query: $searchQuery, options: {limit: $limit}) {
      results {
        entities {
          ... on DashboardEntityOutline {
            name
            guid
            permalink
            createdAt
            updatedAt
          }
        }
        nextCursor
      }
    }
  }
}`

// Dashboards lists dashboards via entity search, optionally filtered by a
// name substring or a specific GUID.
func (c *Client) Dashboards(ctx context.Context, accountID, search, guid string, limit int) (DashboardList, error) {
	if err := validSearchTerm(search); err != nil {
		return DashboardList{}, err
	}
	if _, err := accountIDAsInt(accountID); err != nil {
		return DashboardList{}, err
	}
	if limit <= 0 || limit > maxDashboardLimit {
		limit = maxDashboardLimit
	}

	var searchQuery string
	switch {
	case guid != "":
		searchQuery = fmt.Sprintf("accountId = %s AND type = 'DASHBOARD' AND id = '%s'", accountID, quoteNRQL(guid))
	case search != "":
		searchQuery = fmt.Sprintf("accountId = %s AND type = 'DASHBOARD' AND name LIKE '%%%s%%'", accountID, quoteNRQL(search))
	default:
		searchQuery = fmt.Sprintf("accountId = %s AND type = 'DASHBOARD'", accountID)
	}

	data, err := c.query(ctx, dashboardSearchDocument, map[string]any{"searchQuery": searchQuery, "limit": limit})
	if err != nil {
		return DashboardList{}, err
	}

	var payload struct {
		Actor struct {
			EntitySearch struct {
				Results struct {
					Entities   []Dashboard `json:"entities"`
					NextCursor string      `json:"nextCursor"`
				} `json:"results"`
			} `json:"entitySearch"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return DashboardList{}, upstream(0, "unexpected dashboard search response: "+err.Error())
	}

	results := payload.Actor.EntitySearch.Results
	return DashboardList{
		Dashboards: results.Entities,
		NextCursor: results.NextCursor,
		HasMore:    results.NextCursor != "",
	}, nil
}

// CreatedDashboard is the entity result of a dashboard create.
type CreatedDashboard struct {
	GUID string `json:"guid"`
	Name string `json:"name"`
}

const createDashboardMutation = `mutation($accountId: Int!, $dashboard: DashboardInput!) {
  dashboardCreate(accountId: $accountId, dashboard: $dashboard) {
    entityResult {
      guid
      name
    }
    errors {
      description
      type
    }
  }
}`

// CreateDashboard creates a single-page dashboard.
func (c *Client) CreateDashboard(ctx context.Context, accountID, name, description string) (CreatedDashboard, error) {
	if strings.TrimSpace(name) == "" {
		return CreatedDashboard{}, Validationf("dashboard name cannot be empty")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return CreatedDashboard{}, err
	}

	dashboard := map[string]any{
		"name":        name,
		"description": description,
		"permissions": "PUBLIC_READ_WRITE",
		"pages": []map[string]any{{
			"name":        name,
			"description": description,
			"widgets":     []any{},
		}},
	}

	data, err := c.mutate(ctx, createDashboardMutation, map[string]any{"accountId": id, "dashboard": dashboard})
	if err != nil {
		return CreatedDashboard{}, err
	}

	var payload struct {
		DashboardCreate struct {
			EntityResult CreatedDashboard `json:"entityResult"`
			Errors       []struct {
				Description string `json:"description"`
				Type        string `json:"type"`
			} `json:"errors"`
		} `json:"dashboardCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return CreatedDashboard{}, upstream(0, "unexpected dashboard create response: "+err.Error())
	}
	if len(payload.DashboardCreate.Errors) > 0 {
		return CreatedDashboard{}, upstream(0, "dashboard creation failed: "+payload.DashboardCreate.Errors[0].Description)
	}
	return payload.DashboardCreate.EntityResult, nil
}

// WidgetConfig builds the visualization-keyed NRQL widget configuration used
// by the dashboard widget mutations. Unknown types fall back to line.
func WidgetConfig(vizType, accountID, query string) map[string]any {
	id, _ := strconv.Atoi(accountID)
	nrqlQueries := []map[string]any{{"accountId": id, "query": query}}
	switch vizType {
	case "area", "bar", "billboard", "pie", "table":
		return map[string]any{vizType: map[string]any{"nrqlQueries": nrqlQueries}}
	default:
		return map[string]any{"line": map[string]any{"nrqlQueries": nrqlQueries}}
	}
}

const dashboardPagesDocument = `query($guid: EntityGuid!) {
  actor {
    entity(guid: $guid) {
      ... on DashboardEntity {
        pages {
          guid
          name
        }
      }
    }
  }
}`

const addWidgetsMutation = `mutation($guid: EntityGuid!, $widgets: [DashboardWidgetInput!]!) {
  dashboardAddWidgetsToPage(guid: $guid, widgets: $widgets) {
    errors {
      description
      type
    }
  }
}`

// AddWidgetResult reports where a widget landed.
type AddWidgetResult struct {
	PageGUID string `json:"page_guid"`
	PageName string `json:"page_name"`
}

// AddWidget adds a widget to the first page of the dashboard. The widget
// mutation requires a page GUID, so the dashboard's pages are resolved first.
func (c *Client) AddWidget(ctx context.Context, dashboardGUID, title, query, vizType, accountID string) (AddWidgetResult, error) {
	if strings.TrimSpace(dashboardGUID) == "" {
		return AddWidgetResult{}, Validationf("dashboard_guid cannot be empty")
	}

	pagesData, err := c.query(ctx, dashboardPagesDocument, map[string]any{"guid": dashboardGUID})
	if err != nil {
		return AddWidgetResult{}, err
	}

	var pagesPayload struct {
		Actor struct {
			Entity struct {
				Pages []struct {
					GUID string `json:"guid"`
					Name string `json:"name"`
				} `json:"pages"`
			} `json:"entity"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(pagesData, &pagesPayload); err != nil {
		return AddWidgetResult{}, upstream(0, "unexpected dashboard pages response: "+err.Error())
	}
	pages := pagesPayload.Actor.Entity.Pages
	if len(pages) == 0 {
		return AddWidgetResult{}, upstream(0, "no pages found in dashboard "+dashboardGUID)
	}

	widget := map[string]any{
		"title":         title,
		"configuration": WidgetConfig(vizType, accountID, query),
	}
	data, err := c.mutate(ctx, addWidgetsMutation, map[string]any{
		"guid":    pages[0].GUID,
		"widgets": []map[string]any{widget},
	})
	if err != nil {
		return AddWidgetResult{}, err
	}
	if err := widgetMutationError(data, "dashboardAddWidgetsToPage", "widget addition"); err != nil {
		return AddWidgetResult{}, err
	}
	return AddWidgetResult{PageGUID: pages[0].GUID, PageName: pages[0].Name}, nil
}

// Widget is one widget on a dashboard page.
type Widget struct {
	ID            string         `json:"widget_id"`
	Title         string         `json:"title"`
	Visualization string         `json:"visualization_type"`
	Configuration map[string]any `json:"configuration"`
}

// DashboardPage groups the widgets of a single page.
type DashboardPage struct {
	GUID    string   `json:"page_guid"`
	Name    string   `json:"page_name"`
	Widgets []Widget `json:"widgets"`
}

// DashboardWidgets is the widget inventory of a dashboard.
type DashboardWidgets struct {
	DashboardName string          `json:"dashboard_name"`
	DashboardGUID string          `json:"dashboard_guid"`
	Pages         []DashboardPage `json:"pages"`
}

const dashboardWidgetsDocument = `query($guid: EntityGuid!) {
  actor {
    entity(guid: $guid) {
      ... on DashboardEntity {
        name
        pages {
          guid
          name
          widgets {
            id
            title
            visualization {
              id
            }
            configuration {
              area {
                nrqlQueries {
                  accountId
                  query
                }
              }
              bar {
                nrqlQueries {
                  accountId
                  query
                }
              }
              billboard {
                nrqlQueries {
                  accountId
                  query
                }
              }
              line {
                nrqlQueries {
                  accountId
                  query
                }
              }
              pie {
                nrqlQueries {
                  accountId
                  query
                }
              }
              table {
                nrqlQueries {
                  accountId
                  query
                }
              }
            }
          }
        }
      }
    }
  }
}`

// DashboardWidgets returns all widgets of a dashboard with their IDs, so a
// caller can target update_widget / delete_widget.
func (c *Client) DashboardWidgets(ctx context.Context, dashboardGUID string) (DashboardWidgets, error) {
	if strings.TrimSpace(dashboardGUID) == "" {
		return DashboardWidgets{}, Validationf("dashboard_guid cannot be empty")
	}

	data, err := c.query(ctx, dashboardWidgetsDocument, map[string]any{"guid": dashboardGUID})
	if err != nil {
		return DashboardWidgets{}, err
	}

	var payload struct {
		Actor struct {
			Entity struct {
				Name  string `json:"name"`
				Pages []struct {
					GUID    string `json:"guid"`
					Name    string `json:"name"`
					Widgets []struct {
						ID            string `json:"id"`
						Title         string `json:"title"`
						Visualization struct {
							ID string `json:"id"`
						} `json:"visualization"`
						Configuration map[string]any `json:"configuration"`
					} `json:"widgets"`
				} `json:"pages"`
			} `json:"entity"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return DashboardWidgets{}, upstream(0, "unexpected dashboard widgets response: "+err.Error())
	}
	if payload.Actor.Entity.Name == "" && len(payload.Actor.Entity.Pages) == 0 {
		return DashboardWidgets{}, upstream(0, "dashboard not found: "+dashboardGUID)
	}

	out := DashboardWidgets{
		DashboardName: payload.Actor.Entity.Name,
		DashboardGUID: dashboardGUID,
	}
	for _, p := range payload.Actor.Entity.Pages {
		page := DashboardPage{GUID: p.GUID, Name: p.Name}
		for _, w := range p.Widgets {
			title := w.Title
			if title == "" {
				title = "Untitled Widget"
			}
			viz := w.Visualization.ID
			if viz == "" {
				viz = "unknown"
			}
			page.Widgets = append(page.Widgets, Widget{
				ID:            w.ID,
				Title:         title,
				Visualization: viz,
				Configuration: w.Configuration,
			})
		}
		out.Pages = append(out.Pages, page)
	}
	return out, nil
}

const updateWidgetsMutation = `mutation($guid: EntityGuid!, $widgets: [DashboardWidgetUpdateInput!]!) {
  dashboardUpdateWidgetsInPage(guid: $guid, widgets: $widgets) {
    errors {
      description
      type
    }
  }
}`

// UpdateWidget rewrites a widget's title and/or query in place.
func (c *Client) UpdateWidget(ctx context.Context, pageGUID, widgetID, title, query, vizType, accountID string) error {
	if strings.TrimSpace(pageGUID) == "" {
		return Validationf("page_guid cannot be empty")
	}
	if strings.TrimSpace(widgetID) == "" {
		return Validationf("widget_id cannot be empty")
	}

	widget := map[string]any{"id": widgetID}
	if title != "" {
		widget["title"] = title
	}
	if query != "" {
		widget["configuration"] = WidgetConfig(vizType, accountID, query)
	}

	data, err := c.mutate(ctx, updateWidgetsMutation, map[string]any{
		"guid":    pageGUID,
		"widgets": []map[string]any{widget},
	})
	if err != nil {
		return err
	}
	return widgetMutationError(data, "dashboardUpdateWidgetsInPage", "widget update")
}

const deleteWidgetsMutation = `mutation($guid: EntityGuid!, $widgetIds: [String!]!) {
  dashboardDeleteWidgetsFromPage(guid: $guid, widgetIds: $widgetIds) {
    errors {
      description
      type
    }
  }
}`

// DeleteWidget removes a widget from a dashboard page.
func (c *Client) DeleteWidget(ctx context.Context, pageGUID, widgetID string) error {
	if strings.TrimSpace(pageGUID) == "" {
		return Validationf("page_guid cannot be empty")
	}
	if strings.TrimSpace(widgetID) == "" {
		return Validationf("widget_id cannot be empty")
	}

	data, err := c.mutate(ctx, deleteWidgetsMutation, map[string]any{
		"guid":      pageGUID,
		"widgetIds": []string{widgetID},
	})
	if err != nil {
		return err
	}
	return widgetMutationError(data, "dashboardDeleteWidgetsFromPage", "widget deletion")
}

func widgetMutationError(data json.RawMessage, field, operation string) error {
	var payload map[string]struct {
		Errors []struct {
			Description string `json:"description"`
			Type        string `json:"type"`
		} `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return upstream(0, "unexpected "+operation+" response: "+err.Error())
	}
	if result, ok := payload[field]; ok && len(result.Errors) > 0 {
		return upstream(0, operation+" failed: "+result.Errors[0].Description)
	}
	return nil
}

func validSearchTerm(search string) error {
	if strings.ContainsAny(search, "'\"") {
		return Validationf("search term cannot contain quotes")
	}
	return nil
}
