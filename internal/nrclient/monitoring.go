package nrclient

import (
	"context"
	"fmt"
)

// Application is one monitored application derived from Transaction events.
type Application struct {
	Name string `json:"name"`
}

// Applications lists the applications reporting transactions in the last day.
func (c *Client) Applications(ctx context.Context, accountID string) ([]Application, error) {
	const q = "SELECT uniques(appName) as 'applications' FROM Transaction SINCE 1 day ago LIMIT 100"
	rows, err := c.QueryNRQL(ctx, accountID, q)
	if err != nil {
		return nil, err
	}

	var apps []Application
	for _, row := range rows {
		names, ok := row["applications"].([]any)
		if !ok {
			continue
		}
		for _, n := range names {
			if name, ok := n.(string); ok && name != "" {
				apps = append(apps, Application{Name: name})
			}
		}
	}
	return apps, nil
}

// RecentIncidents returns incidents opened in the given window. When the
// NrAiIncident event type is unavailable the query falls back to Alert events.
func (c *Client) RecentIncidents(ctx context.Context, accountID string, hours int) ([]map[string]any, error) {
	rows, err := c.QueryNRQL(ctx, accountID, fmt.Sprintf("SELECT * FROM NrAiIncident SINCE %d hours ago LIMIT 50", hours))
	if err == nil {
		return rows, nil
	}
	c.logger.Warn("incident query failed, trying Alert events", "error", err)
	return c.QueryNRQL(ctx, accountID, fmt.Sprintf("SELECT * FROM Alert SINCE %d hours ago LIMIT 50", hours))
}

// ErrorMetrics holds error counters for one application.
type ErrorMetrics struct {
	ErrorCount  float64  `json:"error_count"`
	AvgDuration *float64 `json:"avg_duration,omitempty"`
}

// ErrorMetrics reports error count and average error duration for an
// application, falling back to errored Transactions when no TransactionError
// rows exist.
func (c *Client) ErrorMetrics(ctx context.Context, accountID, appName string, hours int) (ErrorMetrics, error) {
	q := fmt.Sprintf(
		"SELECT count(*) as error_count, average(duration) as avg_duration FROM TransactionError WHERE appName = '%s' SINCE %d hours ago",
		quoteNRQL(appName), hours)
	rows, err := c.QueryNRQL(ctx, accountID, q)
	if err != nil {
		return ErrorMetrics{}, err
	}
	if m, ok := firstRowErrorMetrics(rows); ok {
		return m, nil
	}

	q = fmt.Sprintf(
		"SELECT count(*) as error_count FROM Transaction WHERE appName = '%s' AND error IS TRUE SINCE %d hours ago",
		quoteNRQL(appName), hours)
	rows, err = c.QueryNRQL(ctx, accountID, q)
	if err != nil {
		return ErrorMetrics{}, err
	}
	if m, ok := firstRowErrorMetrics(rows); ok {
		return m, nil
	}
	return ErrorMetrics{}, nil
}

func firstRowErrorMetrics(rows []map[string]any) (ErrorMetrics, bool) {
	if len(rows) == 0 {
		return ErrorMetrics{}, false
	}
	var m ErrorMetrics
	if v, ok := rows[0]["error_count"].(float64); ok {
		m.ErrorCount = v
	}
	if v, ok := rows[0]["avg_duration"].(float64); ok {
		m.AvgDuration = &v
	}
	return m, true
}

// PerformanceMetrics holds the headline performance numbers for one
// application over a window.
type PerformanceMetrics struct {
	AvgDuration *float64 `json:"avg_duration,omitempty"`
	P95Duration *float64 `json:"p95_duration,omitempty"`
	Throughput  *float64 `json:"throughput,omitempty"`
	Apdex       *float64 `json:"apdex,omitempty"`
}

// PerformanceMetrics reports average and p95 response time, throughput, and
// Apdex for an application.
func (c *Client) PerformanceMetrics(ctx context.Context, accountID, appName string, hours int) (PerformanceMetrics, error) {
	q := fmt.Sprintf(
		"SELECT average(duration) as avg_duration, percentile(duration, 95) as p95_duration, rate(count(*), 1 minute) as throughput, apdex(duration, t: 0.5) as apdex FROM Transaction WHERE appName = '%s' SINCE %d hours ago",
		quoteNRQL(appName), hours)
	rows, err := c.QueryNRQL(ctx, accountID, q)
	if err != nil {
		return PerformanceMetrics{}, err
	}
	if len(rows) == 0 {
		c.logger.Warn("no performance data for application", "app", appName)
		return PerformanceMetrics{}, nil
	}

	var m PerformanceMetrics
	row := rows[0]
	m.AvgDuration = floatField(row, "avg_duration")
	m.P95Duration = floatField(row, "p95_duration")
	m.Throughput = floatField(row, "throughput")
	m.Apdex = apdexScore(row["apdex"])
	return m, nil
}

func floatField(row map[string]any, key string) *float64 {
	switch v := row[key].(type) {
	case float64:
		return &v
	case map[string]any:
		// percentile results arrive keyed by the requested percentile
		for _, inner := range v {
			if f, ok := inner.(float64); ok {
				return &f
			}
		}
	}
	return nil
}

func apdexScore(v any) *float64 {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if s, ok := m["score"].(float64); ok {
		return &s
	}
	return nil
}

// InfrastructureHosts reports utilization per host from SystemSample events,
// falling back to a bare hostname listing when the faceted query fails.
func (c *Client) InfrastructureHosts(ctx context.Context, accountID string, hours int) ([]map[string]any, error) {
	q := fmt.Sprintf(
		"SELECT latest(cpuPercent) as cpu_percent, latest(memoryUsedPercent) as memory_percent, latest(diskUsedPercent) as disk_percent FROM SystemSample FACET hostname SINCE %d hours ago LIMIT 50",
		hours)
	rows, err := c.QueryNRQL(ctx, accountID, q)
	if err == nil {
		return rows, nil
	}
	c.logger.Warn("infrastructure query failed, trying hostname listing", "error", err)
	return c.QueryNRQL(ctx, accountID, fmt.Sprintf("SELECT uniques(hostname) as hosts FROM SystemSample SINCE %d hours ago LIMIT 50", hours))
}

// AlertViolations returns recent activated or closed incidents, falling back
// to AlertEvent rows.
func (c *Client) AlertViolations(ctx context.Context, accountID string, hours int) ([]map[string]any, error) {
	q := fmt.Sprintf("SELECT * FROM NrAiIncident WHERE state IN ('ACTIVATED', 'CLOSED') SINCE %d hours ago LIMIT 50", hours)
	rows, err := c.QueryNRQL(ctx, accountID, q)
	if err == nil {
		return rows, nil
	}
	c.logger.Warn("alert violation query failed, trying AlertEvent", "error", err)
	return c.QueryNRQL(ctx, accountID, fmt.Sprintf("SELECT * FROM AlertEvent SINCE %d hours ago LIMIT 50", hours))
}

// Deployments returns deployment markers, optionally scoped to one
// application.
func (c *Client) Deployments(ctx context.Context, accountID, appName string, hours int) ([]map[string]any, error) {
	var q string
	if appName != "" {
		q = fmt.Sprintf("SELECT * FROM Deployment WHERE appName = '%s' SINCE %d hours ago LIMIT 20", quoteNRQL(appName), hours)
	} else {
		q = fmt.Sprintf("SELECT * FROM Deployment SINCE %d hours ago LIMIT 50", hours)
	}
	return c.QueryNRQL(ctx, accountID, q)
}
