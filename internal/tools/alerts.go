package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

type CreateAlertPolicyInput struct {
	Name               string `json:"name" jsonschema:"Name of the alert policy"`
	IncidentPreference string `json:"incident_preference,omitempty" jsonschema:"How incidents are created: PER_POLICY, PER_CONDITION, or PER_CONDITION_AND_TARGET (default: PER_POLICY)"`
	AccountID          string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type CreateNRQLConditionInput struct {
	PolicyID          string  `json:"policy_id" jsonschema:"Alert policy ID to attach the condition to"`
	Name              string  `json:"name" jsonschema:"Name of the alert condition"`
	Description       string  `json:"description,omitempty" jsonschema:"Description of the alert condition (optional)"`
	NrqlQuery         string  `json:"nrql_query" jsonschema:"NRQL query for the condition"`
	Threshold         float64 `json:"threshold" jsonschema:"Alert threshold value"`
	ThresholdOperator string  `json:"threshold_operator,omitempty" jsonschema:"Threshold operator: ABOVE, BELOW, or EQUAL (default: ABOVE)"`
	ThresholdDuration int     `json:"threshold_duration,omitempty" jsonschema:"Duration in seconds for threshold breach, 60-7200 (default: 300)"`
	Priority          string  `json:"priority,omitempty" jsonschema:"Alert priority: CRITICAL, HIGH, MEDIUM, or LOW (default: CRITICAL)"`
	AggregationWindow int     `json:"aggregation_window,omitempty" jsonschema:"Aggregation window in seconds, 30-1200 (default: 60)"`
	AccountID         string  `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type CreateDestinationInput struct {
	Name       string            `json:"name" jsonschema:"Name of the destination"`
	Type       string            `json:"type" jsonschema:"Type of destination: EMAIL, WEBHOOK, SLACK, PAGERDUTY, or SERVICE_NOW"`
	Properties map[string]string `json:"properties" jsonschema:"Destination-specific properties (e.g. email address, webhook URL)"`
	AccountID  string            `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type CreateChannelInput struct {
	Name          string            `json:"name" jsonschema:"Name of the notification channel"`
	DestinationID string            `json:"destination_id" jsonschema:"ID of the destination to link to"`
	Product       string            `json:"product,omitempty" jsonschema:"Product type (default: IINT for Applied Intelligence)"`
	Type          string            `json:"type" jsonschema:"Channel type: EMAIL, WEBHOOK, SLACK, PAGERDUTY, or SERVICE_NOW"`
	Properties    map[string]string `json:"properties,omitempty" jsonschema:"Channel-specific properties"`
	AccountID     string            `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type CreateWorkflowInput struct {
	Name             string                     `json:"name" jsonschema:"Name of the workflow"`
	ChannelIDs       []string                   `json:"channel_ids" jsonschema:"Notification channel IDs to send alerts to"`
	FilterName       string                     `json:"filter_name,omitempty" jsonschema:"Name for the issues filter (optional)"`
	FilterPredicates []nrclient.FilterPredicate `json:"filter_predicates,omitempty" jsonschema:"Predicates deciding which alerts trigger this workflow"`
	Enabled          *bool                      `json:"enabled,omitempty" jsonschema:"Whether the workflow is enabled (default: true)"`
	AccountID        string                     `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type ListPoliciesInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type ListConditionsInput struct {
	PolicyID  string `json:"policy_id,omitempty" jsonschema:"Policy ID to filter conditions (optional, all if unset)"`
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type ListDestinationsInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type ListChannelsInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

type ListWorkflowsInput struct {
	AccountID string `json:"account_id,omitempty" jsonschema:"New Relic account ID (optional)"`
}

func (r *Registry) registerAlertTools(server *mcp.Server) {
	addTool(r, server, &mcp.Tool{
		Name:        "create_alert_policy",
		Description: "Create a new alert policy. Returns the policy ID needed by create_nrql_condition.",
	}, r.handleCreateAlertPolicy)

	addTool(r, server, &mcp.Tool{
		Name:        "create_nrql_condition",
		Description: "Create a static NRQL alert condition on an existing policy.",
	}, r.handleCreateNRQLCondition)

	addTool(r, server, &mcp.Tool{
		Name:        "create_notification_destination",
		Description: "Create a notification destination (email, webhook, Slack, etc.).",
	}, r.handleCreateDestination)

	addTool(r, server, &mcp.Tool{
		Name:        "create_notification_channel",
		Description: "Create a notification channel linked to a destination.",
	}, r.handleCreateChannel)

	addTool(r, server, &mcp.Tool{
		Name:        "create_workflow",
		Description: "Create a workflow connecting alert policies to notification channels.",
	}, r.handleCreateWorkflow)

	addTool(r, server, &mcp.Tool{
		Name:        "list_alert_policies",
		Description: "List all alert policies in the account.",
	}, r.handleListPolicies)

	addTool(r, server, &mcp.Tool{
		Name:        "list_alert_conditions",
		Description: "List alert conditions, optionally filtered by policy.",
	}, r.handleListConditions)

	addTool(r, server, &mcp.Tool{
		Name:        "list_notification_destinations",
		Description: "List all notification destinations.",
	}, r.handleListDestinations)

	addTool(r, server, &mcp.Tool{
		Name:        "list_notification_channels",
		Description: "List all notification channels.",
	}, r.handleListChannels)

	addTool(r, server, &mcp.Tool{
		Name:        "list_workflows",
		Description: "List all alert workflows.",
	}, r.handleListWorkflows)
}

func (r *Registry) handleCreateAlertPolicy(ctx context.Context, _ *mcp.CallToolRequest, in CreateAlertPolicyInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	switch in.IncidentPreference {
	case "", "PER_POLICY", "PER_CONDITION", "PER_CONDITION_AND_TARGET":
	default:
		return nil, nil, nrclient.Validationf("incident_preference must be PER_POLICY, PER_CONDITION, or PER_CONDITION_AND_TARGET")
	}

	policy, err := r.client.CreateAlertPolicy(ctx, accountID, in.Name, in.IncidentPreference)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Alert policy '%s' created successfully.\nPolicy ID: %s\nIncident preference: %s",
		policy.Name, policy.ID, policy.IncidentPreference)), nil, nil
}

func (r *Registry) handleCreateNRQLCondition(ctx context.Context, _ *mcp.CallToolRequest, in CreateNRQLConditionInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(in.PolicyID) == "" {
		return nil, nil, nrclient.Validationf("policy_id cannot be empty: create_alert_policy must succeed first")
	}
	query, err := ValidateNRQL(in.NrqlQuery)
	if err != nil {
		return nil, nil, err
	}
	switch in.ThresholdOperator {
	case "", "ABOVE", "BELOW", "EQUAL":
	default:
		return nil, nil, nrclient.Validationf("threshold_operator must be ABOVE, BELOW, or EQUAL")
	}
	if in.ThresholdDuration != 0 && (in.ThresholdDuration < 60 || in.ThresholdDuration > 7200) {
		return nil, nil, nrclient.Validationf("threshold_duration must be between 60 and 7200 seconds")
	}
	if in.AggregationWindow != 0 && (in.AggregationWindow < 30 || in.AggregationWindow > 1200) {
		return nil, nil, nrclient.Validationf("aggregation_window must be between 30 and 1200 seconds")
	}

	condition, err := r.client.CreateNRQLCondition(ctx, accountID, nrclient.NRQLConditionInput{
		PolicyID:          in.PolicyID,
		Name:              in.Name,
		Description:       in.Description,
		Query:             query,
		Threshold:         in.Threshold,
		Operator:          in.ThresholdOperator,
		ThresholdDuration: in.ThresholdDuration,
		Priority:          in.Priority,
		AggregationWindow: in.AggregationWindow,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("NRQL condition '%s' created successfully.\nCondition ID: %s\nQuery: %s",
		condition.Name, condition.ID, condition.Nrql.Query)), nil, nil
}

func (r *Registry) handleCreateDestination(ctx context.Context, _ *mcp.CallToolRequest, in CreateDestinationInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := validNotificationType(in.Type); err != nil {
		return nil, nil, err
	}
	if len(in.Properties) == 0 {
		return nil, nil, nrclient.Validationf("properties cannot be empty")
	}

	destination, err := r.client.CreateNotificationDestination(ctx, accountID, in.Name, in.Type, in.Properties)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Notification destination '%s' created successfully.\nDestination ID: %s\nType: %s",
		destination.Name, destination.ID, destination.Type)), nil, nil
}

func (r *Registry) handleCreateChannel(ctx context.Context, _ *mcp.CallToolRequest, in CreateChannelInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}
	if err := validNotificationType(in.Type); err != nil {
		return nil, nil, err
	}

	channel, err := r.client.CreateNotificationChannel(ctx, accountID, in.Name, in.DestinationID, in.Type, in.Product, in.Properties)
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Notification channel '%s' created successfully.\nChannel ID: %s\nDestination ID: %s",
		channel.Name, channel.ID, channel.DestinationID)), nil, nil
}

func (r *Registry) handleCreateWorkflow(ctx context.Context, _ *mcp.CallToolRequest, in CreateWorkflowInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	enabled := true
	if in.Enabled != nil {
		enabled = *in.Enabled
	}
	workflow, err := r.client.CreateWorkflow(ctx, accountID, nrclient.WorkflowInput{
		Name:             in.Name,
		ChannelIDs:       in.ChannelIDs,
		Enabled:          enabled,
		FilterName:       in.FilterName,
		FilterPredicates: in.FilterPredicates,
	})
	if err != nil {
		return nil, nil, err
	}
	return textResult(fmt.Sprintf("Workflow '%s' created successfully.\nWorkflow ID: %s\nDestinations: %d configured",
		workflow.Name, workflow.ID, len(workflow.DestinationConfigurations))), nil, nil
}

func (r *Registry) handleListPolicies(ctx context.Context, _ *mcp.CallToolRequest, in ListPoliciesInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.ListAlertPolicies(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Policies) == 0 {
		return textResult("No alert policies found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d alert policies:\n\n", list.TotalCount)
	for _, p := range list.Policies {
		fmt.Fprintf(&b, "- **%s**\n  Policy ID: %s\n  Incident preference: %s\n\n", p.Name, p.ID, p.IncidentPreference)
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleListConditions(ctx context.Context, _ *mcp.CallToolRequest, in ListConditionsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.ListAlertConditions(ctx, accountID, in.PolicyID)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Conditions) == 0 {
		return textResult("No alert conditions found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d alert conditions:\n\n", list.TotalCount)
	for _, c := range list.Conditions {
		fmt.Fprintf(&b, "- **%s**\n  Condition ID: %s\n  Policy ID: %s\n  Enabled: %t\n  Query: `%s`\n",
			c.Name, c.ID, c.PolicyID, c.Enabled, c.Nrql.Query)
		if len(c.Terms) > 0 {
			t := c.Terms[0]
			fmt.Fprintf(&b, "  Threshold: %s %g (%s)\n", t.Operator, t.Threshold, t.Priority)
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleListDestinations(ctx context.Context, _ *mcp.CallToolRequest, in ListDestinationsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.ListNotificationDestinations(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Destinations) == 0 {
		return textResult("No notification destinations found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d notification destinations:\n\n", list.TotalCount)
	for _, d := range list.Destinations {
		fmt.Fprintf(&b, "- **%s**\n  Destination ID: %s\n  Type: %s\n\n", d.Name, d.ID, d.Type)
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleListChannels(ctx context.Context, _ *mcp.CallToolRequest, in ListChannelsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.ListNotificationChannels(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Channels) == 0 {
		return textResult("No notification channels found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d notification channels:\n\n", list.TotalCount)
	for _, c := range list.Channels {
		fmt.Fprintf(&b, "- **%s**\n  Channel ID: %s\n  Type: %s\n  Destination ID: %s\n\n", c.Name, c.ID, c.Type, c.DestinationID)
	}
	return textResult(b.String()), nil, nil
}

func (r *Registry) handleListWorkflows(ctx context.Context, _ *mcp.CallToolRequest, in ListWorkflowsInput) (*mcp.CallToolResult, any, error) {
	accountID, err := r.accountID(in.AccountID)
	if err != nil {
		return nil, nil, err
	}

	list, err := r.client.ListWorkflows(ctx, accountID)
	if err != nil {
		return nil, nil, err
	}
	if len(list.Workflows) == 0 {
		return textResult("No alert workflows found."), nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d alert workflows:\n\n", list.TotalCount)
	for _, w := range list.Workflows {
		fmt.Fprintf(&b, "- **%s**\n  Workflow ID: %s\n  Destinations: %d configured\n", w.Name, w.ID, len(w.DestinationConfigurations))
		if w.IssuesFilter.Name != "" {
			fmt.Fprintf(&b, "  Filter: %s\n", w.IssuesFilter.Name)
		}
		b.WriteString("\n")
	}
	return textResult(b.String()), nil, nil
}

func validNotificationType(t string) error {
	switch t {
	case "EMAIL", "WEBHOOK", "SLACK", "PAGERDUTY", "SERVICE_NOW":
		return nil
	default:
		return nrclient.Validationf("type must be one of EMAIL, WEBHOOK, SLACK, PAGERDUTY, SERVICE_NOW")
	}
}
