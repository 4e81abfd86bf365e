package nrclient

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// AlertPolicy is a New Relic alert policy.
type AlertPolicy struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	IncidentPreference string `json:"incidentPreference"`
}

const createPolicyMutation = `mutation($accountId: Int!, $policy: AlertsPolicyInput!) {
  alertsPolicyCreate(accountId: $accountId, policy: $policy) {
    id
    name
    incidentPreference
  }
}`

// CreateAlertPolicy creates an alert policy and returns its assigned ID.
func (c *Client) CreateAlertPolicy(ctx context.Context, accountID, name, incidentPreference string) (AlertPolicy, error) {
	if strings.TrimSpace(name) == "" {
		return AlertPolicy{}, Validationf("policy name cannot be empty")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return AlertPolicy{}, err
	}
	if incidentPreference == "" {
		incidentPreference = "PER_POLICY"
	}

	data, err := c.mutate(ctx, createPolicyMutation, map[string]any{
		"accountId": id,
		"policy":    map[string]any{"name": name, "incidentPreference": incidentPreference},
	})
	if err != nil {
		return AlertPolicy{}, err
	}

	var payload struct {
		AlertsPolicyCreate AlertPolicy `json:"alertsPolicyCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return AlertPolicy{}, upstream(0, "unexpected policy create response: "+err.Error())
	}
	if payload.AlertsPolicyCreate.ID == "" {
		return AlertPolicy{}, upstream(0, "failed to create alert policy: empty response")
	}
	return payload.AlertsPolicyCreate, nil
}

// NRQLConditionInput describes a static NRQL alert condition to create.
type NRQLConditionInput struct {
	PolicyID          string
	Name              string
	Description       string
	Query             string
	Threshold         float64
	Operator          string
	ThresholdDuration int
	Priority          string
	AggregationWindow int
}

// NRQLCondition is the created condition as reported by NerdGraph.
type NRQLCondition struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Enabled bool   `json:"enabled"`
	Nrql    struct {
		Query string `json:"query"`
	} `json:"nrql"`
	Terms []ConditionTerm `json:"terms"`
}

// ConditionTerm is one threshold term on a condition.
type ConditionTerm struct {
	Operator             string  `json:"operator"`
	Priority             string  `json:"priority"`
	Threshold            float64 `json:"threshold"`
	ThresholdDuration    int     `json:"thresholdDuration"`
	ThresholdOccurrences string  `json:"thresholdOccurrences"`
}

const createConditionMutation = `mutation($accountId: Int!, $policyId: ID!, $condition: AlertsNrqlConditionStaticInput!) {
  alertsNrqlConditionStaticCreate(accountId: $accountId, policyId: $policyId, condition: $condition) {
    id
    name
    enabled
    nrql {
      query
    }
    terms {
      operator
      priority
      threshold
      thresholdDuration
      thresholdOccurrences
    }
  }
}`

// CreateNRQLCondition attaches a static NRQL condition to an existing policy.
// The policy ID must be a non-empty string; this is checked before any
// network call so a failed policy create cannot cascade into a bad condition.
func (c *Client) CreateNRQLCondition(ctx context.Context, accountID string, in NRQLConditionInput) (NRQLCondition, error) {
	if strings.TrimSpace(in.PolicyID) == "" {
		return NRQLCondition{}, Validationf("policy_id cannot be empty: create_alert_policy must succeed first")
	}
	if strings.TrimSpace(in.Name) == "" {
		return NRQLCondition{}, Validationf("condition name cannot be empty")
	}
	if strings.TrimSpace(in.Query) == "" {
		return NRQLCondition{}, Validationf("nrql_query cannot be empty")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return NRQLCondition{}, err
	}

	if in.Operator == "" {
		in.Operator = "ABOVE"
	}
	if in.Priority == "" {
		in.Priority = "CRITICAL"
	}
	if in.ThresholdDuration == 0 {
		in.ThresholdDuration = 300
	}
	if in.AggregationWindow == 0 {
		in.AggregationWindow = 60
	}

	condition := map[string]any{
		"name":    in.Name,
		"enabled": true,
		"nrql":    map[string]any{"query": in.Query},
		"signal":  map[string]any{"aggregationWindow": in.AggregationWindow, "evaluationOffset": 3},
		"terms": []map[string]any{{
			"operator":             in.Operator,
			"priority":             in.Priority,
			"threshold":            in.Threshold,
			"thresholdDuration":    in.ThresholdDuration,
			"thresholdOccurrences": "AT_LEAST_ONCE",
		}},
	}
	if in.Description != "" {
		condition["description"] = in.Description
	}

	data, err := c.mutate(ctx, createConditionMutation, map[string]any{
		"accountId": id,
		"policyId":  in.PolicyID,
		"condition": condition,
	})
	if err != nil {
		return NRQLCondition{}, err
	}

	var payload struct {
		Created NRQLCondition `json:"alertsNrqlConditionStaticCreate"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return NRQLCondition{}, upstream(0, "unexpected condition create response: "+err.Error())
	}
	if payload.Created.ID == "" {
		return NRQLCondition{}, upstream(0, "failed to create NRQL condition: empty response")
	}
	return payload.Created, nil
}

// Property is a key/value pair on a destination or channel.
type Property struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// NotificationDestination is a created or listed notification destination.
type NotificationDestination struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Properties []Property `json:"properties"`
}

type notificationError struct {
	Typename    string `json:"__typename"`
	Description string `json:"description"`
	Type        string `json:"type"`
}

func firstNotificationError(errs []notificationError, operation string) error {
	if len(errs) == 0 {
		return nil
	}
	msg := errs[0].Description
	if msg == "" {
		msg = errs[0].Type
	}
	return upstream(0, fmt.Sprintf("%s failed: %s", operation, msg))
}

const createDestinationMutation = `mutation($accountId: Int!, $destination: AiNotificationsDestinationInput!) {
  aiNotificationsCreateDestination(accountId: $accountId, destination: $destination) {
    destination {
      id
      name
      type
      properties {
        key
        value
      }
    }
    errors {
      __typename
      ... on AiNotificationsResponseError {
        description
        type
      }
      ... on AiNotificationsSuggestionError {
        description
        type
      }
    }
  }
}`

// CreateNotificationDestination creates an email/webhook/Slack/etc destination.
func (c *Client) CreateNotificationDestination(ctx context.Context, accountID, name, destinationType string, properties map[string]string) (NotificationDestination, error) {
	if strings.TrimSpace(name) == "" {
		return NotificationDestination{}, Validationf("destination name cannot be empty")
	}
	if strings.TrimSpace(destinationType) == "" {
		return NotificationDestination{}, Validationf("destination type cannot be empty")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return NotificationDestination{}, err
	}

	data, err := c.mutate(ctx, createDestinationMutation, map[string]any{
		"accountId": id,
		"destination": map[string]any{
			"name":       name,
			"type":       destinationType,
			"properties": propertyList(properties),
		},
	})
	if err != nil {
		return NotificationDestination{}, err
	}

	var payload struct {
		Create struct {
			Destination NotificationDestination `json:"destination"`
			Errors      []notificationError     `json:"errors"`
		} `json:"aiNotificationsCreateDestination"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return NotificationDestination{}, upstream(0, "unexpected destination create response: "+err.Error())
	}
	if err := firstNotificationError(payload.Create.Errors, "destination creation"); err != nil {
		return NotificationDestination{}, err
	}
	return payload.Create.Destination, nil
}

// NotificationChannel is a created or listed notification channel.
type NotificationChannel struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Type          string     `json:"type"`
	DestinationID string     `json:"destinationId"`
	Product       string     `json:"product"`
	Properties    []Property `json:"properties"`
}

const createChannelMutation = `mutation($accountId: Int!, $channel: AiNotificationsChannelInput!) {
  aiNotificationsCreateChannel(accountId: $accountId, channel: $channel) {
    channel {
      id
      name
      type
      destinationId
      product
      properties {
        key
        value
      }
    }
    errors {
      __typename
      ... on AiNotificationsResponseError {
        description
        type
      }
      ... on AiNotificationsSuggestionError {
        description
        type
      }
    }
  }
}`

// CreateNotificationChannel creates a channel linked to a destination.
func (c *Client) CreateNotificationChannel(ctx context.Context, accountID, name, destinationID, channelType, product string, properties map[string]string) (NotificationChannel, error) {
	if strings.TrimSpace(name) == "" {
		return NotificationChannel{}, Validationf("channel name cannot be empty")
	}
	if strings.TrimSpace(destinationID) == "" {
		return NotificationChannel{}, Validationf("destination_id cannot be empty")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return NotificationChannel{}, err
	}
	if product == "" {
		product = "IINT"
	}

	data, err := c.mutate(ctx, createChannelMutation, map[string]any{
		"accountId": id,
		"channel": map[string]any{
			"name":          name,
			"type":          channelType,
			"destinationId": destinationID,
			"product":       product,
			"properties":    propertyList(properties),
		},
	})
	if err != nil {
		return NotificationChannel{}, err
	}

	var payload struct {
		Create struct {
			Channel NotificationChannel `json:"channel"`
			Errors  []notificationError `json:"errors"`
		} `json:"aiNotificationsCreateChannel"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return NotificationChannel{}, upstream(0, "unexpected channel create response: "+err.Error())
	}
	if err := firstNotificationError(payload.Create.Errors, "channel creation"); err != nil {
		return NotificationChannel{}, err
	}
	return payload.Create.Channel, nil
}

// FilterPredicate narrows which issues trigger a workflow.
type FilterPredicate struct {
	Attribute string   `json:"attribute"`
	Operator  string   `json:"operator"`
	Values    []string `json:"values"`
}

// WorkflowInput describes a workflow to create.
type WorkflowInput struct {
	Name             string
	ChannelIDs       []string
	Enabled          bool
	FilterName       string
	FilterPredicates []FilterPredicate
}

// Workflow is a created or listed alert workflow.
type Workflow struct {
	ID                        string `json:"id"`
	Name                      string `json:"name"`
	Enabled                   bool   `json:"workflowEnabled"`
	DestinationConfigurations []struct {
		ChannelID string `json:"channelId"`
		Name      string `json:"name"`
		Type      string `json:"type"`
	} `json:"destinationConfigurations"`
	IssuesFilter struct {
		Name       string            `json:"name"`
		Type       string            `json:"type"`
		Predicates []FilterPredicate `json:"predicates"`
	} `json:"issuesFilter"`
}

const createWorkflowMutation = `mutation($accountId: Int!, $createWorkflowData: AiWorkflowsCreateWorkflowInput!) {
  aiWorkflowsCreateWorkflow(accountId: $accountId, createWorkflowData: $createWorkflowData) {
    workflow {
      id
      name
      workflowEnabled
      destinationConfigurations {
        channelId
        name
        type
      }
      issuesFilter {
        name
        type
        predicates {
          attribute
          operator
          values
        }
      }
    }
    errors {
      __typename
      ... on AiNotificationsResponseError {
        description
        type
      }
      ... on AiNotificationsSuggestionError {
        description
        type
      }
    }
  }
}`

// CreateWorkflow connects alert policies to notification channels.
func (c *Client) CreateWorkflow(ctx context.Context, accountID string, in WorkflowInput) (Workflow, error) {
	if strings.TrimSpace(in.Name) == "" {
		return Workflow{}, Validationf("workflow name cannot be empty")
	}
	if len(in.ChannelIDs) == 0 {
		return Workflow{}, Validationf("at least one channel_id is required")
	}
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return Workflow{}, err
	}
	if in.FilterName == "" {
		in.FilterName = "Filter-name"
	}

	destinations := make([]map[string]any, 0, len(in.ChannelIDs))
	for _, cid := range in.ChannelIDs {
		destinations = append(destinations, map[string]any{"channelId": cid})
	}
	predicates := in.FilterPredicates
	if predicates == nil {
		predicates = []FilterPredicate{}
	}

	data, err := c.mutate(ctx, createWorkflowMutation, map[string]any{
		"accountId": id,
		"createWorkflowData": map[string]any{
			"name":                      in.Name,
			"workflowEnabled":           in.Enabled,
			"destinationConfigurations": destinations,
			"issuesFilter":              map[string]any{"name": in.FilterName, "type": "FILTER", "predicates": predicates},
		},
	})
	if err != nil {
		return Workflow{}, err
	}

	var payload struct {
		Create struct {
			Workflow Workflow            `json:"workflow"`
			Errors   []notificationError `json:"errors"`
		} `json:"aiWorkflowsCreateWorkflow"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return Workflow{}, upstream(0, "unexpected workflow create response: "+err.Error())
	}
	if err := firstNotificationError(payload.Create.Errors, "workflow creation"); err != nil {
		return Workflow{}, err
	}
	return payload.Create.Workflow, nil
}

// PolicyList is a page of alert policies.
type PolicyList struct {
	Policies   []AlertPolicy `json:"policies"`
	TotalCount int           `json:"totalCount"`
	NextCursor string        `json:"nextCursor"`
}

// ListAlertPolicies returns the account's alert policies.
func (c *Client) ListAlertPolicies(ctx context.Context, accountID string) (PolicyList, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return PolicyList{}, err
	}

	const doc = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      alerts {
        policiesSearch {
          policies {
            id
            name
            incidentPreference
          }
          nextCursor
          totalCount
        }
      }
    }
  }
}`
	data, err := c.query(ctx, doc, map[string]any{"accountId": id})
	if err != nil {
		return PolicyList{}, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				Alerts struct {
					PoliciesSearch PolicyList `json:"policiesSearch"`
				} `json:"alerts"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return PolicyList{}, upstream(0, "unexpected policy list response: "+err.Error())
	}
	return payload.Actor.Account.Alerts.PoliciesSearch, nil
}

// ListedCondition is one NRQL condition as returned by a conditions search.
type ListedCondition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
	Type        string `json:"type"`
	PolicyID    string `json:"policyId"`
	Nrql        struct {
		Query string `json:"query"`
	} `json:"nrql"`
	Terms []ConditionTerm `json:"terms"`
}

// ConditionList is a page of NRQL conditions.
type ConditionList struct {
	Conditions []ListedCondition `json:"nrqlConditions"`
	TotalCount int               `json:"totalCount"`
	NextCursor string            `json:"nextCursor"`
}

// ListAlertConditions returns NRQL conditions, optionally scoped to a policy.
func (c *Client) ListAlertConditions(ctx context.Context, accountID, policyID string) (ConditionList, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return ConditionList{}, err
	}

	const fields = `nrqlConditions {
          id
          name
          description
          enabled
          type
          policyId
          nrql {
            query
          }
          terms {
            operator
            priority
            threshold
            thresholdDuration
            thresholdOccurrences
          }
        }
        nextCursor
        totalCount`

	var doc string
	vars := map[string]any{"accountId": id}
	if policyID != "" {
		doc = `query($accountId: Int!, $policyId: ID!) {
  actor {
    account(id: $accountId) {
      alerts {
        nrqlConditionsSearch(searchCriteria: {policyId: $policyId}) {
          ` + fields + `
        }
      }
    }
  }
}`
		vars["policyId"] = policyID
	} else {
		doc = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      alerts {
        nrqlConditionsSearch {
          ` + fields + `
        }
      }
    }
  }
}`
	}

	data, err := c.query(ctx, doc, vars)
	if err != nil {
		return ConditionList{}, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				Alerts struct {
					Search ConditionList `json:"nrqlConditionsSearch"`
				} `json:"alerts"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ConditionList{}, upstream(0, "unexpected condition list response: "+err.Error())
	}
	return payload.Actor.Account.Alerts.Search, nil
}

// DestinationList is a page of notification destinations.
type DestinationList struct {
	Destinations []NotificationDestination `json:"entities"`
	TotalCount   int                       `json:"totalCount"`
	NextCursor   string                    `json:"nextCursor"`
}

// ListNotificationDestinations returns the account's destinations.
func (c *Client) ListNotificationDestinations(ctx context.Context, accountID string) (DestinationList, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return DestinationList{}, err
	}

	const doc = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      aiNotifications {
        destinations {
          entities {
            id
            name
            type
            properties {
              key
              value
            }
          }
          nextCursor
          totalCount
        }
      }
    }
  }
}`
	data, err := c.query(ctx, doc, map[string]any{"accountId": id})
	if err != nil {
		return DestinationList{}, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				AiNotifications struct {
					Destinations DestinationList `json:"destinations"`
				} `json:"aiNotifications"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return DestinationList{}, upstream(0, "unexpected destination list response: "+err.Error())
	}
	return payload.Actor.Account.AiNotifications.Destinations, nil
}

// ChannelList is a page of notification channels.
type ChannelList struct {
	Channels   []NotificationChannel `json:"entities"`
	TotalCount int                   `json:"totalCount"`
	NextCursor string                `json:"nextCursor"`
}

// ListNotificationChannels returns the account's channels.
func (c *Client) ListNotificationChannels(ctx context.Context, accountID string) (ChannelList, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return ChannelList{}, err
	}

	const doc = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      aiNotifications {
        channels {
          entities {
            id
            name
            type
            destinationId
            product
            properties {
              key
              value
            }
          }
          nextCursor
          totalCount
        }
      }
    }
  }
}`
	data, err := c.query(ctx, doc, map[string]any{"accountId": id})
	if err != nil {
		return ChannelList{}, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				AiNotifications struct {
					Channels ChannelList `json:"channels"`
				} `json:"aiNotifications"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return ChannelList{}, upstream(0, "unexpected channel list response: "+err.Error())
	}
	return payload.Actor.Account.AiNotifications.Channels, nil
}

// WorkflowList is a page of alert workflows.
type WorkflowList struct {
	Workflows  []Workflow `json:"entities"`
	TotalCount int        `json:"totalCount"`
	NextCursor string     `json:"nextCursor"`
}

// ListWorkflows returns the account's alert workflows.
func (c *Client) ListWorkflows(ctx context.Context, accountID string) (WorkflowList, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return WorkflowList{}, err
	}

	const doc = `query($accountId: Int!) {
  actor {
    account(id: $accountId) {
      aiWorkflows {
        workflows {
          entities {
            id
            name
            workflowEnabled
            destinationConfigurations {
              channelId
              name
              type
            }
            issuesFilter {
              name
              type
              predicates {
                attribute
                operator
                values
              }
            }
          }
          nextCursor
          totalCount
        }
      }
    }
  }
}`
	data, err := c.query(ctx, doc, map[string]any{"accountId": id})
	if err != nil {
		return WorkflowList{}, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				AiWorkflows struct {
					Workflows WorkflowList `json:"workflows"`
				} `json:"aiWorkflows"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return WorkflowList{}, upstream(0, "unexpected workflow list response: "+err.Error())
	}
	return payload.Actor.Account.AiWorkflows.Workflows, nil
}

func propertyList(properties map[string]string) []map[string]string {
	out := make([]map[string]string, 0, len(properties))
	for k, v := range properties {
		out = append(out, map[string]string{"key": k, "value": v})
	}
	return out
}
