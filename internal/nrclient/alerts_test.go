package nrclient

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAlertPolicy(t *testing.T) {
	var gotReq graphQLRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"data": {"alertsPolicyCreate": {"id": "98765", "name": "prod alerts", "incidentPreference": "PER_POLICY"}}}`))
	})

	policy, err := c.CreateAlertPolicy(context.Background(), testAccountID, "prod alerts", "")
	require.NoError(t, err)
	assert.Equal(t, "98765", policy.ID)
	assert.Equal(t, "prod alerts", policy.Name)

	input := gotReq.Variables["policy"].(map[string]any)
	assert.Equal(t, "PER_POLICY", input["incidentPreference"], "empty preference defaults to PER_POLICY")
}

func TestCreateAlertPolicyEmptyName(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.CreateAlertPolicy(context.Background(), testAccountID, "  ", "")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, calls.Load())
}

func TestCreateAlertPolicyEmptyResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"alertsPolicyCreate": {}}}`))
	})

	_, err := c.CreateAlertPolicy(context.Background(), testAccountID, "prod alerts", "")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "empty response")
}

func TestCreateNRQLConditionEmptyPolicyID(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.CreateNRQLCondition(context.Background(), testAccountID, NRQLConditionInput{
		Name:      "error rate",
		Query:     "SELECT count(*) FROM TransactionError",
		Threshold: 5,
	})
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "policy_id cannot be empty")
	assert.Zero(t, calls.Load(), "validation must run before any network call")
}

func TestCreateNRQLConditionDefaults(t *testing.T) {
	var gotReq graphQLRequest
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write([]byte(`{"data": {"alertsNrqlConditionStaticCreate": {"id": "111", "name": "error rate", "enabled": true}}}`))
	})

	cond, err := c.CreateNRQLCondition(context.Background(), testAccountID, NRQLConditionInput{
		PolicyID:  "98765",
		Name:      "error rate",
		Query:     "SELECT count(*) FROM TransactionError",
		Threshold: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "111", cond.ID)

	condition := gotReq.Variables["condition"].(map[string]any)
	term := condition["terms"].([]any)[0].(map[string]any)
	assert.Equal(t, "ABOVE", term["operator"])
	assert.Equal(t, "CRITICAL", term["priority"])
	assert.Equal(t, float64(300), term["thresholdDuration"])
	assert.Equal(t, "AT_LEAST_ONCE", term["thresholdOccurrences"])

	signal := condition["signal"].(map[string]any)
	assert.Equal(t, float64(60), signal["aggregationWindow"])
}

func TestListAlertPolicies(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"alerts": {"policiesSearch": {
			"policies": [{"id": "1", "name": "a", "incidentPreference": "PER_POLICY"}],
			"totalCount": 1,
			"nextCursor": null
		}}}}}}`))
	})

	list, err := c.ListAlertPolicies(context.Background(), testAccountID)
	require.NoError(t, err)
	require.Len(t, list.Policies, 1)
	assert.Equal(t, "a", list.Policies[0].Name)
	assert.Equal(t, 1, list.TotalCount)
}

func TestCreateNotificationDestinationErrorSurfaced(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"aiNotificationsCreateDestination": {
			"destination": null,
			"errors": [{"__typename": "AiNotificationsResponseError", "description": "invalid webhook url", "type": "INVALID_PARAMETER"}]
		}}}`))
	})

	_, err := c.CreateNotificationDestination(context.Background(), testAccountID, "hooks", "WEBHOOK", map[string]string{"url": "nope"})
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "invalid webhook url")
}
