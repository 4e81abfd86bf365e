package resources

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

func newTestHandlers(t *testing.T, handler http.HandlerFunc) *Handlers {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	settings := config.Settings{
		APIKey:    "NRAK-TESTKEY1234567890",
		AccountID: "1234567",
		Region:    "US",
		Timeout:   5,
	}
	client := nrclient.NewForEndpoint(settings, srv.URL, nil)
	return NewHandlers(client, settings, nil)
}

func TestReadUnknownURI(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unknown URIs must not reach the network")
	})

	_, err := h.Read(context.Background(), "newrelic://nonsense")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown resource URI")
}

func TestReadApplications(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"nrql": {"results": [{"applications": ["checkout", "billing"]}]}}}}}`))
	})

	text, err := h.Read(context.Background(), "newrelic://applications")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(text, "# New Relic Applications"))
	assert.Contains(t, text, "2 applications found")
	assert.Contains(t, text, "- **checkout**")
	assert.Contains(t, text, "- **billing**")
}

func TestReadRecentIncidents(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"nrql": {"results": [{"title": "cpu high", "state": "ACTIVATED", "timestamp": 1756600000000}]}}}}}`))
	})

	text, err := h.Read(context.Background(), "newrelic://incidents/recent")
	require.NoError(t, err)
	assert.Contains(t, text, "# Recent Incidents")
	assert.Contains(t, text, "cpu high")
	assert.Contains(t, text, "ACTIVATED")
}

func TestReadAlertPoliciesEmpty(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"alerts": {"policiesSearch": {"policies": [], "totalCount": 0}}}}}}`))
	})

	text, err := h.Read(context.Background(), "newrelic://alerts/policies")
	require.NoError(t, err)
	assert.Contains(t, text, "No alert policies found")
}

func TestReadDashboards(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"entitySearch": {"results": {"entities": [
			{"name": "Prod Overview", "guid": "abc123==", "permalink": "https://one.newrelic.com/d/abc", "createdAt": "2026-01-01"}
		], "nextCursor": null}}}}}`))
	})

	text, err := h.Read(context.Background(), "newrelic://dashboards")
	require.NoError(t, err)
	assert.Contains(t, text, "## Prod Overview")
	assert.Contains(t, text, "**GUID**: abc123==")
	assert.Contains(t, text, "**URL**: https://one.newrelic.com/d/abc")
}

func TestReadWorkflows(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"aiWorkflows": {"workflows": {"entities": [
			{"id": "wf1", "name": "page oncall", "workflowEnabled": true,
			 "destinationConfigurations": [{"channelId": "ch1", "name": "oncall email", "type": "EMAIL"}],
			 "issuesFilter": {"name": "critical only", "type": "FILTER", "predicates": []}}
		], "totalCount": 1}}}}}}`))
	})

	text, err := h.Read(context.Background(), "newrelic://alerts/workflows")
	require.NoError(t, err)
	assert.Contains(t, text, "## page oncall")
	assert.Contains(t, text, "oncall email (EMAIL)")
	assert.Contains(t, text, "**Filter**: critical only")
}

func TestReadPropagatesUpstreamErrors(t *testing.T) {
	h := newTestHandlers(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := h.Read(context.Background(), "newrelic://applications")
	require.Error(t, err)
	assert.Equal(t, nrclient.KindUpstream, nrclient.KindOf(err))
}
