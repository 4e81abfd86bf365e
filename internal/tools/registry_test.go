package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

const testAccountID = "1234567"

func newTestRegistry(t *testing.T, handler http.HandlerFunc) (*Registry, *atomic.Int32) {
	t.Helper()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	settings := config.Settings{
		APIKey:    "NRAK-TESTKEY1234567890",
		AccountID: testAccountID,
		Region:    "US",
		Timeout:   5,
	}
	client := nrclient.NewForEndpoint(settings, srv.URL, nil)
	registry := NewRegistry(client, settings, nil)
	server := mcp.NewServer(&mcp.Implementation{Name: "test", Version: "0.0.0"}, nil)
	registry.RegisterAll(server)
	return registry, &calls
}

func nrqlStub(rows string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data": {"actor": {"account": {"nrql": {"results": ` + rows + `}}}}}`))
	}
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestRegisterAllToolCount(t *testing.T) {
	registry, _ := newTestRegistry(t, nrqlStub("[]"))

	names := registry.Tools()
	assert.Len(t, names, 24)

	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	for _, want := range []string{
		"query_nrql", "get_app_performance", "get_incidents",
		"get_dashboards", "add_widget_to_dashboard", "delete_widget",
		"create_alert_policy", "create_nrql_condition", "list_workflows",
	} {
		assert.True(t, set[want], "missing tool %s", want)
	}
}

func TestDispatchUnknownTool(t *testing.T) {
	registry, calls := newTestRegistry(t, nrqlStub("[]"))

	res, err := registry.Dispatch(context.Background(), "mine_bitcoin", nil)
	require.NoError(t, err, "unknown tools yield an error result, not a protocol error")
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "unsupported_tool")
	assert.Zero(t, calls.Load())
}

func TestDispatchQueryNRQL(t *testing.T) {
	registry, _ := newTestRegistry(t, nrqlStub(`[{"count": 42}]`))

	args, _ := json.Marshal(QueryNRQLInput{Query: "SELECT count(*) FROM Transaction"})
	res, err := registry.Dispatch(context.Background(), "query_nrql", args)
	require.NoError(t, err)
	assert.False(t, res.IsError)

	text := resultText(t, res)
	assert.Contains(t, text, "```json")
	assert.Contains(t, text, `"count": 42`)
}

func TestDispatchValidationErrorSkipsNetwork(t *testing.T) {
	registry, calls := newTestRegistry(t, nrqlStub("[]"))

	args, _ := json.Marshal(QueryNRQLInput{Query: "DROP TABLE users"})
	res, err := registry.Dispatch(context.Background(), "query_nrql", args)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "validation")
	assert.Zero(t, calls.Load())
}

func TestDispatchUpstreamErrorThenRecovery(t *testing.T) {
	var fail atomic.Bool
	fail.Store(true)
	registry, _ := newTestRegistry(t, func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("temporarily unavailable"))
			return
		}
		nrqlStub(`[{"ok": true}]`)(w, r)
	})

	args, _ := json.Marshal(QueryNRQLInput{Query: "SELECT count(*) FROM Transaction"})
	res, err := registry.Dispatch(context.Background(), "query_nrql", args)
	require.NoError(t, err, "upstream failures become error results")
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "upstream")
	assert.Contains(t, resultText(t, res), "temporarily unavailable")

	// the server keeps dispatching after a failed call
	fail.Store(false)
	res, err = registry.Dispatch(context.Background(), "query_nrql", args)
	require.NoError(t, err)
	assert.False(t, res.IsError)
}

func TestDispatchBadArguments(t *testing.T) {
	registry, calls := newTestRegistry(t, nrqlStub("[]"))

	res, err := registry.Dispatch(context.Background(), "query_nrql", json.RawMessage(`{"query": 42}`))
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "validation")
	assert.Zero(t, calls.Load())
}

func TestDispatchAccountIDOverride(t *testing.T) {
	registry, calls := newTestRegistry(t, nrqlStub("[]"))

	args, _ := json.Marshal(QueryNRQLInput{Query: "SELECT 1 FROM Transaction", AccountID: "not-numeric"})
	res, err := registry.Dispatch(context.Background(), "query_nrql", args)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "must be numeric")
	assert.Zero(t, calls.Load())
}

func TestDispatchCreateConditionWithoutPolicy(t *testing.T) {
	registry, calls := newTestRegistry(t, nrqlStub("[]"))

	args, _ := json.Marshal(CreateNRQLConditionInput{
		Name:      "error rate",
		NrqlQuery: "SELECT count(*) FROM TransactionError",
		Threshold: 5,
	})
	res, err := registry.Dispatch(context.Background(), "create_nrql_condition", args)
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "policy_id")
	assert.Zero(t, calls.Load())
}
