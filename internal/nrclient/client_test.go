package nrclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
)

const testAccountID = "1234567"

func testSettings() config.Settings {
	return config.Settings{
		APIKey:        "NRAK-TESTKEY1234567890",
		AccountID:     testAccountID,
		Region:        "US",
		Timeout:       5,
		RetryAttempts: 2,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewForEndpoint(testSettings(), srv.URL, nil)
	c.retryDelay = time.Millisecond
	return c, srv
}

func nrqlResponse(t *testing.T, rows []map[string]any) []byte {
	t.Helper()
	payload := map[string]any{
		"data": map[string]any{
			"actor": map[string]any{
				"account": map[string]any{
					"nrql": map[string]any{"results": rows},
				},
			},
		},
	}
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	return b
}

func TestQueryNRQLResults(t *testing.T) {
	var gotKey, gotPath string
	var gotReq graphQLRequest

	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Api-Key")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Write(nrqlResponse(t, []map[string]any{{"count": float64(42)}}))
	})

	rows, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT count(*) FROM Transaction")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, float64(42), rows[0]["count"])

	assert.Equal(t, "NRAK-TESTKEY1234567890", gotKey)
	assert.Equal(t, "/graphql", gotPath)
	assert.Equal(t, float64(1234567), gotReq.Variables["accountId"])
	assert.Equal(t, "SELECT count(*) FROM Transaction", gotReq.Variables["query"])
}

func TestQueryNRQLInvalidAccountID(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	})

	_, err := c.QueryNRQL(context.Background(), "not-a-number", "SELECT 1 FROM Transaction")
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Zero(t, calls.Load(), "invalid account ID must not reach the network")
}

func TestQueryRetriesRateLimit(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT 1 FROM Transaction")
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
	// retryAttempts=2 means 3 total requests.
	assert.Equal(t, int32(3), calls.Load())
}

func TestQueryRecoversAfterRateLimit(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write(nrqlResponse(t, []map[string]any{{"ok": true}}))
	})

	rows, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT 1 FROM Transaction")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestQueryDoesNotRetryUpstreamError(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	})

	_, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT 1 FROM Transaction")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "backend exploded")
	assert.Equal(t, int32(1), calls.Load(), "5xx is not retryable")
}

func TestMutationNotRetried(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.CreateAlertPolicy(context.Background(), testAccountID, "p", "PER_POLICY")
	require.Error(t, err)
	assert.Equal(t, KindRateLimited, KindOf(err))
	assert.Equal(t, int32(1), calls.Load(), "mutations must be sent exactly once")
}

func TestNetworkErrorKind(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	c := NewForEndpoint(testSettings(), srv.URL, nil)
	c.retryDelay = time.Millisecond

	_, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT 1 FROM Transaction")
	require.Error(t, err)
	assert.Equal(t, KindNetwork, KindOf(err))
}

func TestGraphQLErrorOnHTTP200(t *testing.T) {
	var calls atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"data": null, "errors": [{"message": "NRQL Syntax Error"}]}`))
	})

	_, err := c.QueryNRQL(context.Background(), testAccountID, "SELECT bogus")
	require.Error(t, err)
	assert.Equal(t, KindUpstream, KindOf(err))
	assert.Contains(t, err.Error(), "NRQL Syntax Error")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRegionBaseURL(t *testing.T) {
	us := New(testSettings(), nil)
	assert.Equal(t, "https://api.newrelic.com", us.baseURL)

	settings := testSettings()
	settings.Region = "EU"
	eu := New(settings, nil)
	assert.Equal(t, "https://api.eu.newrelic.com", eu.baseURL)
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindUpstream, KindOf(errors.New("plain")))
}

func TestQuoteNRQL(t *testing.T) {
	assert.Equal(t, `it\'s a \\ test`, quoteNRQL(`it's a \ test`))
}
