// Package nrclient wraps New Relic's NerdGraph API behind a unified client.
// Read paths (NRQL, entity search, list queries) retry on rate limiting and
// transient network failure; mutations are sent once and fail fast, since
// NerdGraph creates are not idempotent.
package nrclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/telemetrydev/newrelic-mcp/internal/config"
)

const (
	usBaseURL = "https://api.newrelic.com"
	euBaseURL = "https://api.eu.newrelic.com"
)

// Client issues NerdGraph queries and mutations against New Relic. The
// monitoring, alerts, and dashboards methods are defined in their own files;
// all of them share this transport.
type Client struct {
	baseURL       string
	apiKey        string
	accountID     string
	retryAttempts int
	retryDelay    time.Duration
	httpClient    *http.Client
	logger        *slog.Logger
}

// New creates a client targeting the region configured in settings.
func New(settings config.Settings, logger *slog.Logger) *Client {
	baseURL := usBaseURL
	if settings.Region == "EU" {
		baseURL = euBaseURL
	}
	return NewForEndpoint(settings, baseURL, logger)
}

// NewForEndpoint creates a client against an explicit base URL. Tests use
// this to point the client at a stub upstream.
func NewForEndpoint(settings config.Settings, baseURL string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		apiKey:        settings.APIKey,
		accountID:     settings.AccountID,
		retryAttempts: settings.RetryAttempts,
		retryDelay:    500 * time.Millisecond,
		httpClient:    &http.Client{Timeout: time.Duration(settings.Timeout) * time.Second},
		logger:        logger,
	}
}

// AccountID returns the default account ID from settings.
func (c *Client) AccountID() string { return c.accountID }

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// query executes a read-only GraphQL document, retrying on 429 and network
// failure up to the configured attempt count with exponential backoff.
func (c *Client) query(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	var data json.RawMessage
	err := retry.Do(
		func() error {
			var err error
			data, err = c.doOnce(ctx, document, variables)
			return err
		},
		retry.Context(ctx),
		retry.Attempts(uint(c.retryAttempts)+1),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(retryable),
		retry.LastErrorOnly(true),
	)
	return data, err
}

// mutate executes a GraphQL mutation with a single attempt. A 429 or network
// failure on a create/update surfaces immediately rather than risking a
// duplicate resource.
func (c *Client) mutate(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	return c.doOnce(ctx, document, variables)
}

func (c *Client) doOnce(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	body, err := json.Marshal(graphQLRequest{Query: document, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("cannot encode GraphQL request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/graphql", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("cannot build request: %w", err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkErr(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, rateLimited("New Relic API rate limit exceeded")
	}
	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, upstream(resp.StatusCode, fmt.Sprintf("New Relic returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail))))
	}

	var envelope graphQLEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, upstream(resp.StatusCode, "cannot decode New Relic response: "+err.Error())
	}
	if len(envelope.Errors) > 0 {
		c.logger.Error("GraphQL request failed", "error", envelope.Errors[0].Message)
		return nil, upstream(resp.StatusCode, "GraphQL query failed: "+envelope.Errors[0].Message)
	}
	return envelope.Data, nil
}

const nrqlDocument = `query($accountId: Int!, $query: Nrql!) {
  actor {
    account(id: $accountId) {
      nrql(query: $query) {
        results
      }
    }
  }
}`

// QueryNRQL runs an NRQL query and returns the rows of the results envelope.
func (c *Client) QueryNRQL(ctx context.Context, accountID, nrql string) ([]map[string]any, error) {
	id, err := accountIDAsInt(accountID)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("executing NRQL query", "query", nrql)
	data, err := c.query(ctx, nrqlDocument, map[string]any{"accountId": id, "query": nrql})
	if err != nil {
		return nil, err
	}

	var payload struct {
		Actor struct {
			Account struct {
				Nrql struct {
					Results []map[string]any `json:"results"`
				} `json:"nrql"`
			} `json:"account"`
		} `json:"actor"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, upstream(0, "unexpected NRQL response shape: "+err.Error())
	}
	return payload.Actor.Account.Nrql.Results, nil
}

// ExecuteGraphQL runs an arbitrary read-only GraphQL document and returns the
// raw data section.
func (c *Client) ExecuteGraphQL(ctx context.Context, document string, variables map[string]any) (json.RawMessage, error) {
	return c.query(ctx, document, variables)
}

func accountIDAsInt(accountID string) (int, error) {
	if err := config.ValidateAccountID(accountID); err != nil {
		return 0, Validationf("%s", err.Error())
	}
	var id int
	if _, err := fmt.Sscanf(accountID, "%d", &id); err != nil {
		return 0, Validationf("account ID must be numeric, got %q", accountID)
	}
	return id, nil
}

// quoteNRQL escapes a string for interpolation into single quotes in NRQL.
func quoteNRQL(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `'`, `\'`)
}
