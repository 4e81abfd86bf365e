package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"NEW_RELIC_API_KEY", "NEW_RELIC_ACCOUNT_ID", "NEW_RELIC_REGION",
		"NEW_RELIC_TIMEOUT", "NEW_RELIC_RATE_LIMIT", "NEW_RELIC_RETRY_ATTEMPTS",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveDefaults(t *testing.T) {
	clearEnv(t)

	s, err := Resolve(Settings{APIKey: "NRAK-TESTKEY1234567890", AccountID: "1234567"}, "")
	require.NoError(t, err)

	assert.Equal(t, "US", s.Region)
	assert.Equal(t, DefaultTimeout, s.Timeout)
	assert.Equal(t, DefaultRateLimit, s.RateLimit)
	assert.Equal(t, DefaultRetryAttempts, s.RetryAttempts)
}

func TestResolvePrecedenceCLIOverFileOverEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEW_RELIC_API_KEY", "env-key-000000000000")
	t.Setenv("NEW_RELIC_ACCOUNT_ID", "1111111")
	t.Setenv("NEW_RELIC_REGION", "US")
	t.Setenv("NEW_RELIC_TIMEOUT", "10")

	path := writeConfigFile(t, `{"account_id": "2222222", "region": "EU", "timeout": 20}`)

	cli := Settings{AccountID: "3333333"}
	s, err := Resolve(cli, path)
	require.NoError(t, err)

	// CLI wins where set, file fills the rest, env only what neither sets.
	assert.Equal(t, "3333333", s.AccountID)
	assert.Equal(t, "EU", s.Region)
	assert.Equal(t, 20, s.Timeout)
	assert.Equal(t, "env-key-000000000000", s.APIKey)
}

func TestResolveExplicitZeroRetries(t *testing.T) {
	clearEnv(t)

	path := writeConfigFile(t, `{"api_key": "NRAK-TESTKEY1234567890", "account_id": "1234567", "retry_attempts": 0}`)
	s, err := Resolve(Settings{}, path)
	require.NoError(t, err)
	assert.Equal(t, 0, s.RetryAttempts, "explicit zero must survive the merge")

	clearEnv(t)
	cli := Settings{APIKey: "NRAK-TESTKEY1234567890", AccountID: "1234567"}.WithRetryAttempts(0)
	s, err = Resolve(cli, "")
	require.NoError(t, err)
	assert.Equal(t, 0, s.RetryAttempts)
}

func TestResolveValidationFailures(t *testing.T) {
	clearEnv(t)

	base := Settings{APIKey: "NRAK-TESTKEY1234567890", AccountID: "1234567"}

	cases := []struct {
		name string
		cli  Settings
		want string
	}{
		{"missing api key", Settings{AccountID: "1234567"}, "api_key is required"},
		{"missing account id", Settings{APIKey: "k-000000000000000"}, "account_id is required"},
		{"non-numeric account id", Settings{APIKey: base.APIKey, AccountID: "12ab567"}, "must be numeric"},
		{"short account id", Settings{APIKey: base.APIKey, AccountID: "12345"}, "between 6 and 12 digits"},
		{"bad region", Settings{APIKey: base.APIKey, AccountID: "1234567", Region: "APAC"}, "region must be US or EU"},
		{"timeout too small", Settings{APIKey: base.APIKey, AccountID: "1234567", Timeout: 2}, "timeout must be between"},
		{"timeout too large", Settings{APIKey: base.APIKey, AccountID: "1234567", Timeout: 500}, "timeout must be between"},
		{"rate limit too large", Settings{APIKey: base.APIKey, AccountID: "1234567", RateLimit: 5000}, "rate_limit must be between"},
		{"retries too large", base.WithRetryAttempts(11), "retry_attempts must be between"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Resolve(tc.cli, "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestResolveRegionNormalized(t *testing.T) {
	clearEnv(t)

	s, err := Resolve(Settings{APIKey: "NRAK-TESTKEY1234567890", AccountID: "1234567", Region: " eu "}, "")
	require.NoError(t, err)
	assert.Equal(t, "EU", s.Region)
}

func TestFromFileErrors(t *testing.T) {
	_, err := FromFile(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot read config file")

	path := writeConfigFile(t, `{not json`)
	_, err = FromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid JSON")
}

func TestFromEnvBadInteger(t *testing.T) {
	clearEnv(t)
	t.Setenv("NEW_RELIC_TIMEOUT", "soon")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NEW_RELIC_TIMEOUT must be an integer")
}

func TestMaskedAPIKey(t *testing.T) {
	assert.Equal(t, "none", Settings{}.MaskedAPIKey())
	assert.Equal(t, "****", Settings{APIKey: "short"}.MaskedAPIKey())

	masked := Settings{APIKey: "NRAK-ABCDEFGHIJKLMNOP1234"}.MaskedAPIKey()
	assert.Equal(t, "NRAK-ABC...1234", masked)
	assert.NotContains(t, masked, "DEFGHIJKLMNOP")
}
