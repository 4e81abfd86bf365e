// Package config resolves server settings from environment variables, an
// optional JSON config file, and command line flags, in that order of
// increasing precedence.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Defaults applied after the three sources are merged.
const (
	DefaultRegion        = "US"
	DefaultTimeout       = 30
	DefaultRateLimit     = 100
	DefaultRetryAttempts = 3
)

// Settings holds the resolved configuration. It is treated as immutable once
// Resolve returns.
type Settings struct {
	APIKey        string `json:"api_key"`
	AccountID     string `json:"account_id"`
	Region        string `json:"region"`
	Timeout       int    `json:"timeout"`
	RateLimit     int    `json:"rate_limit"`
	RetryAttempts int    `json:"retry_attempts"`

	retrySet bool
}

// Resolve merges env vars, the config file at path (if non-empty), and the
// CLI-provided overrides, then validates the result. Precedence is
// CLI > file > env, applied field-wise: a source only overrides fields it
// actually sets.
func Resolve(cli Settings, path string) (Settings, error) {
	merged, err := FromEnv()
	if err != nil {
		return Settings{}, err
	}

	if path != "" {
		fileCfg, err := FromFile(path)
		if err != nil {
			return Settings{}, err
		}
		merged = merged.Merge(fileCfg)
	}

	merged = merged.Merge(cli)
	merged.applyDefaults()

	if err := merged.Validate(); err != nil {
		return Settings{}, err
	}
	return merged, nil
}

// FromEnv reads settings from NEW_RELIC_* environment variables.
func FromEnv() (Settings, error) {
	s := Settings{
		APIKey:    os.Getenv("NEW_RELIC_API_KEY"),
		AccountID: os.Getenv("NEW_RELIC_ACCOUNT_ID"),
		Region:    os.Getenv("NEW_RELIC_REGION"),
	}

	var err error
	if s.Timeout, err = envInt("NEW_RELIC_TIMEOUT"); err != nil {
		return Settings{}, err
	}
	if s.RateLimit, err = envInt("NEW_RELIC_RATE_LIMIT"); err != nil {
		return Settings{}, err
	}
	if s.RetryAttempts, err = envInt("NEW_RELIC_RETRY_ATTEMPTS"); err != nil {
		return Settings{}, err
	}
	s.retrySet = os.Getenv("NEW_RELIC_RETRY_ATTEMPTS") != ""
	return s, nil
}

// FromFile reads settings from a JSON config file.
func FromFile(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("cannot read config file %s: %w", path, err)
	}

	var raw struct {
		APIKey        string `json:"api_key"`
		AccountID     string `json:"account_id"`
		Region        string `json:"region"`
		Timeout       int    `json:"timeout"`
		RateLimit     int    `json:"rate_limit"`
		RetryAttempts *int   `json:"retry_attempts"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Settings{}, fmt.Errorf("invalid JSON in config file %s: %w", path, err)
	}

	s := Settings{
		APIKey:    raw.APIKey,
		AccountID: raw.AccountID,
		Region:    raw.Region,
		Timeout:   raw.Timeout,
		RateLimit: raw.RateLimit,
	}
	if raw.RetryAttempts != nil {
		s.RetryAttempts = *raw.RetryAttempts
		s.retrySet = true
	}
	return s, nil
}

// WithRetryAttempts marks RetryAttempts as explicitly set, so a zero value
// survives the merge. CLI flag wiring uses this when the flag was passed.
func (s Settings) WithRetryAttempts(n int) Settings {
	s.RetryAttempts = n
	s.retrySet = true
	return s
}

// Merge returns s overlaid with every field that other sets. RetryAttempts
// distinguishes "unset" from an explicit zero so retries can be disabled.
func (s Settings) Merge(other Settings) Settings {
	out := s
	if other.APIKey != "" {
		out.APIKey = other.APIKey
	}
	if other.AccountID != "" {
		out.AccountID = other.AccountID
	}
	if other.Region != "" {
		out.Region = other.Region
	}
	if other.Timeout != 0 {
		out.Timeout = other.Timeout
	}
	if other.RateLimit != 0 {
		out.RateLimit = other.RateLimit
	}
	if other.retrySet {
		out.RetryAttempts = other.RetryAttempts
		out.retrySet = true
	}
	return out
}

func (s *Settings) applyDefaults() {
	if s.Region == "" {
		s.Region = DefaultRegion
	}
	if s.Timeout == 0 {
		s.Timeout = DefaultTimeout
	}
	if s.RateLimit == 0 {
		s.RateLimit = DefaultRateLimit
	}
	if !s.retrySet {
		s.RetryAttempts = DefaultRetryAttempts
	}
	s.Region = strings.ToUpper(strings.TrimSpace(s.Region))
}

// Validate checks the merged settings. Any error here is fatal at startup.
func (s Settings) Validate() error {
	if s.APIKey == "" {
		return fmt.Errorf("api_key is required: set --api-key, NEW_RELIC_API_KEY, or api_key in the config file")
	}
	if s.AccountID == "" {
		return fmt.Errorf("account_id is required: set --account-id, NEW_RELIC_ACCOUNT_ID, or account_id in the config file")
	}
	if err := ValidateAccountID(s.AccountID); err != nil {
		return err
	}
	if s.Region != "US" && s.Region != "EU" {
		return fmt.Errorf("region must be US or EU, got %q", s.Region)
	}
	if s.Timeout < 5 || s.Timeout > 300 {
		return fmt.Errorf("timeout must be between 5 and 300 seconds, got %d", s.Timeout)
	}
	if s.RateLimit < 1 || s.RateLimit > 1000 {
		return fmt.Errorf("rate_limit must be between 1 and 1000 requests per minute, got %d", s.RateLimit)
	}
	if s.RetryAttempts < 0 || s.RetryAttempts > 10 {
		return fmt.Errorf("retry_attempts must be between 0 and 10, got %d", s.RetryAttempts)
	}
	return nil
}

// ValidateAccountID checks that id looks like a New Relic account ID.
func ValidateAccountID(id string) error {
	if id == "" {
		return fmt.Errorf("account ID cannot be empty")
	}
	for _, r := range id {
		if r < '0' || r > '9' {
			return fmt.Errorf("account ID must be numeric, got %q", id)
		}
	}
	if len(id) < 6 || len(id) > 12 {
		return fmt.Errorf("account ID must be between 6 and 12 digits, got %d", len(id))
	}
	return nil
}

// MaskedAPIKey returns a log-safe form of the API key.
func (s Settings) MaskedAPIKey() string {
	if s.APIKey == "" {
		return "none"
	}
	if len(s.APIKey) <= 12 {
		return "****"
	}
	return s.APIKey[:8] + "..." + s.APIKey[len(s.APIKey)-4:]
}

func envInt(name string) (int, error) {
	v := os.Getenv(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return n, nil
}
