package tools

import (
	"regexp"
	"strings"

	"github.com/telemetrydev/newrelic-mcp/internal/nrclient"
)

const (
	maxNRQLLength    = 10000
	maxAppNameLength = 200
	maxHours         = 8760 // one year
)

// Stacked statements and markup have no place in a read query.
var dangerousNRQLPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i);\s*DROP\s+`),
	regexp.MustCompile(`(?i);\s*DELETE\s+`),
	regexp.MustCompile(`(?i);\s*UPDATE\s+`),
	regexp.MustCompile(`(?i);\s*INSERT\s+`),
	regexp.MustCompile(`(?i)<script\b`),
	regexp.MustCompile(`(?i)javascript:`),
	regexp.MustCompile(`(?i)vbscript:`),
}

var selectPrefix = regexp.MustCompile(`(?i)^\s*SELECT\s+`)

var guidPattern = regexp.MustCompile(`^[A-Za-z0-9+/=]+$`)

// ValidateNRQL rejects empty, oversized, non-SELECT, or stacked-statement
// queries before anything reaches the wire.
func ValidateNRQL(query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", nrclient.Validationf("NRQL query cannot be empty")
	}
	if len(query) > maxNRQLLength {
		return "", nrclient.Validationf("NRQL query too long (max %d characters)", maxNRQLLength)
	}
	for _, pattern := range dangerousNRQLPatterns {
		if pattern.MatchString(query) {
			return "", nrclient.Validationf("NRQL query contains a disallowed pattern: %s", pattern.String())
		}
	}
	if !selectPrefix.MatchString(query) {
		return "", nrclient.Validationf("NRQL query must start with SELECT")
	}
	return strings.TrimSpace(query), nil
}

// ValidateGUID checks the base64-ish shape of a New Relic entity GUID.
func ValidateGUID(guid string) error {
	if guid == "" {
		return nrclient.Validationf("GUID cannot be empty")
	}
	if !guidPattern.MatchString(guid) {
		return nrclient.Validationf("invalid GUID format: %q", guid)
	}
	if len(guid) < 10 || len(guid) > 100 {
		return nrclient.Validationf("GUID length must be between 10 and 100 characters")
	}
	return nil
}

// ValidateHours bounds a lookback window, substituting def when unset.
func ValidateHours(hours, def int) (int, error) {
	if hours == 0 {
		hours = def
	}
	if hours < 1 {
		return 0, nrclient.Validationf("time range must be at least 1 hour")
	}
	if hours > maxHours {
		return 0, nrclient.Validationf("time range cannot exceed one year (%d hours)", maxHours)
	}
	return hours, nil
}

// ValidateAppName trims and bounds an application name.
func ValidateAppName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", nrclient.Validationf("application name cannot be empty")
	}
	if len(name) > maxAppNameLength {
		return "", nrclient.Validationf("application name too long (max %d characters)", maxAppNameLength)
	}
	return name, nil
}
