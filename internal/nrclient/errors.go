package nrclient

import (
	"errors"
	"fmt"
)

// Kind classifies an API error. Only config errors (handled in main, before
// the protocol loop starts) are fatal; every kind here is returned to the
// calling MCP client as a structured error result.
type Kind string

const (
	KindValidation      Kind = "validation"
	KindRateLimited     Kind = "rate_limited"
	KindUpstream        Kind = "upstream"
	KindNetwork         Kind = "network"
	KindUnsupportedTool Kind = "unsupported_tool"
)

// APIError is the error type surfaced by the transport and domain clients.
type APIError struct {
	Kind       Kind
	Message    string
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
	}
	return e.Message
}

func (e *APIError) Unwrap() error { return e.Err }

// Validationf builds a validation error from a format string.
func Validationf(format string, args ...any) *APIError {
	return &APIError{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func rateLimited(message string) *APIError {
	return &APIError{Kind: KindRateLimited, Message: message, StatusCode: 429}
}

func upstream(statusCode int, message string) *APIError {
	return &APIError{Kind: KindUpstream, Message: message, StatusCode: statusCode}
}

func networkErr(err error) *APIError {
	return &APIError{Kind: KindNetwork, Message: "request failed: " + err.Error(), Err: err}
}

// UnsupportedTool reports a tool name with no registered handler.
func UnsupportedTool(name string) *APIError {
	return &APIError{Kind: KindUnsupportedTool, Message: fmt.Sprintf("unsupported tool %q", name)}
}

// KindOf extracts the Kind from err, or KindUpstream for foreign errors.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindUpstream
}

func retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Kind == KindRateLimited || apiErr.Kind == KindNetwork
}
