package qase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// APIError represents a structured error response from the Qase API.
// Callers should prefer the predicate functions (IsNotFound, IsUnauthorized, etc.)
// to inspect errors rather than asserting on this type directly.
type APIError struct {
	operation  string
	statusCode int
	message    string
	fields     []ErrorField
	body       string
}

func (e *APIError) Error() string {
	if len(e.fields) > 0 {
		parts := make([]string, 0, len(e.fields))
		for _, f := range e.fields {
			parts = append(parts, f.Field+": "+f.Error)
		}
		return fmt.Sprintf("%s: HTTP %d: %s (%s)", e.operation, e.statusCode, e.message, strings.Join(parts, "; "))
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.operation, e.statusCode, e.message)
}

func newAPIError(operation string, statusCode int, message string, fields []ErrorField, body string) *APIError {
	return &APIError{
		operation:  operation,
		statusCode: statusCode,
		message:    message,
		fields:     fields,
		body:       body,
	}
}

// StatusCode returns the HTTP status code from the response.
func (e *APIError) StatusCode() int { return e.statusCode }

// Body returns the (truncated) raw response body.
func (e *APIError) Body() string { return e.body }

// IsNotFound reports whether err is an API error with HTTP 404 status.
func IsNotFound(err error) bool { return HasStatusCode(err, http.StatusNotFound) }

// IsUnauthorized reports whether err is an API error with HTTP 401 status.
func IsUnauthorized(err error) bool { return HasStatusCode(err, http.StatusUnauthorized) }

// IsForbidden reports whether err is an API error with HTTP 403 status.
func IsForbidden(err error) bool { return HasStatusCode(err, http.StatusForbidden) }

// HasStatusCode reports whether err is an API error whose HTTP status code matches.
func HasStatusCode(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.statusCode == code
}

// IsRetryable reports whether err is transient: HTTP 429, any 5xx, or a
// transport failure that was not caused by context cancellation.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.statusCode == http.StatusTooManyRequests || apiErr.statusCode >= 500
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// IsExternalIDConflict reports whether err is a 4xx rejection whose message
// says the external id is already taken or already exists.
func IsExternalIDConflict(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.statusCode < 400 || apiErr.statusCode >= 500 {
		return false
	}
	text := strings.ToLower(apiErr.message + " " + apiErr.body)
	for _, f := range apiErr.fields {
		text += " " + strings.ToLower(f.Field+" "+f.Error)
	}
	return strings.Contains(text, "external") &&
		(strings.Contains(text, "taken") || strings.Contains(text, "exist"))
}
