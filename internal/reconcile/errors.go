package reconcile

import (
	"context"
	"errors"
	"fmt"

	"casesync/internal/qase"
)

// DiscoveryError means the read path (case listing, detail fetch, suite
// listing) failed while identity was being established. No write decision can
// be trusted after it, so it aborts the sync.
type DiscoveryError struct {
	Op  string
	Err error
}

func (e *DiscoveryError) Error() string { return fmt.Sprintf("discovery: %s: %v", e.Op, e.Err) }

func (e *DiscoveryError) Unwrap() error { return e.Err }

// RemoteWriteError is a rejected create, update or delete for one case or suite.
type RemoteWriteError struct {
	Op         string
	File       string
	Suite      string
	ExternalID string
	RemoteID   int
	Err        error
}

func (e *RemoteWriteError) Error() string {
	msg := fmt.Sprintf("%s failed", e.Op)
	if e.File != "" {
		msg += " file=" + e.File
	}
	if e.Suite != "" {
		msg += " suite=" + e.Suite
	}
	if e.ExternalID != "" {
		msg += " ext=" + e.ExternalID
	}
	if e.RemoteID != 0 {
		msg += fmt.Sprintf(" id=%d", e.RemoteID)
	}
	return msg + ": " + e.Err.Error()
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// DriftError reports that a case read back after an update does not match
// what was sent.
type DriftError struct {
	ExternalID string
	RemoteID   int
	Reason     string
}

func (e *DriftError) Error() string {
	return fmt.Sprintf("drift ext=%s id=%d: %s", e.ExternalID, e.RemoteID, e.Reason)
}

// apiAttrs returns the HTTP status and response body behind err as log
// attributes, or nil when err did not come from an API response.
func apiAttrs(err error) []any {
	var apiErr *qase.APIError
	if !errors.As(err, &apiErr) {
		return nil
	}
	return []any{"status", apiErr.StatusCode(), "body", apiErr.Body()}
}

// fatalWrite reports whether a write error must abort the whole sync
// regardless of policy: bad credentials or a cancelled context.
func fatalWrite(err error) bool {
	return qase.IsUnauthorized(err) || qase.IsForbidden(err) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
