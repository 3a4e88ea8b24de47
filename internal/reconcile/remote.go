// Package reconcile makes a remote case repository match local case
// definitions and opens a run over the cases it touched.
//
// The remote store offers no guaranteed lookup by external id, so identity is
// rebuilt every sync: BuildIndex enumerates remote cases into an
// IdentityResolver, and the Reconciler resolves each local case by exact key,
// then live search, then (suite, title) for legacy untagged records.
package reconcile

import (
	"context"

	"casesync/internal/qase"
)

// Remote is the case repository the reconciler reads and writes.
// *qase.Store implements it.
type Remote interface {
	ListCases(ctx context.Context) ([]qase.Case, error)
	GetCase(ctx context.Context, id int) (*qase.Case, error)
	CreateCase(ctx context.Context, payload qase.CasePayload) (int, error)
	UpdateCase(ctx context.Context, id int, payload qase.CasePayload) error
	DeleteCase(ctx context.Context, id int) error
	SearchCases(ctx context.Context, term string) ([]qase.Case, error)
	ListSuites(ctx context.Context) ([]qase.Suite, error)
	CreateSuite(ctx context.Context, title string) (int, error)
	CreateRun(ctx context.Context, payload qase.RunPayload) (int, error)
}

var _ Remote = (*qase.Store)(nil)
