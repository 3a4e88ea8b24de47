package qase

import (
	"context"
	"net/http"
)

// SuiteScope provides operations on suites within a project.
type SuiteScope struct {
	project *ProjectScope
}

// ListAll returns every suite in the project, auto-paginating.
func (s *SuiteScope) ListAll(ctx context.Context, opts ...ListOption) ([]Suite, error) {
	return listAll[Suite](ctx, s.project, "suite", "list suites", opts)
}

// Create creates a suite and returns its id.
func (s *SuiteScope) Create(ctx context.Context, payload SuitePayload) (int, error) {
	var res idResult
	if err := s.project.client.doJSON(ctx, http.MethodPost, s.project.resourceURL("suite"), "create suite", payload, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

// RunScope provides operations on test runs within a project.
type RunScope struct {
	project *ProjectScope
}

// Create opens a run over the given cases and returns its id.
func (s *RunScope) Create(ctx context.Context, payload RunPayload) (int, error) {
	var res idResult
	if err := s.project.client.doJSON(ctx, http.MethodPost, s.project.resourceURL("run"), "create run", payload, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}
