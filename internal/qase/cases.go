package qase

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// CaseScope provides operations on test cases within a project.
type CaseScope struct {
	project *ProjectScope
}

// ListAll returns every case matching the filters, auto-paginating. Some
// workspaces return partial records here; use Get for the full record.
func (s *CaseScope) ListAll(ctx context.Context, opts ...ListOption) ([]Case, error) {
	return listAll[Case](ctx, s.project, "case", "list cases", opts)
}

// Get returns the full record of a single case.
func (s *CaseScope) Get(ctx context.Context, id int) (*Case, error) {
	var c Case
	if err := s.project.client.doJSON(ctx, http.MethodGet, s.project.entityURL("case", id), "get case", nil, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Create creates a case and returns its id.
func (s *CaseScope) Create(ctx context.Context, payload CasePayload) (int, error) {
	var res idResult
	if err := s.project.client.doJSON(ctx, http.MethodPost, s.project.resourceURL("case"), "create case", payload, &res); err != nil {
		return 0, err
	}
	return res.ID, nil
}

// Update overwrites the case's fields with payload.
func (s *CaseScope) Update(ctx context.Context, id int, payload CasePayload) error {
	return s.project.client.doJSON(ctx, http.MethodPatch, s.project.entityURL("case", id), "update case", payload, nil)
}

// Delete removes a case. Deleting a case that does not exist is not an error.
func (s *CaseScope) Delete(ctx context.Context, id int) error {
	err := s.project.client.doJSON(ctx, http.MethodDelete, s.project.entityURL("case", id), "delete case", nil, nil)
	if IsNotFound(err) {
		return nil
	}
	return err
}

// Search runs a project-scoped QQL query for cases whose description contains
// term. Results are best-effort and may be partial records.
func (s *CaseScope) Search(ctx context.Context, term string) ([]Case, error) {
	query := fmt.Sprintf(`entity = "case" and project = "%s" and description ~ "%s"`,
		qqlEscape(s.project.code), qqlEscape(term))
	return s.project.client.Search(ctx, query)
}

// Search runs a raw QQL query against the global search endpoint and returns
// the first page of hits decoded as cases.
func (c *Client) Search(ctx context.Context, query string) ([]Case, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", fmt.Sprint(PageSize))
	u := fmt.Sprintf("%s/search?%s", c.baseURL, params.Encode())

	var page Page[Case]
	if err := c.doJSON(ctx, http.MethodGet, u, "search", nil, &page); err != nil {
		return nil, err
	}
	return page.Entities, nil
}

func qqlEscape(s string) string {
	return strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(s)
}
