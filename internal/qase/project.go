package qase

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// PageSize is the fixed page size used by ListAll. A page shorter than
// PageSize ends the listing.
const PageSize = 100

// Pagination selects how list requests address pages.
type Pagination int

const (
	// OffsetPagination sends limit and offset query parameters.
	OffsetPagination Pagination = iota
	// PagePagination sends limit and a 1-based page number.
	PagePagination
)

func (p Pagination) String() string {
	if p == PagePagination {
		return "page"
	}
	return "offset"
}

// ParsePagination maps "offset" and "page" to a Pagination. Empty means offset.
func ParsePagination(s string) (Pagination, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "offset":
		return OffsetPagination, nil
	case "page":
		return PagePagination, nil
	}
	return OffsetPagination, fmt.Errorf("qase: unknown pagination %q (want offset or page)", s)
}

func (p Pagination) other() Pagination {
	if p == PagePagination {
		return OffsetPagination
	}
	return PagePagination
}

// ProjectScope provides access to resources within a specific Qase project.
type ProjectScope struct {
	client *Client
	code   string
}

// Project returns a ProjectScope for the project with the given code.
func (c *Client) Project(code string) *ProjectScope {
	return &ProjectScope{client: c, code: code}
}

// Code returns the project code.
func (p *ProjectScope) Code() string { return p.code }

// Cases returns a CaseScope for the project's test cases.
func (p *ProjectScope) Cases() *CaseScope {
	return &CaseScope{project: p}
}

// Suites returns a SuiteScope for the project's suites.
func (p *ProjectScope) Suites() *SuiteScope {
	return &SuiteScope{project: p}
}

// Runs returns a RunScope for the project's test runs.
func (p *ProjectScope) Runs() *RunScope {
	return &RunScope{project: p}
}

func (p *ProjectScope) logger() *slog.Logger {
	return p.client.logger.With("project", p.code)
}

func (p *ProjectScope) resourceURL(resource string) string {
	return fmt.Sprintf("%s/%s/%s", p.client.baseURL, resource, url.PathEscape(p.code))
}

func (p *ProjectScope) entityURL(resource string, id int) string {
	return fmt.Sprintf("%s/%d", p.resourceURL(resource), id)
}

// ListOption configures filter and pagination for list requests.
type ListOption func(params url.Values)

// WithLimit sets the page size.
func WithLimit(n int) ListOption {
	return func(p url.Values) { p.Set("limit", strconv.Itoa(n)) }
}

// WithOffset sets the zero-based record offset.
func WithOffset(n int) ListOption {
	return func(p url.Values) { p.Set("offset", strconv.Itoa(n)) }
}

// WithPage sets the 1-based page number.
func WithPage(n int) ListOption {
	return func(p url.Values) { p.Set("page", strconv.Itoa(n)) }
}

func listPage[T any](ctx context.Context, p *ProjectScope, resource, operation string, opts []ListOption) (*Page[T], error) {
	params := url.Values{}
	for _, opt := range opts {
		opt(params)
	}
	u := p.resourceURL(resource)
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var page Page[T]
	if err := p.client.doJSON(ctx, http.MethodGet, u, operation, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// listAll walks every page of resource. The first page is requested with the
// client's preferred pagination mode; if the backend refuses it (401/403/404)
// the other mode is tried once before giving up.
func listAll[T any](ctx context.Context, p *ProjectScope, resource, operation string, opts []ListOption) ([]T, error) {
	mode := p.client.pagination
	var all []T

	first, err := listPage[T](ctx, p, resource, operation, pageOpts(opts, mode, 0))
	if err != nil {
		if !IsUnauthorized(err) && !IsForbidden(err) && !IsNotFound(err) {
			return nil, err
		}
		p.logger().WarnContext(ctx, "pagination fallback",
			"operation", operation, "from", mode.String(), "to", mode.other().String(), "error", err)
		mode = mode.other()
		first, err = listPage[T](ctx, p, resource, operation, pageOpts(opts, mode, 0))
		if err != nil {
			return nil, err
		}
	}

	page := first
	for n := 0; ; n++ {
		all = append(all, page.Entities...)
		if len(page.Entities) < PageSize {
			break
		}
		page, err = listPage[T](ctx, p, resource, operation, pageOpts(opts, mode, n+1))
		if err != nil {
			return nil, err
		}
	}
	return all, nil
}

// pageOpts appends the addressing options for the zero-based page index n.
func pageOpts(opts []ListOption, mode Pagination, n int) []ListOption {
	out := make([]ListOption, 0, len(opts)+2)
	out = append(out, opts...)
	out = append(out, WithLimit(PageSize))
	if mode == PagePagination {
		return append(out, WithPage(n+1))
	}
	return append(out, WithOffset(n*PageSize))
}
