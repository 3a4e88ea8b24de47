package qase

import "context"

// Store exposes one project through the flat case/suite/run interface the
// reconciler consumes.
type Store struct {
	project *ProjectScope
}

// NewStore returns a Store bound to the project with the given code.
func NewStore(client *Client, code string) *Store {
	return &Store{project: client.Project(code)}
}

func (s *Store) ListCases(ctx context.Context) ([]Case, error) {
	return s.project.Cases().ListAll(ctx)
}

func (s *Store) GetCase(ctx context.Context, id int) (*Case, error) {
	return s.project.Cases().Get(ctx, id)
}

func (s *Store) CreateCase(ctx context.Context, payload CasePayload) (int, error) {
	return s.project.Cases().Create(ctx, payload)
}

func (s *Store) UpdateCase(ctx context.Context, id int, payload CasePayload) error {
	return s.project.Cases().Update(ctx, id, payload)
}

func (s *Store) DeleteCase(ctx context.Context, id int) error {
	return s.project.Cases().Delete(ctx, id)
}

func (s *Store) SearchCases(ctx context.Context, term string) ([]Case, error) {
	return s.project.Cases().Search(ctx, term)
}

func (s *Store) ListSuites(ctx context.Context) ([]Suite, error) {
	return s.project.Suites().ListAll(ctx)
}

// CreateSuite creates a suite with an auto-generated description.
func (s *Store) CreateSuite(ctx context.Context, title string) (int, error) {
	return s.project.Suites().Create(ctx, SuitePayload{
		Title:       title,
		Description: "Auto created for suite " + title,
	})
}

func (s *Store) CreateRun(ctx context.Context, payload RunPayload) (int, error) {
	return s.project.Runs().Create(ctx, payload)
}
