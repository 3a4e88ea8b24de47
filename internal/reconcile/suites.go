package reconcile

import (
	"context"
	"io"
	"log/slog"
)

// SuiteRegistry maps suite titles to remote suite ids, creating suites on
// first reference. The cache lives for one sync; concurrent syncs against the
// same project can still race to create the same suite.
type SuiteRegistry struct {
	remote Remote
	cache  map[string]int
	dryRun bool
	logger *slog.Logger
}

// LoadSuiteRegistry preloads the cache with every existing suite. When two
// suites share a title the first listed wins.
func LoadSuiteRegistry(ctx context.Context, remote Remote, dryRun bool, logger *slog.Logger) (*SuiteRegistry, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	suites, err := remote.ListSuites(ctx)
	if err != nil {
		return nil, &DiscoveryError{Op: "list suites", Err: err}
	}
	cache := make(map[string]int, len(suites))
	for _, s := range suites {
		if _, dup := cache[s.Title]; dup {
			logger.WarnContext(ctx, "duplicate_suite_title", "title", s.Title, "kept", cache[s.Title], "ignored", s.ID)
			continue
		}
		cache[s.Title] = s.ID
	}
	return &SuiteRegistry{remote: remote, cache: cache, dryRun: dryRun, logger: logger}, nil
}

// Resolve returns the id of the suite titled title, creating it if needed.
// In dry-run mode a missing suite resolves to 0 without a remote call.
func (r *SuiteRegistry) Resolve(ctx context.Context, title string) (int, error) {
	if id, ok := r.cache[title]; ok {
		return id, nil
	}
	if r.dryRun {
		r.logger.InfoContext(ctx, "plan_create_suite", "title", title)
		r.cache[title] = 0
		return 0, nil
	}
	id, err := r.remote.CreateSuite(ctx, title)
	if err != nil {
		return 0, &RemoteWriteError{Op: "suite_create", Suite: title, Err: err}
	}
	r.cache[title] = id
	r.logger.InfoContext(ctx, "suite_created", "title", title, "id", id)
	return id, nil
}

// Len returns the number of cached suites.
func (r *SuiteRegistry) Len() int { return len(r.cache) }
