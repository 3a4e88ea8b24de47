package reconcile

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"casesync/internal/qase"
)

// IndexOptions tunes BuildIndex.
type IndexOptions struct {
	// Concurrency bounds in-flight detail fetches. Values below 1 mean 1,
	// which keeps the build strictly sequential.
	Concurrency int
}

// IndexStats summarizes an index build.
type IndexStats struct {
	Total         int
	ByExternalID  int
	ByTitle       int
	Invisible     int
	DetailFetches int
}

// BuildIndex enumerates every remote case and indexes it by external id, or,
// for untagged records, by (suite, normalized title). List endpoints may
// return partial records, so every record whose list entry lacks the first
// extraction path is fetched in full before extraction. Any read failure is a
// *DiscoveryError.
func BuildIndex(ctx context.Context, remote Remote, ex *Extractor, opts IndexOptions, logger *slog.Logger) (*IdentityResolver, IndexStats, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var stats IndexStats

	listed, err := remote.ListCases(ctx)
	if err != nil {
		return nil, stats, &DiscoveryError{Op: "list cases", Err: err}
	}
	stats.Total = len(listed)

	records := make([]*qase.Case, len(listed))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	for i := range listed {
		if ex.Primary(&listed[i]) != "" {
			records[i] = &listed[i]
			continue
		}
		stats.DetailFetches++
		id := listed[i].ID
		g.Go(func() error {
			detail, err := remote.GetCase(gctx, id)
			if err != nil {
				return &DiscoveryError{Op: "get case", Err: err}
			}
			records[i] = detail
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, err
	}

	ids := NewIdentityResolver()
	for _, rec := range records {
		if ext := ex.Extract(rec); ext != "" {
			if ids.AddExternal(ext, rec.ID) {
				stats.ByExternalID++
			} else {
				first, _ := ids.Lookup(ext)
				logger.WarnContext(ctx, "duplicate_remote_external_id", "ext", ext, "kept", first, "ignored", rec.ID)
			}
			continue
		}
		if rec.SuiteID != 0 && rec.Title != "" {
			if ids.AddTitle(rec.SuiteID, rec.Title, rec.ID) {
				stats.ByTitle++
			} else {
				first, _ := ids.LookupTitle(rec.SuiteID, rec.Title)
				logger.WarnContext(ctx, "ambiguous_title_fallback", "suite_id", rec.SuiteID, "title", rec.Title, "kept", first, "ignored", rec.ID)
			}
			continue
		}
		stats.Invisible++
	}

	logger.InfoContext(ctx, "index_built",
		"existing_cases_by_external_id", stats.ByExternalID,
		"title_fallback", stats.ByTitle,
		"invisible", stats.Invisible,
		"total_ids", stats.Total,
		"detail_fetches", stats.DetailFetches)
	return ids, stats, nil
}
