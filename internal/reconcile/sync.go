package reconcile

import (
	"context"
	"io"
	"log/slog"

	"casesync/internal/casefile"
)

// SyncOptions configures one end-to-end sync.
type SyncOptions struct {
	Project      string
	AppURL       string
	ExtractPaths []string
	Index        IndexOptions
	Reconcile    Options
}

// Sync builds the identity index, reconciles every case in files, and opens
// a run over the touched cases. Files must already be loaded and validated.
//
// With FailFast unset, per-case failures do not stop the batch; the run is
// still published for the cases that succeeded and the returned error is the
// report's failure summary. Dry runs never publish.
func Sync(ctx context.Context, remote Remote, files []casefile.File, opts SyncOptions, logger *slog.Logger) (*Report, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	ex, err := NewExtractor(opts.ExtractPaths)
	if err != nil {
		return nil, err
	}
	ids, _, err := BuildIndex(ctx, remote, ex, opts.Index, logger)
	if err != nil {
		return nil, err
	}
	suites, err := LoadSuiteRegistry(ctx, remote, opts.Reconcile.DryRun, logger)
	if err != nil {
		return nil, err
	}
	byExt, byTitle := ids.Len()
	logger.DebugContext(ctx, "resolver_ready", "external_ids", byExt, "titles", byTitle, "suites", suites.Len())

	report, err := New(remote, ids, suites, ex, opts.Reconcile, logger).Reconcile(ctx, files)
	if err != nil {
		report.Log(ctx, logger)
		return report, err
	}

	if !opts.Reconcile.DryRun {
		title := RunTitle
		if len(opts.Reconcile.Only) > 0 {
			title = SubsetRunTitle(len(opts.Reconcile.Only))
		}
		pub := NewRunPublisher(remote, opts.Project, opts.AppURL, logger)
		runID, err := pub.Publish(ctx, title, report.Touched)
		if err != nil {
			report.Log(ctx, logger)
			return report, err
		}
		report.RunID = runID
		if runID != 0 {
			report.RunURL = pub.RunURL(runID)
		}
	}

	report.Log(ctx, logger)
	return report, report.Err()
}
