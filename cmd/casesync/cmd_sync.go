package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"casesync/internal/config"
	"casesync/internal/format"
	"casesync/internal/lock"
	"casesync/internal/logging"
	"casesync/internal/qase"
	"casesync/internal/reconcile"
)

func newSyncCmd() *cobra.Command {
	var lockWait time.Duration

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Upsert local cases into Qase and open a run over them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, lockWait)
		},
	}

	f := cmd.Flags()
	f.String("token", "", "Qase API token (QASE_API_TOKEN)")
	f.String("project", "", "Qase project code (QASE_PROJECT)")
	f.String("base-url", qase.DefaultBaseURL, "Qase API base URL (QASE_BASE_URL)")
	f.String("app-url", reconcile.DefaultAppURL, "Qase web UI base URL used for run links (QASE_APP_URL)")
	addSelectionFlags(cmd)
	f.StringSlice("external-ids", nil, "Only sync these external ids (QASE_EXTERNAL_IDS)")
	f.String("drift", "off", "Post-update check: off, report or recreate (QASE_DRIFT)")
	f.Bool("fail-fast", false, "Abort on the first rejected write (QASE_FAIL_FAST)")
	f.Bool("dry-run", false, "Resolve and log planned writes without performing them (QASE_DRY_RUN)")
	f.Bool("embed-marker", true, "End descriptions with an \"External ID: <id>\" line (QASE_EMBED_MARKER)")
	f.Bool("search", true, "Use live search for external ids missing from the index (QASE_SEARCH)")
	f.StringSlice("extract-paths", reconcile.DefaultExtractPaths, "JMESPath expressions locating the external id on remote cases")
	f.Float64("rate-limit", 0, "Max requests per second, 0 for unlimited (QASE_RATE_LIMIT)")
	f.Int("max-retries", 3, "Retries for 429, 5xx and transport errors (QASE_MAX_RETRIES)")
	f.Int("index-concurrency", 1, "Parallel detail fetches while indexing (QASE_INDEX_CONCURRENCY)")
	f.Duration("timeout", 30*time.Second, "Per-request HTTP timeout (QASE_TIMEOUT)")
	f.String("pagination", "offset", "List pagination tried first: offset or page (QASE_PAGINATION)")
	f.String("lock-dir", "", "Directory for the per-project lock file; empty disables locking (QASE_LOCK_DIR)")
	f.String("report-format", "text", "Report printed after the sync: text or markdown (QASE_REPORT_FORMAT)")
	f.String("summary-file", "", "Append a Markdown report to this file (QASE_SUMMARY_FILE, GITHUB_STEP_SUMMARY)")
	f.DurationVar(&lockWait, "lock-wait", 0, "How long to wait for a held project lock")
	return cmd
}

func runSync(cmd *cobra.Command, lockWait time.Duration) error {
	ctx := cmd.Context()
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	closeLog, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer closeLog.Close()

	logger := logging.New("sync").With("sync_id", uuid.NewString(), "project", cfg.Project)
	logger.InfoContext(ctx, "sync_begin", "mode", cfg.Selection().Mode(), "dry_run", cfg.DryRun)

	files, err := loadCaseFiles(cfg, logger)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.InfoContext(ctx, "nothing_to_sync")
		fmt.Fprintln(cmd.OutOrStdout(), "No case files changed.")
		return nil
	}

	if cfg.LockDir != "" {
		l, err := lock.Acquire(ctx, lock.Path(cfg.LockDir, cfg.Project), lockWait)
		if err != nil {
			return fmt.Errorf("acquire project lock: %w", err)
		}
		defer l.Release()
		logger.DebugContext(ctx, "lock_acquired", "path", l.Path())
	}

	client, err := qase.New(cfg.BaseURL, cfg.Token,
		qase.WithLogger(logging.New("qase")),
		qase.WithTimeout(cfg.Timeout),
		qase.WithRateLimit(cfg.RateLimit, 1),
		qase.WithRetry(cfg.MaxRetries, 0),
		qase.WithPagination(cfg.PaginationMode()),
	)
	if err != nil {
		return fmt.Errorf("create Qase client: %w", err)
	}

	report, err := reconcile.Sync(ctx, qase.NewStore(client, cfg.Project), files, reconcile.SyncOptions{
		Project:      cfg.Project,
		AppURL:       cfg.AppURL,
		ExtractPaths: cfg.ExtractPaths,
		Index:        reconcile.IndexOptions{Concurrency: cfg.IndexConcurrency},
		Reconcile: reconcile.Options{
			Search:      cfg.Search,
			Drift:       cfg.DriftPolicy(),
			FailFast:    cfg.FailFast,
			DryRun:      cfg.DryRun,
			EmbedMarker: cfg.EmbedMarker,
			Only:        cfg.ExternalIDs,
		},
	}, logger)
	if report != nil {
		if perr := printReport(cmd, cfg, report); perr != nil {
			logger.WarnContext(ctx, "summary_write_failed", "path", cfg.SummaryFile, "error", perr)
		}
	}
	return err
}

// printReport writes the report to stdout and, when a summary file is
// configured, appends the Markdown rendering to it.
func printReport(cmd *cobra.Command, cfg *config.Config, r *reconcile.Report) error {
	mode, err := format.ParseMode(cfg.ReportFormat)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), format.Report(r, mode))

	if cfg.SummaryFile == "" {
		return nil
	}
	f, err := os.OpenFile(cfg.SummaryFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(format.Report(r, format.Markdown) + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
