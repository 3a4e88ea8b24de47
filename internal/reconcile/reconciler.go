package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"casesync/internal/casefile"
	"casesync/internal/qase"
)

// DriftPolicy controls the read-back check after an update.
type DriftPolicy int

const (
	// DriftOff skips the read-back.
	DriftOff DriftPolicy = iota
	// DriftReport reads the case back and logs any mismatch.
	DriftReport
	// DriftRecreate deletes and recreates a case whose read-back mismatches,
	// under the same external id. The old remote id and its history are lost.
	DriftRecreate
)

// ParseDriftPolicy maps "off", "report" and "recreate" to a DriftPolicy.
// Boolean spellings are accepted too: true means recreate.
func ParseDriftPolicy(s string) (DriftPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "off", "false", "0":
		return DriftOff, nil
	case "report":
		return DriftReport, nil
	case "recreate", "true", "1":
		return DriftRecreate, nil
	}
	return DriftOff, fmt.Errorf("unknown drift policy %q (want off, report or recreate)", s)
}

// Options controls reconciliation behavior.
type Options struct {
	// Search enables the live search fallback for keys missing from the index.
	Search bool
	// Drift selects the post-update consistency check.
	Drift DriftPolicy
	// FailFast aborts on the first rejected write instead of recording it and
	// continuing with the next case.
	FailFast bool
	// DryRun resolves identities and logs planned actions without writing.
	DryRun bool
	// EmbedMarker appends the "External ID: <id>" line to descriptions.
	EmbedMarker bool
	// Only restricts reconciliation to these external ids when non-empty.
	Only []string
}

// Reconciler upserts local cases into the remote repository. It is used for
// one sync and is not safe for concurrent use.
type Reconciler struct {
	remote  Remote
	ids     *IdentityResolver
	suites  *SuiteRegistry
	extract *Extractor
	opts    Options
	only    map[string]bool
	logger  *slog.Logger
}

// New returns a Reconciler over the given index and suite registry.
func New(remote Remote, ids *IdentityResolver, suites *SuiteRegistry, ex *Extractor, opts Options, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var only map[string]bool
	if len(opts.Only) > 0 {
		only = make(map[string]bool, len(opts.Only))
		for _, ext := range opts.Only {
			only[ext] = true
		}
	}
	return &Reconciler{
		remote:  remote,
		ids:     ids,
		suites:  suites,
		extract: ex,
		opts:    opts,
		only:    only,
		logger:  logger,
	}
}

// Reconcile processes every case of every file in file-then-position order.
// A returned error is fatal; per-case write failures are collected in the
// report unless FailFast is set.
func (r *Reconciler) Reconcile(ctx context.Context, files []casefile.File) (*Report, error) {
	report := &Report{}
	for _, f := range files {
		for _, s := range f.Suites {
			r.logger.InfoContext(ctx, "suite_begin", "file", f.Path, "suite", s.Name, "count", len(s.Cases))
			for _, c := range s.Cases {
				if r.only != nil && !r.only[c.ExternalID] {
					report.Filtered++
					r.logger.DebugContext(ctx, "skip_filtered", "ext", c.ExternalID)
					continue
				}
				out, err := r.ReconcileCase(ctx, c)
				if err != nil {
					if r.opts.FailFast || fatalWrite(err) || isDiscovery(err) {
						return report, err
					}
					attrs := []any{"file", c.File, "suite", c.Suite, "ext", c.ExternalID, "error", err}
					r.logger.ErrorContext(ctx, "case_failed", append(attrs, apiAttrs(err)...)...)
					report.Failures = append(report.Failures, CaseFailure{
						File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, Err: err,
					})
					continue
				}
				report.record(out)
			}
		}
	}
	return report, nil
}

// ReconcileCase resolves, upserts and optionally verifies one case.
func (r *Reconciler) ReconcileCase(ctx context.Context, c casefile.Case) (Outcome, error) {
	out := Outcome{ExternalID: c.ExternalID}

	suiteID, err := r.suites.Resolve(ctx, c.Suite)
	if err != nil {
		var we *RemoteWriteError
		if errors.As(err, &we) {
			we.File, we.ExternalID = c.File, c.ExternalID
		}
		return out, err
	}

	id, match, err := r.resolve(ctx, c.ExternalID, suiteID, c.Title)
	if err != nil {
		return out, err
	}
	out.Match = match
	out.RemoteID = id
	payload := BuildPayload(c, suiteID, r.opts.EmbedMarker)

	if r.opts.DryRun {
		out.Action = planAction(match)
		r.logger.InfoContext(ctx, string(out.Action), "ext", c.ExternalID, "id", id, "match", match.String(), "suite", c.Suite)
		return out, nil
	}

	if match == MatchNone {
		id, action, err := r.create(ctx, c, payload)
		if err != nil {
			return out, err
		}
		out.RemoteID, out.Action = id, action
		return out, nil
	}

	if err := r.remote.UpdateCase(ctx, id, payload); err != nil {
		return out, &RemoteWriteError{Op: "case_update", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, RemoteID: id, Err: err}
	}
	r.ids.Bind(c.ExternalID, id)
	if match == MatchTitle {
		out.Action = ActionAdopted
		r.logger.InfoContext(ctx, "case_adopted", "ext", c.ExternalID, "id", id, "title", c.Title)
	} else {
		out.Action = ActionUpdated
		r.logger.InfoContext(ctx, "case_updated", "ext", c.ExternalID, "id", id, "match", match.String())
	}

	if r.opts.Drift != DriftOff {
		newID, recreated, err := r.verify(ctx, c, id, payload)
		if err != nil {
			return out, err
		}
		if recreated {
			out.RemoteID, out.Action = newID, ActionRecreated
		}
	}
	return out, nil
}

// resolve finds the remote record for ext: exact index hit, then live search,
// then the (suite, title) fallback. Exact and search always win over title.
// A candidate already bound to a different external id is discarded.
func (r *Reconciler) resolve(ctx context.Context, ext string, suiteID int, title string) (int, MatchKind, error) {
	if id, ok := r.ids.Lookup(ext); ok {
		return id, MatchExact, nil
	}

	if r.opts.Search {
		id, ok, err := r.search(ctx, ext)
		if err != nil {
			if qase.IsUnauthorized(err) || qase.IsForbidden(err) {
				return 0, MatchNone, &DiscoveryError{Op: "search cases", Err: err}
			}
			r.logger.WarnContext(ctx, "search_failed", "ext", ext, "error", err)
		} else if ok && r.free(ext, id) {
			return id, MatchSearch, nil
		}
	}

	if suiteID != 0 {
		if id, ok := r.ids.LookupTitle(suiteID, title); ok && r.free(ext, id) {
			return id, MatchTitle, nil
		}
	}
	return 0, MatchNone, nil
}

func (r *Reconciler) free(ext string, id int) bool {
	owner, bound := r.ids.Owner(id)
	if bound && owner != ext {
		r.logger.Warn("identity_conflict", "ext", ext, "id", id, "bound_to", owner)
		return false
	}
	return true
}

// search asks the remote store for ext and verifies every hit with the
// extractor, fetching the full record when the hit is partial.
func (r *Reconciler) search(ctx context.Context, ext string) (int, bool, error) {
	hits, err := r.remote.SearchCases(ctx, ext)
	if err != nil {
		return 0, false, err
	}
	return r.find(ctx, hits, ext)
}

// scan walks every remote case looking for ext. It backs the create-conflict
// rescue, when the index and search both missed a record the store says
// exists.
func (r *Reconciler) scan(ctx context.Context, ext string) (int, bool, error) {
	listed, err := r.remote.ListCases(ctx)
	if err != nil {
		return 0, false, err
	}
	return r.find(ctx, listed, ext)
}

func (r *Reconciler) find(ctx context.Context, records []qase.Case, ext string) (int, bool, error) {
	for i := range records {
		got, err := r.identify(ctx, &records[i])
		if err != nil {
			return 0, false, err
		}
		if got == ext {
			return records[i].ID, true, nil
		}
	}
	return 0, false, nil
}

// identify extracts the external id of rec, reading the full record unless
// the partial one already carries the first extraction path.
func (r *Reconciler) identify(ctx context.Context, rec *qase.Case) (string, error) {
	if ext := r.extract.Primary(rec); ext != "" {
		return ext, nil
	}
	detail, err := r.remote.GetCase(ctx, rec.ID)
	if err != nil {
		return "", err
	}
	return r.extract.Extract(detail), nil
}

// create posts a new case. If the store rejects it because the external id is
// already taken, the existing record is located and updated instead.
func (r *Reconciler) create(ctx context.Context, c casefile.Case, payload qase.CasePayload) (int, Action, error) {
	id, err := r.remote.CreateCase(ctx, payload)
	if err == nil {
		r.ids.Bind(c.ExternalID, id)
		r.logger.InfoContext(ctx, "case_created", "ext", c.ExternalID, "id", id, "steps", len(payload.Steps))
		return id, ActionCreated, nil
	}
	if !qase.IsExternalIDConflict(err) {
		return 0, "", &RemoteWriteError{Op: "case_create", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, Err: err}
	}

	r.logger.WarnContext(ctx, "create_conflict_rescue", "ext", c.ExternalID, "error", err)
	id, found, serr := r.search(ctx, c.ExternalID)
	if serr == nil && !found {
		id, found, serr = r.scan(ctx, c.ExternalID)
	}
	if serr != nil {
		return 0, "", &DiscoveryError{Op: "rescue lookup ext=" + c.ExternalID, Err: serr}
	}
	if !found {
		return 0, "", &RemoteWriteError{Op: "case_create", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID,
			Err: fmt.Errorf("cannot find case for external id after conflict: %w", err)}
	}
	if err := r.remote.UpdateCase(ctx, id, payload); err != nil {
		return 0, "", &RemoteWriteError{Op: "case_update", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, RemoteID: id, Err: err}
	}
	r.ids.Bind(c.ExternalID, id)
	r.logger.InfoContext(ctx, "case_updated", "ext", c.ExternalID, "id", id, "match", "rescue")
	return id, ActionUpdated, nil
}

// verify reads the case back and compares it with what was sent. Under
// DriftRecreate a mismatch deletes the case and creates it again.
func (r *Reconciler) verify(ctx context.Context, c casefile.Case, id int, payload qase.CasePayload) (int, bool, error) {
	got, err := r.remote.GetCase(ctx, id)
	if err != nil {
		return 0, false, &DiscoveryError{Op: fmt.Sprintf("verify case id=%d", id), Err: err}
	}
	reason := driftReason(payload, got)
	if reason == "" {
		return id, false, nil
	}

	drift := &DriftError{ExternalID: c.ExternalID, RemoteID: id, Reason: reason}
	if r.opts.Drift != DriftRecreate {
		r.logger.WarnContext(ctx, "case_drift", "ext", c.ExternalID, "id", id, "error", drift)
		return id, false, nil
	}

	r.logger.WarnContext(ctx, "case_drift_recreate", "ext", c.ExternalID, "id", id, "error", drift)
	if err := r.remote.DeleteCase(ctx, id); err != nil {
		return 0, false, &RemoteWriteError{Op: "case_delete", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, RemoteID: id, Err: err}
	}
	newID, err := r.remote.CreateCase(ctx, payload)
	if err != nil {
		return 0, false, &RemoteWriteError{Op: "case_recreate", File: c.File, Suite: c.Suite, ExternalID: c.ExternalID, RemoteID: id, Err: err}
	}
	r.ids.Bind(c.ExternalID, newID)
	r.logger.InfoContext(ctx, "case_recreated", "ext", c.ExternalID, "old_id", id, "id", newID)
	return newID, true, nil
}

// driftReason returns why got differs from sent, or "" if it matches.
// Only the title and the position-ordered steps are compared.
func driftReason(sent qase.CasePayload, got *qase.Case) string {
	if strings.TrimSpace(got.Title) != strings.TrimSpace(sent.Title) {
		return fmt.Sprintf("title %q != %q", got.Title, sent.Title)
	}
	steps := append([]qase.Step(nil), got.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Position < steps[j].Position })
	if len(steps) != len(sent.Steps) {
		return fmt.Sprintf("step count %d != %d", len(steps), len(sent.Steps))
	}
	for i := range steps {
		if strings.TrimSpace(steps[i].Action) != strings.TrimSpace(sent.Steps[i].Action) ||
			strings.TrimSpace(steps[i].ExpectedResult) != strings.TrimSpace(sent.Steps[i].ExpectedResult) {
			return fmt.Sprintf("step %d differs", i+1)
		}
	}
	return ""
}

func isDiscovery(err error) bool {
	var de *DiscoveryError
	return errors.As(err, &de)
}
