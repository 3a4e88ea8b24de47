package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Action is what the reconciler did, or would do in dry-run, for one case.
type Action string

const (
	ActionCreated   Action = "case_created"
	ActionUpdated   Action = "case_updated"
	ActionAdopted   Action = "case_adopted"
	ActionRecreated Action = "case_recreated"

	ActionPlanCreate Action = "plan_create"
	ActionPlanUpdate Action = "plan_update"
	ActionPlanAdopt  Action = "plan_adopt"
)

func planAction(m MatchKind) Action {
	switch m {
	case MatchNone:
		return ActionPlanCreate
	case MatchTitle:
		return ActionPlanAdopt
	}
	return ActionPlanUpdate
}

// Outcome is the result of reconciling one case.
type Outcome struct {
	ExternalID string
	RemoteID   int
	Match      MatchKind
	Action     Action
}

// CaseFailure is a per-case error recorded when the sync continues past it.
type CaseFailure struct {
	File       string
	Suite      string
	ExternalID string
	Err        error
}

// Report collects the outcome of a sync.
type Report struct {
	Created   int
	Updated   int
	Adopted   int
	Recreated int
	Planned   int
	Filtered  int
	Failures  []CaseFailure
	Outcomes  []Outcome

	// Touched holds remote ids of created, updated, adopted or recreated
	// cases in processing order. It may contain duplicates.
	Touched []int

	// RunID is the published run, or 0 when none was created.
	RunID  int
	RunURL string
}

func (r *Report) record(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	switch o.Action {
	case ActionCreated:
		r.Created++
	case ActionUpdated:
		r.Updated++
	case ActionAdopted:
		r.Adopted++
	case ActionRecreated:
		r.Recreated++
	default:
		r.Planned++
		return
	}
	r.Touched = append(r.Touched, o.RemoteID)
}

// Failed reports whether any case failed.
func (r *Report) Failed() bool { return len(r.Failures) > 0 }

// Err summarizes the recorded failures as one error, or returns nil.
func (r *Report) Err() error {
	if !r.Failed() {
		return nil
	}
	ids := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		ids = append(ids, f.ExternalID)
	}
	return fmt.Errorf("%d case(s) failed: %s", len(r.Failures), strings.Join(ids, ", "))
}

// Log writes the summary line.
func (r *Report) Log(ctx context.Context, logger *slog.Logger) {
	logger.InfoContext(ctx, "summary",
		"created", r.Created,
		"updated", r.Updated,
		"adopted", r.Adopted,
		"recreated", r.Recreated,
		"planned", r.Planned,
		"filtered", r.Filtered,
		"failed", len(r.Failures),
		"touched", len(r.Touched),
		"run_id", r.RunID)
}
