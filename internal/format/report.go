package format

import (
	"errors"
	"fmt"
	"strings"

	"casesync/internal/display"
	"casesync/internal/reconcile"
)

const maxErrorWidth = 120

// Report renders the sync outcome: a totals table, one row per processed
// case, the failures, and the run link when a run was opened.
func Report(r *reconcile.Report, m Mode) string {
	var b strings.Builder
	if m == Markdown {
		b.WriteString("### Qase sync\n\n")
	}

	totals := NewTable(m)
	totals.Header("Created", "Updated", "Adopted", "Recreated", "Planned", "Filtered", "Failed")
	totals.Row(r.Created, r.Updated, r.Adopted, r.Recreated, r.Planned, r.Filtered, len(r.Failures))
	b.WriteString(totals.String())
	b.WriteString("\n")

	if len(r.Outcomes) > 0 {
		cases := NewTable(m)
		cases.Header("External ID", "Action", "Match", "Remote ID")
		for _, o := range r.Outcomes {
			id := "-"
			if o.RemoteID != 0 {
				id = fmt.Sprint(o.RemoteID)
			}
			cases.Row(o.ExternalID, display.Action(string(o.Action)), display.Match(o.Match.String()), id)
		}
		cases.AlignRight(4)
		b.WriteString("\n")
		b.WriteString(cases.String())
		b.WriteString("\n")
	}

	if len(r.Failures) > 0 {
		failed := NewTable(m)
		failed.Header("External ID", "File", "Operation", "Error")
		for _, f := range r.Failures {
			msg := Truncate(strings.ReplaceAll(f.Err.Error(), "\n", " "), maxErrorWidth)
			op := display.Operation(operation(f.Err))
			if m == Markdown {
				op = display.OperationWithCode(operation(f.Err))
			}
			failed.Row(f.ExternalID, f.File, op, msg)
		}
		b.WriteString("\n")
		b.WriteString(failed.String())
		b.WriteString("\n")
	}

	if r.RunURL != "" {
		b.WriteString("\n")
		if m == Markdown {
			fmt.Fprintf(&b, "Run: [#%d](%s)\n", r.RunID, r.RunURL)
		} else {
			fmt.Fprintf(&b, "Run: %s\n", r.RunURL)
		}
	}
	return b.String()
}

// operation is the remote write or read that produced err, or "" for local
// failures.
func operation(err error) string {
	var we *reconcile.RemoteWriteError
	if errors.As(err, &we) {
		return we.Op
	}
	var de *reconcile.DiscoveryError
	if errors.As(err, &de) {
		return de.Op
	}
	return ""
}
