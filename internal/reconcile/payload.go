package reconcile

import (
	"strings"

	"casesync/internal/casefile"
	"casesync/internal/qase"
)

// BuildPayload maps a local case onto the remote create/update body. Steps get
// explicit 1-based positions in authoring order.
func BuildPayload(c casefile.Case, suiteID int, embedMarker bool) qase.CasePayload {
	steps := make([]qase.Step, 0, len(c.Steps))
	for i, s := range c.Steps {
		steps = append(steps, qase.Step{
			Position:       i + 1,
			Action:         s.Action,
			ExpectedResult: s.ExpectedResult,
		})
	}
	return qase.CasePayload{
		Title:       c.Title,
		ExternalID:  c.ExternalID,
		SuiteID:     suiteID,
		Description: RenderDescription(c, embedMarker),
		Steps:       steps,
		Automation:  false,
	}
}

// RenderDescription merges the case-level expected result into the
// description and, when embedMarker is set, ends it with the external id
// marker line. Marker lines written by the author are replaced.
func RenderDescription(c casefile.Case, embedMarker bool) string {
	desc := c.Description
	if embedMarker {
		desc = strings.TrimSpace(markerLine.ReplaceAllString(desc, ""))
	}

	var parts []string
	if desc != "" {
		parts = append(parts, desc)
	}
	if c.ExpectedResult != "" {
		parts = append(parts, "**Expected Result:** "+c.ExpectedResult)
	}
	if embedMarker {
		parts = append(parts, MarkerPrefix+c.ExternalID)
	}
	return strings.Join(parts, "\n\n")
}
