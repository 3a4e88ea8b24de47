// Package display provides human-readable names for machine codes.
//
// Rule: code is for machines, words are for humans.
// Use these functions in CLI output and Markdown summaries.
// Keep raw codes for log attributes, map keys, and equality comparisons.
package display

// --- Actions ---

var actions = map[string]string{
	"case_created":   "Created",
	"case_updated":   "Updated",
	"case_adopted":   "Adopted",
	"case_recreated": "Recreated",
	"plan_create":    "Would create",
	"plan_update":    "Would update",
	"plan_adopt":     "Would adopt",
}

// Action returns the human-readable name for a per-case action code.
// Unknown codes are returned as-is.
func Action(code string) string {
	if name, ok := actions[code]; ok {
		return name
	}
	return code
}

// --- Matches ---

var matches = map[string]string{
	"none":   "New",
	"exact":  "External ID",
	"search": "Search",
	"title":  "Title",
}

// Match returns the human-readable name for how a case was resolved.
func Match(code string) string {
	if name, ok := matches[code]; ok {
		return name
	}
	return code
}

// --- Remote operations ---

var operations = map[string]string{
	"suite_create":  "Create suite",
	"case_create":   "Create case",
	"case_update":   "Update case",
	"case_delete":   "Delete case",
	"case_recreate": "Recreate case",
	"run_create":    "Create run",
}

// Operation returns the human-readable name for a remote write.
// "case_update" -> "Update case". An empty code yields "".
func Operation(code string) string {
	if name, ok := operations[code]; ok {
		return name
	}
	return code
}

// OperationWithCode returns "Update case (case_update)" format.
func OperationWithCode(code string) string {
	if name, ok := operations[code]; ok {
		return name + " (" + code + ")"
	}
	return code
}
