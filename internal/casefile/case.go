// Package casefile discovers and parses locally authored test-case files.
//
// A file holds one or more suites in one of three shapes (single suite
// object, list of suite objects, or a suite-name mapping), written as JSON or
// YAML. Parsing normalizes every shape into []Suite immediately; nothing past
// Decode knows which shape a file used.
package casefile

import (
	"fmt"
	"strings"
)

// Case is one normalized case definition.
type Case struct {
	Suite          string
	Title          string
	ExternalID     string
	Description    string
	ExpectedResult string
	Steps          []Step

	// File and Position locate the definition: Position is the 1-based index
	// of the case within its suite block.
	File     string
	Position int
}

// Step is one ordered step. Order in Case.Steps is significant.
type Step struct {
	Action         string
	ExpectedResult string
}

// Suite is a named, ordered group of cases from one file.
type Suite struct {
	Name  string
	Cases []Case
}

// File is a parsed case file.
type File struct {
	Path   string
	Suites []Suite
}

// CaseCount returns the number of cases across all suites of the file.
func (f *File) CaseCount() int {
	n := 0
	for _, s := range f.Suites {
		n += len(s.Cases)
	}
	return n
}

// InputError reports malformed authoring input: an unsupported file shape, a
// case without a title, a duplicate external id, steps that are not a list, or
// no input files at all.
type InputError struct {
	File       string
	Suite      string
	ExternalID string
	Reason     string
	Err        error
}

func (e *InputError) Error() string {
	var b strings.Builder
	b.WriteString(e.Reason)
	if e.File != "" {
		fmt.Fprintf(&b, " file=%s", e.File)
	}
	if e.Suite != "" {
		fmt.Fprintf(&b, " suite=%s", e.Suite)
	}
	if e.ExternalID != "" {
		fmt.Fprintf(&b, " ext=%s", e.ExternalID)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *InputError) Unwrap() error { return e.Err }
