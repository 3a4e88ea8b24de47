package format_test

import (
	"errors"
	"strings"
	"testing"

	"casesync/internal/format"
	"casesync/internal/reconcile"
)

func TestASCII_BasicTable(t *testing.T) {
	tb := format.NewTable(format.ASCII)
	tb.Header("External ID", "Action")
	tb.Row("CHK-001", "created")
	out := tb.String()

	if !strings.Contains(out, "External ID") || !strings.Contains(out, "CHK-001") {
		t.Errorf("expected header and row in output:\n%s", out)
	}
	// StyleLight draws box characters
	if !strings.Contains(out, "───") {
		t.Errorf("expected box-drawing characters in ASCII output:\n%s", out)
	}
}

func TestMarkdown_WithFooter(t *testing.T) {
	tb := format.NewTable(format.Markdown)
	tb.Header("Suite", "Cases")
	tb.Row("Checkout", 2)
	tb.Footer("TOTAL", 2)
	out := tb.String()

	if !strings.Contains(out, "| Suite") {
		t.Errorf("expected markdown header:\n%s", out)
	}
	if !strings.Contains(out, "TOTAL") {
		t.Errorf("expected footer in output:\n%s", out)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]format.Mode{"": format.ASCII, "text": format.ASCII, "Markdown": format.Markdown, "md": format.Markdown} {
		got, err := format.ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := format.ParseMode("html"); err == nil {
		t.Error("expected error for html")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world", 8, "hello..."},
		{"ab", 3, "ab"},
		{"abcdef", 3, "abc"},
		{"ödeme akışı", 6, "öde..."},
	}
	for _, tc := range tests {
		if got := format.Truncate(tc.in, tc.maxLen); got != tc.want {
			t.Errorf("Truncate(%q, %d) = %q, want %q", tc.in, tc.maxLen, got, tc.want)
		}
	}
}

func sampleReport() *reconcile.Report {
	return &reconcile.Report{
		Created: 1,
		Updated: 1,
		Outcomes: []reconcile.Outcome{
			{ExternalID: "CHK-001", RemoteID: 12, Match: reconcile.MatchNone, Action: reconcile.ActionCreated},
			{ExternalID: "CHK-002", RemoteID: 7, Match: reconcile.MatchSearch, Action: reconcile.ActionUpdated},
		},
		Failures: []reconcile.CaseFailure{
			{ExternalID: "CHK-003", File: "checkout.json", Err: &reconcile.RemoteWriteError{Op: "case_create", ExternalID: "CHK-003", Err: errors.New("HTTP 422: a|b")}},
		},
		RunID:  40,
		RunURL: "https://app.qase.io/run/DEMO/40",
	}
}

func TestReport_ASCII(t *testing.T) {
	out := format.Report(sampleReport(), format.ASCII)
	for _, want := range []string{"CHK-001", "Created", "Search", "CHK-003", "Create case", "HTTP 422", "Run: https://app.qase.io/run/DEMO/40"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q:\n%s", want, out)
		}
	}
}

func TestReport_MarkdownEscapesPipes(t *testing.T) {
	out := format.Report(sampleReport(), format.Markdown)
	if !strings.HasPrefix(out, "### Qase sync") {
		t.Errorf("missing heading:\n%s", out)
	}
	if !strings.Contains(out, `\|b`) {
		t.Errorf("pipe in error should be escaped:\n%s", out)
	}
	if !strings.Contains(out, "Create case (case_create)") {
		t.Errorf("markdown failures should name the operation code:\n%s", out)
	}
	if !strings.Contains(out, "[#40](https://app.qase.io/run/DEMO/40)") {
		t.Errorf("missing run link:\n%s", out)
	}
}

func TestReport_DryRunLabels(t *testing.T) {
	r := &reconcile.Report{Planned: 1, Outcomes: []reconcile.Outcome{
		{ExternalID: "CHK-001", Match: reconcile.MatchTitle, Action: reconcile.ActionPlanAdopt},
	}}
	out := format.Report(r, format.ASCII)
	if !strings.Contains(out, "Would adopt") {
		t.Errorf("expected dry-run label:\n%s", out)
	}
	if strings.Contains(out, "Run:") {
		t.Errorf("no run line expected:\n%s", out)
	}
}
