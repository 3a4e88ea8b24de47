package casefile

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"
)

func TestSynthesizeExternalID(t *testing.T) {
	tests := []struct {
		suite string
		pos   int
		want  string
	}{
		{"Login", 3, "LOGIN-003"},
		{"Checkout", 1, "CHECKOUT-001"},
		{"user  profile / settings", 12, "USER-PROFILE-SETTINGS-012"},
		{"--Edge--", 7, "EDGE-007"},
		{"Ödeme akışı", 2, "DEME-AK-002"},
		{"!!!", 1, "SUITE-001"},
		{"Big", 1000, "BIG-1000"},
	}
	for _, tt := range tests {
		if got := SynthesizeExternalID(tt.suite, tt.pos); got != tt.want {
			t.Errorf("SynthesizeExternalID(%q, %d) = %q, want %q", tt.suite, tt.pos, got, tt.want)
		}
	}
}

func TestLoad_NormalizesCase(t *testing.T) {
	data := `{"suite":"Checkout","cases":[{
		"title":"  Pay with card ",
		"description":"Card flow",
		"expected_result":"Order placed",
		"steps":[{"action":"Enter card","expected_result":"Field accepts input"},"bogus",{"action":"Submit"}]
	}]}`

	var logs bytes.Buffer
	l := NewLoader(nil, slog.New(slog.NewTextHandler(&logs, nil)))
	f, err := l.Load("checkout.json", []byte(data), ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	want := Case{
		Suite:          "Checkout",
		Title:          "Pay with card",
		ExternalID:     "CHECKOUT-001",
		Description:    "Card flow",
		ExpectedResult: "Order placed",
		Steps: []Step{
			{Action: "Enter card", ExpectedResult: "Field accepts input"},
			{Action: "Submit"},
		},
		File:     "checkout.json",
		Position: 1,
	}
	if diff := cmp.Diff(want, f.Suites[0].Cases[0]); diff != "" {
		t.Errorf("case (-want +got):\n%s", diff)
	}
	if !strings.Contains(logs.String(), "warn_skip_non_object_step") {
		t.Errorf("expected step warning, got: %s", logs.String())
	}
	if !strings.Contains(logs.String(), "auto_external_id") {
		t.Errorf("expected auto_external_id log, got: %s", logs.String())
	}
}

func TestLoad_WeaklyTypedFields(t *testing.T) {
	f, err := NewLoader(nil, nil).Load("n.json", []byte(`{"S":[{"title":404,"external_id":17}]}`), ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	c := f.Suites[0].Cases[0]
	if c.Title != "404" || c.ExternalID != "17" {
		t.Errorf("got title=%q ext=%q", c.Title, c.ExternalID)
	}
}

func TestLoad_PositionCountsSkippedEntries(t *testing.T) {
	f, err := NewLoader(nil, nil).Load("p.json", []byte(`{"Login":["junk",{"title":"second"}]}`), ".json")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := f.Suites[0].Cases; len(got) != 1 || got[0].ExternalID != "LOGIN-002" {
		t.Errorf("unexpected cases: %+v", got)
	}
}

func TestLoad_InputErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		reason string
	}{
		{"missing title", `{"suite":"A","cases":[{"description":"x"}]}`, "missing title"},
		{"blank title", `{"suite":"A","cases":[{"title":"   "}]}`, "missing title"},
		{"steps not list", `{"suite":"A","cases":[{"title":"x","steps":"do it"}]}`, "steps must be list"},
		{"steps null", `{"suite":"A","cases":[{"title":"x","steps":null}]}`, "steps must be list"},
		{"duplicate in file", `{"suite":"A","cases":[{"title":"x","external_id":"K"},{"title":"y","external_id":"K"}]}`, "duplicate external_id"},
		{"synthesized clash", `{"suite":"A","cases":[{"title":"x","external_id":"A-002"},{"title":"y"}]}`, "duplicate external_id"},
		{"bad shape", `[1,2,3]`, "unsupported file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader(nil, nil).Load("bad.json", []byte(tt.data), ".json")
			var inErr *InputError
			if !errors.As(err, &inErr) {
				t.Fatalf("expected *InputError, got %v", err)
			}
			if !strings.Contains(inErr.Error(), tt.reason) || inErr.File != "bad.json" {
				t.Errorf("error = %q, want reason %q", inErr.Error(), tt.reason)
			}
		})
	}
}

func TestLoadAll_DuplicateAcrossFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "tests/a.json", []byte(`{"suite":"A","cases":[{"title":"x","external_id":"SHARED"}]}`), 0o644)
	afero.WriteFile(fs, "tests/b.yaml", []byte("B:\n  - title: y\n    external_id: SHARED\n"), 0o644)

	_, err := NewLoader(fs, nil).LoadAll([]string{"tests/a.json", "tests/b.yaml"})
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected *InputError, got %v", err)
	}
	if inErr.File != "tests/b.yaml" || inErr.ExternalID != "SHARED" {
		t.Errorf("unexpected context: %+v", inErr)
	}
}

func TestLoadFromPath_Missing(t *testing.T) {
	_, err := NewLoader(afero.NewMemMapFs(), nil).LoadFromPath("nope.json")
	var inErr *InputError
	if !errors.As(err, &inErr) {
		t.Fatalf("expected *InputError, got %v", err)
	}
}
