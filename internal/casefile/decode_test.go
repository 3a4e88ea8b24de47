package casefile

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

type pair struct {
	Suite string
	Title string
	Ext   string
}

func pairs(t *testing.T, data, ext string) []pair {
	t.Helper()
	f, err := NewLoader(nil, nil).Load("mem"+ext, []byte(data), ext)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	var out []pair
	for _, s := range f.Suites {
		for _, c := range s.Cases {
			out = append(out, pair{Suite: c.Suite, Title: c.Title, Ext: c.ExternalID})
		}
	}
	return out
}

func TestDecode_ShapesAreEquivalent(t *testing.T) {
	single := `{"suite":"Login","cases":[{"title":"Valid password"},{"title":"Wrong password","external_id":"AUTH-9"}]}`
	list := `[{"suite":"Login","cases":[{"title":"Valid password"},{"title":"Wrong password","external_id":"AUTH-9"}]}]`
	mapping := `{"Login":[{"title":"Valid password"},{"title":"Wrong password","external_id":"AUTH-9"}]}`
	yamlDoc := "suite: Login\ncases:\n  - title: Valid password\n  - title: Wrong password\n    external_id: AUTH-9\n"

	want := []pair{
		{Suite: "Login", Title: "Valid password", Ext: "LOGIN-001"},
		{Suite: "Login", Title: "Wrong password", Ext: "AUTH-9"},
	}
	for name, tc := range map[string]struct{ data, ext string }{
		"single":  {single, ".json"},
		"list":    {list, ".json"},
		"mapping": {mapping, ".json"},
		"yaml":    {yamlDoc, ".yaml"},
		"detect":  {mapping, ""},
	} {
		t.Run(name, func(t *testing.T) {
			if diff := cmp.Diff(want, pairs(t, tc.data, tc.ext)); diff != "" {
				t.Errorf("pairs (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecode_ClassifiesShape(t *testing.T) {
	tests := []struct {
		data string
		want Shape
	}{
		{`{"suite":"A","cases":[]}`, ShapeSingle},
		{`[{"suite":"A","cases":[]},{"suite":"B","cases":[]}]`, ShapeList},
		{`{"A":[],"B":[]}`, ShapeMapping},
	}
	for _, tt := range tests {
		doc, err := Decode([]byte(tt.data), ".json")
		if err != nil {
			t.Fatalf("Decode(%s): %v", tt.data, err)
		}
		if doc.Shape != tt.want {
			t.Errorf("Decode(%s) shape = %v, want %v", tt.data, doc.Shape, tt.want)
		}
	}
}

func TestDecode_MappingKeepsFileOrder(t *testing.T) {
	doc, err := Decode([]byte(`{"Zeta":[],"Alpha":[],"Mid":[]}`), ".json")
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, b := range doc.Blocks {
		names = append(names, b.Suite)
	}
	if diff := cmp.Diff([]string{"Zeta", "Alpha", "Mid"}, names); diff != "" {
		t.Errorf("order (-want +got):\n%s", diff)
	}

	doc, err = Decode([]byte("Zeta: []\nAlpha: []\n"), ".yml")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Blocks[0].Suite != "Zeta" || doc.Blocks[1].Suite != "Alpha" {
		t.Errorf("yaml order: %+v", doc.Blocks)
	}
}

func TestDecode_RejectsUnsupportedShapes(t *testing.T) {
	for _, data := range []string{
		`"just a string"`,
		`42`,
		`{"Login":[],"meta":{"x":1}}`,
		`[{"suite":"A","cases":[]},{"title":"stray"}]`,
		`{"suite":"A","cases":{"title":"x"}}`,
		`{"suite":"","cases":[]}`,
		`{"A":[]} {"B":[]}`,
		`{"A":[`,
	} {
		if _, err := Decode([]byte(data), ".json"); err == nil {
			t.Errorf("Decode(%s): expected error", data)
		}
	}
}

func TestDecode_StripsBOM(t *testing.T) {
	data := append([]byte("\xef\xbb\xbf"), []byte(`{"suite":"A","cases":[{"title":"x"}]}`)...)
	doc, err := Decode(data, ".json")
	if err != nil {
		t.Fatalf("Decode with BOM: %v", err)
	}
	if doc.Shape != ShapeSingle || len(doc.Blocks[0].Cases) != 1 {
		t.Errorf("unexpected doc: %+v", doc)
	}
}
