package reconcile

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/jmespath/go-jmespath"
	"golang.org/x/text/cases"

	"casesync/internal/qase"
)

// DefaultExtractPaths are the record fields searched for an external id, in
// priority order, before falling back to the description marker.
var DefaultExtractPaths = []string{"external_id", "code", "number"}

// MarkerPrefix starts the description line that carries an external id.
const MarkerPrefix = "External ID: "

var markerLine = regexp.MustCompile(`(?im)^[ \t]*external id:[ \t]*(\S.*?)[ \t]*$`)

// MarkerValue returns the value of the first "External ID: <value>" line of
// description (case-insensitive), or "".
func MarkerValue(description string) string {
	m := markerLine.FindStringSubmatch(description)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// Extractor finds the external id stored on a remote record.
type Extractor struct {
	exprs []string
	paths []*jmespath.JMESPath
}

// NewExtractor compiles the JMESPath expressions tried in order. An empty
// list uses DefaultExtractPaths.
func NewExtractor(exprs []string) (*Extractor, error) {
	if len(exprs) == 0 {
		exprs = DefaultExtractPaths
	}
	e := &Extractor{exprs: exprs}
	for _, expr := range exprs {
		compiled, err := jmespath.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("compile extract path %q: %w", expr, err)
		}
		e.paths = append(e.paths, compiled)
	}
	return e, nil
}

// Extract returns the record's external id: the first non-empty scalar found
// by the configured paths, else the description marker, else "".
func (e *Extractor) Extract(c *qase.Case) string {
	if c.Raw != nil {
		for _, p := range e.paths {
			v, err := p.Search(c.Raw)
			if err != nil {
				continue
			}
			if s := scalarString(v); s != "" {
				return s
			}
		}
	}
	return MarkerValue(c.Description)
}

// Primary returns the value found by the first path only. Lower-priority
// paths and the marker may disagree with it, so a list record is complete
// enough to index only when Primary finds a value.
func (e *Extractor) Primary(c *qase.Case) string {
	if c.Raw == nil || len(e.paths) == 0 {
		return ""
	}
	v, err := e.paths[0].Search(c.Raw)
	if err != nil {
		return ""
	}
	return scalarString(v)
}

func scalarString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		if x == math.Trunc(x) && !math.IsInf(x, 0) {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

// NormalizeTitle is the comparison form of a title: trimmed and casefolded.
func NormalizeTitle(title string) string {
	return cases.Fold().String(strings.TrimSpace(title))
}

// MatchKind says how a local case was tied to a remote record.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchSearch
	MatchTitle
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchSearch:
		return "search"
	case MatchTitle:
		return "title"
	}
	return "none"
}

type titleKey struct {
	suiteID int
	title   string
}

// IdentityResolver holds the external-id and title-fallback indexes for one
// sync invocation. It is not safe for concurrent use.
type IdentityResolver struct {
	byExternalID map[string]int
	byTitle      map[titleKey]int
	owner        map[int]string
}

// NewIdentityResolver returns an empty resolver.
func NewIdentityResolver() *IdentityResolver {
	return &IdentityResolver{
		byExternalID: map[string]int{},
		byTitle:      map[titleKey]int{},
		owner:        map[int]string{},
	}
}

// AddExternal indexes a remote record by external id. It returns false and
// leaves the index unchanged if ext is already indexed.
func (r *IdentityResolver) AddExternal(ext string, id int) bool {
	if _, ok := r.byExternalID[ext]; ok {
		return false
	}
	r.byExternalID[ext] = id
	r.owner[id] = ext
	return true
}

// AddTitle indexes an untagged remote record by (suite, normalized title).
// It returns false and leaves the index unchanged if the key is taken.
func (r *IdentityResolver) AddTitle(suiteID int, title string, id int) bool {
	k := titleKey{suiteID: suiteID, title: NormalizeTitle(title)}
	if _, ok := r.byTitle[k]; ok {
		return false
	}
	r.byTitle[k] = id
	return true
}

// Lookup returns the remote id indexed under ext.
func (r *IdentityResolver) Lookup(ext string) (int, bool) {
	id, ok := r.byExternalID[ext]
	return id, ok
}

// LookupTitle returns the untagged remote record in suiteID with the title.
func (r *IdentityResolver) LookupTitle(suiteID int, title string) (int, bool) {
	id, ok := r.byTitle[titleKey{suiteID: suiteID, title: NormalizeTitle(title)}]
	return id, ok
}

// Owner returns the external id a remote id is bound to, if any.
func (r *IdentityResolver) Owner(id int) (string, bool) {
	ext, ok := r.owner[id]
	return ext, ok
}

// Bind ties ext to id, replacing any previous binding of ext, and drops id
// from the title fallback so no other case can adopt it.
func (r *IdentityResolver) Bind(ext string, id int) {
	if old, ok := r.byExternalID[ext]; ok && old != id {
		delete(r.owner, old)
	}
	r.byExternalID[ext] = id
	r.owner[id] = ext
	for k, v := range r.byTitle {
		if v == id {
			delete(r.byTitle, k)
		}
	}
}

// Len returns the sizes of the external-id and title indexes.
func (r *IdentityResolver) Len() (external, title int) {
	return len(r.byExternalID), len(r.byTitle)
}
