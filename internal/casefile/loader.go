package casefile

import (
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/afero"
)

// caseDef and stepDef are the authoring schema of a case object. Decoding is
// weakly typed so numeric titles or ids are accepted as strings.
type caseDef struct {
	Title          string `json:"title"`
	ExternalID     string `json:"external_id"`
	Description    string `json:"description"`
	ExpectedResult string `json:"expected_result"`
}

type stepDef struct {
	Action         string `json:"action"`
	ExpectedResult string `json:"expected_result"`
}

// Loader reads case files and enforces batch-wide external id uniqueness.
// A Loader is meant for one sync invocation.
type Loader struct {
	fs     afero.Fs
	logger *slog.Logger
	seen   map[string]string
}

// NewLoader returns a Loader reading from fsys. A nil logger discards output.
func NewLoader(fsys afero.Fs, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Loader{fs: fsys, logger: logger, seen: map[string]string{}}
}

// LoadAll loads every path in order. The first malformed file aborts the load.
func (l *Loader) LoadAll(paths []string) ([]File, error) {
	files := make([]File, 0, len(paths))
	for _, p := range paths {
		f, err := l.LoadFromPath(p)
		if err != nil {
			return nil, err
		}
		files = append(files, *f)
	}
	return files, nil
}

// LoadFromPath reads and normalizes one case file. Format is detected by
// extension (.yaml/.yml -> YAML, .json -> JSON) or by content.
func (l *Loader) LoadFromPath(path string) (*File, error) {
	data, err := afero.ReadFile(l.fs, path)
	if err != nil {
		return nil, &InputError{File: path, Reason: "read case file", Err: err}
	}
	return l.Load(path, data, filepath.Ext(path))
}

// Load normalizes already-read file content. path is used for error context
// and duplicate reporting only.
func (l *Loader) Load(path string, data []byte, ext string) (*File, error) {
	doc, err := Decode(data, ext)
	if err != nil {
		return nil, &InputError{File: path, Reason: "unsupported file", Err: err}
	}
	l.logger.Debug("file decoded", "file", path, "shape", doc.Shape.String(), "suites", len(doc.Blocks))

	file := &File{Path: path}
	for _, b := range doc.Blocks {
		suite := Suite{Name: b.Suite}
		for i, raw := range b.Cases {
			c, ok, err := l.normalize(path, b.Suite, i+1, raw)
			if err != nil {
				return nil, err
			}
			if ok {
				suite.Cases = append(suite.Cases, *c)
			}
		}
		file.Suites = append(file.Suites, suite)
	}
	return file, nil
}

func (l *Loader) normalize(path, suite string, pos int, raw any) (*Case, bool, error) {
	obj, ok := raw.(map[string]any)
	if !ok {
		l.logger.Warn("skip_non_object_case", "file", path, "suite", suite, "position", pos)
		return nil, false, nil
	}

	var def caseDef
	if err := weakDecode(obj, &def); err != nil {
		return nil, false, &InputError{File: path, Suite: suite, Reason: fmt.Sprintf("invalid case at position %d", pos), Err: err}
	}

	title := strings.TrimSpace(def.Title)
	if title == "" {
		return nil, false, &InputError{File: path, Suite: suite, Reason: fmt.Sprintf("missing title at position %d", pos)}
	}

	ext := strings.TrimSpace(def.ExternalID)
	if ext == "" {
		ext = SynthesizeExternalID(suite, pos)
		l.logger.Info("auto_external_id", "ext", ext, "suite", suite)
	}
	if where, dup := l.seen[ext]; dup {
		return nil, false, &InputError{File: path, Suite: suite, ExternalID: ext,
			Reason: "duplicate external_id in input (first defined in " + where + ")"}
	}

	steps, err := l.steps(path, suite, ext, obj)
	if err != nil {
		return nil, false, err
	}

	l.seen[ext] = path + "#" + suite
	return &Case{
		Suite:          suite,
		Title:          title,
		ExternalID:     ext,
		Description:    strings.TrimSpace(def.Description),
		ExpectedResult: strings.TrimSpace(def.ExpectedResult),
		Steps:          steps,
		File:           path,
		Position:       pos,
	}, true, nil
}

func (l *Loader) steps(path, suite, ext string, obj map[string]any) ([]Step, error) {
	raw, present := obj["steps"]
	if !present {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, &InputError{File: path, Suite: suite, ExternalID: ext, Reason: "steps must be list"}
	}

	steps := make([]Step, 0, len(list))
	for i, item := range list {
		stepObj, ok := item.(map[string]any)
		if !ok {
			l.logger.Warn("warn_skip_non_object_step", "ext", ext, "idx", i+1)
			continue
		}
		var def stepDef
		if err := weakDecode(stepObj, &def); err != nil {
			return nil, &InputError{File: path, Suite: suite, ExternalID: ext, Reason: fmt.Sprintf("invalid step %d", i+1), Err: err}
		}
		steps = append(steps, Step{Action: def.Action, ExpectedResult: def.ExpectedResult})
	}
	return steps, nil
}

func weakDecode(input map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "json",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

var nonAlnum = regexp.MustCompile(`[^A-Za-z0-9]+`)

// Slug uppercases s and collapses every run of non-alphanumeric characters
// into a single hyphen, trimming hyphens at both ends.
func Slug(s string) string {
	return strings.Trim(strings.ToUpper(nonAlnum.ReplaceAllString(s, "-")), "-")
}

// SynthesizeExternalID derives the identifier of an untagged case from its
// suite and 1-based position: ("Login", 3) -> "LOGIN-003".
func SynthesizeExternalID(suite string, pos int) string {
	base := Slug(suite)
	if base == "" {
		base = "SUITE"
	}
	return fmt.Sprintf("%s-%03d", base, pos)
}
