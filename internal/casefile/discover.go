package casefile

import (
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/afero"
)

// DefaultDir is where case files live when no explicit list is given.
const DefaultDir = "docs/manual-testing/tests"

// Extensions lists the accepted case file extensions.
var Extensions = []string{".json", ".yaml", ".yml"}

// Selection decides which case files a sync processes.
type Selection struct {
	// ChangedFiles is a newline-separated path list, typically the files
	// touched by the triggering change. When non-empty it wins.
	ChangedFiles string
	// Hint restricts the directory glob to names containing it.
	Hint string
	// Dir is the directory globbed when ChangedFiles is empty.
	Dir string
}

// Mode names the selection mode that applies.
func (s Selection) Mode() string {
	switch {
	case strings.TrimSpace(s.ChangedFiles) != "":
		return "changed"
	case strings.TrimSpace(s.Hint) != "":
		return "hint"
	}
	return "all"
}

// Discover returns the case files to process, in processing order. A change
// list without case files selects nothing and is not an error; an empty
// directory glob is an *InputError.
func Discover(fsys afero.Fs, sel Selection, logger *slog.Logger) ([]string, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if sel.Mode() == "changed" {
		files := changedFiles(fsys, sel.ChangedFiles, logger)
		if len(files) == 0 {
			logger.Info("no_changed_case_files")
			return nil, nil
		}
		logger.Info("changed_files", "files", files)
		return files, nil
	}

	files, err := globDir(fsys, sel.Dir, strings.TrimSpace(sel.Hint))
	if err != nil {
		return nil, &InputError{Reason: "glob case files", Err: err}
	}

	if len(files) == 0 {
		dir := sel.Dir
		if dir == "" {
			dir = DefaultDir
		}
		return nil, &InputError{Reason: "no case files found (mode=" + sel.Mode() + " dir=" + dir + ")"}
	}
	return files, nil
}

func changedFiles(fsys afero.Fs, list string, logger *slog.Logger) []string {
	var files []string
	seen := map[string]bool{}
	for _, line := range strings.Split(list, "\n") {
		p := strings.TrimSpace(line)
		if p == "" || !hasCaseExt(p) || seen[p] {
			continue
		}
		seen[p] = true
		if ok, _ := afero.Exists(fsys, p); !ok {
			logger.Warn("skip_missing_changed_file", "file", p)
			continue
		}
		files = append(files, p)
	}
	return files
}

func globDir(fsys afero.Fs, dir, hint string) ([]string, error) {
	if dir == "" {
		dir = DefaultDir
	}
	var files []string
	for _, ext := range Extensions {
		matches, err := afero.Glob(fsys, filepath.Join(dir, "*"+hint+"*"+ext))
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	sort.Strings(files)
	return files, nil
}

func hasCaseExt(p string) bool {
	ext := strings.ToLower(filepath.Ext(p))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
