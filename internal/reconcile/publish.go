package reconcile

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"casesync/internal/qase"
)

// DefaultAppURL is the web UI base used to build run links.
const DefaultAppURL = "https://app.qase.io"

// RunTitle is the title of runs opened after a full sync.
const RunTitle = "Manual re test auto generated"

// SubsetRunTitle is the run title when the sync was restricted to n external ids.
func SubsetRunTitle(n int) string {
	return fmt.Sprintf("%s (subset of %d external ids)", RunTitle, n)
}

// RunPublisher opens a test run over the touched cases.
type RunPublisher struct {
	remote  Remote
	project string
	appURL  string
	logger  *slog.Logger
}

// NewRunPublisher returns a publisher for project. An empty appURL uses
// DefaultAppURL.
func NewRunPublisher(remote Remote, project, appURL string, logger *slog.Logger) *RunPublisher {
	if appURL == "" {
		appURL = DefaultAppURL
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &RunPublisher{
		remote:  remote,
		project: project,
		appURL:  strings.TrimRight(appURL, "/"),
		logger:  logger,
	}
}

// RunURL is the web link for run id.
func (p *RunPublisher) RunURL(id int) string {
	return fmt.Sprintf("%s/run/%s/%d", p.appURL, p.project, id)
}

// Publish opens a run titled title over ids, deduplicated with first-seen
// order kept. An empty id set returns 0 without a remote call.
func (p *RunPublisher) Publish(ctx context.Context, title string, ids []int) (int, error) {
	cases := Dedupe(ids)
	if len(cases) == 0 {
		p.logger.InfoContext(ctx, "run_skipped", "reason", "no touched cases")
		return 0, nil
	}
	id, err := p.remote.CreateRun(ctx, qase.RunPayload{Title: title, Cases: cases})
	if err != nil {
		return 0, &RemoteWriteError{Op: "run_create", Err: err}
	}
	p.logger.InfoContext(ctx, "run_created", "id", id, "cases", len(cases), "url", p.RunURL(id))
	return id, nil
}

// Dedupe drops repeated ids, keeping the first occurrence of each.
func Dedupe(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
