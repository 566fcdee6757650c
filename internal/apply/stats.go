package apply

import (
	"fmt"

	"github.com/untoldecay/shopmirror/internal/ui"
)

// maxErrorSample bounds the per-phase error detail kept for the summary; the
// full stream is already on the log.
const maxErrorSample = 10

// Stats counts one phase's record outcomes.
type Stats struct {
	Total   int
	Created int
	Updated int
	Skipped int
	Failed  int

	// Errors holds up to maxErrorSample record failures for the summary.
	Errors []string
}

func (s *Stats) fail(key string, err error) {
	s.Failed++
	if len(s.Errors) < maxErrorSample {
		s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", key, err))
	}
}

// PhaseStats is one pipeline phase's outcome, in run order.
type PhaseStats struct {
	Name string
	Stats
}

// Report collects per-phase stats across a run.
type Report struct {
	Phases []PhaseStats
}

func (r *Report) add(name string, st Stats) {
	r.Phases = append(r.Phases, PhaseStats{Name: name, Stats: st})
}

// FailedTotal is the number of records that failed across all phases.
func (r *Report) FailedTotal() int {
	n := 0
	for _, ph := range r.Phases {
		n += ph.Failed
	}
	return n
}

// ExitCode maps the run outcome to a process exit code: 1 when any record
// failed, 0 otherwise.
func (r *Report) ExitCode() int {
	if r.FailedTotal() > 0 {
		return 1
	}
	return 0
}

// Render formats the report as a summary table plus a sample of record
// failures, sized to the given terminal width.
func (r *Report) Render(width int) string {
	rows := make([]ui.PhaseRow, 0, len(r.Phases))
	for _, ph := range r.Phases {
		rows = append(rows, ui.PhaseRow{
			Name:    ph.Name,
			Total:   ph.Total,
			Created: ph.Created,
			Updated: ph.Updated,
			Skipped: ph.Skipped,
			Failed:  ph.Failed,
			Errors:  ph.Errors,
		})
	}
	return ui.RenderApplySummary(rows, width)
}
