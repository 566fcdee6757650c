package ui

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// PhaseRow is one apply phase's outcome for the summary table.
type PhaseRow struct {
	Name    string
	Total   int
	Created int
	Updated int
	Skipped int
	Failed  int

	// Errors holds a sample of record failures; the full stream is on the log.
	Errors []string
}

var summaryHeader = []string{"phase", "total", "created", "updated", "skipped", "failed"}

// RenderApplySummary renders the per-phase outcome table, a totals row, and
// a warning box sampling the record failures.
func RenderApplySummary(rows []PhaseRow, width int) string {
	if len(rows) == 0 {
		return TableHintStyle.Render("nothing applied")
	}
	width = min(width, 72)

	var total PhaseRow
	total.Name = "total"
	cells := make([][]string, 0, len(rows)+1)
	for _, r := range rows {
		cells = append(cells, phaseCells(r))
		total.Total += r.Total
		total.Created += r.Created
		total.Updated += r.Updated
		total.Skipped += r.Skipped
		total.Failed += r.Failed
	}
	cells = append(cells, phaseCells(total))

	failedCol := len(summaryHeader) - 1
	t := table.New().
		Headers(summaryHeader...).
		Rows(cells...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == failedCol && cells[row][col] != "0":
				return TableCellStyle.Foreground(ColorWarn)
			case col == 0:
				return TableCellStyle.Bold(true).Foreground(ColorAccent)
			default:
				return TableCellStyle
			}
		})

	sections := []string{t.String()}

	var failures []string
	for _, r := range rows {
		for _, e := range r.Errors {
			failures = append(failures, "  • "+r.Name+": "+e)
		}
	}
	if len(failures) > 0 {
		warnBox := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorWarn).
			Padding(0, 1).
			Width(width - 2)

		content := []string{lipgloss.NewStyle().Bold(true).Foreground(ColorWarn).Render("⚠ Record failures (sample):")}
		content = append(content, failures...)
		sections = append(sections, warnBox.Render(strings.Join(content, "\n")))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func phaseCells(r PhaseRow) []string {
	return []string{
		r.Name,
		strconv.Itoa(r.Total),
		strconv.Itoa(r.Created),
		strconv.Itoa(r.Updated),
		strconv.Itoa(r.Skipped),
		strconv.Itoa(r.Failed),
	}
}
