package ui

import (
	"fmt"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// FamilyDiff is one record family's dump-versus-destination comparison.
type FamilyDiff struct {
	Family  string
	Present int
	Missing int

	// Sample holds the first few missing natural keys.
	Sample []string
}

// renderKeyList renders a short list of keys into a 1-column table with a header.
func renderKeyList(title string, items []string, width int) string {
	if len(items) == 0 {
		return ""
	}

	rows := make([][]string, 0, len(items))
	for i, item := range items {
		rows = append(rows, []string{fmt.Sprintf("%d. %s", i+1, item)})
	}

	return table.New().
		Headers(title).
		Rows(rows...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return TableHeaderStyle.Width(width - 2)
			}
			return TableCellStyle
		}).
		String()
}

// RenderDiffReport renders the dump-versus-destination comparison: a
// per-family table and, for families with gaps, a sample of the missing keys.
func RenderDiffReport(source, target string, rows []FamilyDiff, width int) string {
	width = min(width, 72)

	var sections []string
	header := fmt.Sprintf("⇄ Diff: %s → %s", source, target)
	sections = append(sections, TableHeaderStyle.Render(header), "")

	if len(rows) == 0 {
		sections = append(sections, TableHintStyle.Render("  nothing dumped; nothing to compare"))
		return lipgloss.JoinVertical(lipgloss.Left, sections...)
	}

	cells := make([][]string, 0, len(rows))
	totalMissing := 0
	for _, r := range rows {
		cells = append(cells, []string{r.Family, strconv.Itoa(r.Present), strconv.Itoa(r.Missing)})
		totalMissing += r.Missing
	}

	t := table.New().
		Headers("family", "in target", "missing").
		Rows(cells...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(TableBorderStyle).
		Width(width).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case col == 2 && cells[row][col] != "0":
				return TableCellStyle.Foreground(ColorWarn)
			case col == 0:
				return TableCellStyle.Bold(true).Foreground(ColorAccent)
			default:
				return TableCellStyle
			}
		})
	sections = append(sections, t.String())

	for _, r := range rows {
		if len(r.Sample) == 0 {
			continue
		}
		title := fmt.Sprintf("missing %s", r.Family)
		if r.Missing > len(r.Sample) {
			title = fmt.Sprintf("missing %s (first %d of %d)", r.Family, len(r.Sample), r.Missing)
		}
		sections = append(sections, "", renderKeyList(title, r.Sample, width))
	}

	if totalMissing == 0 {
		sections = append(sections, "", TableSuccessStyle.Render("  ✓ every dumped record has a match in the target"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
