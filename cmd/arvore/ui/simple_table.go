package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// SimpleTable renders rows of text in aligned columns. It is used for the
// person list, both in the TUI and in plain CLI output.
type SimpleTable struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Selected is the highlighted row, -1 for none.
	Selected int
	// MaxCellWidth truncates long cells; 0 means no limit.
	MaxCellWidth int
}

// NewSimpleTable creates a new SimpleTable with the given title and headers.
func NewSimpleTable(title string, headers []string) *SimpleTable {
	return &SimpleTable{
		Title:    title,
		Headers:  headers,
		Rows:     make([][]string, 0),
		Selected: -1,
	}
}

// AddRow adds a row to the table.
func (t *SimpleTable) AddRow(row ...string) {
	t.Rows = append(t.Rows, row)
}

func (t *SimpleTable) cell(s string) string {
	if t.MaxCellWidth > 0 && lipgloss.Width(s) > t.MaxCellWidth {
		r := []rune(s)
		if len(r) > t.MaxCellWidth-1 {
			r = r[:t.MaxCellWidth-1]
		}
		return string(r) + "…"
	}
	return s
}

// View renders the table using the provided styles. An empty table renders
// as "".
func (t *SimpleTable) View(styles Styles) string {
	if len(t.Rows) == 0 {
		return ""
	}

	var sb strings.Builder
	if t.Title != "" {
		sb.WriteString(styles.Title.Render(t.Title))
		sb.WriteString("\n")
	}

	colWidths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		colWidths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i, c := range row {
			if i < len(colWidths) {
				if w := lipgloss.Width(t.cell(c)); w > colWidths[i] {
					colWidths[i] = w
				}
			}
		}
	}
	// lipgloss Width includes padding
	for i := range colWidths {
		colWidths[i] += 2
	}

	headerStyle := styles.Bold.Padding(0, 1)
	rowStyle := styles.Body.Padding(0, 1)
	selStyle := styles.Selected.Padding(0, 1)
	sep := styles.Muted.Render("│")

	marker := func(selected bool) string {
		if selected {
			return styles.Selected.Render("›")
		}
		return " "
	}

	sb.WriteString(marker(false))
	for i, h := range t.Headers {
		sb.WriteString(headerStyle.Width(colWidths[i]).Render(h))
		if i < len(t.Headers)-1 {
			sb.WriteString(sep)
		}
	}
	sb.WriteString("\n")

	total := len(t.Headers) - 1
	for _, w := range colWidths {
		total += w
	}
	sb.WriteString(" " + styles.Muted.Render(strings.Repeat("─", total)) + "\n")

	for r, row := range t.Rows {
		style := rowStyle
		if r == t.Selected {
			style = selStyle
		}
		sb.WriteString(marker(r == t.Selected))
		for i := range colWidths {
			c := ""
			if i < len(row) {
				c = t.cell(row[i])
			}
			sb.WriteString(style.Width(colWidths[i]).Render(c))
			if i < len(colWidths)-1 {
				sb.WriteString(sep)
			}
		}
		sb.WriteString("\n")
	}
	return sb.String()
}
