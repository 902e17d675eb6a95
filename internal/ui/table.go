package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

// Column is a table column of fixed display width.
type Column struct {
	Title string
	Width int
}

// Row is one line of cell values. Short rows render with empty cells.
type Row []string

// Table lays out rows of sale, wallet and receipt data in fixed columns.
type Table struct {
	Columns []Column
	Rows    []Row
}

func NewTable(cols []Column) *Table {
	return &Table{Columns: cols}
}

func (t *Table) AddRow(r Row) {
	t.Rows = append(t.Rows, r)
}

// Render returns the table with a header and a divider line. Cells are
// fitted to their column by display width, so wide runes and styled cells
// keep the columns aligned; overlong cells end in "…".
func (t *Table) Render() string {
	var sb strings.Builder

	cellStyle := lipgloss.NewStyle().Foreground(ColorValue)

	line := func(style lipgloss.Style, cell func(i int) string) {
		parts := make([]string, len(t.Columns))
		for i, col := range t.Columns {
			parts[i] = style.Render(fit(cell(i), col.Width))
		}
		sb.WriteString(strings.Join(parts, " "))
		sb.WriteString("\n")
	}

	line(StyleHeader, func(i int) string { return t.Columns[i].Title })
	line(StyleDim, func(i int) string { return strings.Repeat("-", t.Columns[i].Width) })
	for _, row := range t.Rows {
		line(cellStyle, func(i int) string {
			if i < len(row) {
				return row[i]
			}
			return ""
		})
	}
	return sb.String()
}

// fit truncates or pads s to exactly width terminal cells.
func fit(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) > width {
		s = ansi.Truncate(s, width, "…")
	}
	return s + strings.Repeat(" ", max(0, width-lipgloss.Width(s)))
}

// KeyValueBlock renders a set of key-value pairs in a bordered box.
func KeyValueBlock(title string, pairs [][2]string) string {
	var sb strings.Builder
	if title != "" {
		sb.WriteString(StyleTitle.Render(title))
		sb.WriteString("\n")
	}
	for _, p := range pairs {
		key := StyleMeta.Render(fmt.Sprintf("%-20s", p[0]+":"))
		val := StyleValue.Render(p[1])
		sb.WriteString("  " + key + " " + val + "\n")
	}
	return StyleBorder.Render(sb.String())
}
