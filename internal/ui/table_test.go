package ui

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyValueBlock(t *testing.T) {
	result := KeyValueBlock("Sale", [][2]string{
		{"Rate", "1000 SALE per USDT"},
		{"Remaining", "5,000 SALE"},
		{"Phase", "open"},
	})
	assert.Contains(t, result, "Sale")
	assert.Contains(t, result, "1000 SALE per USDT")
	// lipgloss RoundedBorder corners.
	assert.Contains(t, result, "╭")
	assert.Contains(t, result, "╰")

	rate := strings.Index(result, "Rate")
	remaining := strings.Index(result, "Remaining")
	phase := strings.Index(result, "Phase")
	require.Greater(t, rate, -1)
	assert.Less(t, rate, remaining)
	assert.Less(t, remaining, phase)
}

func TestKeyValueBlockNoTitleNoPairs(t *testing.T) {
	assert.Contains(t, KeyValueBlock("", [][2]string{{"Key", "Value"}}), "Value")
	assert.Contains(t, KeyValueBlock("Empty", nil), "Empty")
}

func TestTableRender(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Kind", Width: 10}, {Title: "Hash", Width: 14}, {Title: "Status", Width: 10}})
	assert.Empty(t, tbl.Rows)

	tbl.AddRow(Row{"approval", "0xaaaa…0001", "confirmed"})
	tbl.AddRow(Row{"purchase", "0xaaaa…0002"})
	out := tbl.Render()

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Kind")
	assert.Contains(t, lines[0], "Status")
	assert.Contains(t, lines[1], "---")
	assert.Contains(t, lines[2], "approval")
	assert.Contains(t, lines[2], "confirmed")
	assert.Contains(t, lines[3], "purchase", "short rows render with empty cells")
}

func TestTableTruncatesToWidth(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Hash", Width: 6}})
	tbl.AddRow(Row{"0x123456789"})
	out := tbl.Render()
	assert.Contains(t, out, "0x123…")
	assert.NotContains(t, out, "0x1234")
}

func TestTableNonASCIICells(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Sale", Width: 4}, {Title: "Net", Width: 3}})
	tbl.AddRow(Row{"ab€x", "eth"})
	tbl.AddRow(Row{"prévente", "op"})
	out := tbl.Render()
	require.True(t, utf8.ValidString(out))

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[2], "ab€x eth")
	assert.Contains(t, lines[3], "pré… op")
	for _, l := range lines {
		assert.Equal(t, 8, lipgloss.Width(l), l)
	}
}

func TestTableStyledCellKeepsWidth(t *testing.T) {
	tbl := NewTable([]Column{{Title: "Status", Width: 10}, {Title: "Kind", Width: 8}})
	tbl.AddRow(Row{StyleSuccess.Render("ok"), "purchase"})
	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, 19, lipgloss.Width(lines[2]))
	assert.Contains(t, lines[2], "purchase")
}

func TestBannerContainsBranding(t *testing.T) {
	assert.Contains(t, Banner(), "Crowdsale purchase client")
}
