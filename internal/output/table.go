package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/vulnverified/orbit/internal/engine"
)

var tableHeaders = []string{"Host", "Score", "Reasons"}

// WriteTable renders the accepted hosts as a styled terminal table, in
// ranked order.
func WriteTable(w io.Writer, result *engine.Result, noColor bool) {
	if len(result.Hosts) == 0 {
		fmt.Fprintln(w, "\nNo related hosts accepted.")
		return
	}

	rows := make([][]string, 0, len(result.Hosts))
	for _, h := range result.Hosts {
		rows = append(rows, []string{
			h.Host,
			strconv.Itoa(h.Score),
			truncate(joinReasons(h.Reasons), 60),
		})
	}

	fmt.Fprintln(w)

	if noColor {
		writeSimpleTable(w, tableHeaders, rows)
		return
	}

	t := table.New().
		Headers(tableHeaders...).
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
			}
			if col == 1 {
				return lipgloss.NewStyle().Foreground(lipgloss.Color("114")).Align(lipgloss.Right)
			}
			return lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
		})

	for _, row := range rows {
		t.Row(row...)
	}

	fmt.Fprintln(w, t.Render())
}

func joinReasons(reasons []engine.Reason) string {
	parts := make([]string, len(reasons))
	for i, r := range reasons {
		parts[i] = string(r)
	}
	return strings.Join(parts, ", ")
}

func writeSimpleTable(w io.Writer, headers []string, rows [][]string) {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " | ")
			}
			fmt.Fprintf(w, "%-*s", widths[i], cell)
		}
		fmt.Fprintln(w)
	}

	writeRow(headers)
	for i, width := range widths {
		if i > 0 {
			fmt.Fprint(w, "-+-")
		}
		fmt.Fprint(w, strings.Repeat("-", width))
	}
	fmt.Fprintln(w)
	for _, row := range rows {
		writeRow(row)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
