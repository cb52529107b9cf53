package console

import (
	"fmt"
	"strings"
)

// TableConfig describes a simple fixed-column table.
type TableConfig struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// RenderTable renders a plain-text table with padded columns. It is used for
// batch compilation summaries and intentionally avoids box drawing so the
// output stays grep-friendly.
func RenderTable(config TableConfig) string {
	var b strings.Builder

	if config.Title != "" {
		b.WriteString(render(infoStyle, config.Title))
		b.WriteString("\n")
	}

	widths := make([]int, len(config.Headers))
	for i, h := range config.Headers {
		widths[i] = len(h)
	}
	for _, row := range config.Rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	writeRow := func(cells []string) {
		for i, cell := range cells {
			if i > 0 {
				b.WriteString("  ")
			}
			fmt.Fprintf(&b, "%-*s", widths[i], cell)
		}
		b.WriteString("\n")
	}

	writeRow(config.Headers)
	for i, w := range widths {
		if i > 0 {
			b.WriteString("  ")
		}
		b.WriteString(strings.Repeat("-", w))
	}
	b.WriteString("\n")
	for _, row := range config.Rows {
		writeRow(row)
	}

	return b.String()
}
