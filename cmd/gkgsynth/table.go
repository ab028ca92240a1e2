package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// table renders aligned plain-text columns. Widths are display widths, so
// names with wide characters stay aligned.
type table struct {
	header []string
	rows   [][]string
}

func newTable(header ...string) *table {
	return &table{header: header}
}

func (t *table) add(cells ...any) {
	row := make([]string, len(cells))
	for i, c := range cells {
		row[i] = fmt.Sprint(c)
	}
	t.rows = append(t.rows, row)
}

func (t *table) render(w io.Writer) {
	widths := make([]int, len(t.header))
	for i, h := range t.header {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			if n := runewidth.StringWidth(row[i]); n > widths[i] {
				widths[i] = n
			}
		}
	}

	line := func(cells []string) {
		var sb strings.Builder
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			if i > 0 {
				sb.WriteString("  ")
			}
			if i == len(widths)-1 {
				sb.WriteString(cell)
			} else {
				sb.WriteString(runewidth.FillRight(cell, widths[i]))
			}
		}
		fmt.Fprintln(w, sb.String())
	}

	line(t.header)
	rule := make([]string, len(widths))
	for i, n := range widths {
		rule[i] = strings.Repeat("-", n)
	}
	line(rule)
	for _, row := range t.rows {
		line(row)
	}
}

// kv renders label/value pairs as a two-column block.
func kv(w io.Writer, pairs ...any) {
	width := 0
	for i := 0; i+1 < len(pairs); i += 2 {
		if n := runewidth.StringWidth(fmt.Sprint(pairs[i])); n > width {
			width = n
		}
	}
	for i := 0; i+1 < len(pairs); i += 2 {
		fmt.Fprintf(w, "%s  %v\n", runewidth.FillRight(fmt.Sprint(pairs[i])+":", width+1), pairs[i+1])
	}
}

func megabytes(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1<<20))
}
