// Package ui renders command output for the terminal
package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Table renders rows in aligned columns under a bold header
type Table struct {
	writer  io.Writer
	headers []string
	rows    [][]cell
	noColor bool
}

type cell struct {
	text  string
	color *color.Color
}

// NewTable creates a table with the given headers
func NewTable(w io.Writer, headers []string, noColor bool) *Table {
	return &Table{writer: w, headers: headers, noColor: noColor}
}

// AddRow adds a row of plain cells
func (t *Table) AddRow(cells ...string) {
	t.AddColoredRow(nil, -1, cells...)
}

// AddColoredRow adds a row whose column at index is printed in c
func (t *Table) AddColoredRow(c *color.Color, index int, cells ...string) {
	row := make([]cell, len(cells))
	for i, text := range cells {
		row[i] = cell{text: text}
		if i == index {
			row[i].color = c
		}
	}
	t.rows = append(t.rows, row)
}

// Render writes the table
func (t *Table) Render() {
	if len(t.headers) == 0 {
		return
	}

	widths := make([]int, len(t.headers))
	for i, header := range t.headers {
		widths[i] = len(header)
	}
	for _, row := range t.rows {
		for i, c := range row {
			if i < len(widths) && len(c.text) > widths[i] {
				widths[i] = len(c.text)
			}
		}
	}

	bold := t.paint(color.New(color.Bold, color.FgCyan))
	for i, header := range t.headers {
		bold.Fprint(t.writer, padRight(header, widths[i]))
		t.gap(i)
	}
	fmt.Fprintln(t.writer)

	gray := t.paint(color.New(color.FgHiBlack))
	for i, width := range widths {
		gray.Fprint(t.writer, strings.Repeat("─", width))
		t.gap(i)
	}
	fmt.Fprintln(t.writer)

	for _, row := range t.rows {
		for i := range widths {
			text := ""
			var c *color.Color
			if i < len(row) {
				text, c = row[i].text, row[i].color
			}
			if c != nil {
				t.paint(c).Fprint(t.writer, padRight(text, widths[i]))
			} else {
				fmt.Fprint(t.writer, padRight(text, widths[i]))
			}
			t.gap(i)
		}
		fmt.Fprintln(t.writer)
	}
}

func (t *Table) gap(i int) {
	if i < len(t.headers)-1 {
		fmt.Fprint(t.writer, "  ")
	}
}

func (t *Table) paint(c *color.Color) *color.Color {
	if t.noColor {
		c.DisableColor()
	}
	return c
}

func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// Header renders a styled title with an underline
func Header(w io.Writer, title string, noColor bool) {
	bold := color.New(color.Bold, color.FgCyan)
	gray := color.New(color.FgHiBlack)
	if noColor {
		bold.DisableColor()
		gray.DisableColor()
	}
	bold.Fprintln(w, title)
	gray.Fprintln(w, strings.Repeat("─", len(title)))
}
