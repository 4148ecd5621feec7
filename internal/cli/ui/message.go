package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Problem is an error explained for a terminal user
type Problem struct {
	Title       string
	Detail      string
	Suggestions []string
	Hints       []string
}

// Format renders the problem:
//
//	❌ TYPE NOT FOUND: Widgit
//	   No native type or cohort type is named 'Widgit'.
//
//	   Did you mean: Widget?
//
//	   → List every type: metabridge catalog
func (p Problem) Format(noColor bool) string {
	red := color.New(color.FgRed, color.Bold)
	body := color.New(color.FgRed)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	if noColor {
		for _, c := range []*color.Color{red, body, yellow, cyan} {
			c.DisableColor()
		}
	}

	var b strings.Builder
	red.Fprintf(&b, "❌ %s\n", p.Title)
	if p.Detail != "" {
		body.Fprintf(&b, "   %s\n", p.Detail)
	}
	if len(p.Suggestions) > 0 {
		b.WriteString("\n")
		yellow.Fprintf(&b, "   Did you mean: %s?\n", strings.Join(p.Suggestions, ", "))
	}
	if len(p.Hints) > 0 {
		b.WriteString("\n")
		for _, h := range p.Hints {
			cyan.Fprintf(&b, "   → %s\n", h)
		}
	}
	return b.String()
}

// TypeNotFound explains that no catalog entry is called name
func TypeNotFound(name string, suggestions []string) Problem {
	return Problem{
		Title:       "TYPE NOT FOUND: " + name,
		Detail:      fmt.Sprintf("No native type or cohort type is named '%s'.", name),
		Suggestions: suggestions,
		Hints:       []string{"List every type: metabridge catalog"},
	}
}

// Success prints a green check line
func Success(w io.Writer, message string, noColor bool) {
	green := color.New(color.FgGreen, color.Bold)
	if noColor {
		green.DisableColor()
	}
	green.Fprintf(w, "✓ %s\n", message)
}
