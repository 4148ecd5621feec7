package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable(&buf, []string{"Name", "Status"}, true)
	table.AddRow("Widget", "new")
	table.AddColoredRow(color.New(color.FgRed), 1, "VeryLongTypeName", "conflict")
	table.AddRow("short")
	table.Render()

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Name              Status", strings.TrimRight(lines[0], " "))
	assert.Contains(t, lines[1], "─")
	assert.Equal(t, "Widget            new", strings.TrimRight(lines[2], " "))
	assert.Equal(t, "VeryLongTypeName  conflict", strings.TrimRight(lines[3], " "))
	assert.Equal(t, "short", strings.TrimRight(lines[4], " "), "missing cells render blank")
	assert.NotContains(t, buf.String(), "\x1b[", "no escape codes without colour")
}

func TestTableEmpty(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf, nil, true).Render()
	assert.Empty(t, buf.String())
}

func TestCatalogReport(t *testing.T) {
	catalog := &typecatalog.Catalog{Outcomes: []typecatalog.Outcome{
		{NativeName: "OM_Referenceable", Name: "Referenceable", Category: "entity", Status: typecatalog.StatusMatched},
		{NativeName: "Widget", Name: "Widget", Category: "entity", Status: typecatalog.StatusConflict, Reason: "attribute name differs"},
		{NativeName: "Blob", Category: "struct", Status: typecatalog.StatusSkipped, Reason: "struct types are not published"},
	}}

	var buf bytes.Buffer
	CatalogReport(&buf, "home", catalog, true)
	out := buf.String()

	assert.Contains(t, out, "Type catalog for home")
	assert.Contains(t, out, "OM_Referenceable")
	assert.Contains(t, out, "attribute name differs")
	assert.Regexp(t, `(?m)^matched\s+1$`, out)
	assert.Regexp(t, `(?m)^conflict\s+1$`, out)
	assert.Regexp(t, `(?m)^new\s+0$`, out)
	assert.Less(t, strings.Index(out, "Widget"), strings.Index(out, "Blob"), "outcomes are sorted by category")
}
