package ui

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/conduit-lang/metabridge/internal/bridge/typecatalog"
)

var statusColors = map[typecatalog.Status]color.Attribute{
	typecatalog.StatusNew:       color.FgCyan,
	typecatalog.StatusMatched:   color.FgGreen,
	typecatalog.StatusConflict:  color.FgRed,
	typecatalog.StatusSkipped:   color.FgYellow,
	typecatalog.StatusAbandoned: color.FgMagenta,
}

// CatalogReport prints one row per native type and a count per outcome
func CatalogReport(w io.Writer, collection string, catalog *typecatalog.Catalog, noColor bool) {
	Header(w, fmt.Sprintf("Type catalog for %s", collection), noColor)

	table := NewTable(w, []string{"CATEGORY", "NATIVE NAME", "COHORT NAME", "STATUS", "REASON"}, noColor)
	for _, o := range catalog.SortedOutcomes() {
		table.AddColoredRow(color.New(statusColors[o.Status]), 3,
			o.Category, o.NativeName, o.Name, o.Status.String(), o.Reason)
	}
	table.Render()

	fmt.Fprintln(w)
	for _, st := range []typecatalog.Status{
		typecatalog.StatusMatched, typecatalog.StatusNew, typecatalog.StatusConflict,
		typecatalog.StatusSkipped, typecatalog.StatusAbandoned,
	} {
		c := color.New(statusColors[st])
		if noColor {
			c.DisableColor()
		}
		c.Fprintf(w, "%-10s", st.String())
		fmt.Fprintf(w, " %d\n", catalog.Count(st))
	}
}
