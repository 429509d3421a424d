// File: cmd/render.go
package cmd

import (
	"io"
	"path/filepath"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/xkilldash9x/ledger-cli/api/schemas"
)

// renderArtifacts prints one row per written invoice.
func renderArtifacts(w io.Writer, artifacts []schemas.Artifact) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"#", "Order", "File", "Bytes", "Pages"})

	for _, a := range artifacts {
		pages := "-"
		if a.Pages > 0 {
			pages = strconv.Itoa(a.Pages)
		}
		t.AppendRow(table.Row{a.Index, a.RecordID.String(), filepath.Base(a.Path), a.Bytes, pages})
	}
	t.Render()
}
