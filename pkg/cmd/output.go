package cli

import (
	"encoding/json"
	"io"
	"strconv"

	"github.com/cockroachdb/errors"
	"github.com/larivierec/hover-cli/pkg/config"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"github.com/olekukonko/tablewriter"
)

func render(w io.Writer, format string, v any) error {
	if format == config.OutputTable {
		if ok := renderTable(w, v); ok {
			return nil
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return errors.Wrap(enc.Encode(v), "encode output")
}

// renderTable reports false for values that have no table layout.
func renderTable(w io.Writer, v any) bool {
	table := tablewriter.NewWriter(w)
	table.SetAutoWrapText(false)

	switch rows := v.(type) {
	case []registrar.Domain:
		table.SetHeader([]string{"ID", "Domain", "Active"})
		for _, d := range rows {
			table.Append([]string{d.ID, d.Name, strconv.FormatBool(d.Active)})
		}
	case []registrar.DNSEntry:
		table.SetHeader([]string{"ID", "Name", "Type", "Target", "TTL"})
		table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_RIGHT,
			tablewriter.ALIGN_LEFT, tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
		for _, e := range rows {
			table.Append([]string{e.ID, e.Name, e.Type, e.Content, strconv.Itoa(e.TTL)})
		}
	default:
		return false
	}
	table.Render()
	return true
}
