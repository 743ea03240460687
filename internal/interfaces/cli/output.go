package cli

import (
	"encoding/json"
	"io"
	"text/tabwriter"
)

// render writes v as indented JSON, or calls text with a tab-aligned writer
func (a *app) render(w io.Writer, v any, text func(tw *tabwriter.Writer)) error {
	if a.opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	text(tw)
	return tw.Flush()
}
