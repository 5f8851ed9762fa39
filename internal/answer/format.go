package answer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nadzzz/stockline/internal/retrieval"
)

// FormatRetrieve renders a retrieve reply as plain text: the query summary,
// then the numbered rows, then a notice when the backend trimmed them.
func FormatRetrieve(res *retrieval.RetrieveResult) string {
	if res == nil || res.Data == nil {
		return Default
	}
	d := res.Data

	var sb strings.Builder
	if d.QuerySummary != "" {
		sb.WriteString(d.QuerySummary)
		sb.WriteString("\n\n")
	}
	if d.Rows != nil {
		if len(d.Rows) == 0 {
			sb.WriteString("No stock data found.\n")
		} else {
			sb.WriteString("Details:\n")
			for i, row := range d.Rows {
				fmt.Fprintf(&sb, "%d. %s\n", i+1, compact(row))
			}
		}
	}
	if d.IsTrimmed {
		sb.WriteString("\n(Some results may have been trimmed)")
	}

	out := strings.TrimSpace(sb.String())
	if out == "" {
		return Default
	}
	return out
}

func compact(raw json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}
