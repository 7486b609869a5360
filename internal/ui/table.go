package ui

import (
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"studiopipe/internal/snowflake"
)

// RenderTable writes rows as a borderless aligned table.
func RenderTable(w io.Writer, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(w)
	table.SetHeader(headers)
	table.SetBorder(false)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.AppendBulk(rows)
	table.Render()
}

// RenderResult writes a query result with every cell formatted as text.
func RenderResult(w io.Writer, t *snowflake.Table) {
	rows := make([][]string, 0, t.Len())
	for _, r := range t.Rows {
		row := make([]string, len(r))
		for i, v := range r {
			row[i] = snowflake.FormatValue(v)
		}
		rows = append(rows, row)
	}
	RenderTable(w, t.Columns, rows)
}

// StatusWord colors a ledger or check status.
func StatusWord(status string) string {
	switch strings.ToLower(status) {
	case "refreshed", "pass", "ok", "healthy":
		return color.GreenString(status)
	case "inserted", "started":
		return color.CyanString(status)
	case "failed", "fail", "unhealthy":
		return color.RedString(status)
	default:
		if strings.HasPrefix(strings.ToUpper(status), "FAIL") {
			return color.RedString(status)
		}
		return color.YellowString(status)
	}
}
