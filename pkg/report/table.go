package report

import (
	"bytes"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
)

// writeTable renders rows as a boxed table with thousands separators. The
// footer counts all distinct functions; filtered or limited output also
// states how many rows are shown.
func writeTable(buf *bytes.Buffer, total llvmir.Instantiations, distinct int, rows []Row) {
	tbl := table.NewWriter()
	tbl.SetOutputMirror(buf)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.SeparateRows = false
	tbl.Style().Format.Header = text.FormatDefault
	tbl.Style().Format.Footer = text.FormatDefault

	tbl.AppendHeader(table.Row{"Lines", "%", "Cum %", "Copies", "%", "Cum %", "Function name"})

	for _, row := range rows {
		tbl.AppendRow(table.Row{
			humanize.Comma(int64(row.Lines)),
			formatPercent(row.LinesPercent),
			formatPercent(row.LinesCumulative),
			humanize.Comma(int64(row.Copies)),
			formatPercent(row.CopiesPercent),
			formatPercent(row.CopiesCumulative),
			row.Name,
		})
	}

	tbl.AppendFooter(table.Row{
		humanize.Comma(int64(total.TotalLines)), "", "",
		humanize.Comma(int64(total.Copies)), "", "",
		totalLabel(distinct, len(rows)),
	})

	numeric := []int{1, 2, 3, 4, 5, 6}
	configs := make([]table.ColumnConfig, 0, len(numeric))

	for _, n := range numeric {
		configs = append(configs, table.ColumnConfig{
			Number:      n,
			Align:       text.AlignRight,
			AlignFooter: text.AlignRight,
			AlignHeader: text.AlignRight,
		})
	}

	tbl.SetColumnConfigs(configs)
	tbl.Render()
}

func totalLabel(distinct, shown int) string {
	if shown == distinct {
		return fmt.Sprintf("(TOTAL, %d functions)", distinct)
	}

	return fmt.Sprintf("(TOTAL, %d functions, %d shown)", distinct, shown)
}

func formatPercent(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}
