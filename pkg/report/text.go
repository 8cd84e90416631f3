package report

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
)

// percentColumnWidth is the padded width of a "(pct%,cum%)" cell.
const percentColumnWidth = 14

// writeText renders the classic fixed-width table. Column widths follow the
// digit counts of the totals.
func writeText(buf *bytes.Buffer, total llvmir.Instantiations, rows []Row) {
	lw := len(strconv.Itoa(total.TotalLines))
	cw := len(strconv.Itoa(total.Copies))

	fmt.Fprintf(buf, "  Lines%s           Copies%s          Function name\n", pad(lw), pad(cw))
	fmt.Fprintf(buf, "  -----%s           ------%s          -------------\n", pad(lw), pad(cw))
	fmt.Fprintf(buf, "  %*d                %*d                (TOTAL)\n", lw, total.TotalLines, cw, total.Copies)

	for _, row := range rows {
		fmt.Fprintf(buf, "  %*d %-*s %*d %-*s %s\n",
			lw, row.Lines,
			percentColumnWidth, percentCell(row.LinesPercent, row.LinesCumulative),
			cw, row.Copies,
			percentColumnWidth, percentCell(row.CopiesPercent, row.CopiesCumulative),
			row.Name,
		)
	}
}

func percentCell(pct, cum float64) string {
	return fmt.Sprintf("(%3.1f%%,%5.1f%%)", pct, cum)
}

func pad(n int) string {
	return strings.Repeat(" ", n)
}
