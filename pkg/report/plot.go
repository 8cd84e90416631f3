package report

import (
	"bytes"
	"fmt"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const (
	plotDefaultRows = 30
	plotWidth       = "100%"
	plotHeight      = "600px"
	plotLabelRotate = 45
)

// writePlot renders the leading rows as an HTML bar chart of lines and
// copies per function.
func writePlot(buf *bytes.Buffer, rows []Row, order SortOrder) error {
	if len(rows) > plotDefaultRows {
		rows = rows[:plotDefaultRows]
	}

	labels := make([]string, len(rows))
	lines := make([]opts.BarData, len(rows))
	copies := make([]opts.BarData, len(rows))

	for i, row := range rows {
		labels[i] = row.Name
		lines[i] = opts.BarData{Name: row.Name, Value: row.Lines}
		copies[i] = opts.BarData{Name: row.Name, Value: row.Copies}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "cargo llvm-lines",
			Width:     plotWidth,
			Height:    plotHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "LLVM IR lines per function",
			Subtitle: fmt.Sprintf("top %d by %s", len(rows), order),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5%"}),
		charts.WithGridOpts(opts.Grid{
			Left: "5%", Right: "5%",
			Top: "15%", Bottom: "35%",
			ContainLabel: opts.Bool(true),
		}),
		charts.WithXAxisOpts(opts.XAxis{
			AxisLabel: &opts.AxisLabel{Rotate: plotLabelRotate, Interval: "0"},
		}),
		charts.WithYAxisOpts(opts.YAxis{Name: "count"}),
	)

	bar.SetXAxis(labels).
		AddSeries("Lines", lines).
		AddSeries("Copies", copies)

	err := bar.Render(buf)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}
