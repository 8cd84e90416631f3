package report_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/sergi/go-diff/diffmatchpatch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
	"github.com/Sumatoshi-tech/llvmlines/pkg/report"
)

// sampleAggregate holds a(10 lines, 1 copy), b(5, 2) and c(5, 1).
func sampleAggregate() *llvmir.Aggregate {
	agg := llvmir.NewAggregate()
	agg.Record("a", 10)
	agg.Record("b", 3)
	agg.Record("b", 2)
	agg.Record("c", 5)

	return agg
}

// assertGolden fails with a readable character diff when got differs.
func assertGolden(t *testing.T, want, got string) {
	t.Helper()

	if want == got {
		return
	}

	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(want, got, false)
	t.Errorf("output mismatch (-want +got):\n%s\n\ngot:\n%s", dmp.DiffPrettyText(diffs), got)
}

func render(t *testing.T, agg *llvmir.Aggregate, opts report.Options) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, report.Render(&buf, agg, opts))

	return buf.String()
}

func TestRender_Text(t *testing.T) {
	t.Parallel()

	want := "" +
		"  Lines             Copies           Function name\n" +
		"  -----             ------           -------------\n" +
		"  20                4                (TOTAL)\n" +
		"  10 (50.0%, 50.0%) 1 (25.0%, 25.0%) a\n" +
		"   5 (25.0%, 75.0%) 2 (50.0%, 75.0%) b\n" +
		"   5 (25.0%,100.0%) 1 (25.0%,100.0%) c\n"

	assertGolden(t, want, render(t, sampleAggregate(), report.Options{}))
}

func TestRender_TextFilterKeepsTotals(t *testing.T) {
	t.Parallel()

	want := "" +
		"  Lines             Copies           Function name\n" +
		"  -----             ------           -------------\n" +
		"  20                4                (TOTAL)\n" +
		"   5 (25.0%, 25.0%) 2 (50.0%, 50.0%) b\n" +
		"   5 (25.0%, 50.0%) 1 (25.0%, 75.0%) c\n"

	got := render(t, sampleAggregate(), report.Options{Filter: regexp.MustCompile("^[bc]$")})
	assertGolden(t, want, got)
}

func TestRender_TextZeroTotal(t *testing.T) {
	t.Parallel()

	agg := llvmir.NewAggregate()
	agg.Record("empty", 0)

	want := "" +
		"  Lines            Copies           Function name\n" +
		"  -----            ------           -------------\n" +
		"  0                1                (TOTAL)\n" +
		"  0 (0.0%,  0.0%)  1 (100.0%,100.0%) empty\n"

	assertGolden(t, want, render(t, agg, report.Options{}))
}

func TestRender_EmptyAggregate(t *testing.T) {
	t.Parallel()

	got := render(t, llvmir.NewAggregate(), report.Options{})
	assert.Equal(t, 3, strings.Count(got, "\n"))
	assert.Contains(t, got, "(TOTAL)")
}

func TestRender_Limit(t *testing.T) {
	t.Parallel()

	got := render(t, sampleAggregate(), report.Options{Limit: 1})
	lines := strings.Split(strings.TrimSuffix(got, "\n"), "\n")

	require.Len(t, lines, 4)
	assert.True(t, strings.HasSuffix(lines[3], " a"))
}

func TestRender_UnknownFormatWritesNothing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	err := report.Render(&buf, sampleAggregate(), report.Options{Format: "xml"})
	require.ErrorIs(t, err, report.ErrUnknownFormat)
	assert.Zero(t, buf.Len())
}

type failingWriter struct{}

var errWrite = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestRender_WriteError(t *testing.T) {
	t.Parallel()

	err := report.Render(failingWriter{}, sampleAggregate(), report.Options{})
	require.ErrorIs(t, err, errWrite)
}

func TestRows_SortOrders(t *testing.T) {
	t.Parallel()

	names := func(rows []report.Row) []string {
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Name
		}

		return out
	}

	agg := sampleAggregate()
	agg.Record("d", 1)
	agg.Record("d", 1)

	assert.Equal(t, []string{"a", "b", "c", "d"}, names(report.Rows(agg, report.SortLines)))
	assert.Equal(t, []string{"b", "d", "a", "c"}, names(report.Rows(agg, report.SortCopies)))
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(report.Rows(agg, report.SortName)))
}

func TestRows_TiesBrokenByName(t *testing.T) {
	t.Parallel()

	agg := llvmir.NewAggregate()
	for _, name := range []string{"zeta", "alpha", "mid", "beta"} {
		agg.Record(name, 4)
	}

	for range 5 {
		rows := report.Rows(agg, report.SortLines)
		require.Len(t, rows, 4)
		assert.Equal(t, "alpha", rows[0].Name)
		assert.Equal(t, "beta", rows[1].Name)
		assert.Equal(t, "mid", rows[2].Name)
		assert.Equal(t, "zeta", rows[3].Name)
	}
}

func TestSelect_SumsMatchTotal(t *testing.T) {
	t.Parallel()

	agg := sampleAggregate()
	total := agg.Total()
	rows := report.Select(agg, total, report.Options{Filter: regexp.MustCompile(".*")})

	var lines, copies int
	for _, r := range rows {
		lines += r.Lines
		copies += r.Copies
	}

	assert.Equal(t, total.TotalLines, lines)
	assert.Equal(t, total.Copies, copies)

	last := rows[len(rows)-1]
	assert.InDelta(t, 100.0, last.LinesCumulative, 1e-9)
	assert.InDelta(t, 100.0, last.CopiesCumulative, 1e-9)
}

func TestParseSortOrder(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want report.SortOrder
	}{
		{"lines", report.SortLines},
		{"Copies", report.SortCopies},
		{"NAME", report.SortName},
	}

	for _, tt := range tests {
		got, err := report.ParseSortOrder(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, strings.ToLower(tt.in), got.String())
	}

	_, err := report.ParseSortOrder("size")
	require.ErrorIs(t, err, report.ErrUnknownSortOrder)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	f, err := report.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, report.FormatText, f)

	f, err = report.ParseFormat("JSON")
	require.NoError(t, err)
	assert.Equal(t, report.FormatJSON, f)

	_, err = report.ParseFormat("csv")
	require.ErrorIs(t, err, report.ErrUnknownFormat)
}

func TestRender_JSONMatchesSchema(t *testing.T) {
	t.Parallel()

	out := render(t, sampleAggregate(), report.Options{
		Format: report.FormatJSON,
		Sort:   report.SortCopies,
		Filter: regexp.MustCompile("a|b"),
	})

	require.NoError(t, report.ValidateJSON([]byte(out)))

	var doc report.Document
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "copies", doc.Sort)
	assert.Equal(t, "a|b", doc.Filter)
	assert.Equal(t, llvmir.Instantiations{Copies: 4, TotalLines: 20}, doc.Total)
	require.Len(t, doc.Rows, 2)
	assert.Equal(t, "b", doc.Rows[0].Name)
	assert.InDelta(t, 50.0, doc.Rows[0].CopiesPercent, 1e-9)
}

func TestRender_JSONEmptyRows(t *testing.T) {
	t.Parallel()

	out := render(t, llvmir.NewAggregate(), report.Options{Format: report.FormatJSON})

	require.NoError(t, report.ValidateJSON([]byte(out)))
	assert.Contains(t, out, `"rows": []`)
}

func TestValidateJSON_Rejects(t *testing.T) {
	t.Parallel()

	err := report.ValidateJSON([]byte(`{"sort":"size","total":{"copies":1,"total_lines":1},"rows":[]}`))
	require.ErrorIs(t, err, report.ErrInvalidDocument)

	err = report.ValidateJSON([]byte(`not json`))
	require.ErrorIs(t, err, report.ErrInvalidDocument)
}

func TestRender_YAML(t *testing.T) {
	t.Parallel()

	out := render(t, sampleAggregate(), report.Options{Format: report.FormatYAML})

	var doc report.Document
	require.NoError(t, yaml.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "lines", doc.Sort)
	require.Len(t, doc.Rows, 3)
	assert.Equal(t, report.Row{
		Name: "a", Lines: 10, Copies: 1,
		LinesPercent: 50, LinesCumulative: 50,
		CopiesPercent: 25, CopiesCumulative: 25,
	}, doc.Rows[0])
}

func TestRender_Table(t *testing.T) {
	t.Parallel()

	agg := llvmir.NewAggregate()
	agg.Record("big", 12345)

	out := render(t, agg, report.Options{Format: report.FormatTable})

	assert.Contains(t, out, "12,345")
	assert.Contains(t, out, "Function name")
	assert.Contains(t, out, "(TOTAL, 1 functions)")
	assert.Contains(t, out, "100.0%")
}

func TestRender_TableFooterCountsAllFunctions(t *testing.T) {
	t.Parallel()

	agg := sampleAggregate()

	out := render(t, agg, report.Options{Format: report.FormatTable})
	assert.Contains(t, out, "(TOTAL, 3 functions)")

	out = render(t, agg, report.Options{Format: report.FormatTable, Limit: 1})
	assert.Contains(t, out, "(TOTAL, 3 functions, 1 shown)")

	out = render(t, agg, report.Options{Format: report.FormatTable, Filter: regexp.MustCompile("^zzz$")})
	assert.Contains(t, out, "(TOTAL, 3 functions, 0 shown)")
}

func TestRender_Plot(t *testing.T) {
	t.Parallel()

	out := render(t, sampleAggregate(), report.Options{Format: report.FormatPlot})

	assert.Contains(t, out, "<html")
	assert.Contains(t, out, "LLVM IR lines per function")
}

func TestBuildDocument(t *testing.T) {
	t.Parallel()

	doc := report.BuildDocument(sampleAggregate(), report.Options{Limit: 2})

	assert.Len(t, doc.Rows, 2)
	assert.Empty(t, doc.Filter)
	assert.Equal(t, 20, doc.Total.TotalLines)
}
