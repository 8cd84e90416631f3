// Package report orders aggregated instantiation counts and renders them as
// a fixed-width text table or one of the structured formats.
package report

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
	"strings"

	"github.com/Sumatoshi-tech/llvmlines/pkg/llvmir"
)

// percentScale converts a ratio to a percentage.
const percentScale = 100

// SortOrder selects the primary key of the row order.
type SortOrder int

// Sort orders.
const (
	SortLines SortOrder = iota
	SortCopies
	SortName
)

var (
	// ErrUnknownSortOrder indicates an unsupported sort order name.
	ErrUnknownSortOrder = errors.New("unknown sort order")
	// ErrUnknownFormat indicates an unsupported output format name.
	ErrUnknownFormat = errors.New("unknown output format")
)

var sortOrderNames = map[SortOrder]string{
	SortLines:  "lines",
	SortCopies: "copies",
	SortName:   "name",
}

// ParseSortOrder parses "lines", "copies" or "name" (case-insensitive).
func ParseSortOrder(s string) (SortOrder, error) {
	for order, name := range sortOrderNames {
		if strings.EqualFold(s, name) {
			return order, nil
		}
	}

	return SortLines, fmt.Errorf("%w: %q (want lines, copies or name)", ErrUnknownSortOrder, s)
}

// String returns the flag spelling of the order.
func (o SortOrder) String() string {
	if name, ok := sortOrderNames[o]; ok {
		return name
	}

	return fmt.Sprintf("SortOrder(%d)", int(o))
}

// Format selects the output renderer.
type Format string

// Output formats.
const (
	FormatText  Format = "text"
	FormatTable Format = "table"
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatPlot  Format = "plot"
)

// Formats lists every supported output format.
var Formats = []Format{FormatText, FormatTable, FormatJSON, FormatYAML, FormatPlot}

// ParseFormat parses an output format name. The empty string selects text.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return FormatText, nil
	}

	f := Format(strings.ToLower(s))
	if !slices.Contains(Formats, f) {
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}

	return f, nil
}

// Options controls rendering.
type Options struct {
	Sort SortOrder
	// Filter hides rows whose name does not match. Hidden rows still count
	// toward the totals.
	Filter *regexp.Regexp
	Format Format
	// Limit caps the number of rendered rows after filtering. Zero means no cap.
	Limit int
}

// Row is one rendered function with its share of the totals.
type Row struct {
	Name   string `json:"name"   yaml:"name"`
	Lines  int    `json:"lines"  yaml:"lines"`
	Copies int    `json:"copies" yaml:"copies"`

	LinesPercent     float64 `json:"lines_percent"      yaml:"lines_percent"`
	LinesCumulative  float64 `json:"lines_cumulative"   yaml:"lines_cumulative"`
	CopiesPercent    float64 `json:"copies_percent"     yaml:"copies_percent"`
	CopiesCumulative float64 `json:"copies_cumulative"  yaml:"copies_cumulative"`
}

// Rows returns every entry of agg in the given order. Percentages are left
// zero; see [Select].
func Rows(agg *llvmir.Aggregate, order SortOrder) []Row {
	rows := make([]Row, 0, agg.Len())

	for name, inst := range agg.All() {
		rows = append(rows, Row{Name: name, Lines: inst.TotalLines, Copies: inst.Copies})
	}

	slices.SortFunc(rows, compareFunc(order))

	return rows
}

func compareFunc(order SortOrder) func(a, b Row) int {
	switch order {
	case SortCopies:
		return func(a, b Row) int {
			return cmp.Or(
				cmp.Compare(b.Copies, a.Copies),
				cmp.Compare(b.Lines, a.Lines),
				strings.Compare(a.Name, b.Name),
			)
		}
	case SortName:
		return func(a, b Row) int {
			return strings.Compare(a.Name, b.Name)
		}
	default:
		return func(a, b Row) int {
			return cmp.Or(
				cmp.Compare(b.Lines, a.Lines),
				cmp.Compare(b.Copies, a.Copies),
				strings.Compare(a.Name, b.Name),
			)
		}
	}
}

// Select orders, filters and limits the rows of agg and fills in their
// percentages of total. Cumulative percentages advance only over selected
// rows.
func Select(agg *llvmir.Aggregate, total llvmir.Instantiations, opts Options) []Row {
	all := Rows(agg, opts.Sort)
	selected := all[:0]

	var cumLines, cumCopies int

	for _, row := range all {
		if opts.Limit > 0 && len(selected) == opts.Limit {
			break
		}

		if opts.Filter != nil && !opts.Filter.MatchString(row.Name) {
			continue
		}

		cumLines += row.Lines
		cumCopies += row.Copies

		row.LinesPercent = percent(row.Lines, total.TotalLines)
		row.LinesCumulative = percent(cumLines, total.TotalLines)
		row.CopiesPercent = percent(row.Copies, total.Copies)
		row.CopiesCumulative = percent(cumCopies, total.Copies)

		selected = append(selected, row)
	}

	return selected
}

// percent returns part/whole as a percentage, or 0 when whole is zero.
func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}

	return float64(part) / float64(whole) * percentScale
}

// Render writes the report for agg to w. Output is produced in full before
// anything is written, so a failing renderer leaves w untouched.
func Render(w io.Writer, agg *llvmir.Aggregate, opts Options) error {
	var buf bytes.Buffer

	err := render(&buf, agg, opts)
	if err != nil {
		return err
	}

	_, err = buf.WriteTo(w)
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}

	return nil
}

func render(buf *bytes.Buffer, agg *llvmir.Aggregate, opts Options) error {
	total := agg.Total()
	rows := Select(agg, total, opts)

	switch opts.Format {
	case FormatText, "":
		writeText(buf, total, rows)

		return nil
	case FormatTable:
		writeTable(buf, total, agg.Len(), rows)

		return nil
	case FormatJSON:
		return writeJSON(buf, NewDocument(total, rows, opts))
	case FormatYAML:
		return writeYAML(buf, NewDocument(total, rows, opts))
	case FormatPlot:
		return writePlot(buf, rows, opts.Sort)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}
}
