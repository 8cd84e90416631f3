package llvmir

import (
	"iter"
	"strings"

	"github.com/Sumatoshi-tech/llvmlines/pkg/textutil"
)

const (
	definePrefix  = "define "
	closingBrace  = "}"
	bodyIndent    = "  "
	nestedIndent  = "   "
	symbolSigil   = '@'
	paramsOpening = '('
	symbolQuote   = `"`
)

// Observation is one function body: its raw symbol and the number of
// instruction lines at indentation depth one.
type Observation struct {
	Name  string
	Lines int
}

// Stats summarizes a single scan.
type Stats struct {
	// InputLines is the number of lines in the scanned text.
	InputLines int
	// Functions is the number of observations emitted.
	Functions int
	// Anonymous is the number of bodies dropped for lack of a symbol.
	Anonymous int
}

// Scan yields one observation per function body in ir. Invalid UTF-8 is
// replaced rather than rejected.
//
// A body opens on a line starting with "define " and closes on a line that
// is exactly "}". Lines starting with exactly two spaces count toward the
// open body. A body whose header carries no "@name(" is counted but never
// yielded.
func Scan(ir []byte) iter.Seq[Observation] {
	return func(yield func(Observation) bool) {
		scanLines(textutil.Lossy(ir), yield, nil)
	}
}

// Count scans ir and records every observation into agg.
func Count(agg *Aggregate, ir []byte) Stats {
	var stats Stats

	scanLines(textutil.Lossy(ir), func(obs Observation) bool {
		agg.Record(obs.Name, obs.Lines)
		stats.Functions++

		return true
	}, &stats)

	return stats
}

func scanLines(text string, yield func(Observation) bool, stats *Stats) {
	var (
		current string
		pending bool
		count   int
	)

	for text != "" {
		var line string

		line, text, _ = strings.Cut(text, "\n")
		line = strings.TrimSuffix(line, "\r")

		if stats != nil {
			stats.InputLines++
		}

		switch {
		case strings.HasPrefix(line, definePrefix):
			current, pending = ParseFunctionName(line)
			count = 0
		case line == closingBrace:
			if pending {
				pending = false

				if !yield(Observation{Name: current, Lines: count}) {
					return
				}
			} else if stats != nil {
				stats.Anonymous++
			}

			count = 0
		case strings.HasPrefix(line, bodyIndent) && !strings.HasPrefix(line, nestedIndent):
			count++
		}
	}
}

// ParseFunctionName extracts the raw symbol from a "define" line: the text
// between the first '@' and the following '(' with one layer of double
// quotes removed.
func ParseFunctionName(line string) (string, bool) {
	start := strings.IndexByte(line, symbolSigil)
	if start < 0 {
		return "", false
	}

	rest := line[start+1:]

	end := strings.IndexByte(rest, paramsOpening)
	if end < 0 {
		return "", false
	}

	name := rest[:end]
	if len(name) >= 2 && strings.HasPrefix(name, symbolQuote) && strings.HasSuffix(name, symbolQuote) {
		name = name[1 : len(name)-1]
	}

	return name, true
}
