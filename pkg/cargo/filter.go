package cargo

import (
	"bufio"
	"errors"
	"io"
	"strings"
)

// benignMessages are rustc diagnostics caused by the -o/--emit combination.
var benignMessages = []string{
	"warnings emitted",
	"ignoring specified output filename because multiple outputs were requested",
	"ignoring specified output filename for 'link' output because multiple outputs were requested",
	"ignoring --out-dir flag due to -o flag",
	"due to multiple output types requested, the explicitly specified output file name will be adapted for each output type",
	"ignoring -C extra-filename flag due to -o flag",
}

const (
	warningCountMarker = ") generated "
	warningWord        = " warning"
)

// IgnoreLine reports whether a line of build diagnostics is noise: blank,
// a known benign rustc message, or a "(lib) generated N warnings" summary.
func IgnoreLine(line string) bool {
	if strings.TrimSpace(line) == "" {
		return true
	}

	for _, msg := range benignMessages {
		if strings.Contains(line, msg) {
			return true
		}
	}

	_, rest, found := strings.Cut(line, warningCountMarker)
	if !found {
		return false
	}

	digits := len(rest) - len(strings.TrimLeft(rest, "0123456789"))

	return digits > 0 && strings.HasPrefix(rest[digits:], warningWord)
}

// FilterStream copies r to w line by line, dropping lines for which
// [IgnoreLine] is true. Each surviving line is written as soon as it is
// read. After a write or read error the rest of r is drained so the
// producer never blocks on a full pipe; the first error is returned.
func FilterStream(r io.Reader, w io.Writer) error {
	br := bufio.NewReader(r)

	var writeErr error

	for {
		line, err := br.ReadString('\n')
		if line != "" && writeErr == nil && !IgnoreLine(line) {
			_, writeErr = io.WriteString(w, line)
		}

		if errors.Is(err, io.EOF) {
			return writeErr
		}

		if err != nil {
			_, _ = io.Copy(io.Discard, br)

			return err
		}
	}
}
