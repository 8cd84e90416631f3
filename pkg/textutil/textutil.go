// Package textutil provides byte-level text utilities for IR input:
// binary and bitcode detection and lossy decoding.
package textutil

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// BinarySniffLength is the maximum number of bytes scanned for null-byte
// detection. Matches the heuristic used by Git and most editors.
const BinarySniffLength = 8000

var (
	// bitcodeMagic starts a raw LLVM bitcode stream ("BC" 0xC0DE).
	bitcodeMagic = []byte{'B', 'C', 0xC0, 0xDE}
	// bitcodeWrapperMagic starts a wrapped bitcode file (0x0B17C0DE, little-endian).
	bitcodeWrapperMagic = []byte{0xDE, 0xC0, 0x17, 0x0B}
)

// IsBinary returns true if data contains a null byte within the first
// BinarySniffLength bytes. Empty data is not binary.
func IsBinary(data []byte) bool {
	if len(data) == 0 {
		return false
	}

	sniff := data
	if len(sniff) > BinarySniffLength {
		sniff = sniff[:BinarySniffLength]
	}

	return bytes.IndexByte(sniff, 0) >= 0
}

// IsBitcode reports whether data starts with an LLVM bitcode magic number.
func IsBitcode(data []byte) bool {
	return bytes.HasPrefix(data, bitcodeMagic) || bytes.HasPrefix(data, bitcodeWrapperMagic)
}

// Lossy decodes data as UTF-8. Each maximal invalid subsequence, as
// defined by the Unicode standard, becomes one U+FFFD: "\xff\xfe" yields
// two replacements, a truncated "\xe2\x82" yields one. Valid input is
// converted without rewriting.
func Lossy(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	var sb strings.Builder

	sb.Grow(len(data) + utf8.UTFMax)

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			sb.WriteRune(utf8.RuneError)

			data = data[invalidPrefixLen(data):]

			continue
		}

		sb.Write(data[:size])
		data = data[size:]
	}

	return sb.String()
}

// invalidPrefixLen returns the length of the maximal subpart of an
// ill-formed sequence at the start of p: the lead byte plus every following
// byte that still fits a well-formed sequence. p must not start with a
// complete valid encoding.
func invalidPrefixLen(p []byte) int {
	lo, hi := byte(0x80), byte(0xBF)

	var n int

	switch b := p[0]; {
	case b >= 0xC2 && b <= 0xDF:
		n = 2
	case b == 0xE0:
		n, lo = 3, 0xA0
	case b == 0xED:
		n, hi = 3, 0x9F
	case b >= 0xE1 && b <= 0xEF:
		n = 3
	case b == 0xF0:
		n, lo = 4, 0x90
	case b >= 0xF1 && b <= 0xF3:
		n = 4
	case b == 0xF4:
		n, hi = 4, 0x8F
	default:
		return 1
	}

	i := 1
	for i < n && i < len(p) && p[i] >= lo && p[i] <= hi {
		i++
		lo, hi = 0x80, 0xBF
	}

	return i
}
