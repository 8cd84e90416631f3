// Package symbol turns raw LLVM function symbols into the names used to
// group monomorphized copies of one generic function.
package symbol

import (
	"strings"

	"github.com/ianlancetaylor/demangle"
)

// hashHexLen is the number of hex digits in a legacy Rust symbol hash.
const hashHexLen = 16

// hashMarker precedes the hex digits of a legacy Rust symbol hash.
const hashMarker = "::h"

// hashSuffixLen is the full length of a "::h<16 hex>" suffix.
const hashSuffixLen = len(hashMarker) + hashHexLen

// Demangler converts a mangled symbol into its source-level spelling.
// Implementations must be pure and return the input unchanged when it
// is not a mangled name they understand.
type Demangler func(mangled string) string

// Normalizer maps a raw symbol to an aggregation key.
type Normalizer func(raw string) string

// Demangle decodes legacy Rust, Rust v0, and Itanium C++ symbols.
// Legacy Rust names keep their trailing "::h<hash>" element; use
// [Normalize] to drop it.
func Demangle(mangled string) string {
	if name, ok := demangleLegacy(mangled); ok {
		return name
	}

	if strings.HasPrefix(mangled, "_R") || strings.HasPrefix(mangled, "_Z") {
		return demangle.Filter(mangled)
	}

	return mangled
}

// Normalize demangles raw and strips a trailing disambiguation hash.
func Normalize(raw string) string {
	return StripHash(Demangle(raw))
}

// NewNormalizer returns a [Normalizer] built on a custom demangler.
func NewNormalizer(d Demangler) Normalizer {
	if d == nil {
		d = Demangle
	}

	return func(raw string) string {
		return StripHash(d(raw))
	}
}

// HasHash reports whether name ends in "::h" followed by exactly
// sixteen lowercase hex digits.
func HasHash(name string) bool {
	if len(name) < hashSuffixLen {
		return false
	}

	for i := len(name) - 1; i >= len(name)-hashHexLen; i-- {
		if !isLowerHexDigit(name[i]) {
			return false
		}
	}

	return name[len(name)-hashSuffixLen:len(name)-hashHexLen] == hashMarker
}

// StripHash removes a trailing "::h<16 hex>" suffix if present.
func StripHash(name string) string {
	if !HasHash(name) {
		return name
	}

	return name[:len(name)-hashSuffixLen]
}

func isLowerHexDigit(b byte) bool {
	return ('0' <= b && b <= '9') || ('a' <= b && b <= 'f')
}
