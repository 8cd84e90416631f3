package symbol

import (
	"strconv"
	"strings"
	"unicode"
)

// llvmSuffix marks the LLVM-appended uniquing suffix on local symbols.
const llvmSuffix = ".llvm."

var legacyPrefixes = []string{"__ZN", "_ZN", "ZN"}

var legacyEscapes = map[string]string{
	"SP": "@",
	"BP": "*",
	"RF": "&",
	"LT": "<",
	"GT": ">",
	"LP": "(",
	"RP": ")",
	"C":  ",",
}

// demangleLegacy decodes the legacy Rust scheme: a nested Itanium-style
// path of length-prefixed identifiers terminated by 'E'. A missing
// terminator is tolerated. Anything after the terminator must be a
// '.'-delimited suffix, otherwise the name is left to the C++ demangler.
func demangleLegacy(s string) (string, bool) {
	s = trimLLVMSuffix(s)

	inner, ok := cutLegacyPrefix(s)
	if !ok {
		return "", false
	}

	var elements []string

	for inner != "" && inner[0] != 'E' {
		digits := 0
		for digits < len(inner) && '0' <= inner[digits] && inner[digits] <= '9' {
			digits++
		}

		if digits == 0 {
			return "", false
		}

		n, err := strconv.Atoi(inner[:digits])
		if err != nil || n == 0 || n > len(inner)-digits {
			return "", false
		}

		elements = append(elements, inner[digits:digits+n])
		inner = inner[digits+n:]
	}

	if len(elements) == 0 {
		return "", false
	}

	suffix := strings.TrimPrefix(inner, "E")
	if suffix != "" && suffix[0] != '.' {
		return "", false
	}

	var sb strings.Builder

	for i, element := range elements {
		if i > 0 {
			sb.WriteString("::")
		}

		writeLegacyElement(&sb, element)
	}

	sb.WriteString(suffix)

	return sb.String(), true
}

func cutLegacyPrefix(s string) (string, bool) {
	for _, prefix := range legacyPrefixes {
		if rest, ok := strings.CutPrefix(s, prefix); ok {
			return rest, true
		}
	}

	return "", false
}

// trimLLVMSuffix drops ".llvm.<hex>" added by LTO to local symbols.
func trimLLVMSuffix(s string) string {
	i := strings.Index(s, llvmSuffix)
	if i < 0 {
		return s
	}

	for _, c := range s[i+len(llvmSuffix):] {
		if !(('0' <= c && c <= '9') || ('A' <= c && c <= 'F') || c == '@') {
			return s
		}
	}

	return s[:i]
}

func writeLegacyElement(sb *strings.Builder, rest string) {
	if strings.HasPrefix(rest, "_$") {
		rest = rest[1:]
	}

	for rest != "" {
		switch {
		case rest[0] == '.':
			if len(rest) > 1 && rest[1] == '.' {
				sb.WriteString("::")
				rest = rest[2:]
			} else {
				sb.WriteByte('.')
				rest = rest[1:]
			}
		case rest[0] == '$':
			end := strings.IndexByte(rest[1:], '$')
			if end < 0 {
				sb.WriteString(rest)

				return
			}

			unescaped, ok := unescapeLegacy(rest[1 : end+1])
			if !ok {
				sb.WriteString(rest)

				return
			}

			sb.WriteString(unescaped)
			rest = rest[end+2:]
		default:
			i := strings.IndexAny(rest, "$.")
			if i < 0 {
				sb.WriteString(rest)

				return
			}

			sb.WriteString(rest[:i])
			rest = rest[i:]
		}
	}
}

func unescapeLegacy(escape string) (string, bool) {
	if s, ok := legacyEscapes[escape]; ok {
		return s, true
	}

	hex, ok := strings.CutPrefix(escape, "u")
	if !ok || hex == "" {
		return "", false
	}

	code, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return "", false
	}

	r := rune(code)
	if !unicode.IsPrint(r) && r != ' ' {
		return "", false
	}

	return string(r), true
}
