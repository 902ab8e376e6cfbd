package parse

import (
	"regexp"
	"strings"
	"unicode"
)

var (
	singleQuotedKeyRegex   = regexp.MustCompile(`([{,]\s*)'([^'"\\\n]+?)'(\s*:)`)
	singleQuotedValueRegex = regexp.MustCompile(`(:\s*)'((?:[^\\\n]|\\.)*?)'(\s*[,}\]])`)
)

// Repair is a best-effort cleanup of almost-JSON. It turns typographic quotes
// into ASCII ones, drops control characters, escapes raw newlines inside
// strings, collapses tabs and non-breaking spaces and removes trailing commas
// before a closing bracket. It is not a JSON5 parser.
func Repair(text string) string {
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	smart := false // current string was opened by a typographic quote
	escaped := false

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch r {
		case '\u2018', '\u2019', '\u201a', '\u201b':
			r = '\''
		case '\t', '\u00a0':
			r = ' '
		}

		if inString {
			switch {
			case escaped:
				escaped = false
				b.WriteRune(r)
			case r == '\\':
				escaped = true
				b.WriteRune(r)
			case r == '"' && !smart:
				inString = false
				b.WriteRune(r)
			case isSmartDoubleQuote(r) && smart:
				inString = false
				b.WriteByte('"')
			case r == '"':
				b.WriteString(`\"`)
			case r == '\n':
				b.WriteString(`\n`)
			case r < 0x20:
			default:
				b.WriteRune(r)
			}
			continue
		}

		switch {
		case r == '"':
			inString, smart = true, false
			b.WriteRune(r)
		case isSmartDoubleQuote(r):
			inString, smart = true, true
			b.WriteByte('"')
		case r == ',' && closesNext(runes, i+1):
		case r < 0x20 && r != '\n' && r != '\r':
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// RepairQuotes converts single-quoted object keys and string values to double
// quotes. Only the 'key': and : 'value' shapes are touched so apostrophes in
// ordinary text survive.
func RepairQuotes(text string) string {
	text = singleQuotedKeyRegex.ReplaceAllString(text, `$1"$2"$3`)
	return singleQuotedValueRegex.ReplaceAllStringFunc(text, func(m string) string {
		sub := singleQuotedValueRegex.FindStringSubmatch(m)
		inner := strings.ReplaceAll(sub[2], `\'`, `'`)
		inner = strings.ReplaceAll(inner, `"`, `\"`)
		return sub[1] + `"` + inner + `"` + sub[3]
	})
}

func isSmartDoubleQuote(r rune) bool {
	switch r {
	case '\u201c', '\u201d', '\u201e', '\u201f':
		return true
	}
	return false
}

// closesNext reports whether the next non-space rune from i closes an object or array.
func closesNext(runes []rune, i int) bool {
	for ; i < len(runes); i++ {
		r := runes[i]
		if unicode.IsSpace(r) {
			continue
		}
		return r == '}' || r == ']'
	}
	return false
}
