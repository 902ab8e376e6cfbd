// Package parse recovers structured data from raw model output.
package parse

import (
	"regexp"
	"strings"
)

var (
	reasoningBlockRegex = regexp.MustCompile(`(?is)<\s*(?:think|thinking|reasoning)\b[^>]*>.*?<\s*/\s*(?:think|thinking|reasoning)\s*>`)
	inlineFenceRegex    = regexp.MustCompile("(?s)```(?:[\\w.+-]*[ \\t]*\\r?\\n)?(.*?)```")
	leadingFenceRegex   = regexp.MustCompile("^```(?:[\\w.+-]+[ \\t]*(?:\\r?\\n|$)|[ \\t]*(?:\\r?\\n)?)")
	trailingFenceRegex  = regexp.MustCompile("```\\s*$")
	loneFenceRegex      = regexp.MustCompile("```(?:[\\w.+-]+[ \\t]*(?:\\r?\\n|$))?")
)

// Normalize strips response wrappers from raw provider text: reasoning blocks,
// fenced code markers (keeping the fenced content) and surrounding whitespace.
// Normalize(Normalize(s)) == Normalize(s) for every s.
func Normalize(raw string) string {
	s := raw
	for {
		next := normalizeOnce(s)
		if next == s {
			return next
		}
		s = next
	}
}

// normalizeOnce never grows its input and shrinks it whenever it changes it,
// so Normalize reaches a fixed point.
func normalizeOnce(s string) string {
	s = strings.TrimSpace(reasoningBlockRegex.ReplaceAllString(s, ""))
	for leadingFenceRegex.MatchString(s) {
		s = strings.TrimSpace(leadingFenceRegex.ReplaceAllString(s, ""))
	}
	for trailingFenceRegex.MatchString(s) {
		s = strings.TrimSpace(trailingFenceRegex.ReplaceAllString(s, ""))
	}
	s = inlineFenceRegex.ReplaceAllStringFunc(s, func(m string) string {
		inner := inlineFenceRegex.FindStringSubmatch(m)[1]
		return strings.TrimRight(inner, " \t\r\n")
	})
	s = loneFenceRegex.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}
