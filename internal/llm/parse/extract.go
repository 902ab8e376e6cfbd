package parse

import "strings"

// Extraction is the most likely JSON value located inside noisy text.
type Extraction struct {
	Candidate string
	// Truncated is set when an opening bracket is never closed, which usually
	// means the provider cut its response off.
	Truncated bool
}

// Extract locates the most likely JSON value inside text. The first array
// wins; objects are considered only when no array bracket applies. An opening
// bracket with no closing bracket anywhere after it yields the rest of the
// text marked as truncated. When nothing applies the trimmed text is returned
// as is.
func Extract(text string) Extraction {
	if ext, ok := bracketed(text, '[', ']'); ok {
		return ext
	}
	if ext, ok := bracketed(text, '{', '}'); ok {
		return ext
	}
	return Extraction{Candidate: strings.TrimSpace(text)}
}

// bracketed applies the matched and unmatched bracket cases to the first open
// bracket in text. It reports false when neither case applies: there is no
// open bracket, or it is unmatched while a close bracket still follows it.
func bracketed(text string, open, close byte) (Extraction, bool) {
	start := strings.IndexByte(text, open)
	if start < 0 {
		return Extraction{}, false
	}
	if end, ok := matchSpan(text, start, open, close); ok {
		return Extraction{Candidate: text[start : end+1]}, true
	}
	if strings.IndexByte(text[start:], close) >= 0 {
		return Extraction{}, false
	}
	return Extraction{Candidate: strings.TrimRight(text[start:], " \t\r\n"), Truncated: true}, true
}

// enclosingObject returns the object that opens before the first array and
// closes after it, as in {"grades": [...]}.
func enclosingObject(text string) (string, bool) {
	obj := strings.IndexByte(text, '{')
	arr := strings.IndexByte(text, '[')
	if obj < 0 || arr < 0 || obj > arr {
		return "", false
	}
	end, ok := matchSpan(text, obj, '{', '}')
	if !ok || end < arr {
		return "", false
	}
	return text[obj : end+1], true
}

// matchSpan returns the index of the bracket closing the one at start.
// Brackets inside JSON strings are ignored.
func matchSpan(text string, start int, open, close byte) (int, bool) {
	depth := 0
	inString := false
	escaped := false

	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return -1, false
}
