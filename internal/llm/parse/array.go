package parse

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMalformedResponse means the text could not be parsed as JSON even after repair.
	ErrMalformedResponse = errors.New("malformed response")
	// ErrNotAnArray means the text parsed but no rule could turn it into a list.
	ErrNotAnArray = errors.New("response is not an array")
)

// maxReparseDepth bounds how many layers of string-encoded JSON are unwrapped.
const maxReparseDepth = 3

// Reparser runs the whole recovery pipeline on a nested string value.
type Reparser func(s string) ([]any, error)

// Rule turns a decoded JSON value into a list of items. It returns ok=false
// when the value does not have the shape it handles.
type Rule struct {
	Name    string
	Extract func(v any, reparse Reparser) (items []any, ok bool, err error)
}

// wrapperKeys are object fields known to hold the item list, in lookup order.
var wrapperKeys = []string{"questions", "items", "results", "grades", "data"}

// itemKeys mark an object that is itself a single item.
var itemKeys = []string{"type", "text", "question", "questionId"}

// DefaultRules is the ordered list of shapes ParseArray understands.
var DefaultRules = []Rule{
	{Name: "array", Extract: func(v any, _ Reparser) ([]any, bool, error) {
		items, ok := v.([]any)
		return items, ok, nil
	}},
	{Name: "double-encoded", Extract: func(v any, reparse Reparser) ([]any, bool, error) {
		s, ok := v.(string)
		if !ok {
			return nil, false, nil
		}
		items, err := reparse(s)
		return items, err == nil, err
	}},
	{Name: "wrapper", Extract: func(v any, _ Reparser) ([]any, bool, error) {
		items, ok := wrapped(v)
		return items, ok, nil
	}},
	{Name: "output-wrapper", Extract: func(v any, _ Reparser) ([]any, bool, error) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		out, ok := obj["output"]
		if !ok {
			return nil, false, nil
		}
		if items, ok := out.([]any); ok {
			return items, true, nil
		}
		items, ok := wrapped(out)
		return items, ok, nil
	}},
	{Name: "single-item", Extract: func(v any, _ Reparser) ([]any, bool, error) {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		for _, k := range itemKeys {
			if _, ok := obj[k]; ok {
				return []any{obj}, true, nil
			}
		}
		return nil, false, nil
	}},
}

func wrapped(v any) ([]any, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	for _, k := range wrapperKeys {
		if items, ok := obj[k].([]any); ok {
			return items, true
		}
	}
	return nil, false
}

// ParseArray recovers a list of items from raw provider text using DefaultRules.
// The truncated flag is reported even when parsing fails.
func ParseArray(raw string) ([]any, bool, error) {
	return ParseArrayWith(raw, DefaultRules)
}

// ParseArrayWith is ParseArray with a caller-supplied rule list.
func ParseArrayWith(raw string, rules []Rule) ([]any, bool, error) {
	return parseArray(raw, rules, 0)
}

func parseArray(raw string, rules []Rule, depth int) ([]any, bool, error) {
	text := Normalize(raw)

	reparse := func(s string) ([]any, error) {
		if depth+1 > maxReparseDepth {
			return nil, fmt.Errorf("%w: nested encoding deeper than %d", ErrNotAnArray, maxReparseDepth)
		}
		items, _, err := parseArray(s, rules, depth+1)
		return items, err
	}

	if s, ok := encodedString(text); ok {
		items, err := applyRules(s, rules, reparse)
		return items, false, err
	}

	// An object wrapping the first array is kept only when a rule turns it
	// into a list; otherwise the array itself is the answer.
	if obj, ok := enclosingObject(text); ok {
		if v, err := decode(obj); err == nil {
			if items, err := applyRules(v, rules, reparse); err == nil {
				return items, false, nil
			}
		}
	}

	ext := Extract(text)
	v, err := decode(ext.Candidate)
	if err != nil {
		return nil, ext.Truncated, err
	}
	items, err := applyRules(v, rules, reparse)
	return items, ext.Truncated, err
}

// applyRules returns the items of the first rule that handles v.
func applyRules(v any, rules []Rule, reparse Reparser) ([]any, error) {
	for _, rule := range rules {
		items, ok, err := rule.Extract(v, reparse)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", rule.Name, err)
		}
		if ok {
			if items == nil {
				items = []any{}
			}
			return items, nil
		}
	}
	return nil, fmt.Errorf("%w: got %T", ErrNotAnArray, v)
}

// encodedString reports whether the whole text is a single JSON string, as
// some providers return their JSON output encoded a second time.
func encodedString(text string) (string, bool) {
	if len(text) < 2 || text[0] != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal([]byte(text), &s); err != nil {
		return "", false
	}
	return s, true
}

// decode parses a repaired candidate, retrying exactly once with single quotes
// converted.
func decode(candidate string) (any, error) {
	repaired := Repair(candidate)
	var v any
	err := json.Unmarshal([]byte(repaired), &v)
	if err == nil {
		return v, nil
	}
	if retryErr := json.Unmarshal([]byte(RepairQuotes(repaired)), &v); retryErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, retryErr)
	}
	return v, nil
}
