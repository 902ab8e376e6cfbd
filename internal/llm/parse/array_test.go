package parse

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"
)

func TestParseArrayFencedResponse(t *testing.T) {
	raw := "Here you go:\n```json\n[{\"type\":\"mcq\"}]\n```"
	items, truncated, err := ParseArray(raw)
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	if truncated {
		t.Error("truncated = true, want false")
	}
	want := []any{map[string]any{"type": "mcq"}}
	if !reflect.DeepEqual(items, want) {
		t.Errorf("items = %#v, want %#v", items, want)
	}
}

func TestParseArrayRecoversEmbeddedArray(t *testing.T) {
	arrays := []string{
		`[]`,
		`[1, 2, 3]`,
		`[{"questionId": "q1", "marksObtained": 2, "feedback": "ok [see notes]"}]`,
		`[["nested"], {"a": {"b": [true, null]}}]`,
		`["quote \" inside", "brace } inside"]`,
	}
	wrappers := []struct {
		name string
		wrap func(string) string
	}{
		{"bare", func(s string) string { return s }},
		{"fenced", func(s string) string { return "```json\n" + s + "\n```" }},
		{"prose", func(s string) string { return "Sure, here are the results:\n" + s + "\nLet me know!" }},
		{"reasoning", func(s string) string { return "<think>count [1] and {2}</think>\n" + s }},
		{"unlisted wrapper key", func(s string) string { return `{"evaluations": ` + s + `}` }},
		{"stray brace in prose", func(s string) string { return "Note: I used { as a delimiter.\n" + s }},
		{"everything", func(s string) string {
			return "<thinking>\nhmm\n</thinking>Result:\n```\n" + s + "\n```\nThanks."
		}},
	}

	for _, arr := range arrays {
		var want []any
		if err := json.Unmarshal([]byte(arr), &want); err != nil {
			t.Fatalf("bad fixture %q: %v", arr, err)
		}
		for _, w := range wrappers {
			t.Run(w.name+"/"+arr, func(t *testing.T) {
				items, truncated, err := ParseArray(w.wrap(arr))
				if err != nil {
					t.Fatalf("ParseArray: %v", err)
				}
				if truncated {
					t.Error("truncated = true, want false")
				}
				if !reflect.DeepEqual(items, want) {
					t.Errorf("items = %#v, want %#v", items, want)
				}
			})
		}
	}
}

func TestParseArrayShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
	}{
		{"questions wrapper", `{"questions": [{"text": "a"}, {"text": "b"}]}`, 2},
		{"items wrapper", `{"items": [1]}`, 1},
		{"results wrapper", `{"results": [1, 2, 3]}`, 3},
		{"grades wrapper", `{"grades": [{"questionId": "q1"}]}`, 1},
		{"data wrapper", `{"data": []}`, 0},
		{"output nesting", `{"output": {"questions": [{"type": "mcq"}]}}`, 1},
		{"output array", `{"output": [1, 2]}`, 2},
		{"single item", `{"type": "mcq", "question": "2+2?"}`, 1},
		{"single grade", `{"questionId": "q3", "marksObtained": 1}`, 1},
		{"single item holding an array", `{"type": "mcq", "options": ["a", "b", "c"]}`, 1},
		{"unlisted wrapper key", `{"evaluations": [{"questionId": "q1", "marksObtained": 2}]}`, 1},
		{"double encoded", `"[{\"type\":\"mcq\"},{\"type\":\"fill_blank\"}]"`, 2},
		{"single quoted", `[{'type': 'mcq', 'question': 'What's 2+2?'}]`, 1},
		{"trailing commas", `[{"a": 1,}, {"b": 2},]`, 2},
		{"smart quotes", "[{“type”: “mcq”}]", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, _, err := ParseArray(tt.raw)
			if err != nil {
				t.Fatalf("ParseArray(%q): %v", tt.raw, err)
			}
			if len(items) != tt.wantLen {
				t.Errorf("len(items) = %d, want %d", len(items), tt.wantLen)
			}
		})
	}
}

func TestParseArrayFailures(t *testing.T) {
	tests := []struct {
		name          string
		raw           string
		wantErr       error
		wantTruncated bool
	}{
		{"prose only", "I cannot help with that.", ErrMalformedResponse, false},
		{"empty", "", ErrMalformedResponse, false},
		{"truncated", `[{"questionId": "q1", "feedback": "good`, ErrMalformedResponse, true},
		{"number", `42`, ErrNotAnArray, false},
		{"unknown object", `{"foo": "bar"}`, ErrNotAnArray, false},
		{"unmatched array with later close", `[1, [2, 3]`, ErrMalformedResponse, false},
		{"double encoded prose", `"not json at all"`, ErrMalformedResponse, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, truncated, err := ParseArray(tt.raw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ParseArray(%q) error = %v, want %v", tt.raw, err, tt.wantErr)
			}
			if items != nil {
				t.Errorf("items = %#v, want nil", items)
			}
			if truncated != tt.wantTruncated {
				t.Errorf("truncated = %v, want %v", truncated, tt.wantTruncated)
			}
		})
	}
}

func TestParseArrayWithCustomRules(t *testing.T) {
	rules := append([]Rule{{
		Name: "answers",
		Extract: func(v any, _ Reparser) ([]any, bool, error) {
			obj, ok := v.(map[string]any)
			if !ok {
				return nil, false, nil
			}
			items, ok := obj["answers"].([]any)
			return items, ok, nil
		},
	}}, DefaultRules...)

	raw := `{"meta": [0], "answers": ["a", "b"]}`
	items, _, err := ParseArrayWith(raw, rules)
	if err != nil {
		t.Fatalf("ParseArrayWith: %v", err)
	}
	if !reflect.DeepEqual(items, []any{"a", "b"}) {
		t.Errorf("custom rules items = %#v, want [a b]", items)
	}

	// Without the rule the first array in the text is used.
	items, _, err = ParseArray(raw)
	if err != nil {
		t.Fatalf("ParseArray: %v", err)
	}
	if !reflect.DeepEqual(items, []any{float64(0)}) {
		t.Errorf("default rules items = %#v, want [0]", items)
	}
}
