package parse

import (
	"encoding/json"
	"testing"
)

func TestRepair(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"valid json untouched", `{"a":[1,2]}`, `{"a":[1,2]}`},
		{"trailing comma in object", `{"a":1,}`, `{"a":1}`},
		{"trailing comma in array", "[1,2,\n ]", "[1,2\n ]"},
		{"comma inside string kept", `{"a":"x,]"}`, `{"a":"x,]"}`},
		{"smart quotes as delimiters", "{“a”: “b”}", `{"a": "b"}`},
		{"smart quotes inside string kept", "{\"a\": \"say “hi”\"}", "{\"a\": \"say “hi”\"}"},
		{"smart single quotes", "{'it’s': 1}", "{'it's': 1}"},
		{"tabs and nbsp", "{\"a\":\t1,\u00a0\"b\": 2}", `{"a": 1, "b": 2}`},
		{"control chars dropped", "[1,\x00 2\x07]", "[1, 2]"},
		{"raw newline in string escaped", "{\"a\": \"line1\nline2\"}", `{"a": "line1\nline2"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Repair(tt.in)
			if got != tt.want {
				t.Errorf("Repair(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRepairQuotes(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"keys and values", `{'type': 'mcq', 'marks': 2}`, `{"type": "mcq", "marks": 2}`},
		{"apostrophe in value", `{"f": 'it's fine'}`, `{"f": "it's fine"}`},
		{"apostrophe in double quoted text untouched", `{"f": "don't"}`, `{"f": "don't"}`},
		{"double quote inside single quoted value", `{'q': 'say "hi"'}`, `{"q": "say \"hi\""}`},
		{"array of objects", `[{'a': 'x'}, {'a': 'y'}]`, `[{"a": "x"}, {"a": "y"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RepairQuotes(tt.in)
			if got != tt.want {
				t.Errorf("RepairQuotes(%q) = %q, want %q", tt.in, got, tt.want)
			}
			var v any
			if err := json.Unmarshal([]byte(got), &v); err != nil {
				t.Errorf("RepairQuotes(%q) is not valid JSON: %v", tt.in, err)
			}
		})
	}
}
