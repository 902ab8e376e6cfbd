package model

import (
	"encoding/json"
	"testing"
)

func TestValueIndex(t *testing.T) {
	tests := []struct {
		name   string
		json   string
		want   int
		wantOK bool
	}{
		{"number", `1`, 1, true},
		{"numeric string", `"2"`, 2, true},
		{"padded string", `" 3 "`, 3, true},
		{"fraction", `1.5`, 0, false},
		{"negative", `-1`, 0, false},
		{"word", `"Paris"`, 0, false},
		{"null", `null`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(tt.json), &v); err != nil {
				t.Fatalf("Unmarshal: %v", err)
			}
			got, ok := v.Index()
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("Index() = (%d, %v), want (%d, %v)", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestValueRejectsComposite(t *testing.T) {
	var v Value
	if err := json.Unmarshal([]byte(`[1,2]`), &v); err == nil {
		t.Error("expected error for array value")
	}
	if err := json.Unmarshal([]byte(`{"a":1}`), &v); err == nil {
		t.Error("expected error for object value")
	}
}

func TestQuestionDecode(t *testing.T) {
	data := `{"id":"q1","type":"mcq","question":"Pick","options":["a","b"],"correctAnswer":"1","marks":2}`
	var q Question
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if q.Kind != KindMultipleChoice {
		t.Errorf("Kind = %q, want mcq", q.Kind)
	}
	if idx, ok := q.Correct.Index(); !ok || idx != 1 {
		t.Errorf("Correct.Index() = (%d, %v), want (1, true)", idx, ok)
	}
	if q.Points != 2 {
		t.Errorf("Points = %d, want 2", q.Points)
	}

	out, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var back Question
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("Unmarshal round trip: %v", err)
	}
	if back.Correct.Text() != "1" {
		t.Errorf("round trip Correct = %q, want \"1\"", back.Correct.Text())
	}
}

func TestKindClassification(t *testing.T) {
	if !KindMultipleChoice.IsObjective() || !KindFillBlank.IsObjective() {
		t.Error("mcq and fill_blank should be objective")
	}
	if !KindShortAnswer.IsSubjective() || !KindLongAnswer.IsSubjective() {
		t.Error("short and long answers should be subjective")
	}
	if QuestionKind("essay").IsObjective() || QuestionKind("essay").IsSubjective() {
		t.Error("unknown kinds should be neither")
	}
}
