package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// QuestionKind represents the type of a question.
type QuestionKind string

const (
	KindMultipleChoice QuestionKind = "mcq"
	KindFillBlank      QuestionKind = "fill_blank"
	KindShortAnswer    QuestionKind = "short_answer"
	KindLongAnswer     QuestionKind = "long_answer"
)

// IsObjective reports whether questions of this kind have a single verifiable answer.
func (k QuestionKind) IsObjective() bool {
	return k == KindMultipleChoice || k == KindFillBlank
}

// IsSubjective reports whether questions of this kind need delegated grading.
func (k QuestionKind) IsSubjective() bool {
	return k == KindShortAnswer || k == KindLongAnswer
}

// Value is a submitted or reference answer: a choice index, free text, or nothing.
// It decodes from a JSON number or string.
type Value struct {
	raw any // float64, string or nil
}

// IndexValue returns a Value holding a choice index.
func IndexValue(i int) Value { return Value{raw: float64(i)} }

// TextValue returns a Value holding free text.
func TextValue(s string) Value { return Value{raw: s} }

// IsZero reports whether the value is absent.
func (v Value) IsZero() bool { return v.raw == nil }

// Index coerces the value to a choice index. Numbers must be integral and
// strings must parse as an integer after trimming.
func (v Value) Index() (int, bool) {
	switch x := v.raw.(type) {
	case float64:
		if x != math.Trunc(x) || x < 0 {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

// Text returns the textual form of the value, or "" when absent.
func (v Value) Text() string {
	switch x := v.raw.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.raw)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		v.raw = nil
		return nil
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch raw.(type) {
	case float64, string:
		v.raw = raw
		return nil
	}
	return fmt.Errorf("value must be a number or a string, got %s", data)
}

// Question is a single test question. It is owned by the authoring side and
// consumed read-only by grading.
type Question struct {
	ID      string       `json:"id" validate:"required"`
	Kind    QuestionKind `json:"type" validate:"required,oneof=mcq fill_blank short_answer long_answer"`
	Text    string       `json:"question"`
	Choices []string     `json:"options,omitempty"`
	Correct Value        `json:"correctAnswer"`
	Points  int          `json:"marks" validate:"gt=0"`
}

// Answer is a student's submission for one question.
type Answer struct {
	QuestionID string `json:"questionId" validate:"required"`
	Value      Value  `json:"answer"`
}

// GradingResult holds the score for a single question.
type GradingResult struct {
	QuestionID string  `json:"questionId"`
	Obtained   float64 `json:"marksObtained"`
	Max        int     `json:"maxMarks"`
	Feedback   string  `json:"feedback"`
	IsCorrect  bool    `json:"isCorrect"`
}

// GradingResponse is the aggregate outcome of one grading run.
type GradingResponse struct {
	ID              string          `json:"id,omitempty"`
	TotalScore      float64         `json:"totalScore"`
	MaxScore        int             `json:"maxScore"`
	Percentage      int             `json:"percentage"`
	Results         []GradingResult `json:"results"`
	OverallFeedback string          `json:"overallFeedback"`
	GradedAt        time.Time       `json:"gradedAt"`
}

// Submission is a question set plus the answers given to it.
type Submission struct {
	ID        string     `json:"submissionId,omitempty"`
	Questions []Question `json:"questions"`
	Answers   []Answer   `json:"answers"`
}

// GradingConfig holds runtime grading parameters set via CLI flags.
type GradingConfig struct {
	PromptVariant    string  // strict, standard, lenient
	Lang             string  // language for locally generated feedback
	FillBlankPolicy  string  // banded or flat
	FillBlankFull    float64 // 0 means policy default
	FillBlankPartial float64 // 0 means policy default
	MinAnswerLength  int     // heuristic fallback threshold in runes
}
