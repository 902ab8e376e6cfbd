package grading

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/xeipuuv/gojsonschema"

	"github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/parse"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
)

// gradeItemSchema describes one entry of the delegated grade list.
const gradeItemSchema = `{
  "type": "object",
  "required": ["questionId", "marksObtained"],
  "properties": {
    "questionId": {"type": ["string", "integer"]},
    "marksObtained": {
      "type": ["number", "string"],
      "pattern": "^\\s*-?[0-9]+(\\.[0-9]+)?\\s*$"
    },
    "feedback": {"type": ["string", "null"]},
    "isCorrect": {"type": ["boolean", "null"]}
  }
}`

var loadGradeItemSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewStringLoader(gradeItemSchema))
})

type subjectiveItem struct {
	index    int // position in the question list
	question model.Question
	answer   string
}

type subjectiveResult struct {
	index  int
	result model.GradingResult
}

// delegatedGrade is a schema-checked entry of the model's grade list.
type delegatedGrade struct {
	obtained  float64
	feedback  string
	isCorrect *bool
}

// gradeSubjective sends all items in one request. When the request or the
// parse fails every item falls back to the completeness heuristic; items the
// model skipped get zero marks.
func (e *Engine) gradeSubjective(ctx context.Context, items []subjectiveItem) []subjectiveResult {
	if e.llm == nil {
		return e.heuristic(ctx, items)
	}

	promptItems := make([]prompts.GradeItem, len(items))
	for i, it := range items {
		promptItems[i] = prompts.GradeItem{
			ID:        it.question.ID,
			Text:      it.question.Text,
			Reference: it.question.Correct.Text(),
			Answer:    it.answer,
			MaxMarks:  it.question.Points,
		}
	}
	system, user, err := prompts.BuildGradePrompt(e.variant, promptItems)
	if err != nil {
		e.log.Error("build grading prompt", "error", err)
		return e.heuristic(ctx, items)
	}

	content, err := e.llm.Complete(ctx, system, user, llm.WithTemperature(0.1))
	if err != nil {
		e.log.Warn("delegated grading failed, using heuristic scores", "questions", len(items), "error", err)
		return e.heuristic(ctx, items)
	}

	parsed, truncated, err := parse.ParseArray(content)
	if err != nil {
		e.log.Warn("unparseable grading response, using heuristic scores", "error", err, "truncated", truncated)
		return e.heuristic(ctx, items)
	}
	if truncated {
		e.log.Warn("grading response was truncated", "items", len(parsed))
	}

	grades := e.collectGrades(parsed)
	out := make([]subjectiveResult, len(items))
	for i, it := range items {
		q := it.question
		res := model.GradingResult{QuestionID: q.ID, Max: q.Points}
		g, ok := grades[q.ID]
		if !ok {
			e.log.Warn("question missing from grading response", "question_id", q.ID)
			res.Feedback = i18n.T(ctx, "CouldNotGrade")
			out[i] = subjectiveResult{index: it.index, result: res}
			continue
		}
		res.Obtained = clamp(g.obtained, q.Points)
		res.Feedback = g.feedback
		if g.isCorrect != nil {
			res.IsCorrect = *g.isCorrect
		} else {
			res.IsCorrect = res.Obtained == float64(q.Points)
		}
		out[i] = subjectiveResult{index: it.index, result: res}
	}
	return out
}

// collectGrades validates parsed entries and indexes them by question id.
// Invalid entries are dropped and the first valid entry per id wins.
func (e *Engine) collectGrades(parsed []any) map[string]delegatedGrade {
	schema, err := loadGradeItemSchema()
	if err != nil {
		e.log.Error("compile grade item schema", "error", err)
		return nil
	}

	grades := make(map[string]delegatedGrade, len(parsed))
	for i, raw := range parsed {
		result, err := schema.Validate(gojsonschema.NewGoLoader(raw))
		if err != nil || !result.Valid() {
			var problems []string
			if result != nil {
				for _, re := range result.Errors() {
					problems = append(problems, re.String())
				}
			}
			e.log.Warn("dropping invalid grade item", "index", i, "error", err, "problems", strings.Join(problems, "; "))
			continue
		}

		obj := raw.(map[string]any)
		id := idString(obj["questionId"])
		if _, dup := grades[id]; dup {
			continue
		}
		g := delegatedGrade{obtained: number(obj["marksObtained"])}
		if s, ok := obj["feedback"].(string); ok {
			g.feedback = strings.TrimSpace(s)
		}
		if b, ok := obj["isCorrect"].(bool); ok {
			g.isCorrect = &b
		}
		grades[id] = g
	}
	return grades
}

func idString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	return ""
}

func number(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err == nil {
			return f
		}
	}
	return 0
}

// heuristic awards half marks, floored, to answers longer than the minimum
// length and zero otherwise.
func (e *Engine) heuristic(ctx context.Context, items []subjectiveItem) []subjectiveResult {
	out := make([]subjectiveResult, len(items))
	for i, it := range items {
		q := it.question
		res := model.GradingResult{QuestionID: q.ID, Max: q.Points}
		if utf8.RuneCountInString(strings.TrimSpace(it.answer)) > e.minAnswerLength {
			res.Obtained = math.Floor(float64(q.Points) / 2)
			res.Feedback = i18n.T(ctx, "HeuristicScored")
		} else {
			res.Feedback = i18n.T(ctx, "HeuristicTooShort")
		}
		out[i] = subjectiveResult{index: it.index, result: res}
	}
	return out
}
