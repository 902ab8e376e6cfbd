package grading

import (
	"context"
	"strconv"
	"strings"

	"github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/model"
)

// scoreMultipleChoice requires the submitted index to equal the reference
// index. Missing or invalid answers score zero.
func scoreMultipleChoice(ctx context.Context, q model.Question, a *model.Answer) model.GradingResult {
	res := model.GradingResult{QuestionID: q.ID, Max: q.Points}
	if a == nil || a.Value.IsZero() {
		res.Feedback = i18n.T(ctx, "NotAnswered")
		return res
	}

	got, ok := a.Value.Index()
	if !ok || (len(q.Choices) > 0 && got >= len(q.Choices)) {
		res.Feedback = i18n.T(ctx, "InvalidChoice")
		return res
	}

	want, ok := q.Correct.Index()
	if ok && got == want {
		res.Obtained = float64(q.Points)
		res.IsCorrect = true
		res.Feedback = i18n.T(ctx, "MCQCorrect")
		return res
	}
	res.Feedback = i18n.Td(ctx, "MCQIncorrect", map[string]any{"Expected": choiceLabel(q, want, ok)})
	return res
}

func choiceLabel(q model.Question, idx int, ok bool) string {
	if !ok {
		return q.Correct.Text()
	}
	if idx < len(q.Choices) {
		return q.Choices[idx]
	}
	return strconv.Itoa(idx)
}

// scoreFillBlank grades free text against the reference by similarity.
func scoreFillBlank(ctx context.Context, q model.Question, a *model.Answer, policy Policy) model.GradingResult {
	res := model.GradingResult{QuestionID: q.ID, Max: q.Points}
	if a == nil || strings.TrimSpace(a.Value.Text()) == "" {
		res.Feedback = i18n.T(ctx, "NotAnswered")
		return res
	}

	expected := q.Correct.Text()
	marks, credit := policy.Apply(Similarity(a.Value.Text(), expected), q.Points)
	res.Obtained = marks
	data := map[string]any{"Expected": expected}
	switch credit {
	case FullCredit:
		res.IsCorrect = true
		res.Feedback = i18n.T(ctx, "FillBlankCorrect")
	case PartialCredit:
		res.Feedback = i18n.Td(ctx, "FillBlankPartial", data)
	default:
		res.Feedback = i18n.Td(ctx, "FillBlankIncorrect", data)
	}
	return res
}
