package grading

import (
	"context"
	"strings"

	"github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
)

// summarize asks the model for a short encouragement-plus-suggestion comment
// and falls back to a band template from the local catalog.
func (e *Engine) summarize(ctx context.Context, resp *model.GradingResponse) string {
	correct := 0
	var weak []string
	for _, r := range resp.Results {
		if r.IsCorrect {
			correct++
		}
		if r.Obtained*2 < float64(r.Max) {
			weak = append(weak, r.QuestionID)
		}
	}

	if e.llm != nil {
		system, user, err := prompts.BuildSummaryPrompt(prompts.SummaryData{
			Score:      resp.TotalScore,
			MaxScore:   resp.MaxScore,
			Percentage: resp.Percentage,
			Correct:    correct,
			Total:      len(resp.Results),
			Weak:       weak,
			Language:   i18n.DisplayName(e.lang),
		})
		if err != nil {
			e.log.Error("build summary prompt", "error", err)
		} else {
			text, err := e.llm.Complete(ctx, system, user, llm.WithTemperature(0.7), llm.WithMaxTokens(300))
			if err == nil && strings.TrimSpace(text) != "" {
				return strings.TrimSpace(text)
			}
			e.log.Warn("summary generation failed, using local feedback", "error", err)
		}
	}
	return e.localSummary(ctx, resp.Percentage, correct)
}

func (e *Engine) localSummary(ctx context.Context, percentage, correct int) string {
	var id string
	switch {
	case percentage >= e.bands[0]:
		id = "SummaryExcellent"
	case percentage >= e.bands[1]:
		id = "SummaryGood"
	case percentage >= e.bands[2]:
		id = "SummaryFair"
	default:
		id = "SummaryPoor"
	}
	band := i18n.Td(ctx, id, map[string]any{"Percentage": percentage})
	return band + " " + i18n.Tp(ctx, "QuestionsCorrect", correct)
}
