// Package grading scores a submission: objective questions locally,
// subjective ones through a language model, with local fallbacks so a run
// always completes.
package grading

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/pavelanni/autograder/internal/i18n"
	"github.com/pavelanni/autograder/internal/llm"
	"github.com/pavelanni/autograder/internal/llm/prompts"
	"github.com/pavelanni/autograder/internal/model"
)

// DefaultMinAnswerLength is the heuristic fallback threshold in runes.
const DefaultMinAnswerLength = 20

// Stage is a progress milestone of a grading run.
type Stage string

const (
	StageScoringObjective  Stage = "scoring_objective"
	StageGradingSubjective Stage = "grading_subjective"
	StageSummarizing       Stage = "summarizing"
)

func (s Stage) messageID() string {
	switch s {
	case StageScoringObjective:
		return "StageScoringObjective"
	case StageGradingSubjective:
		return "StageGradingSubjective"
	default:
		return "StageSummarizing"
	}
}

// ProgressFunc receives advisory progress updates with a localized label.
type ProgressFunc func(stage Stage, label string)

// Engine grades submissions. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	llm             llm.Completer
	policy          Policy
	variant         prompts.PromptVariant
	lang            string
	minAnswerLength int
	bands           [3]int
	now             func() time.Time
	log             *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithPolicy sets the fill-blank similarity policy.
func WithPolicy(p Policy) Option {
	return func(e *Engine) { e.policy = p }
}

// WithPromptVariant sets the delegated grading prompt variant.
func WithPromptVariant(v prompts.PromptVariant) Option {
	return func(e *Engine) { e.variant = v }
}

// WithLanguage sets the language of locally generated feedback when the
// context carries no localizer.
func WithLanguage(lang string) Option {
	return func(e *Engine) { e.lang = lang }
}

// WithMinAnswerLength sets the rune count an answer must exceed to earn
// heuristic credit.
func WithMinAnswerLength(n int) Option {
	return func(e *Engine) { e.minAnswerLength = n }
}

// WithSummaryBands sets the percentage lower bounds of the excellent, good
// and fair feedback bands.
func WithSummaryBands(excellent, good, fair int) Option {
	return func(e *Engine) { e.bands = [3]int{excellent, good, fair} }
}

// WithClock replaces time.Now for GradedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// New creates an Engine. A nil completer disables delegated grading: every
// subjective answer gets heuristic credit and the summary comes from the
// local catalog.
func New(c llm.Completer, opts ...Option) *Engine {
	e := &Engine{
		llm:             c,
		policy:          BandedPolicy,
		variant:         prompts.PromptStandard,
		lang:            "en",
		minAnswerLength: DefaultMinAnswerLength,
		bands:           [3]int{80, 60, 40},
		now:             time.Now,
		log:             slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewFromConfig creates an Engine from runtime configuration.
func NewFromConfig(c llm.Completer, cfg model.GradingConfig, opts ...Option) (*Engine, error) {
	policy, err := PolicyByName(cfg.FillBlankPolicy, cfg.FillBlankFull, cfg.FillBlankPartial)
	if err != nil {
		return nil, err
	}
	variant := strings.ToLower(strings.TrimSpace(cfg.PromptVariant))
	if variant == "" {
		variant = string(prompts.PromptStandard)
	}
	if !prompts.IsValidVariant(variant) {
		return nil, fmt.Errorf("invalid prompt variant %q", cfg.PromptVariant)
	}

	base := []Option{WithPolicy(policy), WithPromptVariant(prompts.PromptVariant(variant))}
	if cfg.Lang != "" {
		base = append(base, WithLanguage(cfg.Lang))
	}
	if cfg.MinAnswerLength > 0 {
		base = append(base, WithMinAnswerLength(cfg.MinAnswerLength))
	}
	return New(c, append(base, opts...)...), nil
}

// Grade scores every question and returns the aggregate. The only error it
// returns is an *InvalidInputError; provider and parsing failures are
// absorbed by local fallbacks.
func (e *Engine) Grade(ctx context.Context, questions []model.Question, answers []model.Answer, onProgress ProgressFunc) (*model.GradingResponse, error) {
	if err := validateInput(questions, answers); err != nil {
		return nil, err
	}
	ctx = i18n.EnsureLocalizer(ctx, e.lang)

	report := func(s Stage) {
		if onProgress != nil {
			onProgress(s, i18n.T(ctx, s.messageID()))
		}
	}

	byQuestion := make(map[string]model.Answer, len(answers))
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for _, a := range answers {
		if !known[a.QuestionID] {
			e.log.Debug("ignoring answer for unknown question", "question_id", a.QuestionID)
			continue
		}
		byQuestion[a.QuestionID] = a
	}
	lookup := func(id string) *model.Answer {
		if a, ok := byQuestion[id]; ok {
			return &a
		}
		return nil
	}

	results := make([]model.GradingResult, len(questions))
	var pending []subjectiveItem

	report(StageScoringObjective)
	for i, q := range questions {
		a := lookup(q.ID)
		switch q.Kind {
		case model.KindMultipleChoice:
			results[i] = scoreMultipleChoice(ctx, q, a)
		case model.KindFillBlank:
			results[i] = scoreFillBlank(ctx, q, a, e.policy)
		default:
			if a == nil || strings.TrimSpace(a.Value.Text()) == "" {
				results[i] = unanswered(ctx, q)
				continue
			}
			pending = append(pending, subjectiveItem{index: i, question: q, answer: a.Value.Text()})
		}
	}

	report(StageGradingSubjective)
	if len(pending) > 0 {
		for _, g := range e.gradeSubjective(ctx, pending) {
			results[g.index] = g.result
		}
	}

	resp := aggregate(results)

	report(StageSummarizing)
	resp.OverallFeedback = e.summarize(ctx, resp)
	resp.GradedAt = e.now().UTC()

	e.log.Info("graded submission",
		"questions", len(questions),
		"subjective", len(pending),
		"total", resp.TotalScore,
		"max", resp.MaxScore,
		"percentage", resp.Percentage,
	)
	return resp, nil
}

// aggregate sums results into a response, clamping each result to [0, max].
func aggregate(results []model.GradingResult) *model.GradingResponse {
	resp := &model.GradingResponse{Results: results}
	for i := range results {
		r := &results[i]
		r.Obtained = clamp(r.Obtained, r.Max)
		resp.TotalScore += r.Obtained
		resp.MaxScore += r.Max
	}
	if resp.MaxScore > 0 {
		resp.Percentage = int(math.Round(100 * resp.TotalScore / float64(resp.MaxScore)))
	}
	return resp
}

func clamp(v float64, maxMarks int) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, float64(maxMarks))
}

func unanswered(ctx context.Context, q model.Question) model.GradingResult {
	return model.GradingResult{
		QuestionID: q.ID,
		Max:        q.Points,
		Feedback:   i18n.T(ctx, "NotAnswered"),
	}
}
