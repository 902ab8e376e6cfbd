package prompts

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	studentAnswerRegex      = regexp.MustCompile(`(?i)</?\s*student-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

const maxAnswerRunes = 10000

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict is a strict grading variant for majors.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient is a lenient grading variant for electives.
	PromptLenient PromptVariant = "lenient"
)

var validVariants = map[PromptVariant]bool{
	PromptStrict:   true,
	PromptStandard: true,
	PromptLenient:  true,
}

var (
	loadOnce        sync.Once
	loadErr         error
	gradeTemplates  map[PromptVariant]*template.Template
	summaryTemplate *template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	return validVariants[PromptVariant(v)]
}

// GradeItem is one subjective question in a delegated grading prompt.
type GradeItem struct {
	ID        string
	Text      string
	Reference string
	Answer    string
	MaxMarks  int
}

// GradeData holds template data for grading prompts.
type GradeData struct {
	Items []GradeItem
}

// SummaryData holds template data for the overall feedback prompt.
type SummaryData struct {
	Score      float64
	MaxScore   int
	Percentage int
	Correct    int
	Total      int
	Weak       []string // ids of questions scored below half marks
	Language   string   // e.g. "English"
}

// Load parses the embedded prompt templates.
// It uses sync.Once to ensure templates are loaded only once.
func Load() error {
	loadOnce.Do(func() {
		gradeTemplates = make(map[PromptVariant]*template.Template)

		for _, v := range []PromptVariant{PromptStrict, PromptStandard, PromptLenient} {
			gradeFile := "templates/grade_" + string(v) + ".txt"
			tmpl, err := template.ParseFS(templateFS, "templates/grade_items.txt", gradeFile)
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", gradeFile, err)
				return
			}
			gradeTemplates[v] = tmpl
		}

		tmpl, err := template.New("summary").
			Funcs(template.FuncMap{"join": strings.Join}).
			ParseFS(templateFS, "templates/summary.txt")
		if err != nil {
			loadErr = fmt.Errorf("parse prompt template summary: %w", err)
			return
		}
		summaryTemplate = tmpl
	})
	return loadErr
}

// BuildGradePrompt builds the system and user messages for delegated grading
// of all items in one request. Answers are sanitized before rendering.
func BuildGradePrompt(variant PromptVariant, items []GradeItem) (system, user string, err error) {
	if err := Load(); err != nil {
		return "", "", fmt.Errorf("templates load failed: %w", err)
	}
	tmpl, ok := gradeTemplates[variant]
	if !ok {
		return "", "", errors.New("invalid prompt variant: " + string(variant))
	}
	if len(items) == 0 {
		return "", "", errors.New("no items to grade")
	}

	data := GradeData{Items: make([]GradeItem, len(items))}
	for i, it := range items {
		it.Answer = sanitizeAnswer(it.Answer)
		data.Items[i] = it
	}
	return render(tmpl, data)
}

// BuildSummaryPrompt builds the system and user messages asking for a short
// overall comment on a result.
func BuildSummaryPrompt(data SummaryData) (system, user string, err error) {
	if err := Load(); err != nil {
		return "", "", fmt.Errorf("templates load failed: %w", err)
	}
	if data.Language == "" {
		data.Language = "English"
	}
	return render(summaryTemplate, data)
}

func render(tmpl *template.Template, data any) (string, string, error) {
	var sys, usr bytes.Buffer
	if err := tmpl.ExecuteTemplate(&sys, "system", data); err != nil {
		return "", "", err
	}
	if err := tmpl.ExecuteTemplate(&usr, "user", data); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(sys.String()), strings.TrimSpace(usr.String()), nil
}

func sanitizeAnswer(answer string) string {
	answer = studentAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		runes = runes[:maxAnswerRunes]
		answer = string(runes) + "\n\n[Answer truncated due to length]"
	}

	return answer
}
