package grading

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"github.com/pavelanni/autograder/internal/model"
)

// ErrInvalidInput is matched by *InvalidInputError.
var ErrInvalidInput = errors.New("invalid input")

// InvalidInputError reports structurally wrong questions or answers.
// Fields maps a JSON path such as "questions[1].marks" to a message.
type InvalidInputError struct {
	Fields map[string]string
}

func (e *InvalidInputError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + ": " + e.Fields[k]
	}
	return fmt.Sprintf("%s: %s", ErrInvalidInput, strings.Join(parts, "; "))
}

func (e *InvalidInputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// gradingInput is the validated shape of one Grade call.
type gradingInput struct {
	Questions []model.Question `json:"questions" validate:"required,unique=ID,dive"`
	Answers   []model.Answer   `json:"answers" validate:"unique=QuestionID,dive"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
	trans        ut.Translator
)

func setupValidator() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag name for field names in error messages.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, trans)
}

// validateInput checks questions and answers before any scoring happens.
func validateInput(questions []model.Question, answers []model.Answer) error {
	validateOnce.Do(setupValidator)

	err := validate.Struct(gradingInput{Questions: questions, Answers: answers})
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return &InvalidInputError{Fields: map[string]string{"detail": err.Error()}}
	}
	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		fields[fieldPath(fe.Namespace())] = fe.Translate(trans)
	}
	return &InvalidInputError{Fields: fields}
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
