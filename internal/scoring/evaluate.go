// Package scoring holds the pure quiz rules: answer evaluation, points with
// time bonus, and level derivation from cumulative points.
package scoring

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/p-n-ai/eduruang/internal/catalog"
)

var (
	// ErrManualGrading is returned for essay questions, which have no
	// automatic evaluation.
	ErrManualGrading = errors.New("question requires manual grading")

	ErrUnknownQuestionType = errors.New("unknown question type")
)

// Evaluate reports whether answer is correct for q.
//
// Choice questions compare option indexes exactly; a text answer never
// matches. Fill-in-the-blank compares lowercased, trimmed text. Essays
// return ErrManualGrading.
func Evaluate(q catalog.Question, answer catalog.Answer) (bool, error) {
	switch q.Type {
	case catalog.MultipleChoice, catalog.TrueFalse:
		got, ok := answer.Index()
		want, wantOK := q.CorrectAnswer.Index()
		return ok && wantOK && got == want, nil
	case catalog.FillBlank:
		return normalize(answer.String()) == normalize(q.CorrectAnswer.String()), nil
	case catalog.Essay:
		return false, ErrManualGrading
	default:
		return false, fmt.Errorf("%w: %q", ErrUnknownQuestionType, q.Type)
	}
}

func normalize(s string) string {
	// Casers keep state and are not safe for concurrent use.
	return strings.TrimSpace(cases.Lower(language.Und).String(s))
}
