package catalog

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

func validateEntry(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	return nil
}

// validateQuestion checks struct tags plus the answer shape per type:
// choice questions must point at an existing option.
func validateQuestion(q Question) error {
	if err := validateEntry(q); err != nil {
		return err
	}

	switch q.Type {
	case MultipleChoice, TrueFalse:
		i, ok := q.CorrectAnswer.Index()
		if !ok {
			return fmt.Errorf("%w: %s correct_answer must be an option index", ErrInvalidEntry, q.Type)
		}
		if i < 0 || i >= len(q.Options) {
			return fmt.Errorf("%w: correct_answer %d out of range for %d options", ErrInvalidEntry, i, len(q.Options))
		}
	case FillBlank:
		if q.CorrectAnswer.String() == "" {
			return fmt.Errorf("%w: fill_blank correct_answer is empty", ErrInvalidEntry)
		}
	}
	return nil
}
