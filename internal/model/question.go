package model

import (
	"fmt"

	"github.com/google/uuid"
)

type QuestionType string

const (
	QuestionTypeMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionTypeInteger        QuestionType = "INTEGER"
)

// Question represents a single exam question. QuestionID is the paper-local
// numeric identity (unique within one exam); ID is the storage row key.
type Question struct {
	ID            uuid.UUID    `json:"id"`
	ExamID        uuid.UUID    `json:"exam_id"`
	QuestionID    int          `json:"question_id"`
	Type          QuestionType `json:"type"`
	QuestionText  string       `json:"question_text"`
	Options       []string     `json:"options"`
	CorrectAnswer int          `json:"correct_answer"`
	Subject       string       `json:"subject"`
	Image         *string      `json:"image,omitempty"`
}

// Validate enforces the shape invariants: multiple-choice questions carry
// exactly 4 options and a correct answer in [1,4]; integer questions carry
// no options and any integer answer.
func (q *Question) Validate() error {
	switch q.Type {
	case QuestionTypeMultipleChoice:
		if len(q.Options) != 4 {
			return fmt.Errorf("question %d: multiple-choice requires exactly 4 options, got %d", q.QuestionID, len(q.Options))
		}
		if q.CorrectAnswer < 1 || q.CorrectAnswer > 4 {
			return fmt.Errorf("question %d: multiple-choice answer must be in [1,4], got %d", q.QuestionID, q.CorrectAnswer)
		}
	case QuestionTypeInteger:
		if len(q.Options) != 0 {
			return fmt.Errorf("question %d: integer question must not carry options", q.QuestionID)
		}
	default:
		return fmt.Errorf("question %d: unknown type %q", q.QuestionID, q.Type)
	}
	return nil
}
