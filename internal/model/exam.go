package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Exam represents one published paper, identified by its (year, slot) pair.
// The slot key is stored in canonical form; every lookup must normalize the
// incoming slot the same way or papers silently fail to resolve.
type Exam struct {
	ID        uuid.UUID `json:"id"`
	Year      string    `json:"year"`
	Slot      string    `json:"slot"`
	SlotKey   string    `json:"slot_key"`
	CreatedAt time.Time `json:"created_at"`
}

// NormalizeSlot collapses every run of whitespace or underscores into a
// single underscore and trims the ends, so "Apr 04  Shift 1" and
// "Apr_04_Shift_1" produce the same canonical key. Comparison against the
// stored key is case-sensitive.
func NormalizeSlot(raw string) string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == '_' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
	return strings.Join(fields, "_")
}

// ExamPaper is the payload sent to a user taking the exam (no correct answers).
type ExamPaper struct {
	ExamID    uuid.UUID       `json:"exam_id"`
	Year      string          `json:"year"`
	Slot      string          `json:"slot"`
	Questions []PaperQuestion `json:"questions"`
}

// PaperQuestion is a question stripped of its correct answer.
type PaperQuestion struct {
	QuestionID   int          `json:"question_id"`
	Type         QuestionType `json:"type"`
	QuestionText string       `json:"question_text"`
	Options      []string     `json:"options"`
	Subject      string       `json:"subject"`
	Image        *string      `json:"image,omitempty"`
}
