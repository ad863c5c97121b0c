package model

import (
	"time"

	"github.com/google/uuid"
)

// AnswerStatus is the per-question verdict in a score report.
type AnswerStatus string

const (
	AnswerStatusCorrect     AnswerStatus = "correct"
	AnswerStatusIncorrect   AnswerStatus = "incorrect"
	AnswerStatusUnattempted AnswerStatus = "unattempted"
)

// AnswerDetail is one review row of a score report, in paper order.
type AnswerDetail struct {
	QuestionID    int          `json:"question_id"`
	UserAnswer    *int         `json:"user_answer"`
	CorrectAnswer int          `json:"correct_answer"`
	Status        AnswerStatus `json:"status"`
}

// ScoreReport is the deterministic output of grading one frozen answer set
// against one exam's answer key. Totals are never floored: a negative
// total_marks is valid and any clamping belongs to the display layer.
type ScoreReport struct {
	TotalQuestions int            `json:"total_questions"`
	Correct        int            `json:"correct"`
	Incorrect      int            `json:"incorrect"`
	Unattempted    int            `json:"unattempted"`
	TotalMarks     int            `json:"total_marks"`
	Answers        []AnswerDetail `json:"answers"`
}

// Result is a materialized score report keyed by (user, exam). Regenerating
// it for the same inputs overwrites in place (upsert, never append).
type Result struct {
	UserID    int         `json:"user_id"`
	ExamID    uuid.UUID   `json:"exam_id"`
	Report    ScoreReport `json:"report"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}
