package model

import (
	"time"

	"github.com/google/uuid"
)

// AttemptStatus enumerates attempt lifecycle states.
type AttemptStatus string

const (
	AttemptStatusInProgress AttemptStatus = "IN_PROGRESS"
	AttemptStatusSubmitted  AttemptStatus = "SUBMITTED"
	AttemptStatusGraded     AttemptStatus = "GRADED"
)

// ReviewMark is the kind of a marked-for-review flag. The kind is fixed at
// toggle time: editing the answer afterwards does not recompute it.
type ReviewMark string

const (
	ReviewedWithAnswer    ReviewMark = "REVIEWED_WITH_ANSWER"
	ReviewedWithoutAnswer ReviewMark = "REVIEWED_WITHOUT_ANSWER"
)

// Attempt represents one user's timed run through one exam. At most one
// attempt exists per (user, exam) pair.
type Attempt struct {
	ID             uuid.UUID     `json:"id"`
	UserID         int           `json:"user_id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	Status         AttemptStatus `json:"status"`
	StartedAt      time.Time     `json:"started_at"`
	EndedAt        *time.Time    `json:"ended_at,omitempty"`
	TimeAllotted   int           `json:"time_allotted_minutes"`
	TotalQuestions int           `json:"total_questions"`
}

// StartAttemptRequest is the payload for starting a new attempt.
type StartAttemptRequest struct {
	Year           string `json:"year" binding:"required"`
	Slot           string `json:"slot" binding:"required"`
	TotalQuestions int    `json:"total_questions" binding:"required,min=1"`
	TimeAllotted   int    `json:"time_allotted_minutes" binding:"required,min=1,max=480"`
}

// SetAnswerRequest upserts or clears one answer. A null selected_answer
// clears the entry; at scoring time both read as unattempted.
type SetAnswerRequest struct {
	SelectedAnswer *int `json:"selected_answer"`
}

// SubmitAttemptRequest carries the final answer snapshot as a mapping keyed
// by question_id. The mapping form is canonical: unlike a list of pairs it
// cannot hold duplicate question keys.
type SubmitAttemptRequest struct {
	Answers         map[int]*int       `json:"answers"`
	MarkedQuestions map[int]ReviewMark `json:"marked_questions"`
}

// AttemptState is returned on page reload so the client can restore the
// answer sheet and the countdown.
type AttemptState struct {
	AttemptID        uuid.UUID         `json:"attempt_id"`
	Status           AttemptStatus     `json:"status"`
	AutosavedAnswers map[string]string `json:"autosaved_answers"`
	RemainingTime    float64           `json:"remaining_seconds"`
}
