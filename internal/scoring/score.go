// Package scoring grades a frozen answer set against an exam's answer key.
// It is a pure function of its inputs: no clock, no storage, no randomness.
package scoring

import (
	"errors"

	"github.com/backtrackjee/portal-backend/internal/model"
)

// Marking scheme: +4 for a correct answer, -1 for an incorrect one, 0 for
// unattempted. The total is never floored at zero.
const (
	MarksCorrect   = 4
	MarksIncorrect = -1
)

// ErrEmptyQuestionSet is returned when the exam has no questions. Grading an
// empty paper would silently report 0/0, so it is rejected instead.
var ErrEmptyQuestionSet = errors.New("exam has no questions")

// Score evaluates answers against the exam's question list and returns the
// report. The question list order is canonical for the report's answers
// sequence. An absent key and an explicit nil both count as unattempted.
// Answer keys that do not belong to the question set are ignored.
func Score(questions []model.Question, answers map[int]*int) (*model.ScoreReport, error) {
	if len(questions) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	report := &model.ScoreReport{
		TotalQuestions: len(questions),
		Answers:        make([]model.AnswerDetail, 0, len(questions)),
	}

	for _, q := range questions {
		detail := model.AnswerDetail{
			QuestionID:    q.QuestionID,
			CorrectAnswer: q.CorrectAnswer,
		}

		userAnswer, ok := answers[q.QuestionID]
		if !ok || userAnswer == nil {
			detail.Status = model.AnswerStatusUnattempted
			report.Unattempted++
		} else if *userAnswer == q.CorrectAnswer {
			detail.UserAnswer = userAnswer
			detail.Status = model.AnswerStatusCorrect
			report.Correct++
			report.TotalMarks += MarksCorrect
		} else {
			detail.UserAnswer = userAnswer
			detail.Status = model.AnswerStatusIncorrect
			report.Incorrect++
			report.TotalMarks += MarksIncorrect
		}

		report.Answers = append(report.Answers, detail)
	}

	return report, nil
}
