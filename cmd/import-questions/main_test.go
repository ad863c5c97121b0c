package main

import (
	"encoding/json"
	"testing"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/google/uuid"
)

// Paper files omit "options" for integer questions. The questions column is
// NOT NULL, so the import must never hand a nil slice to the batch insert.
func TestBuildQuestionsCoalescesMissingOptions(t *testing.T) {
	raw := []byte(`{
		"year": "2024",
		"slot": "Apr 04 Shift 1",
		"questions": [
			{
				"question_id": 1,
				"type": "MULTIPLE_CHOICE",
				"question_text": "Pick B",
				"options": ["A", "B", "C", "D"],
				"correct_answer": 2,
				"subject": "Physics"
			},
			{
				"question_id": 2,
				"type": "INTEGER",
				"question_text": "Seven",
				"correct_answer": 7,
				"subject": "Mathematics"
			}
		]
	}`)

	var paper paperFile
	if err := json.Unmarshal(raw, &paper); err != nil {
		t.Fatalf("unmarshal paper: %v", err)
	}

	questions, err := buildQuestions(uuid.New(), paper.Questions)
	if err != nil {
		t.Fatalf("buildQuestions: %v", err)
	}
	if len(questions) != 2 {
		t.Fatalf("questions = %d, want 2", len(questions))
	}

	for _, q := range questions {
		if q.Options == nil {
			t.Errorf("question %d: options is nil, want empty slice", q.QuestionID)
		}
	}
	if questions[1].Type != model.QuestionTypeInteger {
		t.Errorf("type = %s, want INTEGER", questions[1].Type)
	}
	if len(questions[1].Options) != 0 {
		t.Errorf("integer question options = %v, want empty", questions[1].Options)
	}
}

func TestBuildQuestionsRejectsInvalidShape(t *testing.T) {
	rows := []fileQuestion{
		{QuestionID: 1, Type: "MULTIPLE_CHOICE", Options: []string{"A", "B"}, CorrectAnswer: 1},
	}
	if _, err := buildQuestions(uuid.New(), rows); err == nil {
		t.Error("two-option multiple-choice question passed validation")
	}
}

func TestBuildQuestionsValidatesType(t *testing.T) {
	rows := []fileQuestion{
		{QuestionID: 1, Type: "ESSAY", QuestionText: "?"},
	}
	if _, err := buildQuestions(uuid.New(), rows); err == nil {
		t.Error("unknown question type passed validation")
	}
}
