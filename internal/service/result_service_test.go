package service

import (
	"context"
	"errors"
	"testing"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/rs/zerolog"
)

type resultFixture struct {
	svc          *ResultService
	attempts     *AttemptService
	exam         *model.Exam
	attemptStore *fakeAttemptStore
	resultStore  *fakeResultStore
}

func newResultFixture(t *testing.T) *resultFixture {
	t.Helper()

	examStore := newFakeExamStore()
	exam := examStore.add("2024", "Apr 04 Shift 1")

	questionStore := newFakeQuestionStore()
	questionStore.questions[exam.ID] = []model.Question{
		{QuestionID: 1, Type: model.QuestionTypeMultipleChoice, Options: []string{"A", "B", "C", "D"}, CorrectAnswer: 2},
		{QuestionID: 2, Type: model.QuestionTypeInteger, CorrectAnswer: 7},
	}

	attemptStore := newFakeAttemptStore()
	resultStore := newFakeResultStore()
	cache := newFakeAnswerCache()

	return &resultFixture{
		svc:          NewResultService(resultStore, attemptStore, examStore, questionStore, zerolog.Nop()),
		attempts:     NewAttemptService(attemptStore, examStore, questionStore, cache, zerolog.Nop()),
		exam:         exam,
		attemptStore: attemptStore,
		resultStore:  resultStore,
	}
}

func (f *resultFixture) submitAttempt(t *testing.T, userID int, answers map[int]*int) *model.Attempt {
	t.Helper()
	ctx := context.Background()

	attempt, err := f.attempts.Start(ctx, userID, &model.StartAttemptRequest{
		Year:           "2024",
		Slot:           "Apr 04 Shift 1",
		TotalQuestions: 2,
		TimeAllotted:   60,
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	submitted, err := f.attempts.Submit(ctx, userID, attempt.ID, &model.SubmitAttemptRequest{Answers: answers})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	return submitted
}

func TestGetGradesOnDemand(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	attempt := f.submitAttempt(t, 1, map[int]*int{1: intPtr(2), 2: intPtr(9)})

	// No worker ran; the fetch itself must materialize the report.
	result, err := f.svc.Get(ctx, 1, "2024", "Apr_04_Shift_1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Report.Correct != 1 || result.Report.Incorrect != 1 || result.Report.TotalMarks != 3 {
		t.Errorf("report = %+v, want correct=1 incorrect=1 marks=3", result.Report)
	}

	if stored, err := f.resultStore.Get(ctx, 1, f.exam.ID); err != nil || stored == nil {
		t.Error("on-demand report was not persisted")
	}
	if got, _ := f.attemptStore.GetByID(ctx, attempt.ID); got.Status != model.AttemptStatusGraded {
		t.Errorf("attempt status = %s, want GRADED", got.Status)
	}
}

func TestGetReturnsStoredReport(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	attempt := f.submitAttempt(t, 1, map[int]*int{1: intPtr(2), 2: intPtr(7)})
	if _, err := f.svc.Materialize(ctx, attempt.ID); err != nil {
		t.Fatalf("Materialize: %v", err)
	}

	result, err := f.svc.Get(ctx, 1, "2024", "Apr 04 Shift 1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if result.Report.TotalMarks != 8 {
		t.Errorf("total_marks = %d, want 8", result.Report.TotalMarks)
	}
}

func TestMaterializeIsIdempotent(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	attempt := f.submitAttempt(t, 1, map[int]*int{1: intPtr(2)})

	first, err := f.svc.Materialize(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("first Materialize: %v", err)
	}
	second, err := f.svc.Materialize(ctx, attempt.ID)
	if err != nil {
		t.Fatalf("second Materialize: %v", err)
	}

	if first.Report.TotalMarks != second.Report.TotalMarks ||
		first.Report.Correct != second.Report.Correct ||
		first.Report.Unattempted != second.Report.Unattempted {
		t.Errorf("repeat grading diverged: %+v vs %+v", first.Report, second.Report)
	}
}

func TestGetRunningAttemptHasNoReport(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	if _, err := f.attempts.Start(ctx, 1, &model.StartAttemptRequest{
		Year:           "2024",
		Slot:           "Apr 04 Shift 1",
		TotalQuestions: 2,
		TimeAllotted:   60,
	}); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := f.svc.Get(ctx, 1, "2024", "Apr 04 Shift 1"); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("err = %v, want ErrResultNotFound", err)
	}
}

func TestGetWithoutAttempt(t *testing.T) {
	f := newResultFixture(t)

	if _, err := f.svc.Get(context.Background(), 1, "2024", "Apr 04 Shift 1"); !errors.Is(err, ErrResultNotFound) {
		t.Errorf("err = %v, want ErrResultNotFound", err)
	}
}

func TestGetUnknownExam(t *testing.T) {
	f := newResultFixture(t)

	if _, err := f.svc.Get(context.Background(), 1, "2023", "Jan 01 Shift 1"); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("err = %v, want ErrExamNotFound", err)
	}
}

func TestGetReportRowOrderFollowsPaper(t *testing.T) {
	f := newResultFixture(t)
	ctx := context.Background()

	f.submitAttempt(t, 1, map[int]*int{2: intPtr(7)})

	result, err := f.svc.Get(ctx, 1, "2024", "Apr 04 Shift 1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(result.Report.Answers) != 2 {
		t.Fatalf("answers rows = %d, want 2", len(result.Report.Answers))
	}
	if result.Report.Answers[0].QuestionID != 1 || result.Report.Answers[1].QuestionID != 2 {
		t.Errorf("rows out of paper order: %+v", result.Report.Answers)
	}
	if result.Report.Answers[0].Status != model.AnswerStatusUnattempted {
		t.Errorf("row 0 status = %s, want unattempted", result.Report.Answers[0].Status)
	}
	if result.Report.Answers[1].Status != model.AnswerStatusCorrect {
		t.Errorf("row 1 status = %s, want correct", result.Report.Answers[1].Status)
	}
}
