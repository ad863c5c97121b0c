package service

import (
	"context"
	"errors"
	"testing"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/rs/zerolog"
)

type attemptFixture struct {
	svc          *AttemptService
	exam         *model.Exam
	attemptStore *fakeAttemptStore
	cache        *fakeAnswerCache
}

// newAttemptFixture builds an attempt service over a 3-question paper.
func newAttemptFixture(t *testing.T) *attemptFixture {
	t.Helper()

	examStore := newFakeExamStore()
	exam := examStore.add("2024", "Apr 04 Shift 1")

	questionStore := newFakeQuestionStore()
	questionStore.questions[exam.ID] = []model.Question{
		{QuestionID: 1, Type: model.QuestionTypeMultipleChoice, Options: []string{"A", "B", "C", "D"}, CorrectAnswer: 2},
		{QuestionID: 2, Type: model.QuestionTypeInteger, CorrectAnswer: 7},
		{QuestionID: 3, Type: model.QuestionTypeMultipleChoice, Options: []string{"A", "B", "C", "D"}, CorrectAnswer: 1},
	}

	attemptStore := newFakeAttemptStore()
	cache := newFakeAnswerCache()

	return &attemptFixture{
		svc:          NewAttemptService(attemptStore, examStore, questionStore, cache, zerolog.Nop()),
		exam:         exam,
		attemptStore: attemptStore,
		cache:        cache,
	}
}

func startReq() *model.StartAttemptRequest {
	return &model.StartAttemptRequest{
		Year:           "2024",
		Slot:           "Apr_04 Shift  1", // messy spelling resolves the same exam
		TotalQuestions: 3,
		TimeAllotted:   60,
	}
}

func TestStartCreatesAttempt(t *testing.T) {
	f := newAttemptFixture(t)

	attempt, err := f.svc.Start(context.Background(), 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if attempt.Status != model.AttemptStatusInProgress {
		t.Errorf("status = %s, want IN_PROGRESS", attempt.Status)
	}
	if _, ok := f.cache.starts[attempt.ID.String()]; !ok {
		t.Error("start time was not cached")
	}
}

func TestStartUnknownExam(t *testing.T) {
	f := newAttemptFixture(t)

	req := startReq()
	req.Slot = "Apr 05 Shift 2"
	if _, err := f.svc.Start(context.Background(), 1, req); !errors.Is(err, ErrExamNotFound) {
		t.Errorf("err = %v, want ErrExamNotFound", err)
	}
}

func TestStartTooManyQuestions(t *testing.T) {
	f := newAttemptFixture(t)

	req := startReq()
	req.TotalQuestions = 10
	if _, err := f.svc.Start(context.Background(), 1, req); !errors.Is(err, ErrTooManyQuestions) {
		t.Errorf("err = %v, want ErrTooManyQuestions", err)
	}
}

func TestStartRejoinsRunningAttempt(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	first, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	second, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("rejoin created a new attempt: %s != %s", first.ID, second.ID)
	}
}

func TestStartAfterSubmitRejected(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, &model.SubmitAttemptRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if _, err := f.svc.Start(ctx, 1, startReq()); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("err = %v, want ErrAlreadySubmitted", err)
	}
}

func TestDoubleSubmitLoserChangesNothing(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	firstSnapshot := &model.SubmitAttemptRequest{
		Answers: map[int]*int{1: intPtr(2), 2: intPtr(7)},
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, firstSnapshot); err != nil {
		t.Fatalf("first Submit: %v", err)
	}

	secondSnapshot := &model.SubmitAttemptRequest{
		Answers: map[int]*int{1: intPtr(4)},
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, secondSnapshot); !errors.Is(err, ErrAlreadySubmitted) {
		t.Fatalf("second Submit err = %v, want ErrAlreadySubmitted", err)
	}

	stored, _ := f.attemptStore.Answers(ctx, attempt.ID)
	if len(stored) != 2 || stored[1] == nil || *stored[1] != 2 {
		t.Errorf("losing submit altered the stored snapshot: %v", stored)
	}
}

func TestSubmitDropsNilAnswersFromSnapshot(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	req := &model.SubmitAttemptRequest{
		Answers: map[int]*int{1: intPtr(2), 2: nil},
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, req); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	stored, _ := f.attemptStore.Answers(ctx, attempt.ID)
	if len(stored) != 1 {
		t.Errorf("nil answer was persisted: %v", stored)
	}
}

func TestSubmitClearsBufferAndQueuesGrading(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.SetAnswer(ctx, 1, attempt.ID, 1, intPtr(2)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	if _, err := f.svc.Submit(ctx, 1, attempt.ID, &model.SubmitAttemptRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if len(f.cache.buffers[attempt.ID.String()]) != 0 {
		t.Error("autosave buffer survived submit")
	}
	if len(f.cache.gradeJobs) != 1 || f.cache.gradeJobs[0] != attempt.ID {
		t.Errorf("grade jobs = %v, want one for %s", f.cache.gradeJobs, attempt.ID)
	}
}

func TestSetAnswerRejectedAfterSubmit(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, &model.SubmitAttemptRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	err = f.svc.SetAnswer(ctx, 1, attempt.ID, 1, intPtr(3))
	if !errors.Is(err, repository.ErrAttemptNotInProgress) {
		t.Errorf("err = %v, want ErrAttemptNotInProgress", err)
	}
}

func TestSetAnswerOwnershipEnforced(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := f.svc.SetAnswer(ctx, 2, attempt.ID, 1, intPtr(3)); !errors.Is(err, ErrNotAttemptOwner) {
		t.Errorf("err = %v, want ErrNotAttemptOwner", err)
	}
}

func TestToggleReviewKindFixedAtToggleTime(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Answered question marks as reviewed-with-answer.
	if err := f.svc.SetAnswer(ctx, 1, attempt.ID, 1, intPtr(2)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	mark, err := f.svc.ToggleReview(ctx, 1, attempt.ID, 1)
	if err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}
	if mark != model.ReviewedWithAnswer {
		t.Errorf("mark = %s, want REVIEWED_WITH_ANSWER", mark)
	}

	// Clearing the answer afterwards does not recompute the stored kind.
	if err := f.svc.SetAnswer(ctx, 1, attempt.ID, 1, nil); err != nil {
		t.Fatalf("SetAnswer clear: %v", err)
	}
	if got, _ := f.attemptStore.GetMark(ctx, attempt.ID, 1); got != model.ReviewedWithAnswer {
		t.Errorf("stored mark = %s, want REVIEWED_WITH_ANSWER", got)
	}

	// Toggling now derives the other kind, which replaces the old mark.
	mark, err = f.svc.ToggleReview(ctx, 1, attempt.ID, 1)
	if err != nil {
		t.Fatalf("second ToggleReview: %v", err)
	}
	if mark != model.ReviewedWithoutAnswer {
		t.Errorf("mark = %s, want REVIEWED_WITHOUT_ANSWER", mark)
	}

	// Same-kind toggle clears the mark.
	mark, err = f.svc.ToggleReview(ctx, 1, attempt.ID, 1)
	if err != nil {
		t.Fatalf("third ToggleReview: %v", err)
	}
	if mark != "" {
		t.Errorf("mark = %s, want cleared", mark)
	}
	if _, err := f.attemptStore.GetMark(ctx, attempt.ID, 1); err == nil {
		t.Error("mark survived a same-kind toggle")
	}
}

func TestTimeoutFreezesBufferedAnswers(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := f.svc.SetAnswer(ctx, 1, attempt.ID, 1, intPtr(2)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}
	if err := f.svc.SetAnswer(ctx, 1, attempt.ID, 3, intPtr(4)); err != nil {
		t.Fatalf("SetAnswer: %v", err)
	}

	closed, err := f.svc.Timeout(ctx, 1, attempt.ID)
	if err != nil {
		t.Fatalf("Timeout: %v", err)
	}
	if closed.Status != model.AttemptStatusSubmitted {
		t.Errorf("status = %s, want SUBMITTED", closed.Status)
	}

	stored, _ := f.attemptStore.Answers(ctx, attempt.ID)
	if len(stored) != 2 || stored[1] == nil || *stored[1] != 2 || stored[3] == nil || *stored[3] != 4 {
		t.Errorf("stored snapshot = %v, want buffered answers", stored)
	}
}

func TestTimeoutPreservesToggledMarks(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.ToggleReview(ctx, 1, attempt.ID, 2); err != nil {
		t.Fatalf("ToggleReview: %v", err)
	}

	if _, err := f.svc.Timeout(ctx, 1, attempt.ID); err != nil {
		t.Fatalf("Timeout: %v", err)
	}

	if got, err := f.attemptStore.GetMark(ctx, attempt.ID, 2); err != nil || got != model.ReviewedWithoutAnswer {
		t.Errorf("mark after timeout = %s (%v), want REVIEWED_WITHOUT_ANSWER", got, err)
	}
}

func TestStateSelfHealsStartTime(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Simulate a Redis flush between start and reload.
	delete(f.cache.starts, attempt.ID.String())

	state, err := f.svc.State(ctx, 1, attempt.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.RemainingTime <= 0 {
		t.Errorf("remaining = %f, want positive", state.RemainingTime)
	}
	if _, ok := f.cache.starts[attempt.ID.String()]; !ok {
		t.Error("start time cache was not self-healed")
	}
}

func TestStateRemainingClampedAfterSubmit(t *testing.T) {
	f := newAttemptFixture(t)
	ctx := context.Background()

	attempt, err := f.svc.Start(ctx, 1, startReq())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := f.svc.Submit(ctx, 1, attempt.ID, &model.SubmitAttemptRequest{}); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	state, err := f.svc.State(ctx, 1, attempt.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if state.RemainingTime != 0 {
		t.Errorf("remaining = %f, want 0", state.RemainingTime)
	}
}
