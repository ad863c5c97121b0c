package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/scoring"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrResultNotFound is returned when no report exists and none can be
// materialized (no attempt, or the attempt is still running).
var ErrResultNotFound = errors.New("no result for this exam")

// ResultStore is the report persistence surface: an idempotent upsert keyed
// by (user, exam) plus a point lookup.
type ResultStore interface {
	Upsert(ctx context.Context, res *model.Result) error
	Get(ctx context.Context, userID int, examID uuid.UUID) (*model.Result, error)
}

// GradedAttemptStore is the slice of attempt persistence grading needs.
type GradedAttemptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error)
	Answers(ctx context.Context, attemptID uuid.UUID) (map[int]*int, error)
	MarkGraded(ctx context.Context, attemptID uuid.UUID) error
}

// ResultService materializes score reports. Grading is deterministic, so the
// worker path and the synchronous fallback write byte-identical reports and
// the upsert makes repeats harmless.
type ResultService struct {
	resultStore   ResultStore
	attemptStore  GradedAttemptStore
	examStore     ExamStore
	questionStore QuestionStore
	log           zerolog.Logger
}

// NewResultService creates a new ResultService.
func NewResultService(
	resultStore ResultStore,
	attemptStore GradedAttemptStore,
	examStore ExamStore,
	questionStore QuestionStore,
	log zerolog.Logger,
) *ResultService {
	return &ResultService{
		resultStore:   resultStore,
		attemptStore:  attemptStore,
		examStore:     examStore,
		questionStore: questionStore,
		log:           log.With().Str("component", "result_service").Logger(),
	}
}

// Materialize grades a submitted attempt and upserts its report. Calling it
// again for the same attempt rewrites the same report.
func (s *ResultService) Materialize(ctx context.Context, attemptID uuid.UUID) (*model.Result, error) {
	attempt, err := s.attemptStore.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status == model.AttemptStatusInProgress {
		return nil, ErrResultNotFound
	}

	questions, err := s.questionStore.ListByExam(ctx, attempt.ExamID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	answers, err := s.attemptStore.Answers(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("load answers: %w", err)
	}

	report, err := scoring.Score(questions, answers)
	if err != nil {
		return nil, fmt.Errorf("score attempt: %w", err)
	}

	result := &model.Result{
		UserID: attempt.UserID,
		ExamID: attempt.ExamID,
		Report: *report,
	}
	if err := s.resultStore.Upsert(ctx, result); err != nil {
		return nil, fmt.Errorf("upsert result: %w", err)
	}

	if err := s.attemptStore.MarkGraded(ctx, attempt.ID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Mark graded failed")
	}

	return result, nil
}

// Get returns the report for (user, year, slot). If the worker has not
// materialized it yet but the attempt is already submitted, it grades
// synchronously — the caller never observes a gap between submit and report.
func (s *ResultService) Get(ctx context.Context, userID int, year, slot string) (*model.Result, error) {
	slotKey := model.NormalizeSlot(slot)
	exam, err := s.examStore.GetBySlotKey(ctx, year, slotKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}

	result, err := s.resultStore.Get(ctx, userID, exam.ID)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get result: %w", err)
	}

	// No materialized report yet; grade on demand if the attempt is done.
	attempt, err := s.attemptStore.GetByUserAndExam(ctx, userID, exam.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrResultNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.Status == model.AttemptStatusInProgress {
		return nil, ErrResultNotFound
	}

	return s.Materialize(ctx, attempt.ID)
}
