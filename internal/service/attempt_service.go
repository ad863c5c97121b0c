package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrAttemptNotFound  = errors.New("attempt not found")
	ErrNotAttemptOwner  = errors.New("attempt belongs to another user")
	ErrAlreadySubmitted = errors.New("attempt was already submitted")
	ErrTooManyQuestions = errors.New("requested more questions than the exam has")
)

// AttemptStore is the persistence surface the attempt service needs.
type AttemptStore interface {
	Create(ctx context.Context, a *model.Attempt) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error)
	GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error)
	GetMark(ctx context.Context, attemptID uuid.UUID, questionID int) (model.ReviewMark, error)
	SetMark(ctx context.Context, attemptID uuid.UUID, questionID int, kind model.ReviewMark) error
	ClearMark(ctx context.Context, attemptID uuid.UUID, questionID int) error
	Finalize(ctx context.Context, attemptID uuid.UUID, answers map[int]*int, marks map[int]model.ReviewMark) error
}

// AnswerCache is the Redis-backed working state of a running attempt.
type AnswerCache interface {
	CacheStartTime(ctx context.Context, attemptID string, startedAt time.Time) error
	StartTime(ctx context.Context, attemptID string) (int64, bool, error)
	BufferAnswer(ctx context.Context, attemptID string, questionID int, value *int) error
	BufferedAnswers(ctx context.Context, attemptID string) (map[string]string, error)
	ClearBuffer(ctx context.Context, attemptID string) error
	EnqueueGrade(ctx context.Context, attemptID uuid.UUID, userID int, examID uuid.UUID) error
}

// AttemptService owns the attempt lifecycle:
//
//	IN_PROGRESS → SUBMITTED → GRADED
//
// The IN_PROGRESS→SUBMITTED edge is taken exactly once per attempt; the
// compare-and-set in AttemptStore.Finalize decides the winner of racing
// submits, and the loser surfaces ErrAlreadySubmitted.
type AttemptService struct {
	attemptStore  AttemptStore
	examStore     ExamStore
	questionStore QuestionStore
	cache         AnswerCache
	log           zerolog.Logger
}

// NewAttemptService creates a new AttemptService.
func NewAttemptService(
	attemptStore AttemptStore,
	examStore ExamStore,
	questionStore QuestionStore,
	cache AnswerCache,
	log zerolog.Logger,
) *AttemptService {
	return &AttemptService{
		attemptStore:  attemptStore,
		examStore:     examStore,
		questionStore: questionStore,
		cache:         cache,
		log:           log.With().Str("component", "attempt_service").Logger(),
	}
}

// Start creates an attempt for (user, exam). Rejoining while IN_PROGRESS is
// idempotent and returns the existing attempt; a finished attempt cannot be
// restarted.
func (s *AttemptService) Start(ctx context.Context, userID int, req *model.StartAttemptRequest) (*model.Attempt, error) {
	slotKey := model.NormalizeSlot(req.Slot)
	if req.Year == "" || slotKey == "" {
		return nil, ErrExamNotFound
	}

	exam, err := s.examStore.GetBySlotKey(ctx, req.Year, slotKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}

	available, err := s.questionStore.CountByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	if available == 0 {
		return nil, ErrNoQuestions
	}
	if req.TotalQuestions > available {
		return nil, fmt.Errorf("%w: %d available", ErrTooManyQuestions, available)
	}

	attempt := &model.Attempt{
		UserID:         userID,
		ExamID:         exam.ID,
		Status:         model.AttemptStatusInProgress,
		TimeAllotted:   req.TimeAllotted,
		TotalQuestions: req.TotalQuestions,
	}

	if err := s.attemptStore.Create(ctx, attempt); err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("create attempt: %w", err)
		}
		// Conflict: the (user, exam) pair already has an attempt.
		existing, fetchErr := s.attemptStore.GetByUserAndExam(ctx, userID, exam.ID)
		if fetchErr != nil {
			return nil, fmt.Errorf("fetch existing attempt: %w", fetchErr)
		}
		if existing.Status != model.AttemptStatusInProgress {
			return nil, ErrAlreadySubmitted
		}
		// Rejoin: make sure the countdown survives a reconnect.
		if err := s.cache.CacheStartTime(ctx, existing.ID.String(), existing.StartedAt); err != nil {
			s.log.Warn().Err(err).Msg("Start time cache write failed")
		}
		return existing, nil
	}

	if err := s.cache.CacheStartTime(ctx, attempt.ID.String(), attempt.StartedAt); err != nil {
		s.log.Warn().Err(err).Msg("Start time cache write failed")
	}
	return attempt, nil
}

// SetAnswer upserts or clears one answer while the attempt is running. The
// value lands in the autosave buffer and is queued for persistence; the
// authoritative snapshot is frozen at submit time.
func (s *AttemptService) SetAnswer(ctx context.Context, userID int, attemptID uuid.UUID, questionID int, value *int) error {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return repository.ErrAttemptNotInProgress
	}

	return s.cache.BufferAnswer(ctx, attempt.ID.String(), questionID, value)
}

// ToggleReview flips the review mark on a question. The mark kind is derived
// from whether the question currently has an answer and is fixed at toggle
// time — later answer edits do not recompute it. Toggling an existing mark
// of the same kind clears it.
func (s *AttemptService) ToggleReview(ctx context.Context, userID int, attemptID uuid.UUID, questionID int) (model.ReviewMark, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return "", err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return "", repository.ErrAttemptNotInProgress
	}

	buffered, err := s.cache.BufferedAnswers(ctx, attempt.ID.String())
	if err != nil {
		return "", fmt.Errorf("read answer buffer: %w", err)
	}

	kind := model.ReviewedWithoutAnswer
	if buffered[strconv.Itoa(questionID)] != "" {
		kind = model.ReviewedWithAnswer
	}

	existing, err := s.attemptStore.GetMark(ctx, attempt.ID, questionID)
	switch {
	case err != nil && !errors.Is(err, pgx.ErrNoRows):
		return "", fmt.Errorf("get mark: %w", err)
	case err == nil && existing == kind:
		if err := s.attemptStore.ClearMark(ctx, attempt.ID, questionID); err != nil {
			return "", fmt.Errorf("clear mark: %w", err)
		}
		return "", nil
	default:
		if err := s.attemptStore.SetMark(ctx, attempt.ID, questionID, kind); err != nil {
			return "", fmt.Errorf("set mark: %w", err)
		}
		return kind, nil
	}
}

// Submit freezes the final answer snapshot and moves the attempt to
// SUBMITTED exactly once. A losing racer — double click, a second device,
// or the timeout path — gets ErrAlreadySubmitted and changes nothing.
func (s *AttemptService) Submit(ctx context.Context, userID int, attemptID uuid.UUID, req *model.SubmitAttemptRequest) (*model.Attempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	if err := s.attemptStore.Finalize(ctx, attempt.ID, req.Answers, req.MarkedQuestions); err != nil {
		if errors.Is(err, repository.ErrAttemptNotInProgress) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	s.afterFinalize(ctx, attempt)

	updated, err := s.attemptStore.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return updated, nil
}

// Timeout closes an attempt whose clock ran out, using the autosave buffer
// as the final snapshot. It races Submit on the same compare-and-set.
func (s *AttemptService) Timeout(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	buffered, err := s.cache.BufferedAnswers(ctx, attempt.ID.String())
	if err != nil {
		return nil, fmt.Errorf("read answer buffer: %w", err)
	}

	answers := make(map[int]*int, len(buffered))
	for field, raw := range buffered {
		qid, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		val, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		answers[qid] = &val
	}

	if err := s.attemptStore.Finalize(ctx, attempt.ID, answers, nil); err != nil {
		if errors.Is(err, repository.ErrAttemptNotInProgress) {
			return nil, ErrAlreadySubmitted
		}
		return nil, fmt.Errorf("finalize attempt: %w", err)
	}

	s.afterFinalize(ctx, attempt)

	updated, err := s.attemptStore.GetByID(ctx, attempt.ID)
	if err != nil {
		return nil, fmt.Errorf("reload attempt: %w", err)
	}
	return updated, nil
}

// State restores the client after a reload: buffered answers plus the
// remaining seconds computed from the cached start time, with a PostgreSQL
// fallback that self-heals the cache.
func (s *AttemptService) State(ctx context.Context, userID int, attemptID uuid.UUID) (*model.AttemptState, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}

	buffered, err := s.cache.BufferedAnswers(ctx, attempt.ID.String())
	if err != nil {
		return nil, fmt.Errorf("read answer buffer: %w", err)
	}

	startUnix, found, err := s.cache.StartTime(ctx, attempt.ID.String())
	if err != nil {
		return nil, fmt.Errorf("read start time: %w", err)
	}
	if !found {
		startUnix = attempt.StartedAt.Unix()
		if err := s.cache.CacheStartTime(ctx, attempt.ID.String(), attempt.StartedAt); err != nil {
			s.log.Warn().Err(err).Msg("Start time cache self-heal failed")
		}
	}

	endTime := time.Unix(startUnix, 0).Add(time.Duration(attempt.TimeAllotted) * time.Minute)
	remaining := time.Until(endTime)
	if remaining < 0 || attempt.Status != model.AttemptStatusInProgress {
		remaining = 0
	}

	return &model.AttemptState{
		AttemptID:        attempt.ID,
		Status:           attempt.Status,
		AutosavedAnswers: buffered,
		RemainingTime:    remaining.Seconds(),
	}, nil
}

// VerifyInProgress checks ownership and that the attempt is still running.
func (s *AttemptService) VerifyInProgress(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.ownedAttempt(ctx, userID, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return nil, repository.ErrAttemptNotInProgress
	}
	return attempt, nil
}

// afterFinalize runs the post-submit cleanup: drop the autosave buffer and
// queue the attempt for grading. Both are best-effort — the grade queue has
// a synchronous fallback on report fetch.
func (s *AttemptService) afterFinalize(ctx context.Context, attempt *model.Attempt) {
	if err := s.cache.ClearBuffer(ctx, attempt.ID.String()); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Buffer cleanup failed")
	}
	if err := s.cache.EnqueueGrade(ctx, attempt.ID, attempt.UserID, attempt.ExamID); err != nil {
		s.log.Warn().Err(err).Str("attempt_id", attempt.ID.String()).Msg("Grade enqueue failed")
	}
}

func (s *AttemptService) ownedAttempt(ctx context.Context, userID int, attemptID uuid.UUID) (*model.Attempt, error) {
	attempt, err := s.attemptStore.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAttemptNotFound
		}
		return nil, fmt.Errorf("get attempt: %w", err)
	}
	if attempt.UserID != userID {
		return nil, ErrNotAttemptOwner
	}
	return attempt, nil
}
