package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Domain errors.
var (
	ErrExamNotFound = errors.New("exam not found")
	ErrNoQuestions  = errors.New("exam has no questions")
)

// paperTTL bounds how long a cached paper payload lives. Papers are
// immutable, so the TTL only limits Redis memory, not staleness.
const paperTTL = 12 * time.Hour

// ExamStore is the persistence surface the exam service needs.
type ExamStore interface {
	GetBySlotKey(ctx context.Context, year, slotKey string) (*model.Exam, error)
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	List(ctx context.Context) ([]model.Exam, error)
}

// QuestionStore is the question persistence surface.
type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
}

// ExamService resolves exams by (year, slot) and serves question papers.
type ExamService struct {
	examStore     ExamStore
	questionStore QuestionStore
	rdb           *redis.Client
	log           zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(examStore ExamStore, questionStore QuestionStore, rdb *redis.Client, log zerolog.Logger) *ExamService {
	return &ExamService{
		examStore:     examStore,
		questionStore: questionStore,
		rdb:           rdb,
		log:           log.With().Str("component", "exam_service").Logger(),
	}
}

// Resolve looks up the exam for a (year, slot) pair. The slot is normalized
// with the same rule applied at import time, so "Apr 04 Shift 1" and
// "Apr_04_Shift_1" hit the same row. Fails with ErrExamNotFound — it never
// falls back to creating a placeholder exam.
func (s *ExamService) Resolve(ctx context.Context, year, slot string) (*model.Exam, error) {
	slotKey := model.NormalizeSlot(slot)
	if year == "" || slotKey == "" {
		return nil, ErrExamNotFound
	}

	exam, err := s.examStore.GetBySlotKey(ctx, year, slotKey)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("resolve exam: %w", err)
	}
	return exam, nil
}

// Questions returns the full question list (with answer key) in paper order.
func (s *ExamService) Questions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	questions, err := s.questionStore.ListByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	return questions, nil
}

// CountQuestions returns how many questions an exam carries.
func (s *ExamService) CountQuestions(ctx context.Context, examID uuid.UUID) (int, error) {
	return s.questionStore.CountByExam(ctx, examID)
}

// GetPaper returns the exam's question paper with correct answers stripped.
// The serialized payload is cached in Redis so paper fetches during an exam
// window bypass PostgreSQL.
func (s *ExamService) GetPaper(ctx context.Context, year, slot string) (*model.ExamPaper, error) {
	exam, err := s.Resolve(ctx, year, slot)
	if err != nil {
		return nil, err
	}

	cacheKey := config.CacheKey.ExamPaperKey(exam.ID.String())
	if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil {
		paper := &model.ExamPaper{}
		if err := json.Unmarshal([]byte(cached), paper); err == nil {
			return paper, nil
		}
		// Corrupt cache entry: fall through and rebuild.
		s.log.Warn().Str("exam_id", exam.ID.String()).Msg("Dropping corrupt paper cache entry")
		s.rdb.Del(ctx, cacheKey)
	}

	questions, err := s.Questions(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	paper := &model.ExamPaper{
		ExamID:    exam.ID,
		Year:      exam.Year,
		Slot:      exam.Slot,
		Questions: make([]model.PaperQuestion, 0, len(questions)),
	}
	for _, q := range questions {
		paper.Questions = append(paper.Questions, model.PaperQuestion{
			QuestionID:   q.QuestionID,
			Type:         q.Type,
			QuestionText: q.QuestionText,
			Options:      q.Options,
			Subject:      q.Subject,
			Image:        q.Image,
		})
	}

	if payload, err := json.Marshal(paper); err == nil {
		if err := s.rdb.Set(ctx, cacheKey, payload, paperTTL).Err(); err != nil {
			s.log.Warn().Err(err).Msg("Paper cache write failed")
		}
	}

	return paper, nil
}

// List returns all available exams for the dashboard.
func (s *ExamService) List(ctx context.Context) ([]model.Exam, error) {
	return s.examStore.List(ctx)
}
