package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// In-memory fakes for the store and cache interfaces. They mirror the
// sentinel behavior of the real repositories: pgx.ErrNoRows on misses and
// conflicts, ErrAttemptNotInProgress from the finalize compare-and-set.

func intPtr(v int) *int { return &v }

type fakeExamStore struct {
	exams map[string]*model.Exam // key "year|slot_key"
}

func newFakeExamStore() *fakeExamStore {
	return &fakeExamStore{exams: make(map[string]*model.Exam)}
}

func (s *fakeExamStore) add(year, slot string) *model.Exam {
	e := &model.Exam{
		ID:      uuid.New(),
		Year:    year,
		Slot:    slot,
		SlotKey: model.NormalizeSlot(slot),
	}
	s.exams[year+"|"+e.SlotKey] = e
	return e
}

func (s *fakeExamStore) GetBySlotKey(_ context.Context, year, slotKey string) (*model.Exam, error) {
	e, ok := s.exams[year+"|"+slotKey]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return e, nil
}

func (s *fakeExamStore) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	for _, e := range s.exams {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (s *fakeExamStore) List(_ context.Context) ([]model.Exam, error) {
	var out []model.Exam
	for _, e := range s.exams {
		out = append(out, *e)
	}
	return out, nil
}

type fakeQuestionStore struct {
	questions map[uuid.UUID][]model.Question
}

func newFakeQuestionStore() *fakeQuestionStore {
	return &fakeQuestionStore{questions: make(map[uuid.UUID][]model.Question)}
}

func (s *fakeQuestionStore) ListByExam(_ context.Context, examID uuid.UUID) ([]model.Question, error) {
	return s.questions[examID], nil
}

func (s *fakeQuestionStore) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	return len(s.questions[examID]), nil
}

type fakeAttemptStore struct {
	attempts map[uuid.UUID]*model.Attempt
	byPair   map[string]uuid.UUID
	answers  map[uuid.UUID]map[int]*int
	marks    map[uuid.UUID]map[int]model.ReviewMark
}

func newFakeAttemptStore() *fakeAttemptStore {
	return &fakeAttemptStore{
		attempts: make(map[uuid.UUID]*model.Attempt),
		byPair:   make(map[string]uuid.UUID),
		answers:  make(map[uuid.UUID]map[int]*int),
		marks:    make(map[uuid.UUID]map[int]model.ReviewMark),
	}
}

func pairKey(userID int, examID uuid.UUID) string {
	return fmt.Sprintf("%d|%s", userID, examID)
}

func (s *fakeAttemptStore) Create(_ context.Context, a *model.Attempt) error {
	key := pairKey(a.UserID, a.ExamID)
	if _, exists := s.byPair[key]; exists {
		return pgx.ErrNoRows
	}
	a.ID = uuid.New()
	a.StartedAt = time.Now()
	copied := *a
	s.attempts[a.ID] = &copied
	s.byPair[key] = a.ID
	return nil
}

func (s *fakeAttemptStore) GetByID(_ context.Context, id uuid.UUID) (*model.Attempt, error) {
	a, ok := s.attempts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (s *fakeAttemptStore) GetByUserAndExam(_ context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	id, ok := s.byPair[pairKey(userID, examID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *s.attempts[id]
	return &copied, nil
}

func (s *fakeAttemptStore) GetMark(_ context.Context, attemptID uuid.UUID, questionID int) (model.ReviewMark, error) {
	kind, ok := s.marks[attemptID][questionID]
	if !ok {
		return "", pgx.ErrNoRows
	}
	return kind, nil
}

func (s *fakeAttemptStore) SetMark(_ context.Context, attemptID uuid.UUID, questionID int, kind model.ReviewMark) error {
	if s.marks[attemptID] == nil {
		s.marks[attemptID] = make(map[int]model.ReviewMark)
	}
	s.marks[attemptID][questionID] = kind
	return nil
}

func (s *fakeAttemptStore) ClearMark(_ context.Context, attemptID uuid.UUID, questionID int) error {
	delete(s.marks[attemptID], questionID)
	return nil
}

func (s *fakeAttemptStore) Finalize(_ context.Context, attemptID uuid.UUID, answers map[int]*int, marks map[int]model.ReviewMark) error {
	a, ok := s.attempts[attemptID]
	if !ok {
		return pgx.ErrNoRows
	}
	if a.Status != model.AttemptStatusInProgress {
		return repository.ErrAttemptNotInProgress
	}
	now := time.Now()
	a.Status = model.AttemptStatusSubmitted
	a.EndedAt = &now

	snapshot := make(map[int]*int)
	for qid, val := range answers {
		if val == nil {
			continue
		}
		v := *val
		snapshot[qid] = &v
	}
	s.answers[attemptID] = snapshot

	if marks != nil {
		replaced := make(map[int]model.ReviewMark, len(marks))
		for qid, kind := range marks {
			replaced[qid] = kind
		}
		s.marks[attemptID] = replaced
	}
	return nil
}

func (s *fakeAttemptStore) Answers(_ context.Context, attemptID uuid.UUID) (map[int]*int, error) {
	out := make(map[int]*int)
	for qid, val := range s.answers[attemptID] {
		v := *val
		out[qid] = &v
	}
	return out, nil
}

func (s *fakeAttemptStore) MarkGraded(_ context.Context, attemptID uuid.UUID) error {
	a, ok := s.attempts[attemptID]
	if !ok {
		return nil
	}
	if a.Status == model.AttemptStatusSubmitted {
		a.Status = model.AttemptStatusGraded
	}
	return nil
}

type fakeAnswerCache struct {
	starts    map[string]int64
	buffers   map[string]map[string]string
	gradeJobs []uuid.UUID
}

func newFakeAnswerCache() *fakeAnswerCache {
	return &fakeAnswerCache{
		starts:  make(map[string]int64),
		buffers: make(map[string]map[string]string),
	}
}

func (c *fakeAnswerCache) CacheStartTime(_ context.Context, attemptID string, startedAt time.Time) error {
	c.starts[attemptID] = startedAt.Unix()
	return nil
}

func (c *fakeAnswerCache) StartTime(_ context.Context, attemptID string) (int64, bool, error) {
	unix, ok := c.starts[attemptID]
	return unix, ok, nil
}

func (c *fakeAnswerCache) BufferAnswer(_ context.Context, attemptID string, questionID int, value *int) error {
	if c.buffers[attemptID] == nil {
		c.buffers[attemptID] = make(map[string]string)
	}
	field := strconv.Itoa(questionID)
	if value == nil {
		delete(c.buffers[attemptID], field)
		return nil
	}
	c.buffers[attemptID][field] = strconv.Itoa(*value)
	return nil
}

func (c *fakeAnswerCache) BufferedAnswers(_ context.Context, attemptID string) (map[string]string, error) {
	out := make(map[string]string)
	for k, v := range c.buffers[attemptID] {
		out[k] = v
	}
	return out, nil
}

func (c *fakeAnswerCache) ClearBuffer(_ context.Context, attemptID string) error {
	delete(c.buffers, attemptID)
	delete(c.starts, attemptID)
	return nil
}

func (c *fakeAnswerCache) EnqueueGrade(_ context.Context, attemptID uuid.UUID, _ int, _ uuid.UUID) error {
	c.gradeJobs = append(c.gradeJobs, attemptID)
	return nil
}

type fakeResultStore struct {
	results map[string]*model.Result
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{results: make(map[string]*model.Result)}
}

func (s *fakeResultStore) Upsert(_ context.Context, res *model.Result) error {
	copied := *res
	s.results[pairKey(res.UserID, res.ExamID)] = &copied
	return nil
}

func (s *fakeResultStore) Get(_ context.Context, userID int, examID uuid.UUID) (*model.Result, error) {
	res, ok := s.results[pairKey(userID, examID)]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *res
	return &copied, nil
}
