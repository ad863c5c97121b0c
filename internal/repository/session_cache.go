package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// AnswerJob is one autosaved answer waiting to be persisted to PostgreSQL.
type AnswerJob struct {
	AttemptID  string `json:"attempt_id"`
	QuestionID int    `json:"question_id"`
	// Answer is the raw value as a string; empty string clears the row.
	Answer string `json:"answer"`
}

// GradeJob is one submitted attempt waiting to be graded and materialized.
type GradeJob struct {
	AttemptID string `json:"attempt_id"`
	UserID    int    `json:"user_id"`
	ExamID    string `json:"exam_id"`
}

// SessionCache is the Redis-backed working state of running attempts: the
// autosave buffer, the cached start time, and the persist/grade queues.
// It holds a private injected client — no process-wide registry.
type SessionCache struct {
	rdb *redis.Client
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(rdb *redis.Client) *SessionCache {
	return &SessionCache{rdb: rdb}
}

// CacheStartTime stores the attempt's start timestamp for fast countdown math.
func (c *SessionCache) CacheStartTime(ctx context.Context, attemptID string, startedAt time.Time) error {
	return c.rdb.Set(ctx, config.CacheKey.AttemptStartKey(attemptID), startedAt.Unix(), 0).Err()
}

// StartTime returns the cached start timestamp. found is false on a cache
// miss; callers fall back to PostgreSQL and self-heal the cache.
func (c *SessionCache) StartTime(ctx context.Context, attemptID string) (int64, bool, error) {
	val, err := c.rdb.Get(ctx, config.CacheKey.AttemptStartKey(attemptID)).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	unix, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, err
	}
	return unix, true, nil
}

// BufferAnswer writes one answer into the attempt's autosave hash and queues
// it for persistence. A nil value removes the entry and queues a clear.
func (c *SessionCache) BufferAnswer(ctx context.Context, attemptID string, questionID int, value *int) error {
	key := config.CacheKey.AttemptAnswersKey(attemptID)
	field := strconv.Itoa(questionID)

	job := AnswerJob{AttemptID: attemptID, QuestionID: questionID}
	if value == nil {
		if err := c.rdb.HDel(ctx, key, field).Err(); err != nil {
			return err
		}
	} else {
		job.Answer = strconv.Itoa(*value)
		if err := c.rdb.HSet(ctx, key, field, job.Answer).Err(); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, config.WorkerKey.PersistAnswersQueue, payload).Err()
}

// BufferedAnswers returns the attempt's autosave hash (question_id → answer).
func (c *SessionCache) BufferedAnswers(ctx context.Context, attemptID string) (map[string]string, error) {
	return c.rdb.HGetAll(ctx, config.CacheKey.AttemptAnswersKey(attemptID)).Result()
}

// ClearBuffer drops the autosave hash and the cached start time once the
// attempt leaves IN_PROGRESS.
func (c *SessionCache) ClearBuffer(ctx context.Context, attemptID string) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, config.CacheKey.AttemptAnswersKey(attemptID))
	pipe.Del(ctx, config.CacheKey.AttemptStartKey(attemptID))
	_, err := pipe.Exec(ctx)
	return err
}

// EnqueueGrade pushes a submitted attempt onto the grading queue.
func (c *SessionCache) EnqueueGrade(ctx context.Context, attemptID uuid.UUID, userID int, examID uuid.UUID) error {
	payload, err := json.Marshal(GradeJob{
		AttemptID: attemptID.String(),
		UserID:    userID,
		ExamID:    examID.String(),
	})
	if err != nil {
		return err
	}
	return c.rdb.RPush(ctx, config.WorkerKey.GradeAttemptsQueue, payload).Err()
}
