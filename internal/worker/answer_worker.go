package worker

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// blockTimeout bounds each queue poll so shutdown is responsive.
const blockTimeout = 5 * time.Second

// AnswerWorker drains the autosave queue and persists answers to PostgreSQL.
// The Redis hash is the hot copy; these rows are the durable one, so a crash
// between the two loses at most the queue backlog, never the submitted
// snapshot (Finalize rewrites it wholesale).
type AnswerWorker struct {
	rdb         *redis.Client
	attemptRepo *repository.AttemptRepository
	log         zerolog.Logger
}

// NewAnswerWorker creates a new AnswerWorker.
func NewAnswerWorker(rdb *redis.Client, attemptRepo *repository.AttemptRepository, log zerolog.Logger) *AnswerWorker {
	return &AnswerWorker{
		rdb:         rdb,
		attemptRepo: attemptRepo,
		log:         log.With().Str("component", "answer_worker").Logger(),
	}
}

// Run consumes jobs until the context is cancelled.
func (w *AnswerWorker) Run(ctx context.Context) {
	w.log.Info().Msg("Answer worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Answer worker stopped")
			return
		default:
		}

		res, err := w.rdb.BLPop(ctx, blockTimeout, config.WorkerKey.PersistAnswersQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.log.Error().Err(err).Msg("Queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		// res[0] is the queue name, res[1] the payload.
		if len(res) < 2 {
			continue
		}
		w.handle(ctx, []byte(res[1]))
	}
}

func (w *AnswerWorker) handle(ctx context.Context, payload []byte) {
	var job repository.AnswerJob
	if err := json.Unmarshal(payload, &job); err != nil {
		w.log.Warn().Err(err).Msg("Dropping malformed answer job")
		return
	}

	attemptID, err := uuid.Parse(job.AttemptID)
	if err != nil {
		w.log.Warn().Str("attempt_id", job.AttemptID).Msg("Dropping job with bad attempt id")
		return
	}

	// Stale jobs for finished attempts are dropped: the submitted snapshot is
	// already frozen and must not be overwritten by a late autosave.
	attempt, err := w.attemptRepo.GetByID(ctx, attemptID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return
		}
		w.log.Error().Err(err).Msg("Attempt lookup failed")
		return
	}
	if attempt.Status != model.AttemptStatusInProgress {
		return
	}

	var value *int
	if job.Answer != "" {
		parsed, err := strconv.Atoi(job.Answer)
		if err != nil {
			w.log.Warn().Str("answer", job.Answer).Msg("Dropping job with bad answer value")
			return
		}
		value = &parsed
	}

	if err := w.attemptRepo.SetAnswer(ctx, attemptID, job.QuestionID, value); err != nil {
		w.log.Error().Err(err).
			Str("attempt_id", job.AttemptID).
			Int("question_id", job.QuestionID).
			Msg("Answer persist failed")
	}
}
