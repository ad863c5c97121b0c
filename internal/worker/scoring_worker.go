package worker

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/backtrackjee/portal-backend/internal/config"
	"github.com/backtrackjee/portal-backend/internal/repository"
	"github.com/backtrackjee/portal-backend/internal/service"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ScoringWorker drains the grading queue and materializes score reports.
// Grading is deterministic and the report upsert is idempotent, so a job that
// raced the synchronous fallback just rewrites the same report.
type ScoringWorker struct {
	rdb           *redis.Client
	resultService *service.ResultService
	log           zerolog.Logger
}

// NewScoringWorker creates a new ScoringWorker.
func NewScoringWorker(rdb *redis.Client, resultService *service.ResultService, log zerolog.Logger) *ScoringWorker {
	return &ScoringWorker{
		rdb:           rdb,
		resultService: resultService,
		log:           log.With().Str("component", "scoring_worker").Logger(),
	}
}

// Run consumes jobs until the context is cancelled.
func (w *ScoringWorker) Run(ctx context.Context) {
	w.log.Info().Msg("Scoring worker started")
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Scoring worker stopped")
			return
		default:
		}

		res, err := w.rdb.BLPop(ctx, blockTimeout, config.WorkerKey.GradeAttemptsQueue).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) {
				continue
			}
			w.log.Error().Err(err).Msg("Queue pop failed")
			time.Sleep(time.Second)
			continue
		}
		if len(res) < 2 {
			continue
		}
		w.handle(ctx, []byte(res[1]))
	}
}

func (w *ScoringWorker) handle(ctx context.Context, payload []byte) {
	var job repository.GradeJob
	if err := json.Unmarshal(payload, &job); err != nil {
		w.log.Warn().Err(err).Msg("Dropping malformed grade job")
		return
	}

	attemptID, err := uuid.Parse(job.AttemptID)
	if err != nil {
		w.log.Warn().Str("attempt_id", job.AttemptID).Msg("Dropping job with bad attempt id")
		return
	}

	if _, err := w.resultService.Materialize(ctx, attemptID); err != nil {
		// ErrResultNotFound means the attempt is still running — a stale or
		// premature job, safe to drop.
		if errors.Is(err, service.ErrResultNotFound) || errors.Is(err, service.ErrAttemptNotFound) {
			w.log.Warn().Str("attempt_id", job.AttemptID).Msg("Dropping grade job for ungradable attempt")
			return
		}
		w.log.Error().Err(err).Str("attempt_id", job.AttemptID).Msg("Grading failed")
		return
	}

	w.log.Info().
		Str("attempt_id", job.AttemptID).
		Int("user_id", job.UserID).
		Msg("Report materialized")
}
