package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResultRepository handles materialized score reports, keyed by
// (user_id, exam_id). Writes are full-replace upserts: last writer wins,
// never a merge.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

// Upsert stores a report, replacing any existing one for the same key.
// Safe to call repeatedly with the same report.
func (r *ResultRepository) Upsert(ctx context.Context, res *model.Result) error {
	answers, err := json.Marshal(res.Report.Answers)
	if err != nil {
		return fmt.Errorf("marshal answers: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO results
		   (user_id, exam_id, total_questions, correct, incorrect, unattempted, total_marks, answers)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id, exam_id) DO UPDATE SET
		   total_questions = EXCLUDED.total_questions,
		   correct         = EXCLUDED.correct,
		   incorrect       = EXCLUDED.incorrect,
		   unattempted     = EXCLUDED.unattempted,
		   total_marks     = EXCLUDED.total_marks,
		   answers         = EXCLUDED.answers,
		   updated_at      = NOW()`,
		res.UserID, res.ExamID,
		res.Report.TotalQuestions, res.Report.Correct, res.Report.Incorrect,
		res.Report.Unattempted, res.Report.TotalMarks, answers)
	return err
}

// Get retrieves the report for a (user, exam) pair.
func (r *ResultRepository) Get(ctx context.Context, userID int, examID uuid.UUID) (*model.Result, error) {
	res := &model.Result{}
	var answers []byte

	err := r.pool.QueryRow(ctx,
		`SELECT user_id, exam_id, total_questions, correct, incorrect, unattempted, total_marks, answers,
		        created_at, updated_at
		 FROM results WHERE user_id = $1 AND exam_id = $2`, userID, examID,
	).Scan(&res.UserID, &res.ExamID,
		&res.Report.TotalQuestions, &res.Report.Correct, &res.Report.Incorrect,
		&res.Report.Unattempted, &res.Report.TotalMarks, &answers,
		&res.CreatedAt, &res.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(answers, &res.Report.Answers); err != nil {
		return nil, fmt.Errorf("unmarshal answers: %w", err)
	}
	return res, nil
}
