package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAttemptNotInProgress is returned when a mutation targets an attempt
// that already left the IN_PROGRESS state. The compare-and-set in Finalize
// guarantees that of two racing submits exactly one sees this error.
var ErrAttemptNotInProgress = errors.New("attempt is not in progress")

// AttemptRepository handles attempt data access.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Create inserts a new attempt. Fails with pgx.ErrNoRows if the (user, exam)
// pair already has one.
func (r *AttemptRepository) Create(ctx context.Context, a *model.Attempt) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO attempts (user_id, exam_id, status, time_allotted_minutes, total_questions)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id, exam_id) DO NOTHING
		 RETURNING id, started_at`,
		a.UserID, a.ExamID, model.AttemptStatusInProgress, a.TimeAllotted, a.TotalQuestions,
	).Scan(&a.ID, &a.StartedAt)
}

// GetByID retrieves an attempt by its UUID.
func (r *AttemptRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, exam_id, status, started_at, ended_at, time_allotted_minutes, total_questions
		 FROM attempts WHERE id = $1`, id,
	).Scan(&a.ID, &a.UserID, &a.ExamID, &a.Status, &a.StartedAt, &a.EndedAt, &a.TimeAllotted, &a.TotalQuestions)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// GetByUserAndExam retrieves the attempt for a (user, exam) pair.
func (r *AttemptRepository) GetByUserAndExam(ctx context.Context, userID int, examID uuid.UUID) (*model.Attempt, error) {
	a := &model.Attempt{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, user_id, exam_id, status, started_at, ended_at, time_allotted_minutes, total_questions
		 FROM attempts WHERE user_id = $1 AND exam_id = $2`, userID, examID,
	).Scan(&a.ID, &a.UserID, &a.ExamID, &a.Status, &a.StartedAt, &a.EndedAt, &a.TimeAllotted, &a.TotalQuestions)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// SetAnswer upserts one answer row. A nil value clears the entry — at
// scoring time a cleared entry and a never-answered question read the same.
// Only rows of IN_PROGRESS attempts are touched.
func (r *AttemptRepository) SetAnswer(ctx context.Context, attemptID uuid.UUID, questionID int, value *int) error {
	if value == nil {
		_, err := r.pool.Exec(ctx,
			`DELETE FROM attempt_answers
			 WHERE attempt_id = $1 AND question_id = $2`,
			attemptID, questionID)
		return err
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_answers (attempt_id, question_id, selected_answer)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE
		 SET selected_answer = EXCLUDED.selected_answer, updated_at = NOW()`,
		attemptID, questionID, *value)
	return err
}

// Answers retrieves the answer mapping for an attempt.
func (r *AttemptRepository) Answers(ctx context.Context, attemptID uuid.UUID) (map[int]*int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT question_id, selected_answer
		 FROM attempt_answers WHERE attempt_id = $1`, attemptID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	answers := make(map[int]*int)
	for rows.Next() {
		var qid int
		var val *int
		if err := rows.Scan(&qid, &val); err != nil {
			return nil, err
		}
		answers[qid] = val
	}
	return answers, rows.Err()
}

// GetMark retrieves the review mark for one question, or "" if unmarked.
func (r *AttemptRepository) GetMark(ctx context.Context, attemptID uuid.UUID, questionID int) (model.ReviewMark, error) {
	var kind model.ReviewMark
	err := r.pool.QueryRow(ctx,
		`SELECT kind FROM attempt_marks
		 WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID,
	).Scan(&kind)
	if err != nil {
		return "", err
	}
	return kind, nil
}

// SetMark upserts a review mark.
func (r *AttemptRepository) SetMark(ctx context.Context, attemptID uuid.UUID, questionID int, kind model.ReviewMark) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO attempt_marks (attempt_id, question_id, kind)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (attempt_id, question_id) DO UPDATE SET kind = EXCLUDED.kind`,
		attemptID, questionID, kind)
	return err
}

// ClearMark removes a review mark.
func (r *AttemptRepository) ClearMark(ctx context.Context, attemptID uuid.UUID, questionID int) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM attempt_marks
		 WHERE attempt_id = $1 AND question_id = $2`,
		attemptID, questionID)
	return err
}

// Finalize flips an attempt from IN_PROGRESS to SUBMITTED and freezes the
// final answer snapshot and review marks, all in one transaction. The status
// flip is a compare-and-set: if the attempt already left IN_PROGRESS the
// whole transaction rolls back with ErrAttemptNotInProgress and the stored
// state is untouched.
func (r *AttemptRepository) Finalize(ctx context.Context, attemptID uuid.UUID, answers map[int]*int, marks map[int]model.ReviewMark) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE attempts
		 SET status = $1, ended_at = $2
		 WHERE id = $3 AND status = $4`,
		model.AttemptStatusSubmitted, time.Now(), attemptID, model.AttemptStatusInProgress)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAttemptNotInProgress
	}

	// Replace the autosaved rows with the submitted snapshot.
	if _, err := tx.Exec(ctx,
		`DELETE FROM attempt_answers WHERE attempt_id = $1`, attemptID); err != nil {
		return fmt.Errorf("clear answers: %w", err)
	}

	qids := make([]int, 0, len(answers))
	values := make([]int, 0, len(answers))
	for qid, val := range answers {
		if val == nil {
			continue // cleared entries are just absent rows
		}
		qids = append(qids, qid)
		values = append(values, *val)
	}
	if len(qids) > 0 {
		if _, err := tx.Exec(ctx,
			`INSERT INTO attempt_answers (attempt_id, question_id, selected_answer)
			 SELECT $1, u.question_id, u.selected_answer
			 FROM UNNEST($2::int[], $3::int[]) AS u (question_id, selected_answer)`,
			attemptID, qids, values); err != nil {
			return fmt.Errorf("insert answers: %w", err)
		}
	}

	// A nil marks map means "keep whatever was toggled during the session";
	// a non-nil map (possibly empty) replaces the stored marks.
	if marks != nil {
		if _, err := tx.Exec(ctx,
			`DELETE FROM attempt_marks WHERE attempt_id = $1`, attemptID); err != nil {
			return fmt.Errorf("clear marks: %w", err)
		}

		markQIDs := make([]int, 0, len(marks))
		markKinds := make([]string, 0, len(marks))
		for qid, kind := range marks {
			markQIDs = append(markQIDs, qid)
			markKinds = append(markKinds, string(kind))
		}
		if len(markQIDs) > 0 {
			if _, err := tx.Exec(ctx,
				`INSERT INTO attempt_marks (attempt_id, question_id, kind)
				 SELECT $1, u.question_id, u.kind
				 FROM UNNEST($2::int[], $3::text[]) AS u (question_id, kind)`,
				attemptID, markQIDs, markKinds); err != nil {
				return fmt.Errorf("insert marks: %w", err)
			}
		}
	}

	return tx.Commit(ctx)
}

// MarkGraded records that a report has been materialized for the attempt.
func (r *AttemptRepository) MarkGraded(ctx context.Context, attemptID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE attempts SET status = $1
		 WHERE id = $2 AND status = $3`,
		model.AttemptStatusGraded, attemptID, model.AttemptStatusSubmitted)
	return err
}
