package repository

import (
	"context"

	"github.com/backtrackjee/portal-backend/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ExamRepository handles exam data access. All exams live in one uniform
// table partitioned by the (year, slot_key) unique index — there is no
// per-slot storage structure.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// GetBySlotKey retrieves an exam by its year and canonical slot key.
// Callers are responsible for normalizing the slot first.
func (r *ExamRepository) GetBySlotKey(ctx context.Context, year, slotKey string) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, year, slot, slot_key, created_at
		 FROM exams WHERE year = $1 AND slot_key = $2`, year, slotKey,
	).Scan(&e.ID, &e.Year, &e.Slot, &e.SlotKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, year, slot, slot_key, created_at
		 FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Year, &e.Slot, &e.SlotKey, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Create inserts a new exam. Fails with pgx.ErrNoRows if the (year, slot_key)
// pair already exists.
func (r *ExamRepository) Create(ctx context.Context, e *model.Exam) error {
	return r.pool.QueryRow(ctx,
		`INSERT INTO exams (year, slot, slot_key)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (year, slot_key) DO NOTHING
		 RETURNING id, created_at`,
		e.Year, e.Slot, e.SlotKey,
	).Scan(&e.ID, &e.CreatedAt)
}

// List retrieves all exams, newest year first then slot.
func (r *ExamRepository) List(ctx context.Context) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, year, slot, slot_key, created_at
		 FROM exams
		 ORDER BY year DESC, slot_key ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Year, &e.Slot, &e.SlotKey, &e.CreatedAt); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}
