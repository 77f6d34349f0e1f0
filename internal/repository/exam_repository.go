package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const examColumns = `id, title, duration_minutes, window_start, window_end, max_attempts,
	password, passing_score, state, published_at, activated_at, created_at, updated_at`

// ExamRepository handles exam data access. Authoring owns inserts; this
// repository only reads exams and moves their lifecycle state.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

func scanExam(row pgx.Row) (*model.Exam, error) {
	e := &model.Exam{}
	err := row.Scan(&e.ID, &e.Title, &e.DurationMinutes, &e.WindowStart, &e.WindowEnd, &e.MaxAttempts,
		&e.Password, &e.PassingScore, &e.State, &e.PublishedAt, &e.ActivatedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// GetByID retrieves an exam by its UUID.
func (r *ExamRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error) {
	return scanExam(r.pool.QueryRow(ctx,
		`SELECT `+examColumns+` FROM exams WHERE id = $1`, id))
}

// UpdateState persists a lifecycle transition. The row is only updated while it
// is still in state from; otherwise ErrConflict is returned.
func (r *ExamRepository) UpdateState(ctx context.Context, e *model.Exam, from model.ExamState) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE exams
		 SET state = $2, published_at = $3, activated_at = $4, updated_at = $5
		 WHERE id = $1 AND state = $6`,
		e.ID, e.State, e.PublishedAt, e.ActivatedAt, time.Now(), from)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

// ListByStates returns every exam currently in one of the given states.
// Used for cache prewarming on application startup.
func (r *ExamRepository) ListByStates(ctx context.Context, states ...model.ExamState) ([]model.Exam, error) {
	raw := make([]string, len(states))
	for i, s := range states {
		raw[i] = string(s)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+examColumns+` FROM exams
		 WHERE state = ANY($1)
		 ORDER BY created_at DESC`, raw)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		exams = append(exams, *e)
	}
	return exams, rows.Err()
}
