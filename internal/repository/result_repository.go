package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const resultColumns = `id, student_id, exam_id, score, correct_answers, total_questions,
	percentage, status, submitted_at, auto_submitted, attempts`

// ResultRepository reads exam results. Results are only written by
// SubmissionRepository.Finalize.
type ResultRepository struct {
	pool *pgxpool.Pool
}

// NewResultRepository creates a new ResultRepository.
func NewResultRepository(pool *pgxpool.Pool) *ResultRepository {
	return &ResultRepository{pool: pool}
}

func scanResult(row pgx.Row) (*model.ExamResult, error) {
	res := &model.ExamResult{}
	err := row.Scan(&res.ID, &res.StudentID, &res.ExamID, &res.Score, &res.CorrectAnswers, &res.TotalQuestions,
		&res.Percentage, &res.Status, &res.SubmittedAt, &res.AutoSubmitted, &res.Attempts)
	if err != nil {
		return nil, notFound(err)
	}
	return res, nil
}

// CountAttempts returns how many submitted attempts a student has for an exam.
func (r *ResultRepository) CountAttempts(ctx context.Context, studentID int, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(attempts), 0) FROM exam_results WHERE student_id = $1 AND exam_id = $2`,
		studentID, examID,
	).Scan(&n)
	return n, err
}
