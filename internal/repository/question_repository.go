package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// QuestionRepository reads the question set authoring attached to an exam.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// ListByExam retrieves all questions for an exam, ordered by order_num.
func (r *QuestionRepository) ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamQuestion, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT exam_id, question_id, order_num, points, question_text, question_type,
		        options, image_url, correct_answer
		 FROM exam_questions
		 WHERE exam_id = $1
		 ORDER BY order_num ASC, question_id ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.ExamQuestion
	for rows.Next() {
		var q model.ExamQuestion
		if err := rows.Scan(&q.ExamID, &q.QuestionID, &q.OrderNum, &q.Points, &q.QuestionText, &q.QuestionType,
			&q.Options, &q.ImageURL, &q.CorrectAnswer); err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// CountByExam returns the size of an exam's question set.
func (r *QuestionRepository) CountByExam(ctx context.Context, examID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM exam_questions WHERE exam_id = $1`, examID,
	).Scan(&n)
	return n, err
}
