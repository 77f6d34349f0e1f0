package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// GradeFunc scores a locked session's answers. It must not perform I/O.
type GradeFunc func(session *model.ExamSession, answers []model.StudentAnswer) (*model.ExamResult, error)

// SubmissionRepository closes sessions and writes their results atomically.
type SubmissionRepository struct {
	pool *pgxpool.Pool
}

// NewSubmissionRepository creates a new SubmissionRepository.
func NewSubmissionRepository(pool *pgxpool.Pool) *SubmissionRepository {
	return &SubmissionRepository{pool: pool}
}

// Finalize locks the session row, grades its answers, upserts the result and
// closes the session in one transaction. If the session was already closed the
// stored result is returned with alreadySubmitted set and grade is not called.
func (r *SubmissionRepository) Finalize(ctx context.Context, sessionID uuid.UUID, now time.Time, grade GradeFunc) (result *model.ExamResult, alreadySubmitted bool, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	session, err := scanSession(tx.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1 FOR UPDATE`, sessionID))
	if err != nil {
		return nil, false, err
	}

	if !session.IsActive {
		existing, err := scanResult(tx.QueryRow(ctx,
			`SELECT `+resultColumns+` FROM exam_results WHERE student_id = $1 AND exam_id = $2`,
			session.StudentID, session.ExamID))
		if errors.Is(err, ErrNotFound) {
			return nil, false, ErrSessionInactive
		}
		if err != nil {
			return nil, false, err
		}
		return existing, true, nil
	}

	answers, err := listAnswers(ctx, tx, sessionID)
	if err != nil {
		return nil, false, fmt.Errorf("list answers: %w", err)
	}

	result, err = grade(session, answers)
	if err != nil {
		return nil, false, err
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO exam_results (student_id, exam_id, score, correct_answers, total_questions,
		                           percentage, status, submitted_at, auto_submitted)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (student_id, exam_id) DO UPDATE
		 SET score = EXCLUDED.score,
		     correct_answers = EXCLUDED.correct_answers,
		     total_questions = EXCLUDED.total_questions,
		     percentage = EXCLUDED.percentage,
		     status = EXCLUDED.status,
		     submitted_at = EXCLUDED.submitted_at,
		     auto_submitted = EXCLUDED.auto_submitted,
		     attempts = exam_results.attempts + 1
		 RETURNING id, attempts`,
		session.StudentID, session.ExamID, result.Score, result.CorrectAnswers, result.TotalQuestions,
		result.Percentage, result.Status, now, result.AutoSubmitted,
	).Scan(&result.ID, &result.Attempts)
	if err != nil {
		return nil, false, fmt.Errorf("upsert result: %w", err)
	}
	result.StudentID = session.StudentID
	result.ExamID = session.ExamID
	result.SubmittedAt = now

	if _, err := tx.Exec(ctx,
		`UPDATE exam_sessions SET is_active = FALSE, ended_at = $2 WHERE id = $1`,
		sessionID, now); err != nil {
		return nil, false, fmt.Errorf("close session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return result, false, nil
}
