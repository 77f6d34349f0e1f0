package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerRepository handles student answer persistence.
type AnswerRepository struct {
	pool *pgxpool.Pool
}

// NewAnswerRepository creates a new AnswerRepository.
func NewAnswerRepository(pool *pgxpool.Pool) *AnswerRepository {
	return &AnswerRepository{pool: pool}
}

// UpsertBatch writes every answer in one transaction while holding a share lock
// on the session row, so a concurrent submit either sees all of them or none.
// A write carrying a sequence number not newer than the stored one is skipped
// and counted as stale.
func (r *AnswerRepository) UpsertBatch(ctx context.Context, sessionID uuid.UUID, writes []model.AnswerWrite, now time.Time) (saved, stale int, err error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var active bool
	err = tx.QueryRow(ctx,
		`SELECT is_active FROM exam_sessions WHERE id = $1 FOR SHARE`, sessionID,
	).Scan(&active)
	if err != nil {
		return 0, 0, notFound(err)
	}
	if !active {
		return 0, 0, ErrSessionInactive
	}

	batch := &pgx.Batch{}
	for _, w := range writes {
		batch.Queue(
			`INSERT INTO student_answers (session_id, question_id, student_response, client_seq, updated_at)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (session_id, question_id) DO UPDATE
			 SET student_response = EXCLUDED.student_response,
			     client_seq = GREATEST(student_answers.client_seq, EXCLUDED.client_seq),
			     updated_at = EXCLUDED.updated_at
			 WHERE EXCLUDED.client_seq = 0 OR student_answers.client_seq < EXCLUDED.client_seq`,
			sessionID, w.QuestionID, w.Response, w.Seq, now,
		)
	}

	br := tx.SendBatch(ctx, batch)
	for range writes {
		tag, execErr := br.Exec()
		if execErr != nil {
			_ = br.Close()
			return 0, 0, fmt.Errorf("upsert answer: %w", execErr)
		}
		if tag.RowsAffected() == 0 {
			stale++
		} else {
			saved++
		}
	}
	if err := br.Close(); err != nil {
		return 0, 0, fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("commit: %w", err)
	}
	return saved, stale, nil
}

// ListBySession returns every stored answer of a session.
func (r *AnswerRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	return listAnswers(ctx, r.pool, sessionID)
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listAnswers(ctx context.Context, q querier, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	rows, err := q.Query(ctx,
		`SELECT session_id, question_id, student_response, client_seq, updated_at
		 FROM student_answers
		 WHERE session_id = $1`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var answers []model.StudentAnswer
	for rows.Next() {
		var a model.StudentAnswer
		if err := rows.Scan(&a.SessionID, &a.QuestionID, &a.StudentResponse, &a.ClientSeq, &a.UpdatedAt); err != nil {
			return nil, err
		}
		answers = append(answers, a)
	}
	return answers, rows.Err()
}

