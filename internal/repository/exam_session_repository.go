package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const sessionColumns = `id, exam_id, student_id, started_at, ended_at, is_active, last_active, last_client_time`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.StudentID, &s.StartedAt, &s.EndedAt, &s.IsActive, &s.LastActive, &s.LastClientTime)
	if err != nil {
		return nil, notFound(err)
	}
	return s, nil
}

// GetByID retrieves a session by its UUID.
func (r *ExamSessionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id))
}

// GetByExamAndStudent retrieves the session for a specific exam-student combination.
func (r *ExamSessionRepository) GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND student_id = $2`, examID, studentID))
}

// Create inserts an active session for (exam, student). When a concurrent request
// already created the row, the existing row is returned and created is false.
func (r *ExamSessionRepository) Create(ctx context.Context, examID uuid.UUID, studentID int, now time.Time) (*model.ExamSession, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, student_id, started_at, is_active)
		 VALUES ($1, $2, $3, TRUE)
		 ON CONFLICT (student_id, exam_id) DO NOTHING
		 RETURNING `+sessionColumns,
		examID, studentID, now))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	existing, err := r.GetByExamAndStudent(ctx, examID, studentID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

// Reactivate reopens a closed session row for a new attempt. If another request
// reactivated it first, the current row is returned and reactivated is false.
func (r *ExamSessionRepository) Reactivate(ctx context.Context, id uuid.UUID, now time.Time) (*model.ExamSession, bool, error) {
	s, err := scanSession(r.pool.QueryRow(ctx,
		`UPDATE exam_sessions
		 SET is_active = TRUE, started_at = $2, ended_at = NULL,
		     last_active = NULL, last_client_time = NULL
		 WHERE id = $1 AND NOT is_active
		 RETURNING `+sessionColumns,
		id, now))
	if err == nil {
		return s, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, false, err
	}

	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

// ListExpiredActive returns active sessions whose time budget or exam window has
// run out at now, oldest first.
func (r *ExamSessionRepository) ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT s.id, s.exam_id, s.student_id, s.started_at, s.ended_at, s.is_active, s.last_active, s.last_client_time
		 FROM exam_sessions s
		 JOIN exams e ON e.id = s.exam_id
		 WHERE s.is_active
		   AND (s.started_at + make_interval(mins => e.duration_minutes) <= $1
		        OR (e.window_end IS NOT NULL AND e.window_end <= $1))
		 ORDER BY s.started_at ASC
		 LIMIT $2`, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []model.ExamSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// BulkUpdateActivity persists a batch of heartbeats in one statement. Rows for
// sessions that closed in the meantime are still updated; activity is diagnostic.
func (r *ExamSessionRepository) BulkUpdateActivity(ctx context.Context, beats []model.Heartbeat) error {
	n := len(beats)
	if n == 0 {
		return nil
	}

	ids := make([]uuid.UUID, n)
	serverTimes := make([]time.Time, n)
	clientTimes := make([]*time.Time, n)
	for i, b := range beats {
		ids[i] = b.SessionID
		serverTimes[i] = b.ServerTime
		clientTimes[i] = b.ClientTime
	}

	_, err := r.pool.Exec(ctx, `
		UPDATE exam_sessions AS s
		SET last_active = GREATEST(COALESCE(s.last_active, t.server_time), t.server_time),
		    last_client_time = COALESCE(t.client_time, s.last_client_time)
		FROM (
			SELECT DISTINCT ON (u.id) u.id, u.server_time, u.client_time
			FROM UNNEST(
				$1::uuid[],
				$2::timestamptz[],
				$3::timestamptz[]
			) AS u (id, server_time, client_time)
			ORDER BY u.id, u.server_time DESC
		) AS t
		WHERE s.id = t.id`,
		ids, serverTimes, clientTimes)
	return err
}

// UpdateActivity persists a single heartbeat. Used when the bulk update fails.
func (r *ExamSessionRepository) UpdateActivity(ctx context.Context, b model.Heartbeat) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions
		 SET last_active = GREATEST(COALESCE(last_active, $2), $2),
		     last_client_time = COALESCE($3, last_client_time)
		 WHERE id = $1`,
		b.SessionID, b.ServerTime, b.ClientTime)
	return err
}
