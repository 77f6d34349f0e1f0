package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// ViolationRepository stores the append-only proctoring log.
type ViolationRepository struct {
	pool *pgxpool.Pool
}

// NewViolationRepository creates a new ViolationRepository.
func NewViolationRepository(pool *pgxpool.Pool) *ViolationRepository {
	return &ViolationRepository{pool: pool}
}

// Append inserts one violation row if, and only if, the session is active, and
// returns the session's violation count including the new row. The active check
// and the insert are one statement, so concurrent appends never lose a row. The
// session row is share-locked, so an append waits for an in-flight submit and
// then sees the closed session.
func (r *ViolationRepository) Append(ctx context.Context, sessionID uuid.UUID, vtype model.ViolationType, details json.RawMessage, now time.Time) (int, error) {
	var detailsArg any
	if len(details) > 0 {
		detailsArg = details
	}

	var inserted, existing int
	err := r.pool.QueryRow(ctx, `
		WITH s AS (
			SELECT id FROM exam_sessions WHERE id = $1 AND is_active FOR SHARE
		), ins AS (
			INSERT INTO exam_violations (session_id, type, details, created_at)
			SELECT s.id, $2::varchar, $3::jsonb, $4::timestamptz FROM s
			RETURNING id
		)
		SELECT (SELECT COUNT(*) FROM ins),
		       (SELECT COUNT(*) FROM exam_violations WHERE session_id = $1)`,
		sessionID, string(vtype), detailsArg, now,
	).Scan(&inserted, &existing)
	if err != nil {
		return 0, err
	}
	if inserted == 0 {
		return 0, ErrSessionInactive
	}
	return existing + inserted, nil
}

// ListBySession returns a session's violations in insertion order.
func (r *ViolationRepository) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, session_id, type, details, created_at
		 FROM exam_violations
		 WHERE session_id = $1
		 ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.ViolationRecord
	for rows.Next() {
		var v model.ViolationRecord
		var details []byte
		if err := rows.Scan(&v.ID, &v.SessionID, &v.Type, &details, &v.Timestamp); err != nil {
			return nil, err
		}
		if len(details) > 0 {
			v.Details = json.RawMessage(details)
		}
		records = append(records, v)
	}
	return records, rows.Err()
}
