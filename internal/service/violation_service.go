package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// ViolationService records and reports client-side proctoring events.
type ViolationService struct {
	guard      sessionGuard
	violations ViolationStore
	log        zerolog.Logger
	now        func() time.Time
}

// NewViolationService creates a new ViolationService.
func NewViolationService(sessions SessionStore, violations ViolationStore, log zerolog.Logger) *ViolationService {
	return &ViolationService{
		guard:      sessionGuard{sessions: sessions},
		violations: violations,
		log:        log.With().Str("component", "violation_service").Logger(),
		now:        time.Now,
	}
}

// LogViolation appends one event to an active session's log and returns the
// session's total violation count.
func (s *ViolationService) LogViolation(ctx context.Context, sessionID uuid.UUID, p model.Principal, vtype model.ViolationType, details json.RawMessage) (*model.ViolationAck, error) {
	if !model.IsKnownViolationType(string(vtype)) {
		return nil, fmt.Errorf("%w: unknown violation type %q", ErrValidation, vtype)
	}
	if len(details) > 0 && !json.Valid(details) {
		return nil, fmt.Errorf("%w: details must be valid JSON", ErrValidation)
	}

	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}

	count, err := s.violations.Append(ctx, session.ID, vtype, details, s.now())
	if err != nil {
		return nil, inactiveErr(err)
	}

	s.log.Info().
		Str("session_id", session.ID.String()).
		Int("student_id", session.StudentID).
		Str("type", string(vtype)).
		Int("count", count).
		Msg("Violation recorded")
	return &model.ViolationAck{ViolationCount: count}, nil
}

// GetViolations returns a session's log to its owner, in any session state, or
// to an admin reviewer.
func (s *ViolationService) GetViolations(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.ViolationReport, error) {
	session, err := s.guard.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if p.Kind != model.PrincipalAdmin && !session.OwnedBy(p) {
		return nil, ErrUnauthorized
	}

	records, err := s.violations.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	report := model.NewViolationReport(records)
	return &report, nil
}
