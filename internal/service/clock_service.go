package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// ComputeRemaining derives the server-authoritative time status of a session.
// The deadline is the earlier of startedAt + duration and the exam window end.
// Remaining time is floored to whole seconds and never negative.
func ComputeRemaining(session *model.ExamSession, exam *model.Exam, now time.Time) model.TimeStatus {
	deadline := session.StartedAt.Add(exam.Duration())
	if exam.WindowEnd != nil && exam.WindowEnd.Before(deadline) {
		deadline = *exam.WindowEnd
	}

	elapsed := now.Sub(session.StartedAt)
	if elapsed < 0 {
		elapsed = 0
	}
	remaining := deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}

	secs := int64(remaining / time.Second)
	return model.TimeStatus{
		RemainingSeconds: secs,
		ElapsedSeconds:   int64(elapsed / time.Second),
		ShouldAutoSubmit: secs == 0,
		Deadline:         deadline,
		ServerTime:       now,
	}
}

// ClockService answers timing queries. Client-reported time is recorded for
// diagnostics only.
type ClockService struct {
	guard    sessionGuard
	exams    SnapshotSource
	activity ActivityRecorder
	log      zerolog.Logger
	now      func() time.Time
}

// NewClockService creates a new ClockService.
func NewClockService(sessions SessionStore, exams SnapshotSource, activity ActivityRecorder, log zerolog.Logger) *ClockService {
	return &ClockService{
		guard:    sessionGuard{sessions: sessions},
		exams:    exams,
		activity: activity,
		log:      log.With().Str("component", "clock_service").Logger(),
		now:      time.Now,
	}
}

// Sync returns the remaining time of an active, owned session.
func (s *ClockService) Sync(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.TimeStatus, error) {
	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	snap, err := s.exams.Snapshot(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}
	status := ComputeRemaining(session, &snap.Exam, s.now())
	return &status, nil
}

// Heartbeat is Sync plus a liveness record. A failure to buffer the heartbeat
// does not fail the request.
func (s *ClockService) Heartbeat(ctx context.Context, sessionID uuid.UUID, p model.Principal, clientTime *time.Time) (*model.TimeStatus, error) {
	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	snap, err := s.exams.Snapshot(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	beat := model.Heartbeat{SessionID: session.ID, ServerTime: now, ClientTime: clientTime}
	if err := s.activity.RecordHeartbeat(ctx, beat); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to record heartbeat")
	}

	status := ComputeRemaining(session, &snap.Exam, now)
	return &status, nil
}
