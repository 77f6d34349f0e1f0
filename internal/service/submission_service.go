package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// SubmitOutcome is the result of a submit call. AlreadySubmitted marks a
// repeated call that returned the stored result without scoring again.
type SubmitOutcome struct {
	Result           model.ResultSummary `json:"result"`
	AlreadySubmitted bool                `json:"already_submitted"`
}

// Score grades answers against the exam's question set. Answers to questions
// outside the set are ignored. It is pure and safe to call under a row lock.
func Score(snap *model.ExamSnapshot, answers []model.StudentAnswer) model.ExamResult {
	byQuestion := make(map[uuid.UUID]string, len(answers))
	for _, a := range answers {
		byQuestion[a.QuestionID] = a.StudentResponse
	}

	var score, possible float64
	correct := 0
	for _, q := range snap.Questions {
		possible += q.Points
		if resp, ok := byQuestion[q.QuestionID]; ok && resp == q.CorrectAnswer {
			score += q.Points
			correct++
		}
	}

	var percentage float64
	if possible > 0 {
		percentage = score / possible * 100
	}

	return model.ExamResult{
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: len(snap.Questions),
		Percentage:     percentage,
		Status:         StatusFor(percentage, snap.Exam.PassingScore),
	}
}

// StatusFor applies one policy to manual and automatic submissions.
func StatusFor(percentage float64, passingScore *float64) model.ResultStatus {
	if passingScore == nil {
		return model.ResultStatusCompleted
	}
	if percentage >= *passingScore {
		return model.ResultStatusPassed
	}
	return model.ResultStatusFailed
}

// SubmissionService is the only writer of results and the only component that
// closes sessions.
type SubmissionService struct {
	guard       sessionGuard
	sessions    SessionStore
	exams       SnapshotSource
	submissions SubmissionStore
	activity    ActivityRecorder
	log         zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService creates a new SubmissionService.
func NewSubmissionService(
	sessions SessionStore,
	exams SnapshotSource,
	submissions SubmissionStore,
	activity ActivityRecorder,
	log zerolog.Logger,
) *SubmissionService {
	return &SubmissionService{
		guard:       sessionGuard{sessions: sessions},
		sessions:    sessions,
		exams:       exams,
		submissions: submissions,
		activity:    activity,
		log:         log.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

// Submit scores and closes a session on the owner's request.
func (s *SubmissionService) Submit(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*SubmitOutcome, error) {
	session, err := s.guard.owned(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, session, false, false)
}

// AutoSubmit scores and closes a session when its time runs out. The system
// principal may submit any session but only once its deadline has passed, as
// seen under the row lock; a student may submit their own at any time.
func (s *SubmissionService) AutoSubmit(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*SubmitOutcome, error) {
	if p.Kind == model.PrincipalSystem {
		session, err := s.guard.load(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.finalize(ctx, session, true, true)
	}

	session, err := s.guard.owned(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	return s.finalize(ctx, session, true, false)
}

func (s *SubmissionService) finalize(ctx context.Context, session *model.ExamSession, auto, requireExpired bool) (*SubmitOutcome, error) {
	snap, err := s.exams.Snapshot(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	grade := func(locked *model.ExamSession, answers []model.StudentAnswer) (*model.ExamResult, error) {
		// The row may have been submitted and reactivated since it was listed.
		if requireExpired && !ComputeRemaining(locked, &snap.Exam, now).ShouldAutoSubmit {
			return nil, ErrTimeRemaining
		}
		r := Score(snap, answers)
		r.AutoSubmitted = auto
		return &r, nil
	}

	result, already, err := s.submissions.Finalize(ctx, session.ID, now, grade)
	if err != nil {
		return nil, inactiveErr(err)
	}

	logEvent := s.log.Info().
		Str("session_id", session.ID.String()).
		Str("exam_id", session.ExamID.String()).
		Int("student_id", session.StudentID)
	if already {
		logEvent.Msg("Session already submitted")
		return &SubmitOutcome{Result: result.Summary(), AlreadySubmitted: true}, nil
	}

	if err := s.activity.Clear(ctx, session.ID); err != nil {
		s.log.Warn().Err(err).Str("session_id", session.ID.String()).Msg("Failed to clear session activity")
	}

	logEvent.
		Float64("score", result.Score).
		Float64("percentage", result.Percentage).
		Str("status", string(result.Status)).
		Bool("auto", auto).
		Msg("Session submitted")
	return &SubmitOutcome{Result: result.Summary()}, nil
}

// ReconcileExpired auto-submits up to limit active sessions whose time has run
// out. It returns how many sessions were closed.
func (s *SubmissionService) ReconcileExpired(ctx context.Context, limit int) (int, error) {
	expired, err := s.sessions.ListExpiredActive(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("list expired sessions: %w", err)
	}

	closed := 0
	for i := range expired {
		out, err := s.AutoSubmit(ctx, expired[i].ID, model.SystemPrincipal())
		if errors.Is(err, ErrTimeRemaining) {
			s.log.Info().Str("session_id", expired[i].ID.String()).Msg("Session restarted since listing, skipped")
			continue
		}
		if err != nil {
			s.log.Error().Err(err).Str("session_id", expired[i].ID.String()).Msg("Auto-submit failed")
			continue
		}
		if !out.AlreadySubmitted {
			closed++
		}
	}

	s.log.Info().Int("expired", len(expired)).Int("closed", closed).Msg("Reconcile pass complete")
	return closed, nil
}
