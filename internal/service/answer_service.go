package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// AnswerService persists student responses during an active session.
type AnswerService struct {
	guard   sessionGuard
	exams   SnapshotSource
	answers AnswerStore
	log     zerolog.Logger
	now     func() time.Time
}

// NewAnswerService creates a new AnswerService.
func NewAnswerService(sessions SessionStore, exams SnapshotSource, answers AnswerStore, log zerolog.Logger) *AnswerService {
	return &AnswerService{
		guard:   sessionGuard{sessions: sessions},
		exams:   exams,
		answers: answers,
		log:     log.With().Str("component", "answer_service").Logger(),
		now:     time.Now,
	}
}

// SaveAnswer upserts a single answer.
func (s *AnswerService) SaveAnswer(ctx context.Context, sessionID uuid.UUID, p model.Principal, w model.AnswerWrite) (*model.SaveAck, error) {
	return s.save(ctx, sessionID, p, []model.AnswerWrite{w})
}

// SaveAnswerBatch validates every entry first and then writes all of them in
// one transaction. Any invalid entry rejects the whole batch.
func (s *AnswerService) SaveAnswerBatch(ctx context.Context, sessionID uuid.UUID, p model.Principal, writes []model.AnswerWrite) (*model.SaveAck, error) {
	if len(writes) == 0 {
		return nil, fmt.Errorf("%w: answers must not be empty", ErrValidation)
	}
	return s.save(ctx, sessionID, p, writes)
}

func (s *AnswerService) save(ctx context.Context, sessionID uuid.UUID, p model.Principal, writes []model.AnswerWrite) (*model.SaveAck, error) {
	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	snap, err := s.exams.Snapshot(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if ComputeRemaining(session, &snap.Exam, now).RemainingSeconds == 0 {
		return nil, ErrExamExpired
	}

	valid := snap.QuestionIDs()
	var invalid []uuid.UUID
	for _, w := range writes {
		if _, ok := valid[w.QuestionID]; !ok {
			invalid = append(invalid, w.QuestionID)
		}
	}
	if len(invalid) > 0 {
		return nil, &InvalidQuestionsError{IDs: invalid}
	}

	saved, stale, err := s.answers.UpsertBatch(ctx, session.ID, writes, now)
	if err != nil {
		return nil, inactiveErr(err)
	}

	if stale > 0 {
		s.log.Debug().
			Str("session_id", session.ID.String()).
			Int("stale", stale).
			Msg("Skipped stale answer writes")
	}
	return &model.SaveAck{Saved: saved, Stale: stale}, nil
}

// GetCurrentAnswers returns the stored answers of an active session, used by
// clients to restore state after a reconnect.
func (s *AnswerService) GetCurrentAnswers(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.CurrentAnswers, error) {
	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}

	stored, err := s.answers.ListBySession(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}

	answers := make(map[uuid.UUID]model.AnswerView, len(stored))
	for _, a := range stored {
		answers[a.QuestionID] = model.AnswerView{Response: a.StudentResponse, UpdatedAt: a.UpdatedAt}
	}
	return &model.CurrentAnswers{Answers: answers, TotalAnswers: len(answers)}, nil
}
