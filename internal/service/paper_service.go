package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
)

const (
	defaultQuestionBatch = 10
	maxQuestionBatch     = 50
)

// PaperService serves the question paper to students with an active session.
type PaperService struct {
	guard sessionGuard
	exams SnapshotSource
	log   zerolog.Logger
}

// NewPaperService creates a new PaperService.
func NewPaperService(sessions SessionStore, exams SnapshotSource, log zerolog.Logger) *PaperService {
	return &PaperService{
		guard: sessionGuard{sessions: sessions},
		exams: exams,
		log:   log.With().Str("component", "paper_service").Logger(),
	}
}

// GetQuestionBatch returns up to size questions starting at start, in exam
// order. A start past the end yields an empty page.
func (s *PaperService) GetQuestionBatch(ctx context.Context, sessionID uuid.UUID, p model.Principal, start, size int) (*model.QuestionBatch, error) {
	if start < 0 {
		return nil, fmt.Errorf("%w: start must not be negative", ErrValidation)
	}
	if size <= 0 {
		size = defaultQuestionBatch
	}
	if size > maxQuestionBatch {
		size = maxQuestionBatch
	}

	session, err := s.guard.ownedActive(ctx, sessionID, p)
	if err != nil {
		return nil, err
	}
	snap, err := s.exams.Snapshot(ctx, session.ExamID)
	if err != nil {
		return nil, err
	}

	total := len(snap.Questions)
	from := start
	if from > total {
		from = total
	}
	to := from + size
	if to > total {
		to = total
	}

	views := make([]model.QuestionView, 0, to-from)
	for _, q := range snap.Questions[from:to] {
		views = append(views, q.View())
	}

	return &model.QuestionBatch{
		SessionID:      session.ID,
		Questions:      views,
		Start:          start,
		Size:           size,
		TotalQuestions: total,
	}, nil
}
