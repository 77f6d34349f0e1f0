package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// ExamService drives the exam lifecycle and keeps exam snapshots cached in Redis.
type ExamService struct {
	exams     ExamStore
	questions QuestionStore
	cache     SnapshotCache
	log       zerolog.Logger
	now       func() time.Time
}

// NewExamService creates a new ExamService.
func NewExamService(exams ExamStore, questions QuestionStore, cache SnapshotCache, log zerolog.Logger) *ExamService {
	return &ExamService{
		exams:     exams,
		questions: questions,
		cache:     cache,
		log:       log.With().Str("component", "exam_service").Logger(),
		now:       time.Now,
	}
}

func (s *ExamService) getExam(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.exams.GetByID(ctx, examID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get exam: %w", err)
	}
	return exam, nil
}

// MarkReady moves a DRAFT exam with at least one question to READY.
func (s *ExamService) MarkReady(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	count, err := s.questions.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	next, err := model.MarkReady(*exam, count)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, &next, exam.State); err != nil {
		return nil, err
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam ready")
	return &next, nil
}

// Publish moves a READY exam to PUBLISHED and warms its snapshot.
func (s *ExamService) Publish(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	count, err := s.questions.CountByExam(ctx, examID)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}

	next, err := model.Publish(*exam, count, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, &next, exam.State); err != nil {
		return nil, err
	}

	if _, err := s.warm(ctx, &next); err != nil {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Failed to warm exam after publish")
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Exam published")
	return &next, nil
}

// Activate is the explicit PUBLISHED → ACTIVE transition. It is a no-op on an
// exam that is already ACTIVE.
func (s *ExamService) Activate(ctx context.Context, examID uuid.UUID) (*model.Exam, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}

	next, changed, err := model.Activate(*exam, s.now())
	if err != nil {
		return nil, err
	}
	if !changed {
		return &next, nil
	}
	if err := s.PersistActivation(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// PersistActivation stores a PUBLISHED → ACTIVE transition computed by
// model.ActivateIfDue. Losing the race to another activation is not an error.
func (s *ExamService) PersistActivation(ctx context.Context, activated *model.Exam) error {
	err := s.exams.UpdateState(ctx, activated, model.ExamStatePublished)
	if err != nil && !errors.Is(err, repository.ErrConflict) {
		return fmt.Errorf("activate exam: %w", err)
	}
	if errors.Is(err, repository.ErrConflict) {
		current, getErr := s.getExam(ctx, activated.ID)
		if getErr != nil {
			return getErr
		}
		if current.State != model.ExamStateActive {
			return ErrInvalidState
		}
		return nil
	}

	if err := s.cache.Invalidate(ctx, activated.ID); err != nil {
		s.log.Warn().Err(err).Str("exam_id", activated.ID.String()).Msg("Failed to invalidate exam snapshot")
	}
	s.log.Info().Str("exam_id", activated.ID.String()).Msg("Exam activated")
	return nil
}

func (s *ExamService) persist(ctx context.Context, next *model.Exam, from model.ExamState) error {
	if err := s.exams.UpdateState(ctx, next, from); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrInvalidState
		}
		return fmt.Errorf("update exam state: %w", err)
	}
	return nil
}

// Snapshot returns the exam and its question set, read through the Redis cache.
func (s *ExamService) Snapshot(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error) {
	snap, err := s.cache.Get(ctx, examID)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, repository.ErrCacheMiss) {
		s.log.Warn().Err(err).Str("exam_id", examID.String()).Msg("Exam cache read failed, loading from database")
	}

	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	return s.warm(ctx, exam)
}

// warm loads an exam's question set from PostgreSQL and caches the snapshot.
// A cache write failure is logged; the loaded snapshot is still returned.
func (s *ExamService) warm(ctx context.Context, exam *model.Exam) (*model.ExamSnapshot, error) {
	questions, err := s.questions.ListByExam(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}

	snap := &model.ExamSnapshot{Exam: *exam, Questions: questions}
	if err := s.cache.Set(ctx, snap); err != nil {
		s.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Failed to cache exam snapshot")
		return snap, nil
	}

	s.log.Debug().
		Str("exam_id", exam.ID.String()).
		Int("questions", len(questions)).
		Msg("Cache warmed")
	return snap, nil
}

// RefreshCache re-caches the snapshot of an exam. Called by authoring after
// editing an exam or its question set.
func (s *ExamService) RefreshCache(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error) {
	exam, err := s.getExam(ctx, examID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Invalidate(ctx, examID); err != nil {
		return nil, fmt.Errorf("invalidate snapshot: %w", err)
	}
	snap, err := s.warm(ctx, exam)
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("exam_id", examID.String()).Msg("Cache refreshed")
	return snap, nil
}

// PrewarmAllCaches loads every published and active exam into Redis on startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	exams, err := s.exams.ListByStates(ctx, model.ExamStatePublished, model.ExamStateActive)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	if len(exams) == 0 {
		s.log.Info().Msg("No published exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(exams)).Msg("Prewarming exams...")

	warmed := 0
	for i := range exams {
		if _, err := s.warm(ctx, &exams[i]); err != nil {
			s.log.Warn().
				Err(err).
				Str("exam_id", exams[i].ID.String()).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(exams)).
		Msg("Prewarming complete")
	return nil
}
