package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

// The interfaces below are satisfied by the repository package. Services
// depend on them so tests can swap in in-memory fakes.

type ExamStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Exam, error)
	UpdateState(ctx context.Context, e *model.Exam, from model.ExamState) error
	ListByStates(ctx context.Context, states ...model.ExamState) ([]model.Exam, error)
}

type QuestionStore interface {
	ListByExam(ctx context.Context, examID uuid.UUID) ([]model.ExamQuestion, error)
	CountByExam(ctx context.Context, examID uuid.UUID) (int, error)
}

type SnapshotCache interface {
	Get(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error)
	Set(ctx context.Context, snap *model.ExamSnapshot) error
	Invalidate(ctx context.Context, examID uuid.UUID) error
}

type SessionStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
	GetByExamAndStudent(ctx context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error)
	Create(ctx context.Context, examID uuid.UUID, studentID int, now time.Time) (*model.ExamSession, bool, error)
	Reactivate(ctx context.Context, id uuid.UUID, now time.Time) (*model.ExamSession, bool, error)
	ListExpiredActive(ctx context.Context, now time.Time, limit int) ([]model.ExamSession, error)
}

type AnswerStore interface {
	UpsertBatch(ctx context.Context, sessionID uuid.UUID, writes []model.AnswerWrite, now time.Time) (saved, stale int, err error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error)
}

type ViolationStore interface {
	Append(ctx context.Context, sessionID uuid.UUID, vtype model.ViolationType, details json.RawMessage, now time.Time) (int, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]model.ViolationRecord, error)
}

type ResultStore interface {
	CountAttempts(ctx context.Context, studentID int, examID uuid.UUID) (int, error)
}

type SubmissionStore interface {
	Finalize(ctx context.Context, sessionID uuid.UUID, now time.Time, grade repository.GradeFunc) (*model.ExamResult, bool, error)
}

type ActivityRecorder interface {
	RecordHeartbeat(ctx context.Context, beat model.Heartbeat) error
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// SnapshotSource loads an exam together with its question set.
type SnapshotSource interface {
	Snapshot(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error)
}
