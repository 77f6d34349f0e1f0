package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// The interfaces below are the slices of the service layer each handler
// calls. *service.AccessService and friends satisfy them.

type AccessGate interface {
	RequestAccess(ctx context.Context, examID uuid.UUID, p model.Principal, password string) (*model.SessionDescriptor, error)
}

type SessionClock interface {
	Sync(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.TimeStatus, error)
	Heartbeat(ctx context.Context, sessionID uuid.UUID, p model.Principal, clientTime *time.Time) (*model.TimeStatus, error)
}

type AnswerStore interface {
	SaveAnswer(ctx context.Context, sessionID uuid.UUID, p model.Principal, w model.AnswerWrite) (*model.SaveAck, error)
	SaveAnswerBatch(ctx context.Context, sessionID uuid.UUID, p model.Principal, writes []model.AnswerWrite) (*model.SaveAck, error)
	GetCurrentAnswers(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.CurrentAnswers, error)
}

type QuestionPaper interface {
	GetQuestionBatch(ctx context.Context, sessionID uuid.UUID, p model.Principal, start, size int) (*model.QuestionBatch, error)
}

type ViolationLog interface {
	LogViolation(ctx context.Context, sessionID uuid.UUID, p model.Principal, vtype model.ViolationType, details json.RawMessage) (*model.ViolationAck, error)
	GetViolations(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*model.ViolationReport, error)
}

type Submitter interface {
	Submit(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*service.SubmitOutcome, error)
	AutoSubmit(ctx context.Context, sessionID uuid.UUID, p model.Principal) (*service.SubmitOutcome, error)
}

type ExamLifecycle interface {
	MarkReady(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	Publish(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	Activate(ctx context.Context, examID uuid.UUID) (*model.Exam, error)
	RefreshCache(ctx context.Context, examID uuid.UUID) (*model.ExamSnapshot, error)
}

// SessionServices bundles the services behind the student session routes and
// the WebSocket stream.
type SessionServices struct {
	Access     AccessGate
	Clock      SessionClock
	Answers    AnswerStore
	Paper      QuestionPaper
	Violations ViolationLog
	Submission Submitter
}
