package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-assessment/internal/model"
)

// Domain errors returned by the session engine. Handlers map them to HTTP
// statuses with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("principal does not own this session")
	ErrInvalidPassword   = errors.New("invalid exam password")
	ErrAttemptsExceeded  = errors.New("maximum attempts reached")
	ErrExamUnavailable   = errors.New("exam is not available")
	ErrExamExpired       = errors.New("exam time has expired")
	ErrSessionNotActive  = errors.New("session is not active")
	ErrTimeRemaining     = errors.New("session still has time remaining")
	ErrValidation        = errors.New("validation failed")
	ErrQuestionNotInExam = fmt.Errorf("%w: question does not belong to this exam", ErrValidation)
	ErrInvalidState      = model.ErrInvalidState
)

// InvalidQuestionsError lists the question IDs of a save request that are not
// part of the exam's question set.
type InvalidQuestionsError struct {
	IDs []uuid.UUID
}

func (e *InvalidQuestionsError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = id.String()
	}
	return fmt.Sprintf("%s: %s", ErrQuestionNotInExam.Error(), strings.Join(ids, ", "))
}

func (e *InvalidQuestionsError) Unwrap() error { return ErrQuestionNotInExam }
