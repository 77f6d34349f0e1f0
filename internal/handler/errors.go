package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
)

// errorMapping pairs a service sentinel with its HTTP status and error code.
type errorMapping struct {
	target error
	status int
	code   response.ErrCode
}

// Order matters: ErrQuestionNotInExam wraps ErrValidation.
var errorTable = []errorMapping{
	{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
	{service.ErrUnauthorized, http.StatusForbidden, response.ErrUnauthorized},
	{service.ErrInvalidPassword, http.StatusBadRequest, response.ErrInvalidPassword},
	{service.ErrAttemptsExceeded, http.StatusForbidden, response.ErrAttemptsExceeded},
	{service.ErrExamUnavailable, http.StatusForbidden, response.ErrExamUnavailable},
	{service.ErrExamExpired, http.StatusConflict, response.ErrExamExpired},
	{service.ErrSessionNotActive, http.StatusConflict, response.ErrSessionNotActive},
	{service.ErrInvalidState, http.StatusConflict, response.ErrInvalidState},
	{service.ErrQuestionNotInExam, http.StatusBadRequest, response.ErrQuestionNotInExam},
	{service.ErrValidation, http.StatusBadRequest, response.ErrValidation},
}

// classify maps a service error to an HTTP status and error code. Unknown
// errors are internal.
func classify(err error) (int, response.ErrCode) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.code
		}
	}
	return http.StatusInternalServerError, response.ErrInternal
}

// respondError writes the error envelope for err. Internal errors are logged
// with the request's context and never leak their message.
func respondError(c *gin.Context, log zerolog.Logger, err error) {
	status, code := classify(err)

	var invalid *service.InvalidQuestionsError
	if errors.As(err, &invalid) {
		response.FailWithData(c, status, code, gin.H{"invalid_question_ids": invalid.IDs})
		return
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).
			Str("request_id", response.RequestID(c)).
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Msg("Request failed")
	}
	response.Fail(c, status, code)
}

// parseUUIDParam reads a UUID path parameter, writing INVALID_ID on failure.
func parseUUIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return id, true
}
