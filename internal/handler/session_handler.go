package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/validator"
)

// SessionHandler serves the student-facing session endpoints.
type SessionHandler struct {
	svc SessionServices
	log zerolog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc SessionServices, log zerolog.Logger) *SessionHandler {
	return &SessionHandler{
		svc: svc,
		log: log.With().Str("component", "session_handler").Logger(),
	}
}

// principalAndSession resolves the caller and the :session_id parameter.
func (h *SessionHandler) principalAndSession(c *gin.Context) (model.Principal, uuid.UUID, bool) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return p, uuid.Nil, false
	}
	sessionID, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return p, uuid.Nil, false
	}
	return p, sessionID, true
}

// RequestAccess godoc
// POST /api/v1/student/exams/:exam_id/access
// Checks the exam password and opens, resumes or reactivates the caller's session.
func (h *SessionHandler) RequestAccess(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	var req model.AccessExamRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	desc, err := h.svc.Access.RequestAccess(c.Request.Context(), examID, p, req.Password)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	status := http.StatusCreated
	if desc.Resumed {
		status = http.StatusOK
	}
	response.Success(c, status, desc)
}

// Sync godoc
// GET /api/v1/student/sessions/:session_id/sync
// Returns the server-authoritative remaining time.
func (h *SessionHandler) Sync(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	status, err := h.svc.Clock.Sync(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// Heartbeat godoc
// POST /api/v1/student/sessions/:session_id/heartbeat
// Records liveness and returns the remaining time.
func (h *SessionHandler) Heartbeat(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	var req model.HeartbeatRequest
	if c.Request.ContentLength != 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	status, err := h.svc.Clock.Heartbeat(c.Request.Context(), sessionID, p, req.ClientTime)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, status)
}

// GetQuestions godoc
// GET /api/v1/student/sessions/:session_id/questions?start=&size=
// Returns one page of the question paper without correct answers.
func (h *SessionHandler) GetQuestions(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	var q model.QuestionBatchQuery
	if fields := validator.BindQuery(c, &q); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	batch, err := h.svc.Paper.GetQuestionBatch(c.Request.Context(), sessionID, p, q.Start, q.Size)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, batch)
}

// SaveAnswer godoc
// PUT /api/v1/student/sessions/:session_id/answers/:question_id
func (h *SessionHandler) SaveAnswer(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}
	questionID, ok := parseUUIDParam(c, "question_id")
	if !ok {
		return
	}

	var req model.SaveAnswerRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ack, err := h.svc.Answers.SaveAnswer(c.Request.Context(), sessionID, p, model.AnswerWrite{
		QuestionID: questionID,
		Response:   req.Response,
		Seq:        req.Seq,
	})
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ack)
}

// SaveAnswerBatch godoc
// POST /api/v1/student/sessions/:session_id/answers
// Saves many answers atomically: either every item is applied or none is.
func (h *SessionHandler) SaveAnswerBatch(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	var req model.SaveAnswerBatchRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	writes, err := batchWrites(req.Answers)
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ack, err := h.svc.Answers.SaveAnswerBatch(c.Request.Context(), sessionID, p, writes)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, ack)
}

// GetAnswers godoc
// GET /api/v1/student/sessions/:session_id/answers
func (h *SessionHandler) GetAnswers(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	answers, err := h.svc.Answers.GetCurrentAnswers(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, answers)
}

// LogViolation godoc
// POST /api/v1/student/sessions/:session_id/violations
func (h *SessionHandler) LogViolation(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	var req model.LogViolationRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	ack, err := h.svc.Violations.LogViolation(c.Request.Context(), sessionID, p, model.ViolationType(req.Type), req.Details)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusCreated, ack)
}

// GetViolations godoc
// GET /api/v1/student/sessions/:session_id/violations
// GET /api/v1/admin/sessions/:session_id/violations
func (h *SessionHandler) GetViolations(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	report, err := h.svc.Violations.GetViolations(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, report)
}

// Submit godoc
// POST /api/v1/student/sessions/:session_id/submit
// A repeated submit returns the stored result with already_submitted=true.
func (h *SessionHandler) Submit(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	outcome, err := h.svc.Submission.Submit(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// AutoSubmit godoc
// POST /api/v1/student/sessions/:session_id/auto-submit
func (h *SessionHandler) AutoSubmit(c *gin.Context) {
	p, sessionID, ok := h.principalAndSession(c)
	if !ok {
		return
	}

	outcome, err := h.svc.Submission.AutoSubmit(c.Request.Context(), sessionID, p)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	response.Success(c, http.StatusOK, outcome)
}

// batchWrites converts validated batch items into answer writes.
func batchWrites(items []model.BatchAnswerItem) ([]model.AnswerWrite, error) {
	writes := make([]model.AnswerWrite, 0, len(items))
	for _, item := range items {
		qid, err := uuid.Parse(item.QuestionID)
		if err != nil {
			return nil, err
		}
		writes = append(writes, model.AnswerWrite{QuestionID: qid, Response: item.Response, Seq: item.Seq})
	}
	return writes, nil
}
