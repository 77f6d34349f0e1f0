package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
)

// ExamHandler exposes the exam lifecycle transitions to administrators.
type ExamHandler struct {
	exams ExamLifecycle
	log   zerolog.Logger
}

// NewExamHandler creates a new ExamHandler.
func NewExamHandler(exams ExamLifecycle, log zerolog.Logger) *ExamHandler {
	return &ExamHandler{
		exams: exams,
		log:   log.With().Str("component", "exam_handler").Logger(),
	}
}

// MarkReady godoc
// POST /api/v1/admin/exams/:exam_id/ready
func (h *ExamHandler) MarkReady(c *gin.Context) {
	h.transition(c, "ready", h.exams.MarkReady)
}

// Publish godoc
// POST /api/v1/admin/exams/:exam_id/publish
// Publishes a READY exam and warms its snapshot cache.
func (h *ExamHandler) Publish(c *gin.Context) {
	h.transition(c, "publish", h.exams.Publish)
}

// Activate godoc
// POST /api/v1/admin/exams/:exam_id/activate
func (h *ExamHandler) Activate(c *gin.Context) {
	h.transition(c, "activate", h.exams.Activate)
}

// RefreshCache godoc
// POST /api/v1/admin/exams/:exam_id/refresh-cache
// Rebuilds the cached snapshot after authoring changed the exam or its questions.
func (h *ExamHandler) RefreshCache(c *gin.Context) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	snap, err := h.exams.RefreshCache(c.Request.Context(), examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{
		"exam_id":         snap.Exam.ID,
		"state":           snap.Exam.State,
		"total_questions": len(snap.Questions),
	})
}

func (h *ExamHandler) transition(c *gin.Context, action string, fn func(context.Context, uuid.UUID) (*model.Exam, error)) {
	examID, ok := parseUUIDParam(c, "exam_id")
	if !ok {
		return
	}

	exam, err := fn(c.Request.Context(), examID)
	if err != nil {
		respondError(c, h.log, err)
		return
	}

	h.log.Info().
		Str("exam_id", examID.String()).
		Str("action", action).
		Str("state", string(exam.State)).
		Msg("Exam transitioned")
	response.Success(c, http.StatusOK, gin.H{"exam": exam})
}
