package model

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus enumerates the outcomes of an exam attempt.
type ResultStatus string

const (
	ResultStatusInProgress ResultStatus = "IN_PROGRESS"
	ResultStatusCompleted  ResultStatus = "COMPLETED"
	ResultStatusPassed     ResultStatus = "PASSED"
	ResultStatusFailed     ResultStatus = "FAILED"
)

// ExamResult is the scored outcome for a (student, exam) pair. A later attempt
// overwrites the score and increments Attempts.
type ExamResult struct {
	ID             uuid.UUID    `json:"id"`
	StudentID      int          `json:"student_id"`
	ExamID         uuid.UUID    `json:"exam_id"`
	Score          float64      `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	TotalQuestions int          `json:"total_questions"`
	Percentage     float64      `json:"percentage"`
	Status         ResultStatus `json:"status"`
	SubmittedAt    time.Time    `json:"submitted_at"`
	AutoSubmitted  bool         `json:"auto_submitted"`
	Attempts       int          `json:"attempts"`
}

// ResultSummary is what submit and auto-submit return to the client.
type ResultSummary struct {
	ResultID       uuid.UUID    `json:"result_id"`
	Score          float64      `json:"score"`
	CorrectAnswers int          `json:"correct_answers"`
	TotalQuestions int          `json:"total_questions"`
	Percentage     float64      `json:"percentage"`
	Status         ResultStatus `json:"status"`
	AutoSubmitted  bool         `json:"auto_submitted"`
	SubmittedAt    time.Time    `json:"submitted_at"`
}

// Summary converts a stored result into the client-facing summary.
func (r *ExamResult) Summary() ResultSummary {
	return ResultSummary{
		ResultID:       r.ID,
		Score:          r.Score,
		CorrectAnswers: r.CorrectAnswers,
		TotalQuestions: r.TotalQuestions,
		Percentage:     r.Percentage,
		Status:         r.Status,
		AutoSubmitted:  r.AutoSubmitted,
		SubmittedAt:    r.SubmittedAt,
	}
}
