package model

import (
	"time"

	"github.com/google/uuid"
)

// StudentAnswer is the latest response to one question within a session.
type StudentAnswer struct {
	SessionID       uuid.UUID `json:"session_id"`
	QuestionID      uuid.UUID `json:"question_id"`
	StudentResponse string    `json:"response"`
	ClientSeq       int64     `json:"client_seq,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AnswerWrite is one validated entry of a save request.
// Seq is an optional per-client monotonic counter; zero disables stale-write checks.
type AnswerWrite struct {
	QuestionID uuid.UUID
	Response   string
	Seq        int64
}

// SaveAnswerRequest is the payload for saving a single answer.
type SaveAnswerRequest struct {
	Response string `json:"response" binding:"max=10000"`
	Seq      int64  `json:"seq" binding:"min=0"`
}

// BatchAnswerItem is one entry of a batch save payload.
type BatchAnswerItem struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Response   string `json:"response" binding:"max=10000"`
	Seq        int64  `json:"seq" binding:"min=0"`
}

// SaveAnswerBatchRequest is the payload for saving many answers at once.
type SaveAnswerBatchRequest struct {
	Answers []BatchAnswerItem `json:"answers" binding:"required,min=1,max=500,dive"`
}

// SaveAck acknowledges a save. Stale counts writes skipped because a newer
// sequence number was already stored.
type SaveAck struct {
	Saved int `json:"saved"`
	Stale int `json:"stale"`
}

// AnswerView is the resume-after-reconnect representation of one answer.
type AnswerView struct {
	Response  string    `json:"response"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CurrentAnswers maps question IDs to the stored responses.
type CurrentAnswers struct {
	Answers      map[uuid.UUID]AnswerView `json:"answers"`
	TotalAnswers int                      `json:"total_answers"`
}
