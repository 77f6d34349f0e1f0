package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// ExamQuestion is one entry of an exam's question set as attached by authoring.
// CorrectAnswer is only read by scoring; students get a QuestionView instead.
type ExamQuestion struct {
	ExamID        uuid.UUID       `json:"exam_id"`
	QuestionID    uuid.UUID       `json:"question_id"`
	OrderNum      int             `json:"order_num"`
	Points        float64         `json:"points"`
	QuestionText  string          `json:"question_text"`
	QuestionType  string          `json:"question_type"`
	Options       json.RawMessage `json:"options,omitempty"`
	ImageURL      *string         `json:"image_url,omitempty"`
	CorrectAnswer string          `json:"correct_answer"`
}

// QuestionView is the student-facing shape of a question.
type QuestionView struct {
	ID       uuid.UUID       `json:"id"`
	Order    int             `json:"order"`
	Text     string          `json:"question_text"`
	Type     string          `json:"type"`
	Options  json.RawMessage `json:"options,omitempty"`
	Points   float64         `json:"points"`
	ImageURL *string         `json:"image_url,omitempty"`
}

// View strips the correct answer.
func (q ExamQuestion) View() QuestionView {
	return QuestionView{
		ID:       q.QuestionID,
		Order:    q.OrderNum,
		Text:     q.QuestionText,
		Type:     q.QuestionType,
		Options:  q.Options,
		Points:   q.Points,
		ImageURL: q.ImageURL,
	}
}

// QuestionBatchQuery selects a page of the question paper.
type QuestionBatchQuery struct {
	Start int `form:"start" json:"start" binding:"min=0"`
	Size  int `form:"size" json:"size" binding:"omitempty,min=1,max=50"`
}

// QuestionBatch is one page of an exam's question paper.
type QuestionBatch struct {
	SessionID      uuid.UUID      `json:"session_id"`
	Questions      []QuestionView `json:"questions"`
	Start          int            `json:"start"`
	Size           int            `json:"size"`
	TotalQuestions int            `json:"total_questions"`
}
