package websocket

import "encoding/json"

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionSync          Action = "sync"
	ActionHeartbeat     Action = "heartbeat"
	ActionAutosave      Action = "autosave"
	ActionAutosaveBatch Action = "autosave_batch"
	ActionViolation     Action = "violation"
	ActionSubmit        Action = "submit"
	ActionPing          Action = "ping"
)

// RequestEnvelope carries one client request. Payload is decoded once the
// action is known. RequestID is echoed back so clients can match replies.
type RequestEnvelope struct {
	Action    Action          `json:"action"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// AutosavePayload saves a single answer.
type AutosavePayload struct {
	QuestionID string `json:"question_id" binding:"required,uuid"`
	Response   string `json:"response" binding:"max=10000"`
	Seq        int64  `json:"seq" binding:"min=0"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventResult Event = "result"
	EventError  Event = "error"
	EventPong   Event = "pong"
)

// ResponseEnvelope answers exactly one RequestEnvelope. The server never
// sends a frame that is not a reply.
type ResponseEnvelope struct {
	Event     Event       `json:"event"`
	Action    Action      `json:"action,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody mirrors the HTTP error envelope.
type ErrorBody struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}
