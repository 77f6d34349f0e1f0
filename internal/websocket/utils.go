package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait bounds client silence. Heartbeats arrive far more often.
	readWait = 5 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v interface{}) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteResult replies to req with data.
func WriteResult(conn *websocket.Conn, req *RequestEnvelope, data interface{}) error {
	return WriteTyped(conn, ResponseEnvelope{
		Event:     EventResult,
		Action:    req.Action,
		RequestID: req.RequestID,
		Data:      data,
	})
}

// WriteError replies to req with an error. req may be nil when the frame
// could not be decoded.
func WriteError(conn *websocket.Conn, req *RequestEnvelope, body ErrorBody) error {
	env := ResponseEnvelope{Event: EventError, Error: &body}
	if req != nil {
		env.Action = req.Action
		env.RequestID = req.RequestID
	}
	return WriteTyped(conn, env)
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v interface{}) error {
	conn.SetReadDeadline(time.Now().Add(readWait))
	return conn.ReadJSON(v)
}
