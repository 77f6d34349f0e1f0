package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/middleware"
	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/response"
	"github.com/stemsi/exstem-assessment/internal/service"
	"github.com/stemsi/exstem-assessment/internal/validator"
	ws "github.com/stemsi/exstem-assessment/internal/websocket"
)

// actionTimeout bounds a single action's service call.
const actionTimeout = 15 * time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler serves the session operations over a WebSocket. Every frame the
// server writes is the reply to one client frame.
type WSHandler struct {
	svc      SessionServices
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(svc SessionServices, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		svc:      svc,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/sessions/:session_id/stream
// Upgrades to WebSocket for sync, heartbeat, autosave, violation and submit.
func (h *WSHandler) SessionStream(c *gin.Context) {
	p, ok := middleware.GetPrincipal(c)
	if !ok {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	sessionID, ok := parseUUIDParam(c, "session_id")
	if !ok {
		return
	}

	// Reject closed or foreign sessions before upgrading so the client sees a
	// plain HTTP error.
	if _, err := h.svc.Clock.Sync(c.Request.Context(), sessionID, p); err != nil {
		respondError(c, h.log, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", p.ID).
		Str("session_id", sessionID.String()).
		Logger()
	wsLog.Info().Msg("Student connected")

	ctx := c.Request.Context()
	for {
		var req ws.RequestEnvelope
		if err := ws.ReadJSON(conn, &req); err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
				ws.WriteError(conn, nil, wsErrorBody(response.ErrInvalidPayload, nil))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		data, body := h.dispatch(ctx, sessionID, p, &req)
		if body != nil {
			err = ws.WriteError(conn, &req, *body)
		} else if req.Action == ws.ActionPing {
			err = ws.WriteTyped(conn, ws.ResponseEnvelope{Event: ws.EventPong, RequestID: req.RequestID})
		} else {
			err = ws.WriteResult(conn, &req, data)
		}
		if err != nil {
			wsLog.Debug().Err(err).Msg("Write failed")
			return
		}

		if req.Action == ws.ActionSubmit && body == nil {
			wsLog.Info().Msg("Session submitted over WebSocket")
		}
	}
}

// dispatch runs one action and returns either its reply data or an error body.
func (h *WSHandler) dispatch(parent context.Context, sessionID uuid.UUID, p model.Principal, req *ws.RequestEnvelope) (interface{}, *ws.ErrorBody) {
	ctx, cancel := context.WithTimeout(parent, actionTimeout)
	defer cancel()

	var (
		data interface{}
		err  error
	)

	switch req.Action {
	case ws.ActionPing:
		return nil, nil

	case ws.ActionSync:
		data, err = h.svc.Clock.Sync(ctx, sessionID, p)

	case ws.ActionHeartbeat:
		var payload model.HeartbeatRequest
		if fields := validator.Decode(req.Payload, &payload); fields != nil {
			return nil, validationBody(fields)
		}
		data, err = h.svc.Clock.Heartbeat(ctx, sessionID, p, payload.ClientTime)

	case ws.ActionAutosave:
		var payload ws.AutosavePayload
		if fields := validator.Decode(req.Payload, &payload); fields != nil {
			return nil, validationBody(fields)
		}
		questionID, perr := uuid.Parse(payload.QuestionID)
		if perr != nil {
			body := wsErrorBody(response.ErrInvalidID, nil)
			return nil, &body
		}
		data, err = h.svc.Answers.SaveAnswer(ctx, sessionID, p, model.AnswerWrite{
			QuestionID: questionID,
			Response:   payload.Response,
			Seq:        payload.Seq,
		})

	case ws.ActionAutosaveBatch:
		var payload model.SaveAnswerBatchRequest
		if fields := validator.Decode(req.Payload, &payload); fields != nil {
			return nil, validationBody(fields)
		}
		writes, perr := batchWrites(payload.Answers)
		if perr != nil {
			body := wsErrorBody(response.ErrInvalidID, nil)
			return nil, &body
		}
		data, err = h.svc.Answers.SaveAnswerBatch(ctx, sessionID, p, writes)

	case ws.ActionViolation:
		var payload model.LogViolationRequest
		if fields := validator.Decode(req.Payload, &payload); fields != nil {
			return nil, validationBody(fields)
		}
		data, err = h.svc.Violations.LogViolation(ctx, sessionID, p, model.ViolationType(payload.Type), payload.Details)

	case ws.ActionSubmit:
		data, err = h.svc.Submission.Submit(ctx, sessionID, p)

	default:
		body := wsErrorBody(response.ErrInvalidPayload, map[string]string{"action": "unknown action: " + string(req.Action)})
		return nil, &body
	}

	if err != nil {
		_, code := classify(err)
		if code == response.ErrInternal {
			h.log.Error().Err(err).
				Str("session_id", sessionID.String()).
				Str("action", string(req.Action)).
				Msg("WebSocket action failed")
		}
		body := wsErrorBody(code, nil)
		var invalid *service.InvalidQuestionsError
		if errors.As(err, &invalid) {
			body.Fields = make(map[string]string, len(invalid.IDs))
			for _, id := range invalid.IDs {
				body.Fields[id.String()] = "question does not belong to this exam"
			}
		}
		return nil, &body
	}
	return data, nil
}

func validationBody(fields map[string]string) *ws.ErrorBody {
	body := wsErrorBody(response.ErrValidation, fields)
	return &body
}

func wsErrorBody(code response.ErrCode, fields map[string]string) ws.ErrorBody {
	return ws.ErrorBody{Code: string(code), Message: response.GetMessage(code), Fields: fields}
}
