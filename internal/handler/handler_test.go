package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
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

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	validator.Setup()
	os.Exit(m.Run())
}

// stubServices implements every handler-facing service with overridable funcs.
type stubServices struct {
	access     func(examID uuid.UUID, p model.Principal, password string) (*model.SessionDescriptor, error)
	sync       func(sessionID uuid.UUID) (*model.TimeStatus, error)
	saveBatch  func(writes []model.AnswerWrite) (*model.SaveAck, error)
	violation  func(vtype model.ViolationType) (*model.ViolationAck, error)
	submit     func() (*service.SubmitOutcome, error)
	lastWrites []model.AnswerWrite
	lastPage   [2]int
}

func (s *stubServices) RequestAccess(_ context.Context, examID uuid.UUID, p model.Principal, password string) (*model.SessionDescriptor, error) {
	return s.access(examID, p, password)
}

func (s *stubServices) Sync(_ context.Context, sessionID uuid.UUID, _ model.Principal) (*model.TimeStatus, error) {
	return s.sync(sessionID)
}

func (s *stubServices) Heartbeat(_ context.Context, sessionID uuid.UUID, _ model.Principal, _ *time.Time) (*model.TimeStatus, error) {
	return s.sync(sessionID)
}

func (s *stubServices) SaveAnswer(_ context.Context, _ uuid.UUID, _ model.Principal, w model.AnswerWrite) (*model.SaveAck, error) {
	return s.saveBatch([]model.AnswerWrite{w})
}

func (s *stubServices) SaveAnswerBatch(_ context.Context, _ uuid.UUID, _ model.Principal, writes []model.AnswerWrite) (*model.SaveAck, error) {
	s.lastWrites = writes
	return s.saveBatch(writes)
}

func (s *stubServices) GetCurrentAnswers(context.Context, uuid.UUID, model.Principal) (*model.CurrentAnswers, error) {
	return &model.CurrentAnswers{Answers: map[uuid.UUID]model.AnswerView{}}, nil
}

func (s *stubServices) GetQuestionBatch(_ context.Context, sessionID uuid.UUID, _ model.Principal, start, size int) (*model.QuestionBatch, error) {
	s.lastPage = [2]int{start, size}
	return &model.QuestionBatch{SessionID: sessionID, Questions: []model.QuestionView{}, Start: start, Size: size}, nil
}

func (s *stubServices) LogViolation(_ context.Context, _ uuid.UUID, _ model.Principal, vtype model.ViolationType, _ json.RawMessage) (*model.ViolationAck, error) {
	return s.violation(vtype)
}

func (s *stubServices) GetViolations(context.Context, uuid.UUID, model.Principal) (*model.ViolationReport, error) {
	return &model.ViolationReport{}, nil
}

func (s *stubServices) Submit(context.Context, uuid.UUID, model.Principal) (*service.SubmitOutcome, error) {
	return s.submit()
}

func (s *stubServices) AutoSubmit(context.Context, uuid.UUID, model.Principal) (*service.SubmitOutcome, error) {
	return s.submit()
}

func (s *stubServices) bundle() SessionServices {
	return SessionServices{Access: s, Clock: s, Answers: s, Paper: s, Violations: s, Submission: s}
}

// asStudent stands in for the JWT middleware.
func asStudent(id int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyClaims, &service.Claims{TokenType: service.TokenTypeStudent, UserID: id})
		c.Next()
	}
}

func newTestRouter(stub *stubServices) *gin.Engine {
	h := NewSessionHandler(stub.bundle(), zerolog.Nop())
	wsh := NewWSHandler(stub.bundle(), zerolog.Nop(), nil)

	r := gin.New()
	r.Use(asStudent(7))
	r.POST("/exams/:exam_id/access", h.RequestAccess)
	r.POST("/sessions/:session_id/answers", h.SaveAnswerBatch)
	r.POST("/sessions/:session_id/violations", h.LogViolation)
	r.POST("/sessions/:session_id/submit", h.Submit)
	r.GET("/sessions/:session_id/sync", h.Sync)
	r.GET("/sessions/:session_id/questions", h.GetQuestions)
	r.GET("/sessions/:session_id/stream", wsh.SessionStream)
	return r
}

func do(r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, response.Response) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env response.Response
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   response.ErrCode
	}{
		{service.ErrNotFound, http.StatusNotFound, response.ErrNotFound},
		{service.ErrUnauthorized, http.StatusForbidden, response.ErrUnauthorized},
		{service.ErrInvalidPassword, http.StatusBadRequest, response.ErrInvalidPassword},
		{service.ErrAttemptsExceeded, http.StatusForbidden, response.ErrAttemptsExceeded},
		{service.ErrExamUnavailable, http.StatusForbidden, response.ErrExamUnavailable},
		{service.ErrExamExpired, http.StatusConflict, response.ErrExamExpired},
		{service.ErrSessionNotActive, http.StatusConflict, response.ErrSessionNotActive},
		{service.ErrInvalidState, http.StatusConflict, response.ErrInvalidState},
		{&service.InvalidQuestionsError{IDs: []uuid.UUID{uuid.New()}}, http.StatusBadRequest, response.ErrQuestionNotInExam},
		{service.ErrValidation, http.StatusBadRequest, response.ErrValidation},
		{errors.New("pool closed"), http.StatusInternalServerError, response.ErrInternal},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			status, code := classify(tt.err)
			if status != tt.status || code != tt.code {
				t.Errorf("classify(%v) = %d %s, want %d %s", tt.err, status, code, tt.status, tt.code)
			}
		})
	}
}

func TestRequestAccess(t *testing.T) {
	examID := uuid.New()
	stub := &stubServices{
		access: func(id uuid.UUID, p model.Principal, password string) (*model.SessionDescriptor, error) {
			if id != examID || p.ID != 7 || p.Kind != model.PrincipalStudent {
				t.Errorf("unexpected call: exam %s principal %+v", id, p)
			}
			if password != "secret" {
				return nil, service.ErrInvalidPassword
			}
			return &model.SessionDescriptor{SessionID: uuid.New()}, nil
		},
	}
	r := newTestRouter(stub)

	w, _ := do(r, http.MethodPost, "/exams/"+examID.String()+"/access", gin.H{"password": "secret"})
	if w.Code != http.StatusCreated {
		t.Errorf("new session: status = %d, want 201", w.Code)
	}

	w, env := do(r, http.MethodPost, "/exams/"+examID.String()+"/access", gin.H{"password": "nope"})
	if w.Code != http.StatusBadRequest || env.Error == nil || env.Error.Code != response.ErrInvalidPassword {
		t.Errorf("wrong password: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, env = do(r, http.MethodPost, "/exams/"+examID.String()+"/access", gin.H{})
	if w.Code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Errorf("missing password: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, env = do(r, http.MethodPost, "/exams/not-a-uuid/access", gin.H{"password": "secret"})
	if w.Code != http.StatusBadRequest || env.Error.Code != response.ErrInvalidID {
		t.Errorf("bad id: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSaveAnswerBatchRejectsForeignQuestions(t *testing.T) {
	foreign := uuid.New()
	stub := &stubServices{
		saveBatch: func(writes []model.AnswerWrite) (*model.SaveAck, error) {
			return nil, &service.InvalidQuestionsError{IDs: []uuid.UUID{foreign}}
		},
	}
	r := newTestRouter(stub)

	body := gin.H{"answers": []gin.H{{"question_id": foreign.String(), "response": "A", "seq": 3}}}
	w, env := do(r, http.MethodPost, "/sessions/"+uuid.NewString()+"/answers", body)

	if w.Code != http.StatusBadRequest || env.Error.Code != response.ErrQuestionNotInExam {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), foreign.String()) {
		t.Errorf("response does not list the rejected id: %s", w.Body.String())
	}
	if len(stub.lastWrites) != 1 || stub.lastWrites[0].Seq != 3 || stub.lastWrites[0].QuestionID != foreign {
		t.Errorf("writes = %+v", stub.lastWrites)
	}
}

func TestSaveAnswerBatchValidatesPayload(t *testing.T) {
	r := newTestRouter(&stubServices{})

	w, env := do(r, http.MethodPost, "/sessions/"+uuid.NewString()+"/answers", gin.H{"answers": []gin.H{}})
	if w.Code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Errorf("empty batch: status = %d, body = %s", w.Code, w.Body.String())
	}

	w, _ = do(r, http.MethodPost, "/sessions/"+uuid.NewString()+"/answers", gin.H{"answers": []gin.H{{"question_id": "q1"}}})
	if w.Code != http.StatusBadRequest {
		t.Errorf("non-uuid question: status = %d", w.Code)
	}
}

func TestLogViolationValidatesType(t *testing.T) {
	stub := &stubServices{
		violation: func(vtype model.ViolationType) (*model.ViolationAck, error) {
			return &model.ViolationAck{ViolationCount: 1}, nil
		},
	}
	r := newTestRouter(stub)
	path := "/sessions/" + uuid.NewString() + "/violations"

	w, env := do(r, http.MethodPost, path, gin.H{"type": "SCREENSHOT"})
	if w.Code != http.StatusBadRequest || env.Error.Code != response.ErrValidation {
		t.Errorf("unknown type: status = %d, body = %s", w.Code, w.Body.String())
	}
	if _, ok := env.Error.Fields["type"]; !ok {
		t.Errorf("fields = %v, want a type entry", env.Error.Fields)
	}

	w, _ = do(r, http.MethodPost, path, gin.H{"type": "TAB_SWITCH", "details": gin.H{"count": 2}})
	if w.Code != http.StatusCreated {
		t.Errorf("known type: status = %d, body = %s", w.Code, w.Body.String())
	}
}

func TestSubmitAlreadySubmittedIsSuccess(t *testing.T) {
	stub := &stubServices{
		submit: func() (*service.SubmitOutcome, error) {
			return &service.SubmitOutcome{
				Result:           model.ResultSummary{Score: 3, Percentage: 75, Status: model.ResultStatusCompleted},
				AlreadySubmitted: true,
			}, nil
		},
	}
	r := newTestRouter(stub)

	w, _ := do(r, http.MethodPost, "/sessions/"+uuid.NewString()+"/submit", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"already_submitted":true`) {
		t.Errorf("body = %s", w.Body.String())
	}
}

func TestInternalErrorIsOpaque(t *testing.T) {
	stub := &stubServices{
		sync: func(uuid.UUID) (*model.TimeStatus, error) {
			return nil, errors.New("dial tcp 10.0.0.5:5432: connection refused")
		},
	}
	r := newTestRouter(stub)

	w, env := do(r, http.MethodGet, "/sessions/"+uuid.NewString()+"/sync", nil)
	if w.Code != http.StatusInternalServerError || env.Error.Code != response.ErrInternal {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if strings.Contains(w.Body.String(), "10.0.0.5") {
		t.Errorf("internal detail leaked: %s", w.Body.String())
	}
}

func TestGetQuestionsValidatesPage(t *testing.T) {
	sessionID := uuid.NewString()
	tests := []struct {
		query    string
		status   int
		wantPage [2]int
	}{
		{query: "", status: http.StatusOK, wantPage: [2]int{0, 0}},
		{query: "?start=10&size=5", status: http.StatusOK, wantPage: [2]int{10, 5}},
		{query: "?start=-1", status: http.StatusBadRequest},
		{query: "?size=51", status: http.StatusBadRequest},
		{query: "?start=abc", status: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			stub := &stubServices{lastPage: [2]int{-9, -9}}
			w, env := do(newTestRouter(stub), http.MethodGet, "/sessions/"+sessionID+"/questions"+tt.query, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status != http.StatusOK {
				if env.Error == nil || env.Error.Code != response.ErrValidation {
					t.Errorf("error = %+v, want VALIDATION_ERROR", env.Error)
				}
				return
			}
			if stub.lastPage != tt.wantPage {
				t.Errorf("page = %v, want %v", stub.lastPage, tt.wantPage)
			}
		})
	}
}

func TestSessionStream(t *testing.T) {
	sessionID := uuid.New()
	stub := &stubServices{
		sync: func(id uuid.UUID) (*model.TimeStatus, error) {
			if id != sessionID {
				return nil, service.ErrNotFound
			}
			return &model.TimeStatus{RemainingSeconds: 1799}, nil
		},
		saveBatch: func(writes []model.AnswerWrite) (*model.SaveAck, error) {
			return nil, service.ErrExamExpired
		},
	}
	srv := httptest.NewServer(newTestRouter(stub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + sessionID.String() + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	roundTrip := func(req interface{}) ws.ResponseEnvelope {
		t.Helper()
		if err := conn.WriteJSON(req); err != nil {
			t.Fatalf("write: %v", err)
		}
		var resp ws.ResponseEnvelope
		if err := conn.ReadJSON(&resp); err != nil {
			t.Fatalf("read: %v", err)
		}
		return resp
	}

	resp := roundTrip(ws.RequestEnvelope{Action: ws.ActionSync, RequestID: "r1"})
	if resp.Event != ws.EventResult || resp.RequestID != "r1" {
		t.Errorf("sync reply = %+v", resp)
	}

	resp = roundTrip(ws.RequestEnvelope{
		Action:  ws.ActionAutosave,
		Payload: json.RawMessage(`{"question_id":"` + uuid.NewString() + `","response":"B"}`),
	})
	if resp.Event != ws.EventError || resp.Error.Code != string(response.ErrExamExpired) {
		t.Errorf("autosave reply = %+v", resp)
	}

	resp = roundTrip(ws.RequestEnvelope{Action: ws.ActionAutosave, Payload: json.RawMessage(`{"response":"B"}`)})
	if resp.Event != ws.EventError || resp.Error.Code != string(response.ErrValidation) {
		t.Errorf("invalid autosave reply = %+v", resp)
	}

	for _, qid := range []string{"not-a-uuid", "{" + uuid.NewString() + "}", "urn:uuid:" + uuid.NewString()} {
		resp = roundTrip(ws.RequestEnvelope{
			Action:    ws.ActionAutosave,
			RequestID: qid,
			Payload:   json.RawMessage(`{"question_id":"` + qid + `","response":"B"}`),
		})
		if resp.Event != ws.EventError || resp.Error == nil || resp.RequestID != qid {
			t.Errorf("autosave with question_id %q reply = %+v", qid, resp)
		}
	}

	resp = roundTrip(ws.RequestEnvelope{Action: "teleport"})
	if resp.Event != ws.EventError || resp.Error.Code != string(response.ErrInvalidPayload) {
		t.Errorf("unknown action reply = %+v", resp)
	}

	resp = roundTrip(ws.RequestEnvelope{Action: ws.ActionPing, RequestID: "p"})
	if resp.Event != ws.EventPong || resp.RequestID != "p" {
		t.Errorf("ping reply = %+v", resp)
	}
}

func TestSessionStreamRejectsForeignSession(t *testing.T) {
	stub := &stubServices{
		sync: func(uuid.UUID) (*model.TimeStatus, error) { return nil, service.ErrUnauthorized },
	}
	srv := httptest.NewServer(newTestRouter(stub))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/sessions/" + uuid.NewString() + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded, want handshake failure")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("handshake response = %v, want 403", resp)
	}
}

type stubChecker struct{ healthy bool }

func (s stubChecker) Check(context.Context) (map[string]string, bool) {
	if s.healthy {
		return map[string]string{"postgres": "ok", "redis": "ok"}, true
	}
	return map[string]string{"postgres": "ok", "redis": "unavailable"}, false
}

func TestHealth(t *testing.T) {
	for _, healthy := range []bool{true, false} {
		r := gin.New()
		r.GET("/health", NewHealthHandler(stubChecker{healthy: healthy}).Health)

		w, _ := do(r, http.MethodGet, "/health", nil)
		want := http.StatusOK
		if !healthy {
			want = http.StatusServiceUnavailable
		}
		if w.Code != want {
			t.Errorf("healthy=%v: status = %d, want %d", healthy, w.Code, want)
		}
	}
}

type stubLifecycle struct {
	exam *model.Exam
	err  error
}

func (s stubLifecycle) MarkReady(context.Context, uuid.UUID) (*model.Exam, error) { return s.exam, s.err }
func (s stubLifecycle) Publish(context.Context, uuid.UUID) (*model.Exam, error)   { return s.exam, s.err }
func (s stubLifecycle) Activate(context.Context, uuid.UUID) (*model.Exam, error)  { return s.exam, s.err }
func (s stubLifecycle) RefreshCache(context.Context, uuid.UUID) (*model.ExamSnapshot, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &model.ExamSnapshot{Exam: *s.exam}, nil
}

func TestExamTransitions(t *testing.T) {
	examID := uuid.New()
	published := &model.Exam{ID: examID, State: model.ExamStatePublished, Password: "secret"}

	tests := []struct {
		name   string
		stub   stubLifecycle
		path   string
		status int
	}{
		{name: "publish", stub: stubLifecycle{exam: published}, path: "/publish", status: http.StatusOK},
		{name: "guard failure", stub: stubLifecycle{err: service.ErrInvalidState}, path: "/ready", status: http.StatusConflict},
		{name: "missing exam", stub: stubLifecycle{err: service.ErrNotFound}, path: "/activate", status: http.StatusNotFound},
		{name: "refresh", stub: stubLifecycle{exam: published}, path: "/refresh-cache", status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewExamHandler(tt.stub, zerolog.Nop())
			r := gin.New()
			g := r.Group("/exams/:exam_id")
			g.POST("/ready", h.MarkReady)
			g.POST("/publish", h.Publish)
			g.POST("/activate", h.Activate)
			g.POST("/refresh-cache", h.RefreshCache)

			w, _ := do(r, http.MethodPost, "/exams/"+examID.String()+tt.path, nil)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			if strings.Contains(w.Body.String(), "secret") {
				t.Errorf("exam password leaked: %s", w.Body.String())
			}
		})
	}
}
