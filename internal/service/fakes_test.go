package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-assessment/internal/model"
	"github.com/stemsi/exstem-assessment/internal/repository"
)

var t0 = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

type resultKey struct {
	studentID int
	examID    uuid.UUID
}

// memDB is an in-memory stand-in for PostgreSQL and Redis. A single mutex
// plays the role of the row locks the real repositories take.
type memDB struct {
	mu         sync.Mutex
	exams      map[uuid.UUID]model.Exam
	questions  map[uuid.UUID][]model.ExamQuestion
	sessions   map[uuid.UUID]model.ExamSession
	answers    map[uuid.UUID]map[uuid.UUID]model.StudentAnswer
	violations []model.ViolationRecord
	results    map[resultKey]model.ExamResult
	cache      map[uuid.UUID]model.ExamSnapshot
	beats      []model.Heartbeat

	mutations     int
	questionLoads int
	gradeCalls    int
	activityErr   error
}

func newMemDB() *memDB {
	return &memDB{
		exams:     make(map[uuid.UUID]model.Exam),
		questions: make(map[uuid.UUID][]model.ExamQuestion),
		sessions:  make(map[uuid.UUID]model.ExamSession),
		answers:   make(map[uuid.UUID]map[uuid.UUID]model.StudentAnswer),
		results:   make(map[resultKey]model.ExamResult),
		cache:     make(map[uuid.UUID]model.ExamSnapshot),
	}
}

func (db *memDB) mutationCount() int {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.mutations
}

// ─── Exams & questions ─────────────────────────────────────────────

type fakeExams struct{ db *memDB }

func (f fakeExams) GetByID(_ context.Context, id uuid.UUID) (*model.Exam, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	e, ok := f.db.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (f fakeExams) UpdateState(_ context.Context, e *model.Exam, from model.ExamState) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored, ok := f.db.exams[e.ID]
	if !ok || stored.State != from {
		return repository.ErrConflict
	}
	stored.State = e.State
	stored.PublishedAt = e.PublishedAt
	stored.ActivatedAt = e.ActivatedAt
	f.db.exams[e.ID] = stored
	f.db.mutations++
	return nil
}

func (f fakeExams) ListByStates(_ context.Context, states ...model.ExamState) ([]model.Exam, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.Exam
	for _, e := range f.db.exams {
		for _, s := range states {
			if e.State == s {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

type fakeQuestions struct{ db *memDB }

func (f fakeQuestions) ListByExam(_ context.Context, examID uuid.UUID) ([]model.ExamQuestion, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	f.db.questionLoads++
	return append([]model.ExamQuestion(nil), f.db.questions[examID]...), nil
}

func (f fakeQuestions) CountByExam(_ context.Context, examID uuid.UUID) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return len(f.db.questions[examID]), nil
}

type fakeCache struct{ db *memDB }

func (f fakeCache) Get(_ context.Context, examID uuid.UUID) (*model.ExamSnapshot, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	snap, ok := f.db.cache[examID]
	if !ok {
		return nil, repository.ErrCacheMiss
	}
	return &snap, nil
}

func (f fakeCache) Set(_ context.Context, snap *model.ExamSnapshot) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	stored := *snap
	stored.Exam.Password = ""
	stored.Questions = append([]model.ExamQuestion(nil), snap.Questions...)
	f.db.cache[snap.Exam.ID] = stored
	return nil
}

func (f fakeCache) Invalidate(_ context.Context, examID uuid.UUID) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	delete(f.db.cache, examID)
	return nil
}

// ─── Sessions ──────────────────────────────────────────────────────

type fakeSessions struct{ db *memDB }

func (f fakeSessions) GetByID(_ context.Context, id uuid.UUID) (*model.ExamSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeSessions) findLocked(examID uuid.UUID, studentID int) (model.ExamSession, bool) {
	for _, s := range f.db.sessions {
		if s.ExamID == examID && s.StudentID == studentID {
			return s, true
		}
	}
	return model.ExamSession{}, false
}

func (f fakeSessions) GetByExamAndStudent(_ context.Context, examID uuid.UUID, studentID int) (*model.ExamSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.findLocked(examID, studentID)
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &s, nil
}

func (f fakeSessions) Create(_ context.Context, examID uuid.UUID, studentID int, now time.Time) (*model.ExamSession, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if s, ok := f.findLocked(examID, studentID); ok {
		return &s, false, nil
	}
	s := model.ExamSession{ID: uuid.New(), ExamID: examID, StudentID: studentID, StartedAt: now, IsActive: true}
	f.db.sessions[s.ID] = s
	f.db.mutations++
	return &s, true, nil
}

func (f fakeSessions) Reactivate(_ context.Context, id uuid.UUID, now time.Time) (*model.ExamSession, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[id]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	if s.IsActive {
		return &s, false, nil
	}
	s.IsActive = true
	s.StartedAt = now
	s.EndedAt = nil
	f.db.sessions[id] = s
	f.db.mutations++
	return &s, true, nil
}

func (f fakeSessions) ListExpiredActive(_ context.Context, now time.Time, limit int) ([]model.ExamSession, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.ExamSession
	for _, s := range f.db.sessions {
		if !s.IsActive || len(out) >= limit {
			continue
		}
		e := f.db.exams[s.ExamID]
		if ComputeRemaining(&s, &e, now).ShouldAutoSubmit {
			out = append(out, s)
		}
	}
	return out, nil
}

// ─── Answers, violations, results ─────────────────────────────────

type fakeAnswers struct{ db *memDB }

func (f fakeAnswers) UpsertBatch(_ context.Context, sessionID uuid.UUID, writes []model.AnswerWrite, now time.Time) (int, int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return 0, 0, repository.ErrNotFound
	}
	if !s.IsActive {
		return 0, 0, repository.ErrSessionInactive
	}
	byQuestion := f.db.answers[sessionID]
	if byQuestion == nil {
		byQuestion = make(map[uuid.UUID]model.StudentAnswer)
		f.db.answers[sessionID] = byQuestion
	}
	saved, stale := 0, 0
	for _, w := range writes {
		prev, exists := byQuestion[w.QuestionID]
		if exists && w.Seq != 0 && prev.ClientSeq >= w.Seq {
			stale++
			continue
		}
		seq := w.Seq
		if exists && prev.ClientSeq > seq {
			seq = prev.ClientSeq
		}
		byQuestion[w.QuestionID] = model.StudentAnswer{
			SessionID: sessionID, QuestionID: w.QuestionID, StudentResponse: w.Response, ClientSeq: seq, UpdatedAt: now,
		}
		saved++
	}
	f.db.mutations++
	return saved, stale, nil
}

func (f fakeAnswers) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.StudentAnswer, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.listAnswersLocked(sessionID), nil
}

func (db *memDB) listAnswersLocked(sessionID uuid.UUID) []model.StudentAnswer {
	var out []model.StudentAnswer
	for _, a := range db.answers[sessionID] {
		out = append(out, a)
	}
	return out
}

type fakeViolations struct{ db *memDB }

func (f fakeViolations) Append(_ context.Context, sessionID uuid.UUID, vtype model.ViolationType, details json.RawMessage, now time.Time) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok || !s.IsActive {
		return 0, repository.ErrSessionInactive
	}
	f.db.violations = append(f.db.violations, model.ViolationRecord{
		ID: int64(len(f.db.violations) + 1), SessionID: sessionID, Type: vtype, Details: details, Timestamp: now,
	})
	f.db.mutations++
	count := 0
	for _, v := range f.db.violations {
		if v.SessionID == sessionID {
			count++
		}
	}
	return count, nil
}

func (f fakeViolations) ListBySession(_ context.Context, sessionID uuid.UUID) ([]model.ViolationRecord, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	var out []model.ViolationRecord
	for _, v := range f.db.violations {
		if v.SessionID == sessionID {
			out = append(out, v)
		}
	}
	return out, nil
}

type fakeResults struct{ db *memDB }

func (f fakeResults) CountAttempts(_ context.Context, studentID int, examID uuid.UUID) (int, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	return f.db.results[resultKey{studentID, examID}].Attempts, nil
}

type fakeSubmissions struct{ db *memDB }

func (f fakeSubmissions) Finalize(_ context.Context, sessionID uuid.UUID, now time.Time, grade repository.GradeFunc) (*model.ExamResult, bool, error) {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	s, ok := f.db.sessions[sessionID]
	if !ok {
		return nil, false, repository.ErrNotFound
	}
	key := resultKey{s.StudentID, s.ExamID}
	if !s.IsActive {
		r, ok := f.db.results[key]
		if !ok {
			return nil, false, repository.ErrSessionInactive
		}
		return &r, true, nil
	}

	f.db.gradeCalls++
	r, err := grade(&s, f.db.listAnswersLocked(sessionID))
	if err != nil {
		return nil, false, err
	}
	if prev, ok := f.db.results[key]; ok {
		r.ID = prev.ID
		r.Attempts = prev.Attempts + 1
	} else {
		r.ID = uuid.New()
		r.Attempts = 1
	}
	r.StudentID, r.ExamID, r.SubmittedAt = s.StudentID, s.ExamID, now
	f.db.results[key] = *r

	s.IsActive = false
	s.EndedAt = &now
	f.db.sessions[sessionID] = s
	f.db.mutations++
	return r, false, nil
}

type fakeActivity struct{ db *memDB }

func (f fakeActivity) RecordHeartbeat(_ context.Context, beat model.Heartbeat) error {
	f.db.mu.Lock()
	defer f.db.mu.Unlock()
	if f.db.activityErr != nil {
		return f.db.activityErr
	}
	f.db.beats = append(f.db.beats, beat)
	return nil
}

func (f fakeActivity) Clear(_ context.Context, _ uuid.UUID) error { return nil }

// ─── Engine wiring ─────────────────────────────────────────────────

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEngine struct {
	db          *memDB
	clock       *fakeClock
	exams       *ExamService
	access      *AccessService
	clockSvc    *ClockService
	answers     *AnswerService
	violations  *ViolationService
	submissions *SubmissionService
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()
	db := newMemDB()
	clock := &fakeClock{now: t0}
	log := zerolog.Nop()

	exams := NewExamService(fakeExams{db}, fakeQuestions{db}, fakeCache{db}, log)
	exams.now = clock.Now
	access := NewAccessService(exams, fakeSessions{db}, fakeResults{db}, log)
	access.now = clock.Now
	clockSvc := NewClockService(fakeSessions{db}, exams, fakeActivity{db}, log)
	clockSvc.now = clock.Now
	answers := NewAnswerService(fakeSessions{db}, exams, fakeAnswers{db}, log)
	answers.now = clock.Now
	violations := NewViolationService(fakeSessions{db}, fakeViolations{db}, log)
	violations.now = clock.Now
	submissions := NewSubmissionService(fakeSessions{db}, exams, fakeSubmissions{db}, fakeActivity{db}, log)
	submissions.now = clock.Now

	return &testEngine{
		db:          db,
		clock:       clock,
		exams:       exams,
		access:      access,
		clockSvc:    clockSvc,
		answers:     answers,
		violations:  violations,
		submissions: submissions,
	}
}

// seedExam stores a PUBLISHED 30-minute exam with four one-point questions
// whose correct answers are A, B, C and D.
func (e *testEngine) seedExam(mutate func(*model.Exam)) (model.Exam, []model.ExamQuestion) {
	exam := model.Exam{
		ID:              uuid.New(),
		Title:           "Matematika Dasar",
		DurationMinutes: 30,
		MaxAttempts:     1,
		Password:        "secret",
		State:           model.ExamStatePublished,
		CreatedAt:       t0.Add(-24 * time.Hour),
	}
	if mutate != nil {
		mutate(&exam)
	}

	questions := make([]model.ExamQuestion, 4)
	for i, correct := range []string{"A", "B", "C", "D"} {
		questions[i] = model.ExamQuestion{
			ExamID:        exam.ID,
			QuestionID:    uuid.New(),
			OrderNum:      i + 1,
			Points:        1,
			CorrectAnswer: correct,
		}
	}

	e.db.mu.Lock()
	e.db.exams[exam.ID] = exam
	e.db.questions[exam.ID] = questions
	e.db.mu.Unlock()
	return exam, questions
}

func student(id int) model.Principal {
	return model.Principal{ID: id, Kind: model.PrincipalStudent}
}

// startSession grants access and fails the test on error.
func (e *testEngine) startSession(t *testing.T, examID uuid.UUID, p model.Principal) *model.SessionDescriptor {
	t.Helper()
	desc, err := e.access.RequestAccess(context.Background(), examID, p, "secret")
	if err != nil {
		t.Fatalf("RequestAccess: %v", err)
	}
	return desc
}

var errRedisDown = errors.New("redis: connection refused")
