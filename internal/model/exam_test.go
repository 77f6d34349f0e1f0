package model

import (
	"errors"
	"testing"
	"time"
)

var now = time.Date(2026, 5, 4, 8, 0, 0, 0, time.UTC)

func TestActivateIfDue(t *testing.T) {
	for _, state := range []ExamState{ExamStateDraft, ExamStateReady, ExamStateActive} {
		e := Exam{State: state}
		got, changed := ActivateIfDue(e, now)
		if changed || got.State != state || got.ActivatedAt != nil {
			t.Errorf("ActivateIfDue(%s) = %s changed=%v", state, got.State, changed)
		}
	}

	original := Exam{State: ExamStatePublished}
	got, changed := ActivateIfDue(original, now)
	if !changed || got.State != ExamStateActive || got.ActivatedAt == nil || !got.ActivatedAt.Equal(now) {
		t.Errorf("ActivateIfDue(PUBLISHED) = %+v changed=%v", got, changed)
	}
	if original.State != ExamStatePublished {
		t.Error("ActivateIfDue mutated its input")
	}
}

func TestLifecycleGuards(t *testing.T) {
	tests := []struct {
		name    string
		run     func() (Exam, error)
		want    ExamState
		wantErr bool
	}{
		{name: "ready with questions", run: func() (Exam, error) { return MarkReady(Exam{State: ExamStateDraft}, 3) }, want: ExamStateReady},
		{name: "ready without questions", run: func() (Exam, error) { return MarkReady(Exam{State: ExamStateDraft}, 0) }, wantErr: true},
		{name: "ready from published", run: func() (Exam, error) { return MarkReady(Exam{State: ExamStatePublished}, 3) }, wantErr: true},
		{name: "publish", run: func() (Exam, error) {
			return Publish(Exam{State: ExamStateReady, Password: "pw", DurationMinutes: 60}, 1, now)
		}, want: ExamStatePublished},
		{name: "publish zero questions", run: func() (Exam, error) {
			return Publish(Exam{State: ExamStateReady, Password: "pw", DurationMinutes: 60}, 0, now)
		}, wantErr: true},
		{name: "publish without password", run: func() (Exam, error) {
			return Publish(Exam{State: ExamStateReady, DurationMinutes: 60}, 1, now)
		}, wantErr: true},
		{name: "publish without duration", run: func() (Exam, error) {
			return Publish(Exam{State: ExamStateReady, Password: "pw"}, 1, now)
		}, wantErr: true},
		{name: "publish from draft", run: func() (Exam, error) {
			return Publish(Exam{State: ExamStateDraft, Password: "pw", DurationMinutes: 60}, 1, now)
		}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.run()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidState) {
					t.Fatalf("err = %v, want ErrInvalidState", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.State != tt.want {
				t.Errorf("state = %s, want %s", got.State, tt.want)
			}
		})
	}
}

func TestActivate(t *testing.T) {
	if _, _, err := Activate(Exam{State: ExamStateReady}, now); !errors.Is(err, ErrInvalidState) {
		t.Errorf("activate READY: err = %v", err)
	}

	at := now.Add(-time.Hour)
	active := Exam{State: ExamStateActive, ActivatedAt: &at}
	got, changed, err := Activate(active, now)
	if err != nil || changed || !got.ActivatedAt.Equal(at) {
		t.Errorf("activate ACTIVE: %+v changed=%v err=%v", got, changed, err)
	}

	got, changed, err = Activate(Exam{State: ExamStatePublished}, now)
	if err != nil || !changed || got.State != ExamStateActive {
		t.Errorf("activate PUBLISHED: %+v changed=%v err=%v", got, changed, err)
	}
}

func TestNewViolationReport(t *testing.T) {
	empty := NewViolationReport(nil)
	if empty.Violations == nil || empty.TotalViolations != 0 {
		t.Errorf("empty report = %+v", empty)
	}

	r := NewViolationReport([]ViolationRecord{
		{Type: ViolationTabSwitch}, {Type: ViolationFullscreenExit}, {Type: ViolationTabSwitch},
	})
	if r.TotalViolations != 3 || r.CountsByType[ViolationTabSwitch] != 2 || r.CountsByType[ViolationFullscreenExit] != 1 {
		t.Errorf("report = %+v", r)
	}
	if !IsKnownViolationType("COPY_PASTE") || IsKnownViolationType("copy_paste") {
		t.Error("IsKnownViolationType must match exact upper-case names")
	}
}
