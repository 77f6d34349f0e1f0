package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ViolationType enumerates client-reported proctoring events.
type ViolationType string

const (
	ViolationTabSwitch      ViolationType = "TAB_SWITCH"
	ViolationWindowBlur     ViolationType = "WINDOW_BLUR"
	ViolationProhibitedKey  ViolationType = "PROHIBITED_KEY"
	ViolationRightClick     ViolationType = "RIGHT_CLICK"
	ViolationCopyPaste      ViolationType = "COPY_PASTE"
	ViolationFullscreenExit ViolationType = "FULLSCREEN_EXIT"
)

// KnownViolationTypes lists every accepted violation type.
var KnownViolationTypes = []ViolationType{
	ViolationTabSwitch,
	ViolationWindowBlur,
	ViolationProhibitedKey,
	ViolationRightClick,
	ViolationCopyPaste,
	ViolationFullscreenExit,
}

// IsKnownViolationType reports whether t is an accepted violation type.
func IsKnownViolationType(t string) bool {
	for _, k := range KnownViolationTypes {
		if string(k) == t {
			return true
		}
	}
	return false
}

// ViolationRecord is one append-only proctoring event.
type ViolationRecord struct {
	ID        int64           `json:"id"`
	SessionID uuid.UUID       `json:"session_id"`
	Type      ViolationType   `json:"type"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// LogViolationRequest is the payload for reporting a violation.
type LogViolationRequest struct {
	Type    string          `json:"type" binding:"required,violation_type"`
	Details json.RawMessage `json:"details" binding:"omitempty"`
}

// ViolationAck is returned after a violation is recorded.
type ViolationAck struct {
	ViolationCount int `json:"violation_count"`
}

// ViolationReport is the full log for a session plus per-type counts,
// used by reviewers for threshold flagging.
type ViolationReport struct {
	Violations      []ViolationRecord     `json:"violations"`
	TotalViolations int                   `json:"total_violations"`
	CountsByType    map[ViolationType]int `json:"counts_by_type"`
}

// NewViolationReport builds a report from an ordered list of records.
func NewViolationReport(records []ViolationRecord) ViolationReport {
	if records == nil {
		records = []ViolationRecord{}
	}
	counts := make(map[ViolationType]int)
	for _, r := range records {
		counts[r.Type]++
	}
	return ViolationReport{
		Violations:      records,
		TotalViolations: len(records),
		CountsByType:    counts,
	}
}
