package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExamSnapshotKey returns the cache key for an exam's metadata and question set.
func (r *CacheKeyStruct) ExamSnapshotKey(examID string) string {
	return fmt.Sprintf("exam:%s:snapshot", examID)
}

// SessionActivityKey returns the cache key holding a session's latest heartbeat.
func (r *CacheKeyStruct) SessionActivityKey(sessionID string) string {
	return fmt.Sprintf("session:%s:activity", sessionID)
}

var CacheKey = NewCacheKeyStruct()
