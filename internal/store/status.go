// Package store keeps job status for serve mode.
package store

import (
	"context"
	"sync"
	"time"
)

// Job states.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

type Status struct {
	Status   string                 `json:"status"`
	Progress int                    `json:"progress"`
	Message  string                 `json:"message"`
	Start    *time.Time             `json:"start_time,omitempty"`
	End      *time.Time             `json:"end_time,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Done reports whether the job reached a terminal state.
func (s Status) Done() bool { return s.Status == StatusSuccess || s.Status == StatusFailed }

// StatusStore persists job status by job ID.
type StatusStore interface {
	Set(ctx context.Context, jobID string, st Status) error
	Get(ctx context.Context, jobID string) (Status, bool, error)
	Close() error
}

// MemoryStatus is the in-process fallback used when Redis is not configured.
type MemoryStatus struct {
	mu   sync.RWMutex
	jobs map[string]Status
}

func NewMemoryStatus() *MemoryStatus {
	return &MemoryStatus{jobs: make(map[string]Status)}
}

func (s *MemoryStatus) Set(_ context.Context, jobID string, st Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[jobID] = st
	return nil
}

func (s *MemoryStatus) Get(_ context.Context, jobID string) (Status, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.jobs[jobID]
	return st, ok, nil
}

func (s *MemoryStatus) Close() error { return nil }
