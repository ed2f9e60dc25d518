// Package limiter bounds concurrent jobs in serve mode.
package limiter

import (
	"strings"
	"sync"
)

// Slots hands out a bounded number of in-process job slots per key.
type Slots struct {
	maxInflight int
	mu          sync.Mutex
	sem         map[string]chan struct{}
}

func New(maxInflight int) *Slots {
	if maxInflight <= 0 {
		maxInflight = 2
	}
	return &Slots{maxInflight: maxInflight, sem: map[string]chan struct{}{}}
}

// Max is the per-key slot count.
func (s *Slots) Max() int { return s.maxInflight }

// Allow tries to reserve a slot for key.
// Returns a release function and true if allowed; otherwise a no-op and false.
func (s *Slots) Allow(key string) (func(), bool) {
	key = strings.ToLower(key)
	s.mu.Lock()
	ch, ok := s.sem[key]
	if !ok {
		ch = make(chan struct{}, s.maxInflight)
		s.sem[key] = ch
	}
	s.mu.Unlock()
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, true
	default:
		return func() {}, false
	}
}
