package session

import (
	"context"
	"log"
	"sync"
	"time"

	"cascade-studio/internal/store"
)

// SessionStore is the slice of the store the session package needs.
type SessionStore interface {
	SaveSession(ctx context.Context, rec store.SessionRecord) error
	LoadSession(ctx context.Context, connectionID string) (*store.SessionRecord, error)
	DeleteSession(ctx context.Context, connectionID string) error
}

// Saver coalesces session writes: every Schedule restarts the quiet-interval
// timer and replaces the pending snapshot, so a burst of edits produces one
// write. Saves run off the caller's path and never block a mutation.
type Saver struct {
	store SessionStore
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending *store.SessionRecord
}

func NewSaver(st SessionStore, delay time.Duration) *Saver {
	if delay <= 0 {
		delay = 2 * time.Second
	}
	return &Saver{store: st, delay: delay}
}

// Schedule records a snapshot and (re)starts the quiet-interval timer. A
// snapshot scheduled while one is pending replaces it.
func (s *Saver) Schedule(rec store.SessionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = &rec
	if s.timer == nil {
		s.timer = time.AfterFunc(s.delay, s.fire)
		return
	}
	s.timer.Reset(s.delay)
}

func (s *Saver) fire() {
	s.mu.Lock()
	rec := s.pending
	s.pending = nil
	s.mu.Unlock()
	if rec == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.store.SaveSession(ctx, *rec); err != nil {
		log.Printf("ERROR: debounced session save for %s failed: %v", rec.ConnectionID, err)
	}
}

// Flush writes the pending snapshot immediately, if any. Used on shutdown.
func (s *Saver) Flush(ctx context.Context) error {
	s.mu.Lock()
	rec := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
	}
	s.mu.Unlock()
	if rec == nil {
		return nil
	}
	return s.store.SaveSession(ctx, *rec)
}

// Stop cancels the timer and drops any pending snapshot.
func (s *Saver) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.pending = nil
}
