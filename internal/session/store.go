// Package session persists the single in-flight generation session so a job
// can be re-attached after a process restart. There is exactly one logical
// slot; the orchestrator is the only writer.
package session

import (
	"context"
	"sync"
	"time"

	"scriptgen/internal/domain"
)

// Store is the durable single-slot persistence contract.
//
// Load returns (nil, nil) when the slot is empty, and treats an expired or
// corrupt record as absence: the record is deleted and nil is returned rather
// than surfacing an error. Expiry is checked at read time, never proactively.
type Store interface {
	Persist(ctx context.Context, sess domain.GenerationSession) error
	Load(ctx context.Context) (*domain.GenerationSession, error)
	Clear(ctx context.Context) error
}

// MemoryStore keeps the session slot in memory. It is used by tests and by
// runs that explicitly opt out of durability.
type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	sess *domain.GenerationSession
}

// NewMemoryStore creates an in-memory store with the given session TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl}
}

func (s *MemoryStore) Persist(ctx context.Context, sess domain.GenerationSession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := sess
	copied.FormSnapshot = append([]byte(nil), sess.FormSnapshot...)
	s.sess = &copied
	return nil
}

func (s *MemoryStore) Load(ctx context.Context) (*domain.GenerationSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sess == nil {
		return nil, nil
	}
	if s.sess.Expired(time.Now(), s.ttl) {
		s.sess = nil
		return nil, nil
	}
	copied := *s.sess
	copied.FormSnapshot = append([]byte(nil), s.sess.FormSnapshot...)
	return &copied, nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sess = nil
	return nil
}
