package memory

import (
	"context"
	"sync"
	"time"

	"initiative_syncer/internal/domain"
)

// SyncMetaStore keeps the sync metadata singleton and doubles as the lock.
type SyncMetaStore struct {
	mu         sync.Mutex
	meta       *domain.SyncMeta
	staleAfter time.Duration
	now        func() time.Time
}

func NewSyncMetaStore(staleAfter time.Duration) *SyncMetaStore {
	return &SyncMetaStore{staleAfter: staleAfter, now: time.Now}
}

// SetClock replaces the time source used for lock staleness.
func (s *SyncMetaStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *SyncMetaStore) Get(ctx context.Context) (*domain.SyncMeta, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.meta == nil {
		return &domain.SyncMeta{}, nil
	}
	m := *s.meta
	return &m, nil
}

func (s *SyncMetaStore) RecordCompletion(ctx context.Context, c domain.SyncCompletion) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	m := s.ensure()
	syncedAt := c.SyncedAt
	m.LastAPITotal = c.APITotal
	m.LastSyncedAt = &syncedAt
	m.LastPageFetched = c.LastPage
	return nil
}

// Acquire takes the lock when it is free or its holder started more than
// staleAfter ago.
func (s *SyncMetaStore) Acquire(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	m := s.ensure()
	if m.SyncInProgress && m.SyncStartedAt != nil && !m.SyncStartedAt.Before(now.Add(-s.staleAfter)) {
		return false, nil
	}

	m.SyncInProgress = true
	m.SyncStartedAt = &now
	return true, nil
}

func (s *SyncMetaStore) Release(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ensure().SyncInProgress = false
	return nil
}

func (s *SyncMetaStore) ensure() *domain.SyncMeta {
	if s.meta == nil {
		s.meta = &domain.SyncMeta{}
	}
	return s.meta
}
