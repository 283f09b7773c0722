package memory

import (
	"context"
	"sync"

	"initiative_syncer/internal/domain"
)

type lookupKey struct {
	kind  domain.LookupKind
	value int64
}

type LookupStore struct {
	mu      sync.Mutex
	entries map[lookupKey]domain.Lookup
}

func NewLookupStore() *LookupStore {
	return &LookupStore{entries: make(map[lookupKey]domain.Lookup)}
}

func (s *LookupStore) UpsertBatch(ctx context.Context, lookups []domain.Lookup) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, l := range lookups {
		s.entries[lookupKey{kind: l.Kind, value: l.Value}] = l
	}
	return nil
}

func (s *LookupStore) Get(kind domain.LookupKind, value int64) (domain.Lookup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.entries[lookupKey{kind: kind, value: value}]
	return l, ok
}

func (s *LookupStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// TransactionManager runs fn directly; memory stores apply writes immediately.
type TransactionManager struct{}

func (TransactionManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
