// Package memory provides process-local stores for dry runs and tests.
package memory

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	"initiative_syncer/internal/domain"
)

type InitiativeStore struct {
	mu      sync.Mutex
	records []*domain.Initiative
	bySlug  map[string]int
	byAPIID map[int64]int
	batches []int
}

func NewInitiativeStore() *InitiativeStore {
	return &InitiativeStore{
		bySlug:  make(map[string]int),
		byAPIID: make(map[int64]int),
	}
}

// BulkUpsert applies every op independently. Ops that would break slug or
// api id uniqueness are reported in a *domain.BulkWriteError.
func (s *InitiativeStore) BulkUpsert(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.batches = append(s.batches, len(ops))

	res := &domain.BulkResult{}
	for i, op := range ops {
		if err := s.apply(op, res); err != nil {
			res.Failed = append(res.Failed, domain.OpFailure{Index: i, Key: op.Key, Err: err})
		}
	}

	if len(res.Failed) > 0 {
		return res, &domain.BulkWriteError{Failures: res.Failed}
	}
	return res, nil
}

func (s *InitiativeStore) apply(op domain.UpsertOp, res *domain.BulkResult) error {
	rec := op.Record

	var (
		idx   int
		found bool
	)
	switch op.Key.Kind {
	case domain.KeySlug:
		idx, found = s.bySlug[op.Key.Slug]
	case domain.KeyAPIID:
		idx, found = s.byAPIID[op.Key.APIID]
	default:
		return fmt.Errorf("upsert without key")
	}

	if other, ok := s.byAPIID[rec.APIID]; ok && rec.APIID > 0 && (!found || other != idx) {
		if found {
			return fmt.Errorf("api id %d: %w", rec.APIID, domain.ErrConflict)
		}
		// slug appeared or changed upstream; update the row holding the api id
		idx, found = other, true
	}
	if rec.Slug != nil {
		if other, ok := s.bySlug[*rec.Slug]; ok && (!found || other != idx) {
			return fmt.Errorf("slug %q: %w", *rec.Slug, domain.ErrConflict)
		}
	}

	if !found {
		s.records = append(s.records, &rec)
		s.index(len(s.records)-1, &rec)
		res.Upserted++
		return nil
	}

	res.Matched++
	old := s.records[idx]
	changed, err := differs(old, &rec)
	if err != nil {
		return err
	}
	if !changed {
		return nil
	}

	if old.Slug != nil {
		delete(s.bySlug, *old.Slug)
	}
	delete(s.byAPIID, old.APIID)
	s.records[idx] = &rec
	s.index(idx, &rec)
	res.Modified++
	return nil
}

func (s *InitiativeStore) index(idx int, rec *domain.Initiative) {
	if rec.Slug != nil {
		s.bySlug[*rec.Slug] = idx
	}
	if rec.APIID > 0 {
		s.byAPIID[rec.APIID] = idx
	}
}

func differs(a, b *domain.Initiative) (bool, error) {
	ab, err := json.Marshal(a)
	if err != nil {
		return false, fmt.Errorf("encode initiative: %w", err)
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false, fmt.Errorf("encode initiative: %w", err)
	}
	return !bytes.Equal(ab, bb), nil
}

func (s *InitiativeStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *InitiativeStore) GetBySlug(slug string) (domain.Initiative, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.bySlug[slug]
	if !ok {
		return domain.Initiative{}, false
	}
	return *s.records[idx], true
}

func (s *InitiativeStore) GetByAPIID(id int64) (domain.Initiative, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byAPIID[id]
	if !ok {
		return domain.Initiative{}, false
	}
	return *s.records[idx], true
}

// Batches returns the op count of every BulkUpsert call so far.
func (s *InitiativeStore) Batches() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.batches...)
}
