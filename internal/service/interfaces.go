package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"initiative_syncer/internal/domain"
)

type Source interface {
	ID() string
	Name() string
	FetchPage(ctx context.Context, page int) (*domain.PageResult, error)
}

// InitiativeStore applies unordered upsert batches. A partially failed batch
// returns the result of the applied ops together with a *domain.BulkWriteError.
type InitiativeStore interface {
	BulkUpsert(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error)
}

type SyncMetaStore interface {
	Get(ctx context.Context) (*domain.SyncMeta, error)
	RecordCompletion(ctx context.Context, c domain.SyncCompletion) error
}

// Locker guards a sync pass. Acquire returns false without error when
// another holder owns a fresh lock.
type Locker interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type LookupStore interface {
	UpsertBatch(ctx context.Context, lookups []domain.Lookup) error
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Publisher interface {
	PublishSyncCompleted(ctx context.Context, result *domain.SyncResult) error
	Close() error
}
