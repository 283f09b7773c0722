package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"initiative_syncer/internal/domain"
)

// SyncMetaStore keeps the single initiative_sync_meta row. Its lock fields
// back the Locker used by the sync service.
type SyncMetaStore struct {
	db         *sqlx.DB
	staleAfter time.Duration
	now        func() time.Time
}

func NewSyncMetaStore(db *sqlx.DB, staleAfter time.Duration) *SyncMetaStore {
	return &SyncMetaStore{db: db, staleAfter: staleAfter, now: time.Now}
}

func (s *SyncMetaStore) Get(ctx context.Context) (*domain.SyncMeta, error) {
	var meta domain.SyncMeta
	query := `
		SELECT last_api_total, last_synced_at, last_page_fetched, sync_in_progress, sync_started_at
		FROM initiative_sync_meta
		WHERE id = 1`

	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &meta, query)
	if errors.Is(err, sql.ErrNoRows) {
		return &domain.SyncMeta{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

func (s *SyncMetaStore) RecordCompletion(ctx context.Context, c domain.SyncCompletion) error {
	query := `
		INSERT INTO initiative_sync_meta (id, last_api_total, last_synced_at, last_page_fetched)
		VALUES (1, $1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET
			last_api_total = EXCLUDED.last_api_total,
			last_synced_at = EXCLUDED.last_synced_at,
			last_page_fetched = EXCLUDED.last_page_fetched,
			updated_at = now()`

	_, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, c.APITotal, c.SyncedAt, c.LastPage)
	return err
}

// Acquire sets sync_in_progress in a single conditional upsert. It succeeds
// when no sync is running or the running one started before the staleness
// window; otherwise no row is returned and the lock is held elsewhere.
func (s *SyncMetaStore) Acquire(ctx context.Context) (bool, error) {
	now := s.now().UTC()
	query := `
		INSERT INTO initiative_sync_meta (id, sync_in_progress, sync_started_at)
		VALUES (1, TRUE, $1)
		ON CONFLICT (id) DO UPDATE SET
			sync_in_progress = TRUE,
			sync_started_at = EXCLUDED.sync_started_at,
			updated_at = now()
		WHERE initiative_sync_meta.sync_in_progress IS NOT TRUE
			OR initiative_sync_meta.sync_started_at IS NULL
			OR initiative_sync_meta.sync_started_at < $2
		RETURNING id`

	var id int
	err := sqlx.GetContext(ctx, s.db, &id, query, now, now.Add(-s.staleAfter))
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *SyncMetaStore) Release(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE initiative_sync_meta SET sync_in_progress = FALSE, updated_at = now() WHERE id = 1`)
	return err
}
