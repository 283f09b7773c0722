package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"initiative_syncer/internal/config"
	"initiative_syncer/internal/domain"
	"initiative_syncer/internal/metrics"
)

const releaseTimeout = 10 * time.Second

// ProgressFunc observes a full sync after each processed page.
type ProgressFunc func(currentPage, lastPage, totalInAPI int)

type Option func(*SyncService)

// WithLookupStore enables lookup harvesting during full syncs.
func WithLookupStore(store LookupStore) Option {
	return func(s *SyncService) { s.lookups = store }
}

// WithPublisher announces completed full syncs.
func WithPublisher(p Publisher) Option {
	return func(s *SyncService) { s.publisher = p }
}

func WithProgress(fn ProgressFunc) Option {
	return func(s *SyncService) { s.progress = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *SyncService) { s.now = now }
}

type SyncService struct {
	source      Source
	initiatives InitiativeStore
	meta        SyncMetaStore
	locker      Locker
	txManager   TransactionManager
	lookups     LookupStore
	publisher   Publisher
	progress    ProgressFunc
	now         func() time.Time
	logger      *slog.Logger
	config      config.SyncConfig
}

func NewSyncService(
	source Source,
	initiatives InitiativeStore,
	meta SyncMetaStore,
	locker Locker,
	txManager TransactionManager,
	logger *slog.Logger,
	cfg config.SyncConfig,
	opts ...Option,
) *SyncService {
	if cfg.FetchConcurrency < 1 {
		cfg.FetchConcurrency = 10
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 250
	}
	if cfg.ProgressEvery < 1 {
		cfg.ProgressEvery = 20
	}

	s := &SyncService{
		source:      source,
		initiatives: initiatives,
		meta:        meta,
		locker:      locker,
		txManager:   txManager,
		now:         time.Now,
		logger:      logger.With("component", "sync", "source", source.ID()),
		config:      cfg,
	}
	for _, opt := range opts {
		opt(s)
	}
	if cfg.DisableLookups {
		s.lookups = nil
	}
	return s
}

// SyncIfTotalChanged runs one sync attempt. It returns Skipped "lock" when
// another pass holds the lock, Synced false when the catalog total matches
// the last recorded one, and Synced true after a completed full sync.
func (s *SyncService) SyncIfTotalChanged(ctx context.Context) (*domain.SyncResult, error) {
	start := s.now()
	result := &domain.SyncResult{RunID: uuid.NewString()}
	logger := s.logger.With("run_id", result.RunID)

	acquired, err := s.locker.Acquire(ctx)
	if err != nil {
		metrics.LockAcquisitions.WithLabelValues("error").Inc()
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		return nil, fmt.Errorf("acquire sync lock: %w", err)
	}
	if !acquired {
		metrics.LockAcquisitions.WithLabelValues("contended").Inc()
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeSkipped).Inc()
		logger.Info("sync already in progress, skipping")
		result.Skipped = domain.SkipReasonLock
		result.Duration = s.now().Sub(start)
		return result, nil
	}
	metrics.LockAcquisitions.WithLabelValues("acquired").Inc()
	defer s.release(ctx, logger)

	if s.config.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.MaxDuration)
		defer cancel()
	}

	err = s.syncIfTotalChanged(ctx, logger, result)
	result.Duration = s.now().Sub(start)
	metrics.SyncDuration.Observe(result.Duration.Seconds())

	if err != nil {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeFailed).Inc()
		logger.Error("sync failed",
			"total_in_api", result.TotalInAPI,
			"upserted", result.TotalFetched,
			"duration", result.Duration,
			"error", err,
		)
		return nil, err
	}

	if !result.Synced {
		metrics.SyncRuns.WithLabelValues(metrics.OutcomeUnchanged).Inc()
		return result, nil
	}

	metrics.SyncRuns.WithLabelValues(metrics.OutcomeSynced).Inc()
	metrics.SyncLastSuccess.Set(float64(s.now().Unix()))

	logger.Info("sync completed",
		"total_in_api", result.TotalInAPI,
		"upserted", result.TotalFetched,
		"last_page", result.LastPage,
		"duplicates", result.Duplicates,
		"invalid", result.Invalid,
		"lookups", result.Lookups,
		"duration", result.Duration,
	)

	s.publish(ctx, logger, result)

	return result, nil
}

func (s *SyncService) syncIfTotalChanged(ctx context.Context, logger *slog.Logger, result *domain.SyncResult) error {
	first, err := s.source.FetchPage(ctx, 1)
	if err != nil {
		return fmt.Errorf("check catalog total: %w", err)
	}
	result.TotalInAPI = first.Total
	metrics.CatalogTotal.Set(float64(first.Total))

	meta, err := s.meta.Get(ctx)
	if err != nil {
		return fmt.Errorf("get sync metadata: %w", err)
	}

	if meta.LastAPITotal == first.Total {
		logger.Info("catalog total unchanged, skipping full sync", "total_in_api", first.Total)
		return nil
	}

	logger.Info("catalog total changed, starting full sync",
		"total_in_api", first.Total,
		"last_api_total", meta.LastAPITotal,
		"last_page", first.LastPage,
	)

	p := s.newPass(logger, first)
	if err := p.run(ctx); err != nil {
		result.TotalFetched = p.applied
		return err
	}

	result.TotalFetched = p.applied
	result.LastPage = p.lastPage
	result.Duplicates = p.duplicates
	result.Invalid = p.invalid

	completion := domain.SyncCompletion{
		APITotal: first.Total,
		SyncedAt: s.now().UTC(),
		LastPage: p.lastPage,
	}

	var lookups []domain.Lookup
	if s.lookups != nil {
		lookups = p.harvester.lookups()
	}

	err = s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		if len(lookups) > 0 {
			if err := s.lookups.UpsertBatch(txCtx, lookups); err != nil {
				return fmt.Errorf("upsert lookups: %w", err)
			}
		}
		if err := s.meta.RecordCompletion(txCtx, completion); err != nil {
			return fmt.Errorf("record sync completion: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	result.Synced = true
	result.Lookups = len(lookups)
	return nil
}

// release runs on every exit path after a successful acquire. It uses a
// context detached from cancellation so a cancelled run still frees the lock.
func (s *SyncService) release(ctx context.Context, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
	defer cancel()

	if err := s.locker.Release(ctx); err != nil {
		logger.Error("failed to release sync lock", "error", err)
	}
}

func (s *SyncService) publish(ctx context.Context, logger *slog.Logger, result *domain.SyncResult) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishSyncCompleted(ctx, result); err != nil {
		logger.Warn("failed to publish sync event", "error", err)
	}
}

// fetchChunk fetches pages [from, to] concurrently. Results are indexed by
// page so callers can process them in page order.
func (s *SyncService) fetchChunk(ctx context.Context, from, to int) ([]*domain.PageResult, error) {
	pages := make([]*domain.PageResult, to-from+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.FetchConcurrency)

	for page := from; page <= to; page++ {
		g.Go(func() error {
			res, err := s.source.FetchPage(gctx, page)
			if err != nil {
				return err
			}
			pages[page-from] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return pages, nil
}

func (s *SyncService) logProgress(logger *slog.Logger) ProgressFunc {
	return func(currentPage, lastPage, totalInAPI int) {
		if currentPage%s.config.ProgressEvery == 0 || currentPage == lastPage {
			logger.Info("sync progress",
				"page", currentPage,
				"last_page", lastPage,
				"total_in_api", totalInAPI,
			)
		}
	}
}

func isBulkWriteError(err error) (*domain.BulkWriteError, bool) {
	var bwe *domain.BulkWriteError
	if errors.As(err, &bwe) {
		return bwe, true
	}
	return nil, false
}
