package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"initiative_syncer/internal/domain"
	"initiative_syncer/internal/metrics"
)

// pass is the state of one full sync. It is owned by the goroutine running
// the sync; chunk workers only return page results.
type pass struct {
	svc       *SyncService
	logger    *slog.Logger
	progress  ProgressFunc
	first     *domain.PageResult
	total     int
	lastPage  int
	pending   []domain.UpsertOp
	seenSlugs map[string]struct{}
	harvester *lookupHarvester

	applied    int
	duplicates int
	invalid    int
}

func (s *SyncService) newPass(logger *slog.Logger, first *domain.PageResult) *pass {
	progress := s.progress
	if progress == nil {
		progress = s.logProgress(logger)
	}
	return &pass{
		svc:       s,
		logger:    logger,
		progress:  progress,
		first:     first,
		total:     first.Total,
		lastPage:  first.LastPage,
		pending:   make([]domain.UpsertOp, 0, s.config.BatchSize),
		seenSlugs: make(map[string]struct{}),
		harvester: newLookupHarvester(),
	}
}

// run processes page 1, then pages 2..lastPage in chunks. A cancelled ctx
// stops new chunks from starting; the chunk in flight is fetched and flushed
// before the cancellation error is returned.
func (p *pass) run(ctx context.Context) error {
	workCtx := context.WithoutCancel(ctx)

	if err := p.addPage(workCtx, 1, p.first); err != nil {
		return err
	}

	chunk := p.svc.config.FetchConcurrency
	for from := 2; from <= p.lastPage; from += chunk {
		if err := ctx.Err(); err != nil {
			return p.abort(workCtx, err)
		}

		to := min(from+chunk-1, p.lastPage)
		pages, err := p.svc.fetchChunk(workCtx, from, to)
		if err != nil {
			return err
		}

		for i, page := range pages {
			if err := p.addPage(workCtx, from+i, page); err != nil {
				return err
			}
		}
	}

	if err := p.flush(workCtx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sync interrupted: %w", err)
	}
	return nil
}

func (p *pass) abort(ctx context.Context, cause error) error {
	if err := p.flush(ctx); err != nil {
		return fmt.Errorf("sync interrupted: %w", errors.Join(cause, err))
	}
	return fmt.Errorf("sync interrupted: %w", cause)
}

func (p *pass) addPage(ctx context.Context, pageNum int, page *domain.PageResult) error {
	p.invalid += page.Malformed

	for i := range page.Items {
		rec := page.Items[i]
		key := rec.Key()

		switch key.Kind {
		case domain.KeyNone:
			p.invalid++
			p.logger.Warn("initiative has neither slug nor id, skipping", "page", pageNum, "index", i)
			continue
		case domain.KeySlug:
			if _, ok := p.seenSlugs[key.Slug]; ok {
				p.duplicates++
				continue
			}
			p.seenSlugs[key.Slug] = struct{}{}
		}

		if p.svc.lookups != nil {
			p.harvester.add(&rec)
		}

		p.pending = append(p.pending, domain.UpsertOp{Key: key, Record: rec})
		if len(p.pending) >= p.svc.config.BatchSize {
			if err := p.flush(ctx); err != nil {
				return err
			}
		}
	}

	p.progress(pageNum, p.lastPage, p.total)
	return nil
}

func (p *pass) flush(ctx context.Context) error {
	if len(p.pending) == 0 {
		return nil
	}

	ops := p.pending
	p.pending = make([]domain.UpsertOp, 0, p.svc.config.BatchSize)

	metrics.BulkBatchSize.Observe(float64(len(ops)))

	res, err := p.svc.initiatives.BulkUpsert(ctx, ops)
	if res != nil {
		p.applied += res.Applied()
		metrics.RecordsUpserted.Add(float64(res.Applied()))
	}
	if err != nil {
		if bwe, ok := isBulkWriteError(err); ok {
			metrics.BulkOpFailures.Add(float64(len(bwe.Failures)))
		}
		return fmt.Errorf("bulk upsert %d initiatives: %w", len(ops), err)
	}

	if res != nil {
		p.logger.Debug("flushed batch", "ops", len(ops), "applied", res.Applied())
	}
	return nil
}
