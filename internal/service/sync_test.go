package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"initiative_syncer/internal/config"
	"initiative_syncer/internal/domain"
	"initiative_syncer/internal/service/mocks"
	"initiative_syncer/internal/testutil"
)

type SyncServiceTestSuite struct {
	suite.Suite
	ctrl *gomock.Controller

	source      *mocks.MockSource
	initiatives *mocks.MockInitiativeStore
	meta        *mocks.MockSyncMetaStore
	locker      *mocks.MockLocker
	txManager   *mocks.MockTransactionManager
	lookups     *mocks.MockLookupStore
	publisher   *mocks.MockPublisher

	cfg    config.SyncConfig
	logger *slog.Logger
	now    time.Time
}

func (s *SyncServiceTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())

	s.source = mocks.NewMockSource(s.ctrl)
	s.initiatives = mocks.NewMockInitiativeStore(s.ctrl)
	s.meta = mocks.NewMockSyncMetaStore(s.ctrl)
	s.locker = mocks.NewMockLocker(s.ctrl)
	s.txManager = mocks.NewMockTransactionManager(s.ctrl)
	s.lookups = mocks.NewMockLookupStore(s.ctrl)
	s.publisher = mocks.NewMockPublisher(s.ctrl)

	s.cfg = config.SyncConfig{
		FetchConcurrency: 10,
		BatchSize:        250,
		ProgressEvery:    20,
	}
	s.now = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	s.source.EXPECT().ID().Return("test-source").AnyTimes()
	s.source.EXPECT().Name().Return("Test Source").AnyTimes()
}

func (s *SyncServiceTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestSyncServiceTestSuite(t *testing.T) {
	suite.Run(t, new(SyncServiceTestSuite))
}

func (s *SyncServiceTestSuite) newService(opts ...Option) *SyncService {
	opts = append([]Option{WithClock(func() time.Time { return s.now })}, opts...)
	return NewSyncService(s.source, s.initiatives, s.meta, s.locker, s.txManager, s.logger, s.cfg, opts...)
}

func (s *SyncServiceTestSuite) expectTransaction() {
	s.txManager.EXPECT().WithTransaction(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, fn func(context.Context) error) error {
			return fn(ctx)
		},
	)
}

func (s *SyncServiceTestSuite) expectLock() {
	s.locker.EXPECT().Acquire(gomock.Any()).Return(true, nil)
	s.locker.EXPECT().Release(gomock.Any()).Return(nil)
}

func records(base, n int) []domain.Initiative {
	out := make([]domain.Initiative, n)
	for i := range out {
		id := base + i
		out[i] = domain.Initiative{
			APIID: int64(id),
			Slug:  testutil.Ptr(fmt.Sprintf("initiative-%d", id)),
		}
	}
	return out
}

func page(num, last, total int, items []domain.Initiative) *domain.PageResult {
	return &domain.PageResult{Items: items, CurrentPage: num, LastPage: last, Total: total, PerPage: len(items)}
}

func appliedAll(_ context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
	return &domain.BulkResult{Upserted: len(ops)}, nil
}

func (s *SyncServiceTestSuite) TestSync_LockHeld() {
	ctx := context.Background()
	s.locker.EXPECT().Acquire(ctx).Return(false, nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.False(result.Synced)
	s.Equal(domain.SkipReasonLock, result.Skipped)
	s.NotEmpty(result.RunID)
}

func (s *SyncServiceTestSuite) TestSync_AcquireError() {
	ctx := context.Background()
	s.locker.EXPECT().Acquire(ctx).Return(false, errors.New("connection refused"))

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Error(err)
	s.Nil(result)
}

func (s *SyncServiceTestSuite) TestSync_TotalUnchanged() {
	ctx := context.Background()
	s.expectLock()
	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 2, 37, records(1, 20)), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{LastAPITotal: 37}, nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.False(result.Synced)
	s.Empty(result.Skipped)
	s.Equal(37, result.TotalInAPI)
}

func (s *SyncServiceTestSuite) TestSync_BatchesFlushAtSize() {
	ctx := context.Background()
	s.expectLock()

	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 3, 600, records(0, 200)), nil)
	s.source.EXPECT().FetchPage(gomock.Any(), 2).Return(page(2, 3, 600, records(200, 200)), nil)
	s.source.EXPECT().FetchPage(gomock.Any(), 3).Return(page(3, 3, 600, records(400, 200)), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{LastAPITotal: 10}, nil)

	var sizes []int
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
			sizes = append(sizes, len(ops))
			return appliedAll(ctx, ops)
		},
	).Times(3)

	s.expectTransaction()
	s.meta.EXPECT().RecordCompletion(gomock.Any(), domain.SyncCompletion{
		APITotal: 600,
		SyncedAt: s.now,
		LastPage: 3,
	}).Return(nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.True(result.Synced)
	s.Equal([]int{250, 250, 100}, sizes)
	s.Equal(600, result.TotalFetched)
	s.Equal(600, result.TotalInAPI)
	s.Equal(3, result.LastPage)
}

func (s *SyncServiceTestSuite) TestSync_DeduplicatesBySlugFirstWins() {
	ctx := context.Background()
	s.expectLock()

	first := domain.Initiative{APIID: 1, Slug: testutil.Ptr("dup"), EnglishName: testutil.Ptr("first")}
	again := domain.Initiative{APIID: 2, Slug: testutil.Ptr("dup"), EnglishName: testutil.Ptr("second")}
	later := domain.Initiative{APIID: 3, Slug: testutil.Ptr("dup"), EnglishName: testutil.Ptr("third")}

	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 2, 3, []domain.Initiative{first, again}), nil)
	s.source.EXPECT().FetchPage(gomock.Any(), 2).Return(page(2, 2, 3, []domain.Initiative{later}), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)

	var got []domain.UpsertOp
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
			got = append(got, ops...)
			return appliedAll(ctx, ops)
		},
	)
	s.expectTransaction()
	s.meta.EXPECT().RecordCompletion(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal("first", *got[0].Record.EnglishName)
	s.Equal(domain.BySlug("dup"), got[0].Key)
	s.Equal(2, result.Duplicates)
}

func (s *SyncServiceTestSuite) TestSync_UpsertKeyPrecedence() {
	ctx := context.Background()
	s.expectLock()

	items := []domain.Initiative{
		{APIID: 1, Slug: testutil.Ptr("has-slug")},
		{APIID: 2},
		{APIID: 0},
	}
	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(&domain.PageResult{
		Items: items, CurrentPage: 1, LastPage: 1, Total: 4, Malformed: 1,
	}, nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)

	var got []domain.UpsertOp
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
			got = append(got, ops...)
			return appliedAll(ctx, ops)
		},
	)
	s.expectTransaction()
	s.meta.EXPECT().RecordCompletion(gomock.Any(), gomock.Any()).Return(nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(domain.BySlug("has-slug"), got[0].Key)
	s.Equal(domain.ByAPIID(2), got[1].Key)
	s.Equal(2, result.Invalid)
}

func (s *SyncServiceTestSuite) TestSync_PageFailureLeavesMetadata() {
	ctx := context.Background()
	s.expectLock()

	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 3, 45, records(0, 20)), nil)
	s.source.EXPECT().FetchPage(gomock.Any(), 2).Return(nil, errors.New("fetch page 2: timeout"))
	s.source.EXPECT().FetchPage(gomock.Any(), 3).Return(page(3, 3, 45, records(40, 5)), nil).MaxTimes(1)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{LastAPITotal: 30}, nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Error(err)
	s.Nil(result)
}

func (s *SyncServiceTestSuite) TestSync_BulkFailureAborts() {
	ctx := context.Background()
	s.expectLock()
	s.cfg.BatchSize = 10

	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 2, 40, records(0, 20)), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)

	bulkErr := &domain.BulkWriteError{Failures: []domain.OpFailure{
		{Index: 3, Key: domain.BySlug("initiative-3"), Err: domain.ErrConflict},
	}}
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).Return(&domain.BulkResult{Upserted: 9}, bulkErr)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().Error(err)
	s.Nil(result)
	var bwe *domain.BulkWriteError
	s.True(errors.As(err, &bwe))
	s.True(errors.Is(err, domain.ErrConflict))
}

func (s *SyncServiceTestSuite) TestSync_ReleaseFailureDoesNotFailRun() {
	ctx := context.Background()
	s.locker.EXPECT().Acquire(gomock.Any()).Return(true, nil)
	s.locker.EXPECT().Release(gomock.Any()).Return(errors.New("db gone"))
	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 1, 5, records(0, 5)), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{LastAPITotal: 5}, nil)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.NoError(err)
	s.False(result.Synced)
}

func (s *SyncServiceTestSuite) TestSync_PublishesAndHarvestsLookups() {
	ctx := context.Background()
	s.expectLock()

	rec := domain.Initiative{
		APIID:          1,
		Slug:           testutil.Ptr("with-tags"),
		Tags:           []byte(`[{"id": 7, "name": "ethics"}, {"id": 8, "label": "safety"}]`),
		Principles:     []byte(`[{"id": 1, "label": "Fairness", "subLabel": "1.2"}]`),
		InitiativeType: []byte(`[]`),
		GaiinCountry:   []byte(`{"id": 33, "englishName": "France"}`),
	}
	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 1, 1, []domain.Initiative{rec}), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(appliedAll)
	s.expectTransaction()
	s.lookups.EXPECT().UpsertBatch(gomock.Any(), []domain.Lookup{
		{Kind: domain.LookupAIPrinciple, Value: 1, Label: "Fairness", SubLabel: testutil.Ptr("1.2")},
		{Kind: domain.LookupAITag, Value: 7, Label: "ethics"},
		{Kind: domain.LookupAITag, Value: 8, Label: "safety"},
		{Kind: domain.LookupCountry, Value: 33, Label: "France"},
	}).Return(nil)
	s.meta.EXPECT().RecordCompletion(gomock.Any(), gomock.Any()).Return(nil)
	s.publisher.EXPECT().PublishSyncCompleted(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	result, err := s.newService(WithLookupStore(s.lookups), WithPublisher(s.publisher)).SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.True(result.Synced)
	s.Equal(4, result.Lookups)
}

func (s *SyncServiceTestSuite) TestSync_CompletionFailure() {
	ctx := context.Background()
	s.expectLock()

	s.source.EXPECT().FetchPage(gomock.Any(), 1).Return(page(1, 1, 2, records(0, 2)), nil)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(appliedAll)
	s.expectTransaction()
	s.meta.EXPECT().RecordCompletion(gomock.Any(), gomock.Any()).Return(errors.New("write failed"))

	result, err := s.newService(WithPublisher(s.publisher)).SyncIfTotalChanged(ctx)

	s.Error(err)
	s.Nil(result)
}

func (s *SyncServiceTestSuite) TestSync_ProgressInPageOrder() {
	ctx := context.Background()
	s.expectLock()

	for p := 1; p <= 3; p++ {
		s.source.EXPECT().FetchPage(gomock.Any(), p).Return(page(p, 3, 30, records(p*10, 10)), nil)
	}
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(appliedAll)
	s.expectTransaction()
	s.meta.EXPECT().RecordCompletion(gomock.Any(), gomock.Any()).Return(nil)

	var seen []int
	progress := func(current, last, total int) {
		s.Equal(3, last)
		s.Equal(30, total)
		seen = append(seen, current)
	}

	_, err := s.newService(WithProgress(progress)).SyncIfTotalChanged(ctx)

	s.Require().NoError(err)
	s.Equal([]int{1, 2, 3}, seen)
}

func (s *SyncServiceTestSuite) TestSync_CancelFinishesChunk() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.expectLock()

	s.source.EXPECT().FetchPage(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, p int) (*domain.PageResult, error) {
			if p == 2 {
				cancel()
			}
			return page(p, 12, 120, records(p*10, 10)), nil
		},
	).Times(11)
	s.meta.EXPECT().Get(gomock.Any()).Return(&domain.SyncMeta{}, nil)

	var flushed int
	s.initiatives.EXPECT().BulkUpsert(gomock.Any(), gomock.Any()).DoAndReturn(
		func(ctx context.Context, ops []domain.UpsertOp) (*domain.BulkResult, error) {
			s.NoError(ctx.Err())
			flushed += len(ops)
			return appliedAll(ctx, ops)
		},
	)

	result, err := s.newService().SyncIfTotalChanged(ctx)

	s.Require().Error(err)
	s.True(errors.Is(err, context.Canceled))
	s.Nil(result)
	s.Equal(110, flushed)
}
