package block_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/market-indexer/internal/block"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/mocks"
)

func TestMain(m *testing.M) {
	if err := logger.Initialize(logger.Config{Debug: false}); err != nil {
		panic(err)
	}

	os.Exit(m.Run())
}

type testBlockProviderMocks struct {
	ctrl     *gomock.Controller
	fetcher  *mocks.MockBlockFetcher
	clock    *mocks.MockClock
	provider block.BlockProvider
}

func setupTest(t *testing.T, cacheSize int) *testBlockProviderMocks {
	ctrl := gomock.NewController(t)

	mockFetcher := mocks.NewMockBlockFetcher(ctrl)
	mockClock := mocks.NewMockClock(ctrl)

	provider, err := block.NewBlockProvider(mockFetcher, block.Config{
		TTL:                10 * time.Second,
		StaleWindow:        2 * time.Minute,
		TimestampCacheSize: cacheSize,
	}, mockClock)
	require.NoError(t, err)

	return &testBlockProviderMocks{
		ctrl:     ctrl,
		fetcher:  mockFetcher,
		clock:    mockClock,
		provider: provider,
	}
}

func tearDownTest(tm *testBlockProviderMocks) {
	tm.ctrl.Finish()
}

func TestBlockProvider_GetLatestBlock_UsesCache_WithinTTL(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1000), nil)

	n, err := tm.provider.GetLatestBlock(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), n)

	tm.clock.EXPECT().Now().Return(now.Add(5 * time.Second))

	n, err = tm.provider.GetLatestBlock(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1000), n)
}

func TestBlockProvider_GetLatestBlock_RefreshesCache_AfterTTL(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tm.clock.EXPECT().Now().Return(now)
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1000), nil)
	_, err := tm.provider.GetLatestBlock(ctx)
	require.NoError(t, err)

	tm.clock.EXPECT().Now().Return(now.Add(15 * time.Second))
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1100), nil)

	n, err := tm.provider.GetLatestBlock(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1100), n)
}

func TestBlockProvider_GetLatestBlock_StaleFallback(t *testing.T) {
	tests := []struct {
		name      string
		elapsed   time.Duration
		expectErr bool
	}{
		{name: "within stale window", elapsed: 30 * time.Second, expectErr: false},
		{name: "beyond stale window", elapsed: 5 * time.Minute, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := setupTest(t, 0)
			defer tearDownTest(tm)

			ctx := context.Background()
			now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

			tm.clock.EXPECT().Now().Return(now)
			tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(1000), nil)
			_, err := tm.provider.GetLatestBlock(ctx)
			require.NoError(t, err)

			tm.clock.EXPECT().Now().Return(now.Add(tt.elapsed))
			tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(0), errors.New("network error"))

			n, err := tm.provider.GetLatestBlock(ctx)
			if tt.expectErr {
				assert.Error(t, err)
				assert.Equal(t, uint64(0), n)
				assert.Contains(t, err.Error(), "no valid cache available")
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, uint64(1000), n)
		})
	}
}

func TestBlockProvider_GetLatestBlock_ReturnsError_WhenNoCache(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	fetchErr := errors.New("network error")

	tm.clock.EXPECT().Now().Return(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	tm.fetcher.EXPECT().FetchLatestBlock(ctx).Return(uint64(0), fetchErr)

	_, err := tm.provider.GetLatestBlock(ctx)
	assert.ErrorIs(t, err, fetchErr)
}

func TestBlockProvider_GetBlockTimestamp_CachesPerBlock(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	ts100 := time.Unix(1700000000, 0)
	ts101 := time.Unix(1700000012, 0)

	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(100)).Return(ts100, nil).Times(1)
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(101)).Return(ts101, nil).Times(1)

	for range 3 {
		ts, err := tm.provider.GetBlockTimestamp(ctx, 100)
		require.NoError(t, err)
		assert.Equal(t, ts100, ts)
	}
	ts, err := tm.provider.GetBlockTimestamp(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, ts101, ts)
}

func TestBlockProvider_GetBlockTimestamp_EvictsOldest(t *testing.T) {
	tm := setupTest(t, 1)
	defer tearDownTest(tm)

	ctx := context.Background()
	ts := time.Unix(1700000000, 0)

	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(1)).Return(ts, nil).Times(2)
	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(2)).Return(ts, nil).Times(1)

	_, err := tm.provider.GetBlockTimestamp(ctx, 1)
	require.NoError(t, err)
	_, err = tm.provider.GetBlockTimestamp(ctx, 2)
	require.NoError(t, err)
	_, err = tm.provider.GetBlockTimestamp(ctx, 1)
	require.NoError(t, err)
}

func TestBlockProvider_GetBlockTimestamp_ErrorNotCached(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	ts := time.Unix(1700000000, 0)

	gomock.InOrder(
		tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(5)).Return(time.Time{}, errors.New("rpc down")),
		tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, uint64(5)).Return(ts, nil),
	)

	_, err := tm.provider.GetBlockTimestamp(ctx, 5)
	assert.Error(t, err)

	got, err := tm.provider.GetBlockTimestamp(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, ts, got)
}

func TestBlockProvider_GetBlockTimestamp_ConcurrentAccess(t *testing.T) {
	tm := setupTest(t, 0)
	defer tearDownTest(tm)

	ctx := context.Background()
	ts := time.Unix(1700000000, 0)

	tm.fetcher.EXPECT().FetchBlockTimestamp(ctx, gomock.Any()).Return(ts, nil).AnyTimes()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(n uint64) {
			defer wg.Done()
			got, err := tm.provider.GetBlockTimestamp(ctx, n%4)
			assert.NoError(t, err)
			assert.Equal(t, ts, got)
		}(uint64(i))
	}
	wg.Wait()
}
