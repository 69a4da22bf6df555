package block

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/logger"
)

// DefaultTimestampCacheSize is used when Config.TimestampCacheSize is not positive
const DefaultTimestampCacheSize = 4096

// headInfo is the cached chain head
type headInfo struct {
	Number    uint64
	FetchedAt time.Time
}

// BlockProvider provides cached access to the chain head and block timestamps.
// Events in one range often share blocks, so timestamps are looked up once per block.
//
//go:generate mockgen -source=block.go -destination=../mocks/block_provider.go -package=mocks -mock_names=BlockProvider=MockBlockProvider,BlockFetcher=MockBlockFetcher
type BlockProvider interface {
	// GetLatestBlock returns the current chain height, potentially from cache
	GetLatestBlock(ctx context.Context) (uint64, error)

	// GetBlockTimestamp returns the timestamp for a given block number, potentially from cache
	GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// BlockFetcher is the interface for fetching block information from the ledger node
type BlockFetcher interface {
	// FetchLatestBlock fetches the current chain height
	FetchLatestBlock(ctx context.Context) (uint64, error)

	// FetchBlockTimestamp fetches the timestamp for a given block number
	FetchBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error)
}

// Config holds configuration for the BlockProvider
type Config struct {
	// TTL is how long to cache the chain height
	TTL time.Duration

	// StaleWindow is how long a cached height may still be served when fetching fails
	StaleWindow time.Duration

	// TimestampCacheSize bounds the number of cached block timestamps
	TimestampCacheSize int
}

type blockProvider struct {
	fetcher BlockFetcher
	config  Config
	clock   adapter.Clock

	mu         sync.RWMutex
	head       *headInfo
	timestamps *lru.Cache[uint64, time.Time]
}

// NewBlockProvider creates a new BlockProvider with caching
func NewBlockProvider(fetcher BlockFetcher, config Config, clock adapter.Clock) (BlockProvider, error) {
	size := config.TimestampCacheSize
	if size <= 0 {
		size = DefaultTimestampCacheSize
	}
	timestamps, err := lru.New[uint64, time.Time](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create timestamp cache: %w", err)
	}

	return &blockProvider{
		fetcher:    fetcher,
		config:     config,
		clock:      clock,
		timestamps: timestamps,
	}, nil
}

// GetLatestBlock returns the chain height, using cache if valid
func (p *blockProvider) GetLatestBlock(ctx context.Context) (uint64, error) {
	p.mu.RLock()
	cached := p.head
	p.mu.RUnlock()

	now := p.clock.Now()

	if cached != nil && now.Sub(cached.FetchedAt) < p.config.TTL {
		logger.DebugCtx(ctx, "Using cached block number", zap.Uint64("block_number", cached.Number))
		return cached.Number, nil
	}

	blockNumber, err := p.fetcher.FetchLatestBlock(ctx)
	if err != nil {
		if cached != nil && now.Sub(cached.FetchedAt) < p.config.StaleWindow {
			logger.WarnCtx(ctx, "Using stale block number",
				zap.Uint64("block_number", cached.Number),
				zap.Error(err))
			return cached.Number, nil
		}
		return 0, fmt.Errorf("failed to fetch latest block and no valid cache available: %w", err)
	}

	p.mu.Lock()
	p.head = &headInfo{
		Number:    blockNumber,
		FetchedAt: now,
	}
	p.mu.Unlock()

	return blockNumber, nil
}

// GetBlockTimestamp returns the timestamp for a given block number.
// Timestamps of fetched blocks never change, so cached entries do not expire.
func (p *blockProvider) GetBlockTimestamp(ctx context.Context, blockNumber uint64) (time.Time, error) {
	if ts, ok := p.timestamps.Get(blockNumber); ok {
		return ts, nil
	}

	timestamp, err := p.fetcher.FetchBlockTimestamp(ctx, blockNumber)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to fetch block timestamp for block %d: %w", blockNumber, err)
	}

	p.timestamps.Add(blockNumber, timestamp)
	return timestamp, nil
}
