package indexer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/block"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/metadata"
	"github.com/feral-file/market-indexer/internal/metrics"
	"github.com/feral-file/market-indexer/internal/projector"
	"github.com/feral-file/market-indexer/internal/providers/ethereum"
	"github.com/feral-file/market-indexer/internal/providers/jetstream"
	"github.com/feral-file/market-indexer/internal/store"
)

// Outcome is the result of one indexing iteration
type Outcome string

const (
	// OutcomeIndexed means a range was persisted and the checkpoint advanced
	OutcomeIndexed Outcome = "indexed"
	// OutcomeNoWork means the checkpoint has caught up with the chain head
	OutcomeNoWork Outcome = "no_work"
	// OutcomeFailed means the range must be retried
	OutcomeFailed Outcome = "failed"
)

var (
	// ErrAlreadyRunning is returned by Start while the loop is running
	ErrAlreadyRunning = errors.New("indexer already running")
	// ErrStopped is returned by Start once the loop has exited
	ErrStopped = errors.New("indexer already stopped")
)

// Config holds the loop settings
type Config struct {
	// StartBlock is treated as already indexed when no checkpoint exists
	StartBlock    uint64
	MaxBlockRange uint64
	// PollInterval is the pause after a successful range
	PollInterval time.Duration
	// IdleInterval is the pause when there is nothing to index
	IdleInterval time.Duration
	// RetryInterval is the pause before retrying a failed range
	RetryInterval   time.Duration
	MetadataWorkers int
}

// RangeResult summarizes one iteration
type RangeResult struct {
	Outcome     Outcome
	Range       domain.BlockRange
	ChainHead   uint64
	Applied     int // events recorded for the first time
	Duplicates  int // events already recorded by an earlier attempt
	Quarantined int // malformed logs moved to failed_events
}

// Status is a snapshot of the loop's live state
type Status struct {
	Running             bool      `json:"running"`
	LastIndexedBlock    uint64    `json:"last_indexed_block"`
	ChainHead           uint64    `json:"chain_head"`
	LastOutcome         Outcome   `json:"last_outcome,omitempty"`
	LastRange           string    `json:"last_range,omitempty"`
	LastRunAt           time.Time `json:"last_run_at,omitempty"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Indexer mirrors marketplace events into the store
type Indexer interface {
	// Start runs the loop until ctx is canceled or Stop is called.
	// It fails immediately when the node serves another chain.
	Start(ctx context.Context) error

	// Stop signals the loop to exit and waits for the current iteration
	Stop(ctx context.Context) error

	// Name returns the service name for logging
	Name() string

	// RunOnce plans, fetches, projects and checkpoints a single range
	RunOnce(ctx context.Context) (*RangeResult, error)

	// Status returns the live state
	Status() Status
}

type indexer struct {
	config   Config
	store    store.Store
	source   ethereum.EventSource
	blocks   block.BlockProvider
	resolver metadata.Resolver
	notifier jetstream.Notifier
	clock    adapter.Clock
	pool     pond.ResultPool[*domain.Metadata]

	running   atomic.Bool
	started   atomic.Bool
	stopChan  chan struct{}
	stoppedCh chan struct{}

	mu     sync.RWMutex
	status Status
}

// NewIndexer creates the indexing loop
func NewIndexer(
	config Config,
	st store.Store,
	source ethereum.EventSource,
	blocks block.BlockProvider,
	resolver metadata.Resolver,
	notifier jetstream.Notifier,
	clock adapter.Clock,
) Indexer {
	workers := config.MetadataWorkers
	if workers <= 0 {
		workers = 1
	}

	return &indexer{
		config:    config,
		store:     st,
		source:    source,
		blocks:    blocks,
		resolver:  resolver,
		notifier:  notifier,
		clock:     clock,
		pool:      pond.NewResultPool[*domain.Metadata](workers),
		stopChan:  make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// Name returns the service name
func (s *indexer) Name() string {
	return "market-indexer"
}

// Start runs the indexing loop. An indexer runs at most once.
func (s *indexer) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		if s.running.Load() {
			return ErrAlreadyRunning
		}
		return ErrStopped
	}
	s.running.Store(true)
	defer func() {
		s.running.Store(false)
		s.pool.StopAndWait()
		close(s.stoppedCh)
	}()

	if err := s.source.VerifyChainID(ctx); err != nil {
		return fmt.Errorf("failed to verify chain id: %w", err)
	}

	logger.InfoCtx(ctx, "Starting market indexer",
		zap.Uint64("start_block", s.config.StartBlock),
		zap.Uint64("max_block_range", s.config.MaxBlockRange),
		zap.Duration("poll_interval", s.config.PollInterval),
		zap.Duration("idle_interval", s.config.IdleInterval),
		zap.Duration("retry_interval", s.config.RetryInterval),
	)

	for {
		select {
		case <-ctx.Done():
			logger.InfoCtx(ctx, "Market indexer stopping due to context cancellation", zap.Error(ctx.Err()))
			return nil
		case <-s.stopChan:
			logger.InfoCtx(ctx, "Market indexer stop requested")
			return nil
		default:
		}

		result, err := s.RunOnce(ctx)

		wait := s.config.PollInterval
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			logger.ErrorCtx(ctx, err, zap.String("message", "Failed to index range"))
			wait = s.config.RetryInterval
		case result.Outcome == OutcomeNoWork:
			wait = s.config.IdleInterval
		}

		if !s.sleep(ctx, wait) {
			logger.InfoCtx(ctx, "Market indexer sleep interrupted")
			return nil
		}
	}
}

// Stop gracefully stops the loop with timeout support
func (s *indexer) Stop(ctx context.Context) error {
	if !s.running.Load() {
		return nil
	}

	logger.InfoCtx(ctx, "Stopping market indexer")

	select {
	case <-s.stopChan:
	default:
		close(s.stopChan)
	}

	select {
	case <-s.stoppedCh:
		logger.InfoCtx(ctx, "Market indexer stopped gracefully")
		return nil
	case <-ctx.Done():
		logger.WarnCtx(ctx, "Market indexer stop interrupted by context timeout")
		return ctx.Err()
	}
}

// Status returns a copy of the live state
func (s *indexer) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := s.status
	status.Running = s.running.Load()
	return status
}

// RunOnce processes the next block range
func (s *indexer) RunOnce(ctx context.Context) (*RangeResult, error) {
	startTime := s.clock.Now()
	runID := ulid.MustNewDefault(startTime).String()

	result, err := s.processRange(ctx)
	duration := s.clock.Since(startTime)

	if err != nil {
		result.Outcome = OutcomeFailed
		metrics.RecordRange(string(OutcomeFailed), duration.Seconds())
		s.recordStatus(startTime, result, err)
		return result, fmt.Errorf("run %s: %w", runID, err)
	}

	metrics.RecordRange(string(result.Outcome), duration.Seconds())
	s.recordStatus(startTime, result, nil)

	if result.Outcome == OutcomeIndexed {
		logger.InfoCtx(ctx, "Indexed block range",
			zap.String("run_id", runID),
			zap.Stringer("range", result.Range),
			zap.Uint64("chain_head", result.ChainHead),
			zap.Int("applied", result.Applied),
			zap.Int("duplicates", result.Duplicates),
			zap.Int("quarantined", result.Quarantined),
			zap.Duration("duration", duration))
	}
	return result, nil
}

// processRange always returns a non-nil result so failures can still be reported
func (s *indexer) processRange(ctx context.Context) (*RangeResult, error) {
	result := &RangeResult{}

	checkpoint, hasCheckpoint, err := s.store.ReadCheckpoint(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	last := block.ResumePoint(checkpoint, hasCheckpoint, s.config.StartBlock)
	metrics.LastIndexedBlock.Set(float64(last))

	head, err := s.blocks.GetLatestBlock(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to get chain head: %w", err)
	}
	result.ChainHead = head
	metrics.ChainHead.Set(float64(head))

	r, ok := block.NextRange(last, head, s.config.MaxBlockRange)
	if !ok {
		logger.DebugCtx(ctx, "No new blocks to index",
			zap.Uint64("last_indexed_block", last),
			zap.Uint64("chain_head", head))
		result.Outcome = OutcomeNoWork
		return result, nil
	}
	result.Range = r

	batch, err := s.source.FetchEvents(ctx, domain.AllEventKinds(), r)
	if err != nil {
		return result, fmt.Errorf("failed to fetch events for range %s: %w", r, err)
	}

	for _, failed := range batch.Failed {
		if err := s.quarantine(ctx, failed); err != nil {
			return result, err
		}
		result.Quarantined++
	}

	docs, err := s.prefetchMetadata(ctx, batch.Events)
	if err != nil {
		return result, err
	}

	var recorded []domain.LedgerTransaction
	for _, ev := range batch.Events {
		tx, err := s.persistEvent(ctx, ev, docs[ev.TokenID])
		if err != nil {
			if ctx.Err() == nil && !domain.IsRetryable(err) {
				if qerr := s.quarantine(ctx, failedEventFrom(ev, err)); qerr != nil {
					return result, qerr
				}
				result.Quarantined++
				continue
			}
			return result, err
		}
		if tx == nil {
			result.Duplicates++
			continue
		}
		result.Applied++
		recorded = append(recorded, *tx)
	}

	if err := s.store.WriteCheckpoint(ctx, r.To); err != nil {
		return result, fmt.Errorf("failed to write checkpoint %d: %w", r.To, err)
	}
	metrics.LastIndexedBlock.Set(float64(r.To))
	result.Outcome = OutcomeIndexed

	if len(recorded) > 0 {
		if err := s.notifier.Notify(ctx, recorded); err != nil {
			logger.WarnCtx(ctx, "Failed to publish notifications", zap.Error(err))
		}
	}

	return result, nil
}

// persistEvent projects one event and applies it atomically.
// A nil transaction means the event had already been recorded.
func (s *indexer) persistEvent(ctx context.Context, ev *domain.MarketEvent, doc *domain.Metadata) (*domain.LedgerTransaction, error) {
	blockTime, err := s.blocks.GetBlockTimestamp(ctx, ev.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("failed to get timestamp of block %d: %w", ev.BlockNumber, err)
	}

	in := projector.Input{BlockTime: blockTime}
	if ev.Kind == domain.EventMinted {
		in.Metadata = doc
	}

	projection, err := projector.Project(ev, in)
	if err != nil {
		metrics.RecordEvent(string(ev.Kind), "malformed")
		return nil, err
	}

	applied, err := s.store.ApplyProjection(ctx, projection)
	if err != nil {
		return nil, fmt.Errorf("failed to persist %s tx=%s: %w", ev.Kind, ev.TxHash, err)
	}

	switch {
	case !applied.Recorded:
		metrics.RecordEvent(string(ev.Kind), "duplicate")
		logger.DebugCtx(ctx, "Event already recorded",
			zap.String("event", string(ev.Kind)),
			zap.String("tx_hash", ev.TxHash))
		return nil, nil
	case !applied.AssetChanged:
		metrics.RecordEvent(string(ev.Kind), "ignored")
	default:
		metrics.RecordEvent(string(ev.Kind), "applied")
	}

	tx := projection.Transaction
	return &tx, nil
}

// prefetchMetadata resolves the documents of newly minted tokens concurrently.
// Tokens that already exist are skipped since their mint will not write.
func (s *indexer) prefetchMetadata(ctx context.Context, events []*domain.MarketEvent) (map[uint64]*domain.Metadata, error) {
	type pending struct {
		tokenID uint64
		task    pond.Result[*domain.Metadata]
	}

	seen := make(map[uint64]struct{})
	var tasks []pending

	for _, ev := range events {
		if ev.Kind != domain.EventMinted {
			continue
		}
		if _, ok := seen[ev.TokenID]; ok {
			continue
		}
		seen[ev.TokenID] = struct{}{}

		exists, err := s.store.AssetExists(ctx, ev.TokenID)
		if err != nil {
			return nil, fmt.Errorf("failed to check asset %d: %w", ev.TokenID, err)
		}
		if exists {
			continue
		}

		uri := ev.TokenURI
		tasks = append(tasks, pending{
			tokenID: ev.TokenID,
			task: s.pool.Submit(func() *domain.Metadata {
				return s.resolver.Resolve(ctx, uri)
			}),
		})
	}

	docs := make(map[uint64]*domain.Metadata, len(tasks))
	for _, p := range tasks {
		doc, err := p.task.Wait()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve metadata for token %d: %w", p.tokenID, err)
		}
		docs[p.tokenID] = doc
	}
	return docs, nil
}

// quarantine persists a malformed event so the range can complete
func (s *indexer) quarantine(ctx context.Context, failed *domain.FailedEvent) error {
	if err := s.store.RecordFailedEvent(ctx, failed); err != nil {
		return fmt.Errorf("failed to quarantine event tx=%s log=%d: %w", failed.TxHash, failed.LogIndex, err)
	}
	metrics.RecordEvent(failed.Event, "quarantined")
	logger.ErrorCtx(ctx, errors.New(failed.Reason),
		zap.String("message", "Quarantined malformed event"),
		zap.String("event", failed.Event),
		zap.String("tx_hash", failed.TxHash),
		zap.Uint64("block_number", failed.BlockNumber),
		zap.Uint("log_index", failed.LogIndex))
	return nil
}

func (s *indexer) recordStatus(at time.Time, result *RangeResult, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.status.LastRunAt = at
	s.status.LastOutcome = result.Outcome
	if result.ChainHead > 0 {
		s.status.ChainHead = result.ChainHead
	}

	if err != nil {
		s.status.LastError = err.Error()
		s.status.ConsecutiveFailures++
		return
	}

	s.status.LastError = ""
	s.status.ConsecutiveFailures = 0
	if result.Outcome == OutcomeIndexed {
		s.status.LastIndexedBlock = result.Range.To
		s.status.LastRange = result.Range.String()
	}
}

// sleep waits for the duration unless ctx is canceled or Stop is called
func (s *indexer) sleep(ctx context.Context, duration time.Duration) bool {
	select {
	case <-s.clock.After(duration):
		return true
	case <-ctx.Done():
		return false
	case <-s.stopChan:
		return false
	}
}

func failedEventFrom(ev *domain.MarketEvent, err error) *domain.FailedEvent {
	reason := err.Error()
	var eventErr *domain.EventError
	if errors.As(err, &eventErr) {
		reason = eventErr.Err.Error()
	}
	return &domain.FailedEvent{
		TxHash:      ev.TxHash,
		BlockNumber: ev.BlockNumber,
		LogIndex:    ev.LogIndex,
		Event:       string(ev.Kind),
		Reason:      reason,
	}
}
