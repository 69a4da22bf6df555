package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
)

// filterLogsTimeout bounds one eth_getLogs round trip
const filterLogsTimeout = time.Minute

// EventSource reads marketplace events from the ledger node
//
//go:generate mockgen -source=source.go -destination=../../mocks/event_source.go -package=mocks -mock_names=EventSource=MockEventSource
type EventSource interface {
	// VerifyChainID returns domain.ErrChainIDMismatch when the node serves another chain
	VerifyChainID(ctx context.Context) error

	// FetchEvents returns the marketplace events of the given kinds in the closed range.
	// No kinds means every kind.
	FetchEvents(ctx context.Context, kinds []domain.EventKind, r domain.BlockRange) (*domain.EventBatch, error)

	// Close closes the node connection
	Close()
}

// Config holds the contract the source reads from
type Config struct {
	ContractAddress string
	ChainID         uint64
}

type eventSource struct {
	client   adapter.EthClient
	json     adapter.JSON
	contract common.Address
	chainID  uint64
}

// NewEventSource creates an event source for the marketplace contract
func NewEventSource(client adapter.EthClient, json adapter.JSON, cfg Config) (EventSource, error) {
	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("invalid contract address: %q", cfg.ContractAddress)
	}

	return &eventSource{
		client:   client,
		json:     json,
		contract: common.HexToAddress(cfg.ContractAddress),
		chainID:  cfg.ChainID,
	}, nil
}

// VerifyChainID compares the node's chain id with the configured one
func (s *eventSource) VerifyChainID(ctx context.Context) error {
	id, err := s.client.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("failed to get chain id: %w", err)
	}
	if !id.IsUint64() || id.Uint64() != s.chainID {
		return fmt.Errorf("%w: node serves %s, configured %d", domain.ErrChainIDMismatch, id.String(), s.chainID)
	}
	return nil
}

// FetchEvents queries every requested topic in one filter and decodes the logs
func (s *eventSource) FetchEvents(ctx context.Context, kinds []domain.EventKind, r domain.BlockRange) (*domain.EventBatch, error) {
	if r.Len() == 0 {
		return &domain.EventBatch{}, nil
	}

	topics, err := eventTopics(kinds)
	if err != nil {
		return nil, err
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(r.From),
		ToBlock:   new(big.Int).SetUint64(r.To),
		Addresses: []common.Address{s.contract},
		Topics:    [][]common.Hash{topics},
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, filterLogsTimeout)
	defer cancel()

	logs, err := s.getLogsWithRetry(timeoutCtx, query, r.Len())
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for range %s: %w", r, err)
	}

	batch := &domain.EventBatch{}
	for i := range logs {
		vLog := logs[i]
		if vLog.Removed {
			logger.DebugCtx(ctx, "Skipping removed log",
				zap.String("tx_hash", vLog.TxHash.Hex()),
				zap.Uint("log_index", vLog.Index))
			continue
		}

		event, err := decodeLog(vLog)
		if err != nil {
			batch.Failed = append(batch.Failed, s.failedEvent(ctx, vLog, err))
			continue
		}
		batch.Events = append(batch.Events, event)
	}

	sort.SliceStable(batch.Events, func(i, j int) bool {
		return batch.Events[i].Before(batch.Events[j])
	})

	return batch, nil
}

// eventTopics maps event kinds to their topic0 hashes
func eventTopics(kinds []domain.EventKind) ([]common.Hash, error) {
	if len(kinds) == 0 {
		kinds = domain.AllEventKinds()
	}
	topics := make([]common.Hash, 0, len(kinds))
	for _, kind := range kinds {
		topic, err := EventTopic(kind)
		if err != nil {
			return nil, err
		}
		topics = append(topics, topic)
	}
	return topics, nil
}

// Close closes the node connection
func (s *eventSource) Close() {
	if s.client == nil {
		return
	}
	s.client.Close()
	logger.Info("Ledger node connection closed")
}

// getLogsWithRetry walks the query range in chunks, halving the chunk
// whenever the node refuses a response as too large
func (s *eventSource) getLogsWithRetry(ctx context.Context, query ethereum.FilterQuery, stepSize uint64) ([]types.Log, error) {
	currentStepSize := stepSize

	var allLogs []types.Log
	currentFrom := new(big.Int).Set(query.FromBlock)

	for currentFrom.Cmp(query.ToBlock) <= 0 {
		currentTo := new(big.Int).Add(currentFrom, new(big.Int).SetUint64(currentStepSize-1))
		if currentTo.Cmp(query.ToBlock) > 0 {
			currentTo.Set(query.ToBlock)
		}

		queryCopy := query
		queryCopy.FromBlock = new(big.Int).Set(currentFrom)
		queryCopy.ToBlock = new(big.Int).Set(currentTo)

		logs, err := s.client.FilterLogs(ctx, queryCopy)
		if err == nil {
			allLogs = append(allLogs, logs...)
			currentFrom.SetUint64(currentTo.Uint64() + 1)
			continue
		}

		if !isTooManyResultsError(err) || currentStepSize == 1 {
			return nil, err
		}

		currentStepSize = currentStepSize / 2

		logger.WarnCtx(ctx, "Too many results, reducing step size",
			zap.Uint64("oldStepSize", currentStepSize*2),
			zap.Uint64("newStepSize", currentStepSize),
			zap.Uint64("fromBlock", currentFrom.Uint64()),
			zap.Uint64("toBlock", currentTo.Uint64()))
	}

	return allLogs, nil
}

// isTooManyResultsError checks if the error is related to too many results
func isTooManyResultsError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	return strings.Contains(errStr, "query returned more than 10000 results") ||
		strings.Contains(errStr, "query timeout exceeded") ||
		strings.Contains(errStr, "too many results") ||
		strings.Contains(errStr, "exceeded maximum")
}

// failedEvent builds the quarantine record for a log that failed decoding
func (s *eventSource) failedEvent(ctx context.Context, vLog types.Log, cause error) *domain.FailedEvent {
	name := "unknown"
	if len(vLog.Topics) > 0 {
		name = vLog.Topics[0].Hex()
		if ev, err := MarketplaceABI.EventByID(vLog.Topics[0]); err == nil {
			name = ev.Name
		}
	}

	payload, err := s.json.Marshal(vLog)
	if err != nil {
		logger.WarnCtx(ctx, "Failed to marshal log payload", zap.Error(err))
		payload = nil
	}

	reason := cause.Error()
	var eventErr *domain.EventError
	if errors.As(cause, &eventErr) {
		reason = eventErr.Err.Error()
	}

	logger.ErrorCtx(ctx, cause,
		zap.String("message", "Failed to decode marketplace log"),
		zap.String("event", name),
		zap.String("tx_hash", vLog.TxHash.Hex()),
		zap.Uint64("block_number", vLog.BlockNumber),
		zap.Uint("log_index", vLog.Index))

	return &domain.FailedEvent{
		TxHash:      strings.ToLower(vLog.TxHash.Hex()),
		BlockNumber: vLog.BlockNumber,
		LogIndex:    vLog.Index,
		Event:       name,
		Reason:      reason,
		Payload:     payload,
	}
}
