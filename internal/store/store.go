package store

import (
	"context"

	"github.com/feral-file/market-indexer/internal/domain"
)

//go:generate mockgen -source=store.go -destination=../mocks/store.go -package=mocks -mock_names=Store=MockStore

// ApplyResult reports what ApplyProjection changed
type ApplyResult struct {
	// Recorded is false when a transaction with the same hash was already stored,
	// or when a mint targets a token that already exists
	Recorded bool
	// AssetChanged is false when the asset mutation matched no row,
	// e.g. the asset is missing or already burned
	AssetChanged bool
}

// Stats summarizes the mirrored state
type Stats struct {
	Assets       int64 `json:"assets"`
	ListedAssets int64 `json:"listed_assets"`
	BurnedAssets int64 `json:"burned_assets"`
	Transactions int64 `json:"transactions"`
	FailedEvents int64 `json:"failed_events"`
}

// Store defines the interface for database operations
type Store interface {
	// GetAssetByTokenID retrieves an asset by its token id.
	// Returns domain.ErrAssetNotFound when no asset is mirrored for the token.
	GetAssetByTokenID(ctx context.Context, tokenID uint64) (*domain.Asset, error)
	// AssetExists checks whether an asset row exists for the token
	AssetExists(ctx context.Context, tokenID uint64) (bool, error)
	// UpsertAsset creates the asset if absent and reports whether it was created.
	// An existing row is left untouched.
	UpsertAsset(ctx context.Context, asset *domain.Asset) (bool, error)
	// AppendTransaction stores a ledger transaction and reports whether it was new
	AppendTransaction(ctx context.Context, tx *domain.LedgerTransaction) (bool, error)
	// HasTransaction checks whether a transaction with the hash was already stored
	HasTransaction(ctx context.Context, txHash string) (bool, error)
	// ApplyProjection records the transaction and applies the asset mutation atomically.
	// Replaying an already recorded transaction changes nothing.
	ApplyProjection(ctx context.Context, projection *domain.Projection) (ApplyResult, error)

	// ReadCheckpoint returns the last indexed block and whether a checkpoint exists
	ReadCheckpoint(ctx context.Context) (uint64, bool, error)
	// WriteCheckpoint advances the checkpoint; it never moves backwards
	WriteCheckpoint(ctx context.Context, blockNumber uint64) error
	// ResetCheckpoint sets the checkpoint unconditionally
	ResetCheckpoint(ctx context.Context, blockNumber uint64) error

	// RecordFailedEvent quarantines a log that could not be projected
	RecordFailedEvent(ctx context.Context, event *domain.FailedEvent) error
	// GetStats returns row counts for the mirrored state
	GetStats(ctx context.Context) (*Stats, error)
}
