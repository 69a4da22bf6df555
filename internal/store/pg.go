package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/market-indexer/db"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/store/schema"
)

// errMintSkipped rolls back a mint whose token is already mirrored
var errMintSkipped = errors.New("mint skipped: asset exists")

type pgStore struct {
	db *gorm.DB
}

// NewPGStore creates a new PostgreSQL store instance
func NewPGStore(db *gorm.DB) Store {
	return &pgStore{db: db}
}

// ConfigureConnectionPool configures the connection pool settings for a GORM database connection.
// It accesses the underlying *sql.DB and sets the pool configuration.
// Zero values are replaced by the defaults of NormalizeConnectionPoolSettings.
func ConfigureConnectionPool(db *gorm.DB, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime =
		NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime)

	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetMaxIdleConns(maxIdleConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	sqlDB.SetConnMaxIdleTime(connMaxIdleTime)

	return nil
}

// NormalizeConnectionPoolSettings applies defaults and clamps pool settings into safe values.
//
// Defaults (when zero):
//   - MaxOpenConns: 20
//   - MaxIdleConns: 5
//   - ConnMaxLifetime: 5 minutes
//   - ConnMaxIdleTime: 10 minutes
//
// MaxIdleConns never exceeds MaxOpenConns.
func NormalizeConnectionPoolSettings(maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (int, int, time.Duration, time.Duration) {
	if maxOpenConns == 0 {
		maxOpenConns = 20
	}
	if maxIdleConns == 0 {
		maxIdleConns = 5
	}
	if connMaxLifetime == 0 {
		connMaxLifetime = 5 * time.Minute
	}
	if connMaxIdleTime == 0 {
		connMaxIdleTime = 10 * time.Minute
	}

	if maxIdleConns > maxOpenConns {
		maxIdleConns = maxOpenConns
	}

	return maxOpenConns, maxIdleConns, connMaxLifetime, connMaxIdleTime
}

// ApplySchema creates the tables and indexes if they do not exist yet
func ApplySchema(ctx context.Context, gdb *gorm.DB) error {
	sqlDB, err := gdb.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, db.InitSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// GetAssetByTokenID retrieves an asset by its token id
func (s *pgStore) GetAssetByTokenID(ctx context.Context, tokenID uint64) (*domain.Asset, error) {
	var asset schema.Asset
	err := s.db.WithContext(ctx).Where("token_id = ?", tokenID).First(&asset).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to get asset: %w", err)
	}
	return toDomainAsset(&asset), nil
}

// AssetExists checks whether an asset row exists for the token
func (s *pgStore) AssetExists(ctx context.Context, tokenID uint64) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Asset{}).
		Where("token_id = ?", tokenID).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check asset existence: %w", err)
	}
	return count > 0, nil
}

// UpsertAsset creates the asset if absent
func (s *pgStore) UpsertAsset(ctx context.Context, asset *domain.Asset) (bool, error) {
	return createAsset(s.db.WithContext(ctx), asset)
}

// AppendTransaction stores a ledger transaction if its hash is new
func (s *pgStore) AppendTransaction(ctx context.Context, tx *domain.LedgerTransaction) (bool, error) {
	return appendTransaction(s.db.WithContext(ctx), tx)
}

// HasTransaction checks whether a transaction with the hash was already stored
func (s *pgStore) HasTransaction(ctx context.Context, txHash string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.LedgerTransaction{}).
		Where("tx_hash = ?", txHash).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}
	return count > 0, nil
}

// ApplyProjection records the transaction row first and applies the asset
// mutation only when the row is new, all in one database transaction.
// A mint for an existing token writes nothing and reports Recorded=false.
func (s *pgStore) ApplyProjection(ctx context.Context, projection *domain.Projection) (ApplyResult, error) {
	var result ApplyResult
	if projection == nil {
		return result, fmt.Errorf("%w: nil projection", domain.ErrMalformedEvent)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		recorded, err := appendTransaction(tx, &projection.Transaction)
		if err != nil {
			return err
		}
		if !recorded {
			// Already processed in an earlier run
			return nil
		}
		result.Recorded = true

		m := projection.Mutation
		if m == nil {
			return nil
		}

		changed, err := applyMutation(tx, m)
		if err != nil {
			return err
		}
		if !changed && m.Kind == domain.MutationCreate {
			return errMintSkipped
		}
		result.AssetChanged = changed

		if !changed {
			logger.WarnCtx(ctx, "Asset mutation matched no row",
				zap.String("mutation", string(m.Kind)),
				zap.Uint64("token_id", m.TokenID),
				zap.String("tx_hash", projection.Transaction.TxHash))
		}
		return nil
	})
	if errors.Is(err, errMintSkipped) {
		logger.DebugCtx(ctx, "Mint skipped, asset already exists",
			zap.Uint64("token_id", projection.Mutation.TokenID),
			zap.String("tx_hash", projection.Transaction.TxHash))
		return ApplyResult{}, nil
	}
	if err != nil {
		return ApplyResult{}, err
	}

	return result, nil
}

// ReadCheckpoint returns the last indexed block and whether a checkpoint exists
func (s *pgStore) ReadCheckpoint(ctx context.Context) (uint64, bool, error) {
	var checkpoint schema.IndexerCheckpoint
	err := s.db.WithContext(ctx).Where("id = ?", domain.CheckpointID).First(&checkpoint).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to read checkpoint: %w", err)
	}
	return checkpoint.LastIndexedBlock, true, nil
}

// WriteCheckpoint advances the checkpoint; a lower block than the stored one is ignored
func (s *pgStore) WriteCheckpoint(ctx context.Context, blockNumber uint64) error {
	checkpoint := schema.IndexerCheckpoint{
		ID:               domain.CheckpointID,
		LastIndexedBlock: blockNumber,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.Set{
			{
				Column: clause.Column{Name: "last_indexed_block"},
				Value:  gorm.Expr("GREATEST(indexer_checkpoint.last_indexed_block, EXCLUDED.last_indexed_block)"),
			},
			{
				Column: clause.Column{Name: "updated_at"},
				Value:  gorm.Expr("now()"),
			},
		},
	}).Create(&checkpoint).Error
	if err != nil {
		return fmt.Errorf("failed to write checkpoint: %w", err)
	}
	return nil
}

// ResetCheckpoint sets the checkpoint unconditionally
func (s *pgStore) ResetCheckpoint(ctx context.Context, blockNumber uint64) error {
	checkpoint := schema.IndexerCheckpoint{
		ID:               domain.CheckpointID,
		LastIndexedBlock: blockNumber,
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_indexed_block", "updated_at"}),
	}).Create(&checkpoint).Error
	if err != nil {
		return fmt.Errorf("failed to reset checkpoint: %w", err)
	}
	return nil
}

// RecordFailedEvent quarantines a log; recording the same log twice is a no-op
func (s *pgStore) RecordFailedEvent(ctx context.Context, event *domain.FailedEvent) error {
	if event == nil {
		return nil
	}

	row := toFailedEventModel(event)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}, {Name: "log_index"}},
		DoNothing: true,
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to record failed event: %w", err)
	}
	return nil
}

// GetStats returns row counts for the mirrored state
func (s *pgStore) GetStats(ctx context.Context) (*Stats, error) {
	var stats Stats
	err := s.db.WithContext(ctx).Raw(`
		SELECT
			(SELECT COUNT(*) FROM assets) AS assets,
			(SELECT COUNT(*) FROM assets WHERE is_listed) AS listed_assets,
			(SELECT COUNT(*) FROM assets WHERE is_burned) AS burned_assets,
			(SELECT COUNT(*) FROM ledger_transactions) AS transactions,
			(SELECT COUNT(*) FROM failed_events) AS failed_events
	`).Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return &stats, nil
}

// createAsset inserts the asset unless the token already has a row
func createAsset(tx *gorm.DB, asset *domain.Asset) (bool, error) {
	if asset == nil {
		return false, fmt.Errorf("%w: nil asset", domain.ErrMalformedEvent)
	}

	row := toAssetModel(asset)
	res := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token_id"}},
		DoNothing: true,
	}).Create(row)
	if res.Error != nil {
		return false, fmt.Errorf("failed to create asset: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// appendTransaction inserts the row unless its tx_hash is already stored.
// A zero ID after the insert means the hash was a duplicate.
func appendTransaction(tx *gorm.DB, ledgerTx *domain.LedgerTransaction) (bool, error) {
	if ledgerTx == nil {
		return false, fmt.Errorf("%w: nil transaction", domain.ErrMalformedEvent)
	}

	row := toTransactionModel(ledgerTx)
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "tx_hash"}},
		DoNothing: true,
	}).Clauses(clause.Returning{Columns: []clause.Column{}}).
		Create(row).Error; err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}
	return row.ID != 0, nil
}

// applyMutation performs the conditional write for one state transition.
// Every update is guarded by is_burned = false so a burned asset never changes again.
func applyMutation(tx *gorm.DB, m *domain.AssetMutation) (bool, error) {
	var updates map[string]interface{}

	switch m.Kind {
	case domain.MutationCreate:
		return createAsset(tx, m.Asset)
	case domain.MutationList:
		if m.Price == nil {
			return false, fmt.Errorf("%w: list without price", domain.ErrMalformedEvent)
		}
		updates = map[string]interface{}{
			"is_listed": true,
			"seller":    m.Seller,
			"price":     toNullDecimal(m.Price),
		}
	case domain.MutationSell:
		updates = map[string]interface{}{
			"owner":     m.Owner,
			"is_listed": false,
			"seller":    nil,
			"price":     nil,
		}
	case domain.MutationCancel:
		updates = map[string]interface{}{
			"is_listed": false,
			"seller":    nil,
			"price":     nil,
		}
	case domain.MutationBurn:
		updates = map[string]interface{}{
			"is_burned": true,
			"is_listed": false,
			"seller":    nil,
			"price":     nil,
		}
	default:
		return false, fmt.Errorf("unknown mutation kind: %s", m.Kind)
	}
	updates["updated_at"] = gorm.Expr("now()")

	res := tx.Model(&schema.Asset{}).
		Where("token_id = ? AND is_burned = ?", m.TokenID, false).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("failed to apply %s mutation: %w", m.Kind, res.Error)
	}
	return res.RowsAffected > 0, nil
}
