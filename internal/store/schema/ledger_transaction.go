package schema

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerTransaction represents the ledger_transactions table - one append-only row per processed event
type LedgerTransaction struct {
	// ID is the internal database primary key
	ID int64 `gorm:"column:id;primaryKey;autoIncrement"`
	// TxHash is unique: a second event with the same hash is treated as already processed
	TxHash      string `gorm:"column:tx_hash;not null;type:varchar(66);uniqueIndex:ledger_transactions_tx_hash_key"`
	BlockNumber uint64 `gorm:"column:block_number;not null;index:idx_ledger_transactions_block_log,priority:1"`
	LogIndex    uint   `gorm:"column:log_index;not null;index:idx_ledger_transactions_block_log,priority:2"`
	// TxType is one of mint, list, buy, cancel, burn
	TxType      string              `gorm:"column:tx_type;not null;type:varchar(20);index:idx_ledger_transactions_token_type,priority:2;index:idx_ledger_transactions_from_type,priority:2"`
	TokenID     uint64              `gorm:"column:token_id;not null;index:idx_ledger_transactions_token_type,priority:1"`
	FromAddress *string             `gorm:"column:from_address;type:varchar(42);index:idx_ledger_transactions_from_type,priority:1"`
	ToAddress   *string             `gorm:"column:to_address;type:varchar(42)"`
	Price       decimal.NullDecimal `gorm:"column:price;type:numeric(78,0)"`
	// Timestamp is the block time of the event
	Timestamp time.Time `gorm:"column:timestamp;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null;default:now();autoCreateTime"`
}

// TableName specifies the table name for the LedgerTransaction model
func (LedgerTransaction) TableName() string {
	return "ledger_transactions"
}
