package schema

import (
	"time"

	"gorm.io/datatypes"
)

// FailedEvent represents the failed_events table - logs quarantined because they could not be projected
type FailedEvent struct {
	ID          int64  `gorm:"column:id;primaryKey;autoIncrement"`
	TxHash      string `gorm:"column:tx_hash;not null;type:varchar(66);uniqueIndex:failed_events_tx_log_key,priority:1"`
	BlockNumber uint64 `gorm:"column:block_number;not null"`
	LogIndex    uint   `gorm:"column:log_index;not null;uniqueIndex:failed_events_tx_log_key,priority:2"`
	// Event is the contract event name, or the raw topic when it could not be identified
	Event  string `gorm:"column:event;not null;type:text"`
	Reason string `gorm:"column:reason;not null;type:text"`
	// Payload is the raw log as JSON
	Payload   datatypes.JSON `gorm:"column:payload;type:jsonb"`
	CreatedAt time.Time      `gorm:"column:created_at;not null;default:now();autoCreateTime"`
}

// TableName specifies the table name for the FailedEvent model
func (FailedEvent) TableName() string {
	return "failed_events"
}
