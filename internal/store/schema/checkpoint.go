package schema

import "time"

// IndexerCheckpoint represents the indexer_checkpoint table - a single row holding indexing progress
type IndexerCheckpoint struct {
	// ID is always 1
	ID int16 `gorm:"column:id;primaryKey;autoIncrement:false"`
	// LastIndexedBlock is the highest block whose events are fully persisted
	LastIndexedBlock uint64    `gorm:"column:last_indexed_block;not null"`
	UpdatedAt        time.Time `gorm:"column:updated_at;not null;default:now();autoUpdateTime"`
}

// TableName specifies the table name for the IndexerCheckpoint model
func (IndexerCheckpoint) TableName() string {
	return "indexer_checkpoint"
}
