package schema

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Asset represents the assets table - the mirrored current state of each marketplace token
type Asset struct {
	// TokenID is the on-chain token identifier; token 0 is valid so it is never auto-assigned
	TokenID uint64 `gorm:"column:token_id;primaryKey;autoIncrement:false"`
	// URI is the token URI emitted at mint
	URI string `gorm:"column:uri;not null;type:text"`
	// Name is the metadata name, or "NFT #<id>" when none was resolved
	Name        string `gorm:"column:name;not null;type:text"`
	Description string `gorm:"column:description;not null;type:text;default:''"`
	// ImageURL is the metadata image rewritten to the configured IPFS gateway
	ImageURL string `gorm:"column:image_url;not null;type:text;default:''"`
	// Creator is the minting address (lower-case hex)
	Creator string `gorm:"column:creator;not null;type:varchar(42);index:idx_assets_creator_burned,priority:1"`
	// Owner is the current holder (lower-case hex)
	Owner string `gorm:"column:owner;not null;type:varchar(42);index:idx_assets_owner_listed,priority:1"`
	// Seller is set only while listed
	Seller     *string `gorm:"column:seller;type:varchar(42)"`
	Category   string  `gorm:"column:category;not null;type:text;default:'';index:idx_assets_category_listed,priority:1"`
	RoyaltyBps uint64  `gorm:"column:royalty_bps;not null;default:0"`
	IsListed   bool    `gorm:"column:is_listed;not null;default:false;index:idx_assets_owner_listed,priority:2;index:idx_assets_category_listed,priority:2"`
	// Price is the listing price in the chain's smallest unit, NULL unless listed
	Price    decimal.NullDecimal `gorm:"column:price;type:numeric(78,0)"`
	IsBurned bool                `gorm:"column:is_burned;not null;default:false;index:idx_assets_creator_burned,priority:2"`
	// Metadata is the canonical JSON document fetched from the token URI
	Metadata     datatypes.JSON `gorm:"column:metadata;type:jsonb"`
	MetadataHash *string        `gorm:"column:metadata_hash;type:varchar(64)"`
	CreatedAt    time.Time      `gorm:"column:created_at;not null;default:now();autoCreateTime"`
	UpdatedAt    time.Time      `gorm:"column:updated_at;not null;default:now();autoUpdateTime"`
}

// TableName specifies the table name for the Asset model
func (Asset) TableName() string {
	return "assets"
}
