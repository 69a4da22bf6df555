package store

import (
	"encoding/json"
	"math/big"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/store/schema"
)

// toNullDecimal converts a wei amount to a NUMERIC(78,0) value; nil maps to NULL
func toNullDecimal(v *big.Int) decimal.NullDecimal {
	if v == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(v, 0))
}

// fromNullDecimal converts a NUMERIC(78,0) value back to an exact integer
func fromNullDecimal(v decimal.NullDecimal) *big.Int {
	if !v.Valid {
		return nil
	}
	return v.Decimal.BigInt()
}

func toJSON(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func toAssetModel(a *domain.Asset) *schema.Asset {
	return &schema.Asset{
		TokenID:      a.TokenID,
		URI:          a.URI,
		Name:         a.Name,
		Description:  a.Description,
		ImageURL:     a.ImageURL,
		Creator:      a.Creator,
		Owner:        a.Owner,
		Seller:       a.Seller,
		Category:     a.Category,
		RoyaltyBps:   a.RoyaltyBps,
		IsListed:     a.IsListed,
		Price:        toNullDecimal(a.Price),
		IsBurned:     a.IsBurned,
		Metadata:     toJSON(a.Metadata),
		MetadataHash: a.MetadataHash,
	}
}

func toDomainAsset(a *schema.Asset) *domain.Asset {
	asset := &domain.Asset{
		TokenID:      a.TokenID,
		URI:          a.URI,
		Name:         a.Name,
		Description:  a.Description,
		ImageURL:     a.ImageURL,
		Creator:      a.Creator,
		Owner:        a.Owner,
		Seller:       a.Seller,
		Category:     a.Category,
		RoyaltyBps:   a.RoyaltyBps,
		IsListed:     a.IsListed,
		Price:        fromNullDecimal(a.Price),
		IsBurned:     a.IsBurned,
		MetadataHash: a.MetadataHash,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
	if len(a.Metadata) > 0 {
		asset.Metadata = json.RawMessage(a.Metadata)
	}
	return asset
}

func toTransactionModel(t *domain.LedgerTransaction) *schema.LedgerTransaction {
	return &schema.LedgerTransaction{
		TxHash:      t.TxHash,
		BlockNumber: t.BlockNumber,
		LogIndex:    t.LogIndex,
		TxType:      string(t.TxType),
		TokenID:     t.TokenID,
		FromAddress: t.FromAddress,
		ToAddress:   t.ToAddress,
		Price:       toNullDecimal(t.Price),
		Timestamp:   t.Timestamp,
	}
}

func toFailedEventModel(e *domain.FailedEvent) *schema.FailedEvent {
	return &schema.FailedEvent{
		TxHash:      e.TxHash,
		BlockNumber: e.BlockNumber,
		LogIndex:    e.LogIndex,
		Event:       e.Event,
		Reason:      e.Reason,
		Payload:     toJSON(e.Payload),
	}
}
