// Package projector maps decoded marketplace events to asset mutations and
// ledger transaction rows. It performs no I/O.
package projector

import (
	"fmt"
	"math/big"
	"time"

	"github.com/feral-file/market-indexer/internal/domain"
)

// MaxRoyaltyBps is 100% expressed in basis points
const MaxRoyaltyBps = 10000

// maxPrice is the largest value a NUMERIC(78,0) column and a uint256 both hold
var maxPrice = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Input carries what a projection needs beyond the event itself
type Input struct {
	// Metadata is the resolved document for NFTMinted; nil means none was resolved
	Metadata *domain.Metadata
	// BlockTime is the timestamp of the block containing the event
	BlockTime time.Time
}

// FallbackName is the display name used when metadata has no name
func FallbackName(tokenID uint64) string {
	return fmt.Sprintf("NFT #%d", tokenID)
}

// Project returns the asset mutation and transaction row for one event.
// A payload that cannot be projected yields an error wrapping domain.ErrMalformedEvent.
func Project(ev *domain.MarketEvent, in Input) (*domain.Projection, error) {
	if ev == nil {
		return nil, fmt.Errorf("%w: nil event", domain.ErrMalformedEvent)
	}
	if ev.TxHash == "" {
		return nil, malformed(ev, fmt.Errorf("missing tx hash"))
	}

	var (
		p   *domain.Projection
		err error
	)
	switch ev.Kind {
	case domain.EventMinted:
		p, err = projectMinted(ev, in)
	case domain.EventListed:
		p, err = projectListed(ev)
	case domain.EventSold:
		p, err = projectSold(ev)
	case domain.EventListingCancelled:
		p, err = projectCancelled(ev)
	case domain.EventBurned:
		p, err = projectBurned(ev)
	default:
		err = fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	if err != nil {
		return nil, malformed(ev, err)
	}

	p.Transaction.TxHash = ev.TxHash
	p.Transaction.BlockNumber = ev.BlockNumber
	p.Transaction.LogIndex = ev.LogIndex
	p.Transaction.TokenID = ev.TokenID
	p.Transaction.Timestamp = in.BlockTime.UTC()
	return p, nil
}

func projectMinted(ev *domain.MarketEvent, in Input) (*domain.Projection, error) {
	creator, err := domain.NormalizeAddress(ev.Creator)
	if err != nil {
		return nil, err
	}
	if ev.RoyaltyBps > MaxRoyaltyBps {
		return nil, fmt.Errorf("royalty out of range: %d", ev.RoyaltyBps)
	}

	asset := &domain.Asset{
		TokenID:    ev.TokenID,
		URI:        ev.TokenURI,
		Name:       FallbackName(ev.TokenID),
		Creator:    creator,
		Owner:      creator,
		Category:   ev.Category,
		RoyaltyBps: ev.RoyaltyBps,
	}
	if meta := in.Metadata; !meta.Empty() {
		if meta.Name != "" {
			asset.Name = meta.Name
		}
		asset.Description = meta.Description
		asset.ImageURL = meta.Image
		asset.Metadata = meta.Raw
		if meta.Hash != "" {
			asset.MetadataHash = domain.StringPtr(meta.Hash)
		}
	}

	return &domain.Projection{
		Mutation: &domain.AssetMutation{
			Kind:    domain.MutationCreate,
			TokenID: ev.TokenID,
			Asset:   asset,
		},
		Transaction: domain.LedgerTransaction{
			TxType:    domain.TxTypeMint,
			ToAddress: domain.StringPtr(creator),
		},
	}, nil
}

func projectListed(ev *domain.MarketEvent) (*domain.Projection, error) {
	seller, err := domain.NormalizeAddress(ev.Seller)
	if err != nil {
		return nil, err
	}
	price, err := validPrice(ev.Price)
	if err != nil {
		return nil, err
	}

	return &domain.Projection{
		Mutation: &domain.AssetMutation{
			Kind:    domain.MutationList,
			TokenID: ev.TokenID,
			Seller:  seller,
			Price:   price,
		},
		Transaction: domain.LedgerTransaction{
			TxType:      domain.TxTypeList,
			FromAddress: domain.StringPtr(seller),
			Price:       new(big.Int).Set(price),
		},
	}, nil
}

func projectSold(ev *domain.MarketEvent) (*domain.Projection, error) {
	seller, err := domain.NormalizeAddress(ev.Seller)
	if err != nil {
		return nil, err
	}
	buyer, err := domain.NormalizeAddress(ev.Buyer)
	if err != nil {
		return nil, err
	}
	price, err := validPrice(ev.Price)
	if err != nil {
		return nil, err
	}

	return &domain.Projection{
		Mutation: &domain.AssetMutation{
			Kind:    domain.MutationSell,
			TokenID: ev.TokenID,
			Owner:   buyer,
		},
		Transaction: domain.LedgerTransaction{
			TxType:      domain.TxTypeBuy,
			FromAddress: domain.StringPtr(buyer),
			ToAddress:   domain.StringPtr(seller),
			Price:       price,
		},
	}, nil
}

func projectCancelled(ev *domain.MarketEvent) (*domain.Projection, error) {
	seller, err := domain.NormalizeAddress(ev.Seller)
	if err != nil {
		return nil, err
	}

	return &domain.Projection{
		Mutation: &domain.AssetMutation{
			Kind:    domain.MutationCancel,
			TokenID: ev.TokenID,
		},
		Transaction: domain.LedgerTransaction{
			TxType:      domain.TxTypeCancel,
			FromAddress: domain.StringPtr(seller),
		},
	}, nil
}

func projectBurned(ev *domain.MarketEvent) (*domain.Projection, error) {
	burner, err := domain.NormalizeAddress(ev.Burner)
	if err != nil {
		return nil, err
	}

	return &domain.Projection{
		Mutation: &domain.AssetMutation{
			Kind:    domain.MutationBurn,
			TokenID: ev.TokenID,
		},
		Transaction: domain.LedgerTransaction{
			TxType:      domain.TxTypeBurn,
			FromAddress: domain.StringPtr(burner),
		},
	}, nil
}

func validPrice(price *big.Int) (*big.Int, error) {
	if price == nil {
		return nil, fmt.Errorf("missing price")
	}
	if price.Sign() < 0 || price.Cmp(maxPrice) > 0 {
		return nil, fmt.Errorf("price out of range: %s", price.String())
	}
	return new(big.Int).Set(price), nil
}

func malformed(ev *domain.MarketEvent, err error) error {
	return &domain.EventError{
		TxHash:   ev.TxHash,
		LogIndex: ev.LogIndex,
		Event:    ev.Kind,
		Err:      fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err),
	}
}
