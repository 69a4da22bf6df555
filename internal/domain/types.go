package domain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventKind is the marketplace contract event name
type EventKind string

const (
	EventMinted           EventKind = "NFTMinted"
	EventListed           EventKind = "NFTListed"
	EventSold             EventKind = "NFTSold"
	EventListingCancelled EventKind = "ListingCancelled"
	EventBurned           EventKind = "NFTBurned"
)

// AllEventKinds returns every event kind the indexer projects, in table order
func AllEventKinds() []EventKind {
	return []EventKind{EventMinted, EventListed, EventSold, EventListingCancelled, EventBurned}
}

// Valid checks if the event kind is one the indexer projects
func (k EventKind) Valid() bool {
	switch k {
	case EventMinted, EventListed, EventSold, EventListingCancelled, EventBurned:
		return true
	}
	return false
}

// TxType is the ledger transaction type recorded for each processed event
type TxType string

const (
	TxTypeMint   TxType = "mint"
	TxTypeList   TxType = "list"
	TxTypeBuy    TxType = "buy"
	TxTypeCancel TxType = "cancel"
	TxTypeBurn   TxType = "burn"
)

// MarketEvent is a decoded marketplace contract log.
// Which party fields are set depends on Kind.
type MarketEvent struct {
	Kind        EventKind
	TokenID     uint64
	TxHash      string
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint

	// NFTMinted
	Creator    string
	TokenURI   string
	RoyaltyBps uint64
	Category   string

	// NFTListed, NFTSold, ListingCancelled
	Seller string
	// NFTSold
	Buyer string
	// NFTBurned
	Burner string

	// NFTListed, NFTSold; smallest denomination units
	Price *big.Int
}

// Before orders events by their position on the ledger
func (e *MarketEvent) Before(other *MarketEvent) bool {
	if e.BlockNumber != other.BlockNumber {
		return e.BlockNumber < other.BlockNumber
	}
	return e.LogIndex < other.LogIndex
}

// Metadata is the resolved off-chain document referenced by a token URI.
// A zero value means resolution failed or returned nothing usable.
type Metadata struct {
	Name        string
	Description string
	Image       string
	Raw         json.RawMessage // canonical (JCS) form of the fetched document
	Hash        string          // hex sha256 of Raw
}

// Empty reports whether no document was resolved
func (m *Metadata) Empty() bool {
	return m == nil || len(m.Raw) == 0
}

// Asset is the mirrored current state of one token
type Asset struct {
	TokenID      uint64          `json:"token_id"`
	URI          string          `json:"uri"`
	Name         string          `json:"name"`
	Description  string          `json:"description"`
	ImageURL     string          `json:"image_url"`
	Creator      string          `json:"creator"`
	Owner        string          `json:"owner"`
	Seller       *string         `json:"seller"`
	Category     string          `json:"category"`
	RoyaltyBps   uint64          `json:"royalty_bps"`
	IsListed     bool            `json:"is_listed"`
	Price        *big.Int        `json:"price"`
	IsBurned     bool            `json:"is_burned"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
	MetadataHash *string         `json:"metadata_hash"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// MutationKind is the asset state transition produced by an event
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationList   MutationKind = "list"
	MutationSell   MutationKind = "sell"
	MutationCancel MutationKind = "cancel"
	MutationBurn   MutationKind = "burn"
)

// AssetMutation describes one transition of the asset state machine
type AssetMutation struct {
	Kind    MutationKind
	TokenID uint64

	// MutationCreate
	Asset *Asset
	// MutationList
	Seller string
	Price  *big.Int
	// MutationSell
	Owner string
}

// ApplyMutation returns the asset state after m.
// current is nil when no asset exists for the token yet.
// It mirrors the conditional writes the store performs in SQL.
func ApplyMutation(current *Asset, m AssetMutation) (*Asset, error) {
	if m.Kind == MutationCreate {
		if current != nil {
			return current, ErrAssetAlreadyExists
		}
		if m.Asset == nil {
			return nil, fmt.Errorf("%w: create without asset", ErrMalformedEvent)
		}
		created := *m.Asset
		return &created, nil
	}

	if current == nil {
		return nil, ErrAssetNotFound
	}
	if current.IsBurned {
		return current, ErrAssetBurned
	}

	next := *current
	switch m.Kind {
	case MutationList:
		seller := m.Seller
		next.IsListed = true
		next.Seller = &seller
		next.Price = new(big.Int).Set(m.Price)
	case MutationSell:
		next.Owner = m.Owner
		next.IsListed = false
		next.Seller = nil
		next.Price = nil
	case MutationCancel:
		next.IsListed = false
		next.Seller = nil
		next.Price = nil
	case MutationBurn:
		next.IsBurned = true
		next.IsListed = false
		next.Seller = nil
		next.Price = nil
	default:
		return current, fmt.Errorf("unknown mutation kind: %s", m.Kind)
	}
	return &next, nil
}

// LedgerTransaction is the append-only record of one processed event
type LedgerTransaction struct {
	TxHash      string    `json:"tx_hash"`
	BlockNumber uint64    `json:"block_number"`
	LogIndex    uint      `json:"log_index"`
	TxType      TxType    `json:"tx_type"`
	TokenID     uint64    `json:"token_id"`
	FromAddress *string   `json:"from_address"`
	ToAddress   *string   `json:"to_address"`
	Price       *big.Int  `json:"-"`
	Timestamp   time.Time `json:"timestamp"`
}

// Projection is the persistence work derived from one event
type Projection struct {
	Mutation    *AssetMutation
	Transaction LedgerTransaction
}

// BlockRange is a closed interval of block numbers
type BlockRange struct {
	From uint64
	To   uint64
}

// Len returns the number of blocks in the range
func (r BlockRange) Len() uint64 {
	if r.To < r.From {
		return 0
	}
	return r.To - r.From + 1
}

func (r BlockRange) String() string {
	return fmt.Sprintf("[%d, %d]", r.From, r.To)
}

// EventBatch is the decoded content of one block range
type EventBatch struct {
	// Events are ordered by (block number, log index)
	Events []*MarketEvent
	// Failed holds logs that matched a marketplace topic but could not be decoded
	Failed []*FailedEvent
}

// FailedEvent is a quarantined log that could not be projected
type FailedEvent struct {
	TxHash      string
	BlockNumber uint64
	LogIndex    uint
	Event       string
	Reason      string
	Payload     json.RawMessage
}

// NormalizeAddress validates a hex address and returns its lower-case canonical form
func NormalizeAddress(address string) (string, error) {
	if !common.IsHexAddress(address) {
		return "", fmt.Errorf("%w: invalid address %q", ErrMalformedEvent, address)
	}
	return AddressString(common.HexToAddress(address)), nil
}

// AddressString returns the lower-case hex form of an address
func AddressString(address common.Address) string {
	return strings.ToLower(address.Hex())
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}
