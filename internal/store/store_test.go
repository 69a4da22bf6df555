package store

import (
	"context"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/projector"
)

// =============================================================================
// Test Data Builders
// =============================================================================

const (
	testCreator = "0x1111111111111111111111111111111111111111"
	testBuyer   = "0x2222222222222222222222222222222222222222"
)

var testBlockTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func oneEther() *big.Int {
	v, _ := new(big.Int).SetString("1000000000000000000", 10)
	return v
}

func maxUint256() *big.Int {
	return new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
}

// buildTestEvent creates a market event at the given position
func buildTestEvent(kind domain.EventKind, tokenID uint64, block uint64, logIndex uint, txHash string) *domain.MarketEvent {
	ev := &domain.MarketEvent{
		Kind:        kind,
		TokenID:     tokenID,
		TxHash:      txHash,
		BlockNumber: block,
		LogIndex:    logIndex,
	}
	switch kind {
	case domain.EventMinted:
		ev.Creator = testCreator
		ev.TokenURI = "ipfs://QmMeta"
		ev.RoyaltyBps = 500
		ev.Category = "art"
	case domain.EventListed:
		ev.Seller = testCreator
		ev.Price = oneEther()
	case domain.EventSold:
		ev.Seller = testCreator
		ev.Buyer = testBuyer
		ev.Price = oneEther()
	case domain.EventListingCancelled:
		ev.Seller = testCreator
	case domain.EventBurned:
		ev.Burner = testCreator
	}
	return ev
}

// buildTestProjection projects an event the way the indexer does
func buildTestProjection(t *testing.T, ev *domain.MarketEvent, meta *domain.Metadata) *domain.Projection {
	p, err := projector.Project(ev, projector.Input{Metadata: meta, BlockTime: testBlockTime})
	require.NoError(t, err)
	return p
}

func buildTestMetadata() *domain.Metadata {
	raw := json.RawMessage(`{"description":"A test piece","image":"ipfs://QmImage","name":"Sunrise"}`)
	return &domain.Metadata{
		Name:        "Sunrise",
		Description: "A test piece",
		Image:       "https://gateway.example/ipfs/QmImage",
		Raw:         raw,
		Hash:        "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
	}
}

func mustApply(t *testing.T, store Store, p *domain.Projection) ApplyResult {
	result, err := store.ApplyProjection(context.Background(), p)
	require.NoError(t, err)
	return result
}

// =============================================================================
// Asset Projection Tests
// =============================================================================

func testApplyProjectionMint(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("mint creates asset and transaction", func(t *testing.T) {
		p := buildTestProjection(t, buildTestEvent(domain.EventMinted, 1, 100, 0, "0xmint1"), buildTestMetadata())

		result := mustApply(t, store, p)
		assert.True(t, result.Recorded)
		assert.True(t, result.AssetChanged)

		asset, err := store.GetAssetByTokenID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), asset.TokenID)
		assert.Equal(t, "ipfs://QmMeta", asset.URI)
		assert.Equal(t, "Sunrise", asset.Name)
		assert.Equal(t, "A test piece", asset.Description)
		assert.Equal(t, "https://gateway.example/ipfs/QmImage", asset.ImageURL)
		assert.Equal(t, testCreator, asset.Creator)
		assert.Equal(t, testCreator, asset.Owner)
		assert.Equal(t, "art", asset.Category)
		assert.Equal(t, uint64(500), asset.RoyaltyBps)
		assert.False(t, asset.IsListed)
		assert.Nil(t, asset.Price)
		assert.Nil(t, asset.Seller)
		assert.False(t, asset.IsBurned)
		require.NotNil(t, asset.MetadataHash)
		assert.Equal(t, buildTestMetadata().Hash, *asset.MetadataHash)
		assert.JSONEq(t, string(buildTestMetadata().Raw), string(asset.Metadata))
		assert.False(t, asset.CreatedAt.IsZero())

		found, err := store.HasTransaction(ctx, "0xmint1")
		require.NoError(t, err)
		assert.True(t, found)
	})

	t.Run("token zero is a valid id", func(t *testing.T) {
		p := buildTestProjection(t, buildTestEvent(domain.EventMinted, 0, 100, 1, "0xmint0"), nil)

		result := mustApply(t, store, p)
		assert.True(t, result.AssetChanged)

		asset, err := store.GetAssetByTokenID(ctx, 0)
		require.NoError(t, err)
		assert.Equal(t, "NFT #0", asset.Name)
		assert.Nil(t, asset.Metadata)
		assert.Nil(t, asset.MetadataHash)
	})

	t.Run("replaying a mint changes nothing", func(t *testing.T) {
		p := buildTestProjection(t, buildTestEvent(domain.EventMinted, 2, 101, 0, "0xmint2"), nil)

		first := mustApply(t, store, p)
		assert.True(t, first.Recorded)

		second := mustApply(t, store, p)
		assert.False(t, second.Recorded)
		assert.False(t, second.AssetChanged)

		stats, err := store.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Assets)
		assert.Equal(t, int64(3), stats.Transactions)
	})

	t.Run("second mint of an existing token writes nothing", func(t *testing.T) {
		ev := buildTestEvent(domain.EventMinted, 1, 102, 0, "0xmint1again")
		ev.Creator = testBuyer
		p := buildTestProjection(t, ev, nil)

		result := mustApply(t, store, p)
		assert.False(t, result.Recorded)
		assert.False(t, result.AssetChanged)

		found, err := store.HasTransaction(ctx, "0xmint1again")
		require.NoError(t, err)
		assert.False(t, found)

		asset, err := store.GetAssetByTokenID(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, testCreator, asset.Creator)
		assert.Equal(t, "Sunrise", asset.Name)

		stats, err := store.GetStats(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Transactions)
	})
}

func testListAndBuy(t *testing.T, store Store) {
	ctx := context.Background()

	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventMinted, 7, 100, 0, "0xmint"), nil))

	t.Run("list stores exact price", func(t *testing.T) {
		result := mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventListed, 7, 101, 0, "0xlist"), nil))
		assert.True(t, result.AssetChanged)

		asset, err := store.GetAssetByTokenID(ctx, 7)
		require.NoError(t, err)
		assert.True(t, asset.IsListed)
		require.NotNil(t, asset.Price)
		assert.Equal(t, "1000000000000000000", asset.Price.String())
		require.NotNil(t, asset.Seller)
		assert.Equal(t, testCreator, *asset.Seller)
	})

	t.Run("buy transfers ownership and clears listing", func(t *testing.T) {
		result := mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventSold, 7, 102, 0, "0xbuy"), nil))
		assert.True(t, result.AssetChanged)

		asset, err := store.GetAssetByTokenID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, testBuyer, asset.Owner)
		assert.Equal(t, testCreator, asset.Creator)
		assert.False(t, asset.IsListed)
		assert.Nil(t, asset.Price)
		assert.Nil(t, asset.Seller)
	})

	t.Run("cancel clears a second listing", func(t *testing.T) {
		list := buildTestEvent(domain.EventListed, 7, 103, 0, "0xlist2")
		list.Seller = testBuyer
		mustApply(t, store, buildTestProjection(t, list, nil))

		cancel := buildTestEvent(domain.EventListingCancelled, 7, 104, 0, "0xcancel")
		cancel.Seller = testBuyer
		result := mustApply(t, store, buildTestProjection(t, cancel, nil))
		assert.True(t, result.AssetChanged)

		asset, err := store.GetAssetByTokenID(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, testBuyer, asset.Owner)
		assert.False(t, asset.IsListed)
		assert.Nil(t, asset.Price)
	})

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Transactions)
	assert.Equal(t, int64(0), stats.ListedAssets)
}

func testPricePrecision(t *testing.T, store Store) {
	ctx := context.Background()

	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventMinted, 3, 100, 0, "0xmint"), nil))

	list := buildTestEvent(domain.EventListed, 3, 101, 0, "0xlist")
	list.Price = maxUint256()
	mustApply(t, store, buildTestProjection(t, list, nil))

	asset, err := store.GetAssetByTokenID(ctx, 3)
	require.NoError(t, err)
	require.NotNil(t, asset.Price)
	assert.Equal(t, 0, maxUint256().Cmp(asset.Price), "got %s", asset.Price.String())
}

func testBurnLatch(t *testing.T, store Store) {
	ctx := context.Background()

	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventMinted, 9, 100, 0, "0xmint"), nil))
	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventListed, 9, 101, 0, "0xlist"), nil))

	result := mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventBurned, 9, 102, 0, "0xburn"), nil))
	assert.True(t, result.AssetChanged)

	asset, err := store.GetAssetByTokenID(ctx, 9)
	require.NoError(t, err)
	assert.True(t, asset.IsBurned)
	assert.False(t, asset.IsListed)
	assert.Nil(t, asset.Price)
	assert.Nil(t, asset.Seller)

	t.Run("later events are recorded but do not change the asset", func(t *testing.T) {
		for _, ev := range []*domain.MarketEvent{
			buildTestEvent(domain.EventListed, 9, 103, 0, "0xlist-after-burn"),
			buildTestEvent(domain.EventSold, 9, 104, 0, "0xbuy-after-burn"),
			buildTestEvent(domain.EventBurned, 9, 105, 0, "0xburn-again"),
		} {
			result := mustApply(t, store, buildTestProjection(t, ev, nil))
			assert.True(t, result.Recorded, ev.TxHash)
			assert.False(t, result.AssetChanged, ev.TxHash)
		}

		after, err := store.GetAssetByTokenID(ctx, 9)
		require.NoError(t, err)
		assert.True(t, after.IsBurned)
		assert.False(t, after.IsListed)
		assert.Equal(t, testCreator, after.Owner)
	})
}

func testMutationWithoutAsset(t *testing.T, store Store) {
	ctx := context.Background()

	result := mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventListed, 42, 100, 0, "0xorphan"), nil))
	assert.True(t, result.Recorded)
	assert.False(t, result.AssetChanged)

	_, err := store.GetAssetByTokenID(ctx, 42)
	assert.ErrorIs(t, err, domain.ErrAssetNotFound)

	exists, err := store.AssetExists(ctx, 42)
	require.NoError(t, err)
	assert.False(t, exists)
}

// testReplayMatchesCleanRun simulates a crash after persisting part of a range
// without advancing the checkpoint, then a replay of the whole range.
func testReplayMatchesCleanRun(t *testing.T, store Store) {
	ctx := context.Background()

	sold := buildTestEvent(domain.EventSold, 5, 103, 0, "0xe4")
	relisted := buildTestEvent(domain.EventListed, 5, 104, 0, "0xe5")
	relisted.Seller = testBuyer
	relisted.Price = big.NewInt(250)
	events := []*domain.MarketEvent{
		buildTestEvent(domain.EventMinted, 5, 100, 0, "0xe1"),
		buildTestEvent(domain.EventListed, 5, 101, 0, "0xe2"),
		buildTestEvent(domain.EventListingCancelled, 5, 102, 0, "0xe3"),
		sold,
		relisted,
	}

	// Reference state computed in memory
	var expected *domain.Asset
	for _, ev := range events {
		p := buildTestProjection(t, ev, nil)
		next, err := domain.ApplyMutation(expected, *p.Mutation)
		require.NoError(t, err)
		expected = next
	}

	require.NoError(t, store.WriteCheckpoint(ctx, 99))

	// First attempt persists three events then stops
	for _, ev := range events[:3] {
		mustApply(t, store, buildTestProjection(t, ev, nil))
	}

	// Replay of the full range
	for _, ev := range events {
		mustApply(t, store, buildTestProjection(t, ev, nil))
	}
	require.NoError(t, store.WriteCheckpoint(ctx, 104))

	asset, err := store.GetAssetByTokenID(ctx, 5)
	require.NoError(t, err)
	assert.Equal(t, expected.Owner, asset.Owner)
	assert.Equal(t, expected.IsListed, asset.IsListed)
	assert.Equal(t, expected.IsBurned, asset.IsBurned)
	require.NotNil(t, asset.Seller)
	assert.Equal(t, *expected.Seller, *asset.Seller)
	require.NotNil(t, asset.Price)
	assert.Equal(t, 0, expected.Price.Cmp(asset.Price))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(len(events)), stats.Transactions)

	checkpoint, ok, err := store.ReadCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(104), checkpoint)
}

// =============================================================================
// Direct Write Tests
// =============================================================================

func testUpsertAsset(t *testing.T, store Store) {
	ctx := context.Background()

	asset := &domain.Asset{
		TokenID: 11,
		URI:     "https://example.com/11.json",
		Name:    "NFT #11",
		Creator: testCreator,
		Owner:   testCreator,
	}

	created, err := store.UpsertAsset(ctx, asset)
	require.NoError(t, err)
	assert.True(t, created)

	exists, err := store.AssetExists(ctx, 11)
	require.NoError(t, err)
	assert.True(t, exists)

	changed := *asset
	changed.Name = "Renamed"
	created, err = store.UpsertAsset(ctx, &changed)
	require.NoError(t, err)
	assert.False(t, created)

	got, err := store.GetAssetByTokenID(ctx, 11)
	require.NoError(t, err)
	assert.Equal(t, "NFT #11", got.Name)
}

func testAppendTransaction(t *testing.T, store Store) {
	ctx := context.Background()

	tx := &domain.LedgerTransaction{
		TxHash:      "0xappend",
		BlockNumber: 10,
		LogIndex:    2,
		TxType:      domain.TxTypeList,
		TokenID:     1,
		FromAddress: domain.StringPtr(testCreator),
		Price:       oneEther(),
		Timestamp:   testBlockTime,
	}

	found, err := store.HasTransaction(ctx, "0xappend")
	require.NoError(t, err)
	assert.False(t, found)

	inserted, err := store.AppendTransaction(ctx, tx)
	require.NoError(t, err)
	assert.True(t, inserted)

	inserted, err = store.AppendTransaction(ctx, tx)
	require.NoError(t, err)
	assert.False(t, inserted)

	found, err = store.HasTransaction(ctx, "0xappend")
	require.NoError(t, err)
	assert.True(t, found)
}

// =============================================================================
// Checkpoint Tests
// =============================================================================

func testCheckpoint(t *testing.T, store Store) {
	ctx := context.Background()

	_, ok, err := store.ReadCheckpoint(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.WriteCheckpoint(ctx, 100))
	block, ok, err := store.ReadCheckpoint(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint64(100), block)

	t.Run("write never moves backwards", func(t *testing.T) {
		require.NoError(t, store.WriteCheckpoint(ctx, 50))
		block, _, err := store.ReadCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(100), block)

		require.NoError(t, store.WriteCheckpoint(ctx, 150))
		block, _, err = store.ReadCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(150), block)
	})

	t.Run("reset overrides", func(t *testing.T) {
		require.NoError(t, store.ResetCheckpoint(ctx, 10))
		block, _, err := store.ReadCheckpoint(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint64(10), block)
	})
}

// =============================================================================
// Failed Event Tests
// =============================================================================

func testFailedEvents(t *testing.T, store Store) {
	ctx := context.Background()

	event := &domain.FailedEvent{
		TxHash:      "0xbad",
		BlockNumber: 77,
		LogIndex:    3,
		Event:       string(domain.EventListed),
		Reason:      "malformed event: missing price",
		Payload:     json.RawMessage(`{"topics":["0x01"]}`),
	}

	require.NoError(t, store.RecordFailedEvent(ctx, event))
	require.NoError(t, store.RecordFailedEvent(ctx, event))
	require.NoError(t, store.RecordFailedEvent(ctx, nil))

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FailedEvents)
}

func testGetStats(t *testing.T, store Store) {
	ctx := context.Background()

	stats, err := store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, Stats{}, *stats)

	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventMinted, 1, 100, 0, "0xm1"), nil))
	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventMinted, 2, 100, 1, "0xm2"), nil))
	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventListed, 1, 101, 0, "0xl1"), nil))
	mustApply(t, store, buildTestProjection(t, buildTestEvent(domain.EventBurned, 2, 101, 1, "0xb2"), nil))

	stats, err = store.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Assets)
	assert.Equal(t, int64(1), stats.ListedAssets)
	assert.Equal(t, int64(1), stats.BurnedAssets)
	assert.Equal(t, int64(4), stats.Transactions)
	assert.Equal(t, int64(0), stats.FailedEvents)
}

// RunStoreTests runs all store tests
func RunStoreTests(t *testing.T, initDB func(t *testing.T) Store) {
	tests := []struct {
		name string
		fn   func(*testing.T, Store)
	}{
		{"ApplyProjectionMint", testApplyProjectionMint},
		{"ListAndBuy", testListAndBuy},
		{"PricePrecision", testPricePrecision},
		{"BurnLatch", testBurnLatch},
		{"MutationWithoutAsset", testMutationWithoutAsset},
		{"ReplayMatchesCleanRun", testReplayMatchesCleanRun},
		{"UpsertAsset", testUpsertAsset},
		{"AppendTransaction", testAppendTransaction},
		{"Checkpoint", testCheckpoint},
		{"FailedEvents", testFailedEvents},
		{"GetStats", testGetStats},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, initDB(t))
		})
	}
}
