package ethereum

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/feral-file/market-indexer/internal/domain"
)

// marketplaceABI holds the events emitted by the marketplace contract
const marketplaceABI = `[
	{"type":"event","name":"NFTMinted","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"creator","type":"address","indexed":true},
		{"name":"tokenURI","type":"string","indexed":false},
		{"name":"royaltyPercent","type":"uint256","indexed":false},
		{"name":"category","type":"string","indexed":false}]},
	{"type":"event","name":"NFTListed","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"NFTSold","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true},
		{"name":"buyer","type":"address","indexed":true},
		{"name":"price","type":"uint256","indexed":false}]},
	{"type":"event","name":"ListingCancelled","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"seller","type":"address","indexed":true}]},
	{"type":"event","name":"NFTBurned","anonymous":false,"inputs":[
		{"name":"tokenId","type":"uint256","indexed":true},
		{"name":"burner","type":"address","indexed":true}]}
]`

// MarketplaceABI is the parsed event ABI
var MarketplaceABI = mustParseABI(marketplaceABI)

func mustParseABI(definition string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		panic(fmt.Sprintf("invalid marketplace ABI: %v", err))
	}
	return parsed
}

// EventTopic returns the topic0 hash of an event kind
func EventTopic(kind domain.EventKind) (common.Hash, error) {
	if !kind.Valid() {
		return common.Hash{}, fmt.Errorf("unknown event kind: %s", kind)
	}
	ev, ok := MarketplaceABI.Events[string(kind)]
	if !ok {
		return common.Hash{}, fmt.Errorf("unknown event kind: %s", kind)
	}
	return ev.ID, nil
}
