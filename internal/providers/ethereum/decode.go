package ethereum

import (
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/feral-file/market-indexer/internal/domain"
)

// decodeLog turns a marketplace log into a market event.
// Every failure wraps domain.ErrMalformedEvent.
func decodeLog(vLog types.Log) (*domain.MarketEvent, error) {
	event := &domain.MarketEvent{
		TxHash:      strings.ToLower(vLog.TxHash.Hex()),
		BlockNumber: vLog.BlockNumber,
		TxIndex:     vLog.TxIndex,
		LogIndex:    vLog.Index,
	}

	if len(vLog.Topics) == 0 {
		return nil, malformed(event, fmt.Errorf("log has no topics"))
	}

	abiEvent, err := MarketplaceABI.EventByID(vLog.Topics[0])
	if err != nil {
		return nil, malformed(event, fmt.Errorf("unknown event signature: %s", vLog.Topics[0].Hex()))
	}
	event.Kind = domain.EventKind(abiEvent.Name)

	fields, err := unpackFields(abiEvent, vLog)
	if err != nil {
		return nil, malformed(event, err)
	}

	if event.TokenID, err = tokenIDField(fields, "tokenId"); err != nil {
		return nil, malformed(event, err)
	}

	switch event.Kind {
	case domain.EventMinted:
		if event.Creator, err = addressField(fields, "creator"); err != nil {
			return nil, malformed(event, err)
		}
		if event.TokenURI, err = stringField(fields, "tokenURI"); err != nil {
			return nil, malformed(event, err)
		}
		royalty, err := bigField(fields, "royaltyPercent")
		if err != nil {
			return nil, malformed(event, err)
		}
		if !royalty.IsUint64() {
			return nil, malformed(event, fmt.Errorf("royalty out of range: %s", royalty.String()))
		}
		event.RoyaltyBps = royalty.Uint64()
		if event.Category, err = stringField(fields, "category"); err != nil {
			return nil, malformed(event, err)
		}

	case domain.EventListed:
		if event.Seller, err = addressField(fields, "seller"); err != nil {
			return nil, malformed(event, err)
		}
		if event.Price, err = bigField(fields, "price"); err != nil {
			return nil, malformed(event, err)
		}

	case domain.EventSold:
		if event.Seller, err = addressField(fields, "seller"); err != nil {
			return nil, malformed(event, err)
		}
		if event.Buyer, err = addressField(fields, "buyer"); err != nil {
			return nil, malformed(event, err)
		}
		if event.Price, err = bigField(fields, "price"); err != nil {
			return nil, malformed(event, err)
		}

	case domain.EventListingCancelled:
		if event.Seller, err = addressField(fields, "seller"); err != nil {
			return nil, malformed(event, err)
		}

	case domain.EventBurned:
		if event.Burner, err = addressField(fields, "burner"); err != nil {
			return nil, malformed(event, err)
		}

	default:
		return nil, malformed(event, fmt.Errorf("unsupported event %s", abiEvent.Name))
	}

	return event, nil
}

// unpackFields reads indexed arguments from topics and the rest from data
func unpackFields(ev *abi.Event, vLog types.Log) (map[string]interface{}, error) {
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(vLog.Topics) != len(indexed)+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", len(indexed)+1, len(vLog.Topics))
	}

	fields := make(map[string]interface{}, len(ev.Inputs))
	if err := ev.Inputs.UnpackIntoMap(fields, vLog.Data); err != nil {
		return nil, fmt.Errorf("failed to unpack data: %w", err)
	}
	if err := abi.ParseTopicsIntoMap(fields, indexed, vLog.Topics[1:]); err != nil {
		return nil, fmt.Errorf("failed to parse topics: %w", err)
	}
	return fields, nil
}

// tokenIDField reads a token id that fits the BIGINT column
func tokenIDField(fields map[string]interface{}, name string) (uint64, error) {
	v, err := bigField(fields, name)
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() || v.Uint64() > math.MaxInt64 {
		return 0, fmt.Errorf("%s out of range: %s", name, v.String())
	}
	return v.Uint64(), nil
}

func bigField(fields map[string]interface{}, name string) (*big.Int, error) {
	v, ok := fields[name].(*big.Int)
	if !ok || v == nil {
		return nil, fmt.Errorf("missing %s", name)
	}
	return new(big.Int).Set(v), nil
}

func addressField(fields map[string]interface{}, name string) (string, error) {
	v, ok := fields[name].(common.Address)
	if !ok {
		return "", fmt.Errorf("missing %s", name)
	}
	return domain.AddressString(v), nil
}

func stringField(fields map[string]interface{}, name string) (string, error) {
	v, ok := fields[name].(string)
	if !ok {
		return "", fmt.Errorf("missing %s", name)
	}
	return v, nil
}

func malformed(ev *domain.MarketEvent, err error) error {
	return &domain.EventError{
		TxHash:   ev.TxHash,
		LogIndex: ev.LogIndex,
		Event:    ev.Kind,
		Err:      fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err),
	}
}
