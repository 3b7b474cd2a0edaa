// Package chainlink provides a PriceOracle backed by Chainlink
// AggregatorV3 price feeds read over an Ethereum JSON-RPC endpoint.
package chainlink

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that Oracle implements outbound.PriceOracle
var _ outbound.PriceOracle = (*Oracle)(nil)

// ContractCaller is the subset of ethclient.Client the oracle needs.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Oracle reads USD prices from Chainlink AggregatorV3 feeds. Each supported
// collateral asset maps to one feed contract. Feed decimals are read once
// and cached for the life of the oracle.
type Oracle struct {
	client  ContractCaller
	feedABI *abi.ABI
	feeds   map[common.Address]common.Address
	logger  *slog.Logger

	decimalsMu    sync.RWMutex
	decimalsCache map[common.Address]uint8
}

// NewOracle creates a Chainlink price oracle. feeds maps collateral asset
// addresses to their AggregatorV3 feed contracts.
func NewOracle(client ContractCaller, feeds map[common.Address]common.Address, logger *slog.Logger) (*Oracle, error) {
	if client == nil {
		return nil, fmt.Errorf("contract caller is required")
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("at least one feed mapping is required")
	}

	feedABI, err := AggregatorV3ABI()
	if err != nil {
		return nil, fmt.Errorf("parsing aggregator ABI: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "chainlink-oracle")

	copied := make(map[common.Address]common.Address, len(feeds))
	for asset, feed := range feeds {
		copied[asset] = feed
	}

	return &Oracle{
		client:        client,
		feedABI:       feedABI,
		feeds:         copied,
		logger:        logger,
		decimalsCache: make(map[common.Address]uint8),
	}, nil
}

// LatestPrice calls latestRoundData() on the asset's feed and returns the
// answer together with the feed's decimals and the round's update time.
func (o *Oracle) LatestPrice(ctx context.Context, asset common.Address) (*entity.Quote, error) {
	feed, ok := o.feeds[asset]
	if !ok {
		return nil, fmt.Errorf("no price feed configured for asset %s", asset)
	}

	decimals, err := o.feedDecimals(ctx, feed)
	if err != nil {
		return nil, fmt.Errorf("reading decimals for feed %s: %w", feed, err)
	}

	callData, err := o.feedABI.Pack("latestRoundData")
	if err != nil {
		return nil, fmt.Errorf("packing latestRoundData: %w", err)
	}

	result, err := o.client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: callData}, nil)
	if err != nil {
		return nil, fmt.Errorf("calling latestRoundData on feed %s: %w", feed, err)
	}

	answer, updatedAt, err := o.unpackLatestRoundData(result)
	if err != nil {
		return nil, fmt.Errorf("unpacking latestRoundData for feed %s: %w", feed, err)
	}

	if answer.Sign() <= 0 {
		return nil, fmt.Errorf("feed %s returned non-positive answer %s", feed, answer)
	}
	if updatedAt.Sign() == 0 {
		return nil, fmt.Errorf("feed %s round not complete", feed)
	}

	return entity.NewQuote(answer, decimals, time.Unix(updatedAt.Int64(), 0).UTC())
}

func (o *Oracle) feedDecimals(ctx context.Context, feed common.Address) (uint8, error) {
	o.decimalsMu.RLock()
	decimals, ok := o.decimalsCache[feed]
	o.decimalsMu.RUnlock()
	if ok {
		return decimals, nil
	}

	callData, err := o.feedABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("packing decimals: %w", err)
	}

	result, err := o.client.CallContract(ctx, ethereum.CallMsg{To: &feed, Data: callData}, nil)
	if err != nil {
		return 0, fmt.Errorf("calling decimals: %w", err)
	}

	unpacked, err := o.feedABI.Unpack("decimals", result)
	if err != nil {
		return 0, fmt.Errorf("unpacking decimals: %w", err)
	}
	decimals = unpacked[0].(uint8)

	o.decimalsMu.Lock()
	o.decimalsCache[feed] = decimals
	o.decimalsMu.Unlock()

	o.logger.Debug("cached feed decimals", "feed", feed.Hex(), "decimals", decimals)
	return decimals, nil
}

func (o *Oracle) unpackLatestRoundData(data []byte) (*big.Int, *big.Int, error) {
	unpacked, err := o.feedABI.Unpack("latestRoundData", data)
	if err != nil {
		return nil, nil, err
	}
	// latestRoundData returns: (uint80 roundId, int256 answer, uint256 startedAt, uint256 updatedAt, uint80 answeredInRound)
	answer := unpacked[1].(*big.Int)
	updatedAt := unpacked[3].(*big.Int)
	return answer, updatedAt, nil
}
