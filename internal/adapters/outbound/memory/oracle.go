package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that Oracle implements outbound.PriceOracle.
var _ outbound.PriceOracle = (*Oracle)(nil)

// Oracle is a settable in-memory price oracle. Tests drive price movements
// with SetPrice; development deployments pin static quotes.
type Oracle struct {
	mu       sync.RWMutex
	decimals uint8
	prices   map[common.Address]*big.Int
	updated  map[common.Address]time.Time
}

// NewOracle creates an Oracle quoting at the given feed decimals.
func NewOracle(decimals uint8) *Oracle {
	return &Oracle{
		decimals: decimals,
		prices:   make(map[common.Address]*big.Int),
		updated:  make(map[common.Address]time.Time),
	}
}

// SetPrice sets the current price for an asset, scaled by the oracle's
// decimals.
func (o *Oracle) SetPrice(asset common.Address, price *big.Int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[asset] = new(big.Int).Set(price)
	o.updated[asset] = time.Now()
}

// LatestPrice returns the most recent quote for the asset.
func (o *Oracle) LatestPrice(ctx context.Context, asset common.Address) (*entity.Quote, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	price, ok := o.prices[asset]
	if !ok {
		return nil, fmt.Errorf("no price set for asset %s", asset)
	}
	return entity.NewQuote(new(big.Int).Set(price), o.decimals, o.updated[asset])
}
