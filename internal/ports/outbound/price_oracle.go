// Package outbound defines the outbound port interfaces.
package outbound

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/domain/entity"
)

// PriceOracle supplies the latest USD price quote for a collateral asset.
//
// The engine consumes quotes as-is: it performs no staleness or
// round-completeness validation. Implementations that want a staleness
// policy (e.g. a caching decorator) enforce it themselves.
type PriceOracle interface {
	// LatestPrice returns the most recent quote for the asset.
	LatestPrice(ctx context.Context, asset common.Address) (*entity.Quote, error)
}
