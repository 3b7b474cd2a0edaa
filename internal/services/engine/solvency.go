package engine

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Fixed-point accounting constants. Amounts and USD values use 18 decimals;
// oracle feeds quote with fewer decimals and are up-scaled before any
// multiplication so precision is never lost to an early division.
var (
	// precision is the working fixed-point scale (1e18).
	precision = big.NewInt(1e18)

	// liquidationThreshold over liquidationPrecision discounts collateral
	// value when computing the health factor: 50/100 means a position must
	// be 200% over-collateralized to sit exactly at the minimum.
	liquidationThreshold = big.NewInt(50)
	liquidationPrecision = big.NewInt(100)

	// liquidationBonus over liquidationPrecision is the premium, in seized
	// collateral, paid to liquidators.
	liquidationBonus = big.NewInt(10)

	// MinHealthFactor is the threshold below which a position becomes
	// liquidatable, at the working scale (1.0 == 1e18).
	MinHealthFactor = big.NewInt(1e18)

	// MaxHealthFactor is the health factor reported for a user with zero
	// debt. The ratio is undefined there; the engine defines zero debt as
	// maximally healthy instead of faulting on the division.
	MaxHealthFactor = new(big.Int).Lsh(big.NewInt(1), 255)

	ten = big.NewInt(10)
)

// feedScale returns the multiplier that lifts a quote of the given feed
// decimals to the working 18-decimal scale.
func feedScale(decimals uint8) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(int64(18-int(decimals))), nil)
}

// scaledPrice returns the latest oracle price for asset lifted to the
// working scale.
func (e *Engine) scaledPrice(ctx context.Context, asset common.Address) (*big.Int, error) {
	oracle, ok := e.oracles[asset]
	if !ok {
		return nil, ErrAssetNotSupported
	}
	quote, err := oracle.LatestPrice(ctx, asset)
	if err != nil {
		return nil, fmt.Errorf("fetching price for %s: %w", asset, err)
	}
	return new(big.Int).Mul(quote.Price, feedScale(quote.Decimals)), nil
}

// usdValue converts an asset amount to its USD value at the working scale.
func (e *Engine) usdValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	price, err := e.scaledPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	value := new(big.Int).Mul(price, amount)
	return value.Div(value, precision), nil
}

// tokenAmountFromUSD converts a USD value (working scale) into the
// equivalent asset amount at the current oracle price.
func (e *Engine) tokenAmountFromUSD(ctx context.Context, asset common.Address, usdAmount *big.Int) (*big.Int, error) {
	price, err := e.scaledPrice(ctx, asset)
	if err != nil {
		return nil, err
	}
	amount := new(big.Int).Mul(usdAmount, precision)
	return amount.Div(amount, price), nil
}

// collateralValueUSD sums the USD value of the user's positions over every
// approved asset, in construction order.
func (e *Engine) collateralValueUSD(ctx context.Context, user common.Address) (*big.Int, error) {
	total := new(big.Int)
	for _, asset := range e.assets {
		amount := e.ledger.collateralOf(user, asset)
		if amount.Sign() == 0 {
			continue
		}
		value, err := e.usdValue(ctx, asset, amount)
		if err != nil {
			return nil, err
		}
		total.Add(total, value)
	}
	return total, nil
}

// healthFactor derives the user's solvency ratio: collateral value scaled by
// the liquidation threshold, lifted to the working scale, divided by total
// debt. Order of sub-steps matters; dividing earlier would bias the result
// downward.
func (e *Engine) healthFactor(ctx context.Context, user common.Address) (*big.Int, error) {
	debt := e.ledger.debtOf(user)
	if debt.Sign() == 0 {
		return new(big.Int).Set(MaxHealthFactor), nil
	}

	value, err := e.collateralValueUSD(ctx, user)
	if err != nil {
		return nil, err
	}

	adjusted := new(big.Int).Mul(value, liquidationThreshold)
	adjusted.Div(adjusted, liquidationPrecision)
	adjusted.Mul(adjusted, precision)
	return adjusted.Div(adjusted, debt), nil
}

// assertSolvent fails with a HealthFactorError when the user sits below the
// minimum health factor. Called after every operation that can reduce a
// user's effective collateralization.
func (e *Engine) assertSolvent(ctx context.Context, user common.Address) error {
	factor, err := e.healthFactor(ctx, user)
	if err != nil {
		return err
	}
	if factor.Cmp(MinHealthFactor) < 0 {
		return &HealthFactorError{Factor: factor}
	}
	return nil
}
