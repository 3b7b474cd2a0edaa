package engine

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Read-only queries. None of these mutate state; they fail only on wholly
// invalid input (an unsupported asset) or an oracle error.

// ApprovedAssets returns the approved collateral assets in construction
// order.
func (e *Engine) ApprovedAssets() []common.Address {
	return append([]common.Address(nil), e.assets...)
}

// CollateralBalance returns the raw amount of asset deposited for user.
func (e *Engine) CollateralBalance(user, asset common.Address) (*big.Int, error) {
	if err := e.validateAsset(asset); err != nil {
		return nil, err
	}
	return e.ledger.collateralOf(user, asset), nil
}

// Debt returns the user's recorded synthetic debt.
func (e *Engine) Debt(user common.Address) *big.Int {
	return e.ledger.debtOf(user)
}

// Debtors returns every user with positive debt.
func (e *Engine) Debtors() []common.Address {
	return e.ledger.debtors()
}

// AccountInfo returns the user's total debt and the USD value of their
// collateral.
func (e *Engine) AccountInfo(ctx context.Context, user common.Address) (debt, collateralValue *big.Int, err error) {
	collateralValue, err = e.collateralValueUSD(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return e.ledger.debtOf(user), collateralValue, nil
}

// CollateralValueUSD returns the total USD value of the user's collateral
// at the working 18-decimal scale.
func (e *Engine) CollateralValueUSD(ctx context.Context, user common.Address) (*big.Int, error) {
	return e.collateralValueUSD(ctx, user)
}

// UsdValue returns the USD value of amount of asset at the current oracle
// price.
func (e *Engine) UsdValue(ctx context.Context, asset common.Address, amount *big.Int) (*big.Int, error) {
	if err := e.validateAsset(asset); err != nil {
		return nil, err
	}
	return e.usdValue(ctx, asset, amount)
}

// TokenAmountFromUsd returns the asset amount equivalent to a USD value at
// the current oracle price.
func (e *Engine) TokenAmountFromUsd(ctx context.Context, asset common.Address, usdAmount *big.Int) (*big.Int, error) {
	if err := e.validateAsset(asset); err != nil {
		return nil, err
	}
	return e.tokenAmountFromUSD(ctx, asset, usdAmount)
}

// HealthFactor returns the user's current health factor. A user with zero
// debt reports MaxHealthFactor.
func (e *Engine) HealthFactor(ctx context.Context, user common.Address) (*big.Int, error) {
	return e.healthFactor(ctx, user)
}
