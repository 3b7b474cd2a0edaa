package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralBank is the external transferable-balance interface for every
// approved collateral asset. The engine uses it to pull deposits into its
// custody account and to pay out redemptions and liquidation seizures.
//
// A failed move must be reported as an error; the engine aborts and fully
// reverts the enclosing operation.
type CollateralBank interface {
	// TransferFrom moves amount of asset from one account to another,
	// spending the engine's allowance on the from account.
	TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error

	// Transfer moves amount of asset from the engine's custody account
	// to the given recipient.
	Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error

	// BalanceOf returns the asset balance of an account.
	BalanceOf(ctx context.Context, asset, account common.Address) (*big.Int, error)
}
