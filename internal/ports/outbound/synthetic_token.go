package outbound

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SyntheticToken is the mint/burn authority interface of the USD-pegged
// synthetic token. Its supply changes only through engine-issued calls;
// no other component holds mint or burn rights.
type SyntheticToken interface {
	// Mint creates amount of synthetic tokens in the to account.
	// A declined mint must be reported as an error.
	Mint(ctx context.Context, to common.Address, amount *big.Int) error

	// Burn destroys amount of synthetic tokens held by the engine's own
	// account.
	Burn(ctx context.Context, amount *big.Int) error

	// TransferFrom moves amount of synthetic tokens between accounts,
	// spending the engine's allowance on the from account. The engine
	// uses this to pull tokens in before burning them.
	TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error

	// Transfer moves amount of synthetic tokens from the engine's own
	// account to the given recipient.
	Transfer(ctx context.Context, to common.Address, amount *big.Int) error

	// BalanceOf returns the synthetic token balance of an account.
	BalanceOf(ctx context.Context, account common.Address) (*big.Int, error)
}
