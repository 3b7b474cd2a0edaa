// Package memory provides in-memory implementations of the outbound ports.
// Useful for testing and development; the token ledgers model the external
// transferable-balance semantics the engine consumes in deployment.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that Bank implements outbound.CollateralBank.
var _ outbound.CollateralBank = (*Bank)(nil)

// Bank is an in-memory multi-asset balance ledger implementing the
// outbound.CollateralBank port. A transfer exceeding the sender's balance
// fails, which is how tests exercise the engine's revert paths.
type Bank struct {
	mu       sync.RWMutex
	custody  common.Address
	balances map[common.Address]map[common.Address]*big.Int // asset -> account -> balance
}

// NewBank creates a Bank whose Transfer method debits the given custody
// account.
func NewBank(custody common.Address) *Bank {
	return &Bank{
		custody:  custody,
		balances: make(map[common.Address]map[common.Address]*big.Int),
	}
}

// SetBalance seeds an account's balance of an asset. Test setup helper.
func (b *Bank) SetBalance(asset, account common.Address, amount *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.credit(asset, account, new(big.Int).Set(amount), true)
}

// TransferFrom moves amount of asset between the given accounts.
func (b *Bank) TransferFrom(ctx context.Context, asset, from, to common.Address, amount *big.Int) error {
	return b.move(asset, from, to, amount)
}

// Transfer moves amount of asset from the custody account to the recipient.
func (b *Bank) Transfer(ctx context.Context, asset, to common.Address, amount *big.Int) error {
	return b.move(asset, b.custody, to, amount)
}

// BalanceOf returns the asset balance of an account.
func (b *Bank) BalanceOf(ctx context.Context, asset, account common.Address) (*big.Int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if bal, ok := b.balances[asset][account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

func (b *Bank) move(asset, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	bal, ok := b.balances[asset][from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient balance of %s in %s", asset, from)
	}
	bal.Sub(bal, amount)
	b.credit(asset, to, amount, false)
	return nil
}

// credit adds amount to an account's balance. replace overwrites instead.
// Caller holds the lock.
func (b *Bank) credit(asset, account common.Address, amount *big.Int, replace bool) {
	accounts, ok := b.balances[asset]
	if !ok {
		accounts = make(map[common.Address]*big.Int)
		b.balances[asset] = accounts
	}
	if current, ok := accounts[account]; ok && !replace {
		current.Add(current, amount)
		return
	}
	accounts[account] = new(big.Int).Set(amount)
}
