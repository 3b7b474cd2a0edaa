package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that SyntheticToken implements outbound.SyntheticToken.
var _ outbound.SyntheticToken = (*SyntheticToken)(nil)

// SyntheticToken is an in-memory mint/burn-capable balance ledger
// implementing the outbound.SyntheticToken port. The authority account is
// the engine's custody address: Burn and Transfer act on its balance.
type SyntheticToken struct {
	mu        sync.RWMutex
	authority common.Address
	balances  map[common.Address]*big.Int
	supply    *big.Int

	// mintErr, when set, makes the next Mint call fail. Test hook for the
	// engine's declined-mint path.
	mintErr error
}

// NewSyntheticToken creates a token ledger whose burn authority is the
// given account.
func NewSyntheticToken(authority common.Address) *SyntheticToken {
	return &SyntheticToken{
		authority: authority,
		balances:  make(map[common.Address]*big.Int),
		supply:    new(big.Int),
	}
}

// FailMints makes subsequent Mint calls return err; nil restores normal
// behavior.
func (t *SyntheticToken) FailMints(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mintErr = err
}

// Mint creates amount of tokens in the to account.
func (t *SyntheticToken) Mint(ctx context.Context, to common.Address, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.mintErr != nil {
		return t.mintErr
	}
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid mint amount")
	}
	current, ok := t.balances[to]
	if !ok {
		current = new(big.Int)
		t.balances[to] = current
	}
	current.Add(current, amount)
	t.supply.Add(t.supply, amount)
	return nil
}

// Burn destroys amount of tokens held by the authority account.
func (t *SyntheticToken) Burn(ctx context.Context, amount *big.Int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[t.authority]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("burn exceeds authority balance")
	}
	bal.Sub(bal, amount)
	t.supply.Sub(t.supply, amount)
	return nil
}

// Transfer moves amount from the authority account to the recipient.
func (t *SyntheticToken) Transfer(ctx context.Context, to common.Address, amount *big.Int) error {
	return t.move(t.authority, to, amount)
}

// TransferFrom moves amount between the given accounts.
func (t *SyntheticToken) TransferFrom(ctx context.Context, from, to common.Address, amount *big.Int) error {
	return t.move(from, to, amount)
}

// BalanceOf returns the token balance of an account.
func (t *SyntheticToken) BalanceOf(ctx context.Context, account common.Address) (*big.Int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if bal, ok := t.balances[account]; ok {
		return new(big.Int).Set(bal), nil
	}
	return new(big.Int), nil
}

// TotalSupply returns the current token supply.
func (t *SyntheticToken) TotalSupply() *big.Int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return new(big.Int).Set(t.supply)
}

func (t *SyntheticToken) move(from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("invalid transfer amount")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	bal, ok := t.balances[from]
	if !ok || bal.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient synthetic balance in %s", from)
	}
	bal.Sub(bal, amount)
	current, ok := t.balances[to]
	if !ok {
		current = new(big.Int)
		t.balances[to] = current
	}
	current.Add(current, amount)
	return nil
}
