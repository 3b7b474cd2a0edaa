package engine

import (
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// ledger is the engine-owned bookkeeping state: per-(user, asset) collateral
// amounts and per-user synthetic debt. All amounts are non-negative; a
// decrement below zero is a contract violation surfaced as an error, never
// wraparound.
//
// The ledger is guarded by its own RWMutex so read-only queries stay
// consistent while an operation is in flight. Mutations additionally run
// under the engine's non-reentrant operation lock.
type ledger struct {
	mu         sync.RWMutex
	collateral map[common.Address]map[common.Address]*big.Int // user -> asset -> amount
	debt       map[common.Address]*big.Int                    // user -> synthetic debt
}

func newLedger() *ledger {
	return &ledger{
		collateral: make(map[common.Address]map[common.Address]*big.Int),
		debt:       make(map[common.Address]*big.Int),
	}
}

// addCollateral increases a position, creating it at zero on first use.
// Returns the new total.
func (l *ledger) addCollateral(user, asset common.Address, amount *big.Int) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	positions, ok := l.collateral[user]
	if !ok {
		positions = make(map[common.Address]*big.Int)
		l.collateral[user] = positions
	}
	current, ok := positions[asset]
	if !ok {
		current = new(big.Int)
	}
	updated := new(big.Int).Add(current, amount)
	positions[asset] = updated
	return new(big.Int).Set(updated)
}

// subCollateral decreases a position. Fails with ErrInsufficientCollateral
// when the position does not cover the amount.
func (l *ledger) subCollateral(user, asset common.Address, amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.collateral[user][asset]
	if !ok || current.Cmp(amount) < 0 {
		return nil, ErrInsufficientCollateral
	}
	updated := new(big.Int).Sub(current, amount)
	l.collateral[user][asset] = updated
	return new(big.Int).Set(updated), nil
}

// addDebt increases a user's debt, creating the record at zero on first
// mint. Returns the new total.
func (l *ledger) addDebt(user common.Address, amount *big.Int) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.debt[user]
	if !ok {
		current = new(big.Int)
	}
	updated := new(big.Int).Add(current, amount)
	l.debt[user] = updated
	return new(big.Int).Set(updated)
}

// subDebt decreases a user's debt. Fails with ErrInsufficientDebt when the
// recorded debt does not cover the amount.
func (l *ledger) subDebt(user common.Address, amount *big.Int) (*big.Int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.debt[user]
	if !ok || current.Cmp(amount) < 0 {
		return nil, ErrInsufficientDebt
	}
	updated := new(big.Int).Sub(current, amount)
	l.debt[user] = updated
	return new(big.Int).Set(updated), nil
}

// collateralOf returns a copy of the user's position in one asset.
func (l *ledger) collateralOf(user, asset common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if amount, ok := l.collateral[user][asset]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

// debtOf returns a copy of the user's total debt.
func (l *ledger) debtOf(user common.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if amount, ok := l.debt[user]; ok {
		return new(big.Int).Set(amount)
	}
	return new(big.Int)
}

// debtors returns every user with positive debt.
func (l *ledger) debtors() []common.Address {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var users []common.Address
	for user, amount := range l.debt {
		if amount.Sign() > 0 {
			users = append(users, user)
		}
	}
	return users
}
