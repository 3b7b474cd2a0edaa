package entity

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralSnapshot records a user's collateral amount in one asset after
// a state-mutating operation.
type CollateralSnapshot struct {
	User      common.Address
	Asset     common.Address
	Amount    *big.Int  // total collateral after the operation
	Change    *big.Int  // signed delta applied by the operation
	EventType EventType // the operation that produced this snapshot
	At        time.Time
}

// NewCollateralSnapshot creates a new CollateralSnapshot entity.
func NewCollateralSnapshot(user, asset common.Address, amount, change *big.Int, eventType EventType, at time.Time) (*CollateralSnapshot, error) {
	s := &CollateralSnapshot{
		User:      user,
		Asset:     asset,
		Amount:    amount,
		Change:    change,
		EventType: eventType,
		At:        at,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate checks that all fields have valid values.
func (s *CollateralSnapshot) validate() error {
	if s.User == (common.Address{}) {
		return fmt.Errorf("user must not be the zero address")
	}
	if s.Asset == (common.Address{}) {
		return fmt.Errorf("asset must not be the zero address")
	}
	if s.Amount == nil {
		return fmt.Errorf("amount must not be nil")
	}
	if s.Amount.Sign() < 0 {
		return fmt.Errorf("amount must be non-negative")
	}
	if s.Change == nil {
		return fmt.Errorf("change must not be nil")
	}
	if s.EventType == "" {
		return fmt.Errorf("eventType must not be empty")
	}
	if s.At.IsZero() {
		return fmt.Errorf("at must not be the zero time")
	}
	return nil
}

// DebtSnapshot records a user's total synthetic debt after a state-mutating
// operation.
type DebtSnapshot struct {
	User      common.Address
	Amount    *big.Int  // total debt after the operation
	Change    *big.Int  // signed delta applied by the operation
	EventType EventType // the operation that produced this snapshot
	At        time.Time
}

// NewDebtSnapshot creates a new DebtSnapshot entity.
func NewDebtSnapshot(user common.Address, amount, change *big.Int, eventType EventType, at time.Time) (*DebtSnapshot, error) {
	s := &DebtSnapshot{
		User:      user,
		Amount:    amount,
		Change:    change,
		EventType: eventType,
		At:        at,
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// validate checks that all fields have valid values.
func (s *DebtSnapshot) validate() error {
	if s.User == (common.Address{}) {
		return fmt.Errorf("user must not be the zero address")
	}
	if s.Amount == nil {
		return fmt.Errorf("amount must not be nil")
	}
	if s.Amount.Sign() < 0 {
		return fmt.Errorf("amount must be non-negative")
	}
	if s.Change == nil {
		return fmt.Errorf("change must not be nil")
	}
	if s.EventType == "" {
		return fmt.Errorf("eventType must not be empty")
	}
	if s.At.IsZero() {
		return fmt.Errorf("at must not be the zero time")
	}
	return nil
}
