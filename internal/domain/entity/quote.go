package entity

import (
	"fmt"
	"math/big"
	"time"
)

// Quote is a single oracle price reading for a collateral asset.
// Price is an integer scaled by 10^Decimals; e.g. $2000.00 at 8 feed
// decimals is 2000_00000000.
type Quote struct {
	Price     *big.Int
	Decimals  uint8
	UpdatedAt time.Time
}

// NewQuote creates a new Quote with validation.
func NewQuote(price *big.Int, decimals uint8, updatedAt time.Time) (*Quote, error) {
	q := &Quote{
		Price:     price,
		Decimals:  decimals,
		UpdatedAt: updatedAt,
	}
	if err := q.validate(); err != nil {
		return nil, err
	}
	return q, nil
}

// validate checks that all fields have valid values.
func (q *Quote) validate() error {
	if q.Price == nil {
		return fmt.Errorf("price must not be nil")
	}
	if q.Price.Sign() <= 0 {
		return fmt.Errorf("price must be positive, got %s", q.Price)
	}
	if q.Decimals > 18 {
		return fmt.Errorf("decimals must be at most 18, got %d", q.Decimals)
	}
	return nil
}

// Age returns how long ago the quote was updated, relative to now.
// The engine performs no staleness validation itself; callers that want a
// staleness policy (e.g. the cache layer) decide with this.
func (q *Quote) Age(now time.Time) time.Duration {
	return now.Sub(q.UpdatedAt)
}
