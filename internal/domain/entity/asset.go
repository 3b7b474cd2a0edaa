// Package entity contains the domain model of the synthetic-asset engine:
// approved collateral assets, oracle quotes, position snapshots and the
// events emitted by state-mutating operations.
package entity

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// CollateralAsset is an asset approved for deposit as collateral.
// The approved set is fixed at engine construction and immutable afterwards.
type CollateralAsset struct {
	Address  common.Address
	Symbol   string
	Decimals uint8
}

// NewCollateralAsset creates a new CollateralAsset with validation.
func NewCollateralAsset(address common.Address, symbol string, decimals uint8) (*CollateralAsset, error) {
	a := &CollateralAsset{
		Address:  address,
		Symbol:   symbol,
		Decimals: decimals,
	}
	if err := a.validate(); err != nil {
		return nil, err
	}
	return a, nil
}

// validate checks that all fields have valid values.
func (a *CollateralAsset) validate() error {
	if a.Address == (common.Address{}) {
		return fmt.Errorf("address must not be the zero address")
	}
	if a.Symbol == "" {
		return fmt.Errorf("symbol must not be empty")
	}
	if a.Decimals > 18 {
		return fmt.Errorf("decimals must be at most 18, got %d", a.Decimals)
	}
	return nil
}
