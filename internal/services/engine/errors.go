package engine

import (
	"errors"
	"fmt"
	"math/big"
)

// Every failure mode of the engine maps onto one of these sentinel errors.
// An error aborts and fully reverts the triggering operation, including any
// nested sub-operation of a composed call.
var (
	// ErrInvalidAmount is returned for a zero or negative quantity.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrAssetNotSupported is returned for an asset outside the approved set.
	ErrAssetNotSupported = errors.New("asset not supported")

	// ErrConfigurationMismatch is returned at construction when the asset
	// and oracle lists differ in length.
	ErrConfigurationMismatch = errors.New("asset and oracle lists differ in length")

	// ErrTransferFailed is returned when an external asset move fails.
	ErrTransferFailed = errors.New("token transfer failed")

	// ErrMintFailed is returned when the token authority declines a mint.
	ErrMintFailed = errors.New("synthetic token mint failed")

	// ErrHealthFactorTooLow is returned when a post-mutation solvency check
	// finds the user below the minimum health factor.
	ErrHealthFactorTooLow = errors.New("health factor below minimum")

	// ErrHealthFactorOk is returned when liquidation is attempted on a
	// solvent target.
	ErrHealthFactorOk = errors.New("health factor above minimum, cannot liquidate")

	// ErrHealthFactorNotImproved is returned when a liquidation did not
	// strictly improve the target's health factor.
	ErrHealthFactorNotImproved = errors.New("health factor not improved")

	// ErrInsufficientCollateral is returned when a decrement would take a
	// collateral position below zero.
	ErrInsufficientCollateral = errors.New("insufficient collateral balance")

	// ErrInsufficientDebt is returned when a burn exceeds the caller's
	// recorded debt.
	ErrInsufficientDebt = errors.New("burn amount exceeds debt")

	// ErrReentrantCall is returned when a state-mutating entry point is
	// invoked while another operation holds the engine lock.
	ErrReentrantCall = errors.New("reentrant call")
)

// HealthFactorError carries the computed health factor for diagnostics.
// It unwraps to ErrHealthFactorTooLow.
type HealthFactorError struct {
	Factor *big.Int
}

func (e *HealthFactorError) Error() string {
	return fmt.Sprintf("health factor %s below minimum %s", e.Factor, MinHealthFactor)
}

func (e *HealthFactorError) Unwrap() error { return ErrHealthFactorTooLow }
