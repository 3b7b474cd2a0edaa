package entity

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// EventType identifies the kind of engine event.
type EventType string

// Event type constants for every state-mutating operation, plus the
// liquidation-opportunity notification produced by the monitor.
const (
	EventDeposit                EventType = "Deposit"
	EventRedeem                 EventType = "Redeem"
	EventMint                   EventType = "Mint"
	EventBurn                   EventType = "Burn"
	EventLiquidation            EventType = "Liquidation"
	EventLiquidationOpportunity EventType = "LiquidationOpportunity"
)

// EngineEvent is implemented by every event the engine publishes.
type EngineEvent interface {
	// EventType returns the type of the event.
	EventType() EventType
	// GetUser returns the account whose position the event concerns.
	GetUser() common.Address
	// OccurredAt returns when the event was committed.
	OccurredAt() time.Time
}

// DepositEvent is published after collateral has been deposited and the
// backing transfer into engine custody has settled.
type DepositEvent struct {
	User   common.Address `json:"user"`
	Asset  common.Address `json:"asset"`
	Amount *big.Int       `json:"amount"`
	At     time.Time      `json:"at"`
}

func (e DepositEvent) EventType() EventType    { return EventDeposit }
func (e DepositEvent) GetUser() common.Address { return e.User }
func (e DepositEvent) OccurredAt() time.Time   { return e.At }

// RedeemEvent is published after collateral has been redeemed.
// Recipient may differ from User during liquidation seizure.
type RedeemEvent struct {
	User      common.Address `json:"user"`
	Recipient common.Address `json:"recipient"`
	Asset     common.Address `json:"asset"`
	Amount    *big.Int       `json:"amount"`
	At        time.Time      `json:"at"`
}

func (e RedeemEvent) EventType() EventType    { return EventRedeem }
func (e RedeemEvent) GetUser() common.Address { return e.User }
func (e RedeemEvent) OccurredAt() time.Time   { return e.At }

// MintEvent is published after synthetic debt has been minted.
type MintEvent struct {
	User   common.Address `json:"user"`
	Amount *big.Int       `json:"amount"`
	At     time.Time      `json:"at"`
}

func (e MintEvent) EventType() EventType    { return EventMint }
func (e MintEvent) GetUser() common.Address { return e.User }
func (e MintEvent) OccurredAt() time.Time   { return e.At }

// BurnEvent is published after synthetic debt has been repaid and the
// corresponding tokens destroyed.
type BurnEvent struct {
	User   common.Address `json:"user"`
	Amount *big.Int       `json:"amount"`
	At     time.Time      `json:"at"`
}

func (e BurnEvent) EventType() EventType    { return EventBurn }
func (e BurnEvent) GetUser() common.Address { return e.User }
func (e BurnEvent) OccurredAt() time.Time   { return e.At }

// LiquidationEvent is published after a successful liquidation.
type LiquidationEvent struct {
	User               common.Address `json:"user"`
	Liquidator         common.Address `json:"liquidator"`
	Asset              common.Address `json:"asset"`
	DebtCovered        *big.Int       `json:"debtCovered"`
	CollateralSeized   *big.Int       `json:"collateralSeized"`
	EndingHealthFactor *big.Int       `json:"endingHealthFactor"`
	At                 time.Time      `json:"at"`
}

func (e LiquidationEvent) EventType() EventType    { return EventLiquidation }
func (e LiquidationEvent) GetUser() common.Address { return e.User }
func (e LiquidationEvent) OccurredAt() time.Time   { return e.At }

// LiquidationOpportunityEvent is published by the liquidation monitor when
// a position is observed below the minimum health factor.
type LiquidationOpportunityEvent struct {
	User         common.Address `json:"user"`
	HealthFactor *big.Int       `json:"healthFactor"`
	Debt         *big.Int       `json:"debt"`
	At           time.Time      `json:"at"`
}

func (e LiquidationOpportunityEvent) EventType() EventType    { return EventLiquidationOpportunity }
func (e LiquidationOpportunityEvent) GetUser() common.Address { return e.User }
func (e LiquidationOpportunityEvent) OccurredAt() time.Time   { return e.At }
