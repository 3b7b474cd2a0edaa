// Package engine implements the over-collateralized synthetic-asset
// accounting engine: participants deposit approved collateral, mint a
// USD-pegged synthetic token against it, redeem and burn, and liquidate
// positions that fall below the required collateralization ratio.
//
// Every state-mutating entry point runs under an exclusive, non-reentrant
// lock and either commits as a whole or reverts as a whole: internal ledger
// state is mutated before external token calls, and any external failure
// triggers compensating actions that restore the pre-call state.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Config holds the construction-time configuration of the engine.
type Config struct {
	// Assets is the ordered list of approved collateral assets.
	Assets []common.Address

	// Oracles pairs 1:1 with Assets; Oracles[i] quotes Assets[i].
	Oracles []outbound.PriceOracle

	// Bank is the transferable-balance interface of the collateral assets.
	Bank outbound.CollateralBank

	// Synth is the mint/burn authority of the synthetic token.
	Synth outbound.SyntheticToken

	// Custody is the engine's own account in the external token ledgers.
	Custody common.Address

	// Snapshots, if set, receives position snapshots after every
	// successful operation.
	Snapshots outbound.SnapshotRepository

	// Events, if set, receives engine events after every successful
	// operation.
	Events outbound.EventSink

	// Metrics receives operation counters. Defaults to a no-op recorder.
	Metrics outbound.MetricsRecorder

	// Logger is the structured logger. Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine orchestrates all state-mutating operations. It exclusively owns
// the collateral ledger and the debt table, and it is the only caller of
// the synthetic token's mint/burn authority.
type Engine struct {
	mu sync.Mutex // operation lock, acquired with TryLock; see lock()

	assets  []common.Address
	oracles map[common.Address]outbound.PriceOracle
	bank    outbound.CollateralBank
	synth   outbound.SyntheticToken
	custody common.Address

	ledger *ledger

	snapshots outbound.SnapshotRepository
	events    outbound.EventSink
	metrics   outbound.MetricsRecorder
	logger    *slog.Logger
	now       func() time.Time
}

// New creates an Engine from the given configuration.
// Fails with ErrConfigurationMismatch when the asset and oracle lists
// differ in length.
func New(cfg Config) (*Engine, error) {
	if len(cfg.Assets) != len(cfg.Oracles) {
		return nil, fmt.Errorf("%w: %d assets, %d oracles",
			ErrConfigurationMismatch, len(cfg.Assets), len(cfg.Oracles))
	}
	if len(cfg.Assets) == 0 {
		return nil, fmt.Errorf("at least one collateral asset is required")
	}
	if cfg.Bank == nil {
		return nil, fmt.Errorf("collateral bank is required")
	}
	if cfg.Synth == nil {
		return nil, fmt.Errorf("synthetic token is required")
	}
	if cfg.Custody == (common.Address{}) {
		return nil, fmt.Errorf("custody address is required")
	}
	if cfg.Metrics == nil {
		cfg.Metrics = outbound.NopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	oracles := make(map[common.Address]outbound.PriceOracle, len(cfg.Assets))
	for i, asset := range cfg.Assets {
		if cfg.Oracles[i] == nil {
			return nil, fmt.Errorf("oracle for asset %s is nil", asset)
		}
		if _, dup := oracles[asset]; dup {
			return nil, fmt.Errorf("duplicate collateral asset %s", asset)
		}
		oracles[asset] = cfg.Oracles[i]
	}

	return &Engine{
		assets:    append([]common.Address(nil), cfg.Assets...),
		oracles:   oracles,
		bank:      cfg.Bank,
		synth:     cfg.Synth,
		custody:   cfg.Custody,
		ledger:    newLedger(),
		snapshots: cfg.Snapshots,
		events:    cfg.Events,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
		now:       time.Now,
	}, nil
}

// opState accumulates the journal and the post-commit effects of one
// operation.
type opState struct {
	jnl       journal
	events    []entity.EngineEvent
	colSnaps  []*entity.CollateralSnapshot
	debtSnaps []*entity.DebtSnapshot
}

// lock acquires the operation lock. A nested re-entry attempt (an external
// token adapter calling back into the engine mid-operation) fails
// immediately with ErrReentrantCall instead of observing partial state.
func (e *Engine) lock() error {
	if !e.mu.TryLock() {
		return ErrReentrantCall
	}
	return nil
}

func validateAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

func (e *Engine) validateAsset(asset common.Address) error {
	if _, ok := e.oracles[asset]; !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotSupported, asset)
	}
	return nil
}

// DepositCollateral moves amount of asset from the user into engine
// custody and credits the user's collateral position.
func (e *Engine) DepositCollateral(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	if err := e.depositLocked(ctx, st, user, asset, amount); err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// DepositCollateralAndMint deposits collateral and mints synthetic debt as
// one atomic operation.
func (e *Engine) DepositCollateralAndMint(ctx context.Context, user, asset common.Address, amount, debtAmount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	err := e.depositLocked(ctx, st, user, asset, amount)
	if err == nil {
		err = e.mintLocked(ctx, st, user, debtAmount)
	}
	if err == nil {
		err = e.assertSolvent(ctx, user)
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// RedeemCollateral pays amount of asset out of the user's position back to
// the user, then verifies the user remains solvent.
func (e *Engine) RedeemCollateral(ctx context.Context, user, asset common.Address, amount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	err := e.redeemLocked(ctx, st, user, user, asset, amount, EventRedeem)
	if err == nil {
		err = e.assertSolvent(ctx, user)
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// RedeemCollateralForSynth burns debtAmount of the user's synthetic debt
// and redeems amount of asset as one atomic operation.
func (e *Engine) RedeemCollateralForSynth(ctx context.Context, user, asset common.Address, amount, debtAmount *big.Int) error {
	if err := validateAmount(amount); err != nil {
		return err
	}
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	err := e.burnLocked(ctx, st, user, user, debtAmount)
	if err == nil {
		err = e.redeemLocked(ctx, st, user, user, asset, amount, EventRedeem)
	}
	if err == nil {
		err = e.assertSolvent(ctx, user)
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// MintSynth records debtAmount of debt against the user and mints the same
// amount of synthetic tokens to them, then verifies the user is solvent.
func (e *Engine) MintSynth(ctx context.Context, user common.Address, debtAmount *big.Int) error {
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	err := e.mintLocked(ctx, st, user, debtAmount)
	if err == nil {
		err = e.assertSolvent(ctx, user)
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// BurnSynth repays debtAmount of the user's debt, pulling the tokens from
// the user's balance and destroying them. The closing solvency check can
// only pass after a pure reduction; it is kept for defense in depth.
func (e *Engine) BurnSynth(ctx context.Context, user common.Address, debtAmount *big.Int) error {
	if err := validateAmount(debtAmount); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	st := &opState{}
	err := e.burnLocked(ctx, st, user, user, debtAmount)
	if err == nil {
		err = e.assertSolvent(ctx, user)
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}
	e.commit(ctx, st)
	return nil
}

// Liquidate lets the liquidator repay debtToCover of an undercollateralized
// user's debt in exchange for the equivalent collateral plus a bonus.
// The target's health factor must be below the minimum before, and must
// strictly improve after. The target may legitimately remain below the
// minimum when the covered amount was too small to fully restore it.
func (e *Engine) Liquidate(ctx context.Context, liquidator, user, asset common.Address, debtToCover *big.Int) error {
	if err := validateAmount(debtToCover); err != nil {
		return err
	}
	if err := e.validateAsset(asset); err != nil {
		return err
	}
	if err := e.lock(); err != nil {
		return err
	}
	defer e.mu.Unlock()

	starting, err := e.healthFactor(ctx, user)
	if err != nil {
		return err
	}
	if starting.Cmp(MinHealthFactor) >= 0 {
		return fmt.Errorf("%w: %s", ErrHealthFactorOk, starting)
	}

	tokenAmount, err := e.tokenAmountFromUSD(ctx, asset, debtToCover)
	if err != nil {
		return err
	}
	bonus := new(big.Int).Mul(tokenAmount, liquidationBonus)
	bonus.Div(bonus, liquidationPrecision)
	seized := new(big.Int).Add(tokenAmount, bonus)

	st := &opState{}
	err = e.redeemLocked(ctx, st, user, liquidator, asset, seized, EventLiquidation)
	if err == nil {
		err = e.burnLocked(ctx, st, liquidator, user, debtToCover)
	}

	var ending *big.Int
	if err == nil {
		ending, err = e.healthFactor(ctx, user)
		if err == nil && ending.Cmp(starting) <= 0 {
			err = fmt.Errorf("%w: %s -> %s", ErrHealthFactorNotImproved, starting, ending)
		}
	}
	if err != nil {
		st.jnl.revert(ctx, e.logger)
		return err
	}

	st.events = append(st.events, entity.LiquidationEvent{
		User:               user,
		Liquidator:         liquidator,
		Asset:              asset,
		DebtCovered:        new(big.Int).Set(debtToCover),
		CollateralSeized:   seized,
		EndingHealthFactor: ending,
		At:                 e.now(),
	})
	e.commit(ctx, st)

	e.logger.Info("position liquidated",
		"user", user, "liquidator", liquidator, "asset", asset,
		"debtCovered", debtToCover, "collateralSeized", seized,
		"healthFactor", ending)
	return nil
}

// depositLocked credits the ledger, then pulls the backing transfer into
// custody. Ledger first, external call second; the journal undoes the
// credit when the transfer fails.
func (e *Engine) depositLocked(ctx context.Context, st *opState, user, asset common.Address, amount *big.Int) error {
	newTotal := e.ledger.addCollateral(user, asset, amount)
	st.jnl.record(func(context.Context) error {
		_, err := e.ledger.subCollateral(user, asset, amount)
		return err
	})

	if err := e.bank.TransferFrom(ctx, asset, user, e.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	st.jnl.record(func(ctx context.Context) error {
		return e.bank.Transfer(ctx, asset, user, amount)
	})

	now := e.now()
	st.events = append(st.events, entity.DepositEvent{
		User: user, Asset: asset, Amount: new(big.Int).Set(amount), At: now,
	})
	if snap, snapErr := entity.NewCollateralSnapshot(user, asset, newTotal, new(big.Int).Set(amount), entity.EventDeposit, now); snapErr != nil {
		e.logger.Warn("building collateral snapshot", "user", user, "error", snapErr)
	} else {
		st.colSnaps = append(st.colSnaps, snap)
	}
	return nil
}

// redeemLocked debits the ledger, then pays the external transfer out to
// the recipient. The recipient is the user for redemptions and the
// liquidator for seizures.
func (e *Engine) redeemLocked(ctx context.Context, st *opState, user, recipient, asset common.Address, amount *big.Int, op entity.EventType) error {
	newTotal, err := e.ledger.subCollateral(user, asset, amount)
	if err != nil {
		return err
	}
	st.jnl.record(func(context.Context) error {
		e.ledger.addCollateral(user, asset, amount)
		return nil
	})

	if err := e.bank.Transfer(ctx, asset, recipient, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	st.jnl.record(func(ctx context.Context) error {
		return e.bank.TransferFrom(ctx, asset, recipient, e.custody, amount)
	})

	now := e.now()
	st.events = append(st.events, entity.RedeemEvent{
		User: user, Recipient: recipient, Asset: asset,
		Amount: new(big.Int).Set(amount), At: now,
	})
	change := new(big.Int).Neg(amount)
	if snap, snapErr := entity.NewCollateralSnapshot(user, asset, newTotal, change, op, now); snapErr != nil {
		e.logger.Warn("building collateral snapshot", "user", user, "error", snapErr)
	} else {
		st.colSnaps = append(st.colSnaps, snap)
	}
	return nil
}

// mintLocked records debt against the user and mints the tokens to them.
func (e *Engine) mintLocked(ctx context.Context, st *opState, user common.Address, amount *big.Int) error {
	newTotal := e.ledger.addDebt(user, amount)
	st.jnl.record(func(context.Context) error {
		_, err := e.ledger.subDebt(user, amount)
		return err
	})

	if err := e.synth.Mint(ctx, user, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrMintFailed, err)
	}
	st.jnl.record(func(ctx context.Context) error {
		if err := e.synth.TransferFrom(ctx, user, e.custody, amount); err != nil {
			return err
		}
		return e.synth.Burn(ctx, amount)
	})

	now := e.now()
	st.events = append(st.events, entity.MintEvent{
		User: user, Amount: new(big.Int).Set(amount), At: now,
	})
	if snap, snapErr := entity.NewDebtSnapshot(user, newTotal, new(big.Int).Set(amount), entity.EventMint, now); snapErr != nil {
		e.logger.Warn("building debt snapshot", "user", user, "error", snapErr)
	} else {
		st.debtSnaps = append(st.debtSnaps, snap)
	}
	return nil
}

// burnLocked reduces onBehalfOf's recorded debt, pulls the tokens from the
// payer and destroys them. For a plain burn payer == onBehalfOf; during
// liquidation the liquidator pays off the target's debt.
func (e *Engine) burnLocked(ctx context.Context, st *opState, payer, onBehalfOf common.Address, amount *big.Int) error {
	newTotal, err := e.ledger.subDebt(onBehalfOf, amount)
	if err != nil {
		return err
	}
	st.jnl.record(func(context.Context) error {
		e.ledger.addDebt(onBehalfOf, amount)
		return nil
	})

	if err := e.synth.TransferFrom(ctx, payer, e.custody, amount); err != nil {
		return fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}
	st.jnl.record(func(ctx context.Context) error {
		return e.synth.Transfer(ctx, payer, amount)
	})

	if err := e.synth.Burn(ctx, amount); err != nil {
		return fmt.Errorf("burning synthetic tokens: %w", err)
	}
	st.jnl.record(func(ctx context.Context) error {
		return e.synth.Mint(ctx, e.custody, amount)
	})

	now := e.now()
	st.events = append(st.events, entity.BurnEvent{
		User: onBehalfOf, Amount: new(big.Int).Set(amount), At: now,
	})
	change := new(big.Int).Neg(amount)
	op := entity.EventBurn
	if payer != onBehalfOf {
		op = entity.EventLiquidation
	}
	if snap, snapErr := entity.NewDebtSnapshot(onBehalfOf, newTotal, change, op, now); snapErr != nil {
		e.logger.Warn("building debt snapshot", "user", onBehalfOf, "error", snapErr)
	} else {
		st.debtSnaps = append(st.debtSnaps, snap)
	}
	return nil
}

// commit flushes the post-success effects of an operation: events,
// snapshots and metrics. Failures here are logged, never propagated; the
// ledger mutation has already committed.
func (e *Engine) commit(ctx context.Context, st *opState) {
	for _, ev := range st.events {
		e.metrics.RecordOperation(ctx, ev.EventType())
		if e.events == nil {
			continue
		}
		if err := e.events.Publish(ctx, ev); err != nil {
			e.logger.Error("publishing engine event", "type", ev.EventType(), "error", err)
		}
	}
	if e.snapshots == nil {
		return
	}
	for _, snap := range st.colSnaps {
		if err := e.snapshots.SaveCollateral(ctx, snap); err != nil {
			e.logger.Error("saving collateral snapshot", "user", snap.User, "error", err)
		}
	}
	for _, snap := range st.debtSnaps {
		if err := e.snapshots.SaveDebt(ctx, snap); err != nil {
			e.logger.Error("saving debt snapshot", "user", snap.User, "error", err)
		}
	}
}

// Event type aliases used by locked helpers.
const (
	EventRedeem      = entity.EventRedeem
	EventLiquidation = entity.EventLiquidation
)
