package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that SnapshotRepository implements the port.
var _ outbound.SnapshotRepository = (*SnapshotRepository)(nil)

// SnapshotRepository is a PostgreSQL implementation of the
// outbound.SnapshotRepository port. Amounts are stored as NUMERIC text so
// 18-decimal fixed-point values round-trip without loss.
type SnapshotRepository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewSnapshotRepository creates a new PostgreSQL snapshot repository.
// Returns an error if the database pool is nil.
func NewSnapshotRepository(pool *pgxpool.Pool, logger *slog.Logger) (*SnapshotRepository, error) {
	if pool == nil {
		return nil, fmt.Errorf("database pool cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SnapshotRepository{pool: pool, logger: logger}, nil
}

// SaveCollateral persists a collateral position snapshot.
func (r *SnapshotRepository) SaveCollateral(ctx context.Context, snapshot *entity.CollateralSnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO collateral_snapshot ("user", asset, amount, change, event_type, at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snapshot.User.Bytes(), snapshot.Asset.Bytes(),
		snapshot.Amount.String(), snapshot.Change.String(),
		string(snapshot.EventType), snapshot.At)
	if err != nil {
		return fmt.Errorf("failed to save collateral snapshot: %w", err)
	}
	return nil
}

// SaveDebt persists a debt position snapshot.
func (r *SnapshotRepository) SaveDebt(ctx context.Context, snapshot *entity.DebtSnapshot) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO debt_snapshot ("user", amount, change, event_type, at)
		 VALUES ($1, $2, $3, $4, $5)`,
		snapshot.User.Bytes(),
		snapshot.Amount.String(), snapshot.Change.String(),
		string(snapshot.EventType), snapshot.At)
	if err != nil {
		return fmt.Errorf("failed to save debt snapshot: %w", err)
	}
	return nil
}

// LatestCollateral returns the most recent collateral snapshot for a
// (user, asset) pair, or nil when none exists.
func (r *SnapshotRepository) LatestCollateral(ctx context.Context, user, asset common.Address) (*entity.CollateralSnapshot, error) {
	var (
		amountStr, changeStr, eventType string
		at                              time.Time
	)
	err := r.pool.QueryRow(ctx,
		`SELECT amount, change, event_type, at
		 FROM collateral_snapshot
		 WHERE "user" = $1 AND asset = $2
		 ORDER BY at DESC, id DESC
		 LIMIT 1`,
		user.Bytes(), asset.Bytes()).Scan(&amountStr, &changeStr, &eventType, &at)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query collateral snapshot: %w", err)
	}

	amount, ok := new(big.Int).SetString(amountStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored amount %q", amountStr)
	}
	change, ok := new(big.Int).SetString(changeStr, 10)
	if !ok {
		return nil, fmt.Errorf("invalid stored change %q", changeStr)
	}
	return &entity.CollateralSnapshot{
		User:      user,
		Asset:     asset,
		Amount:    amount,
		Change:    change,
		EventType: entity.EventType(eventType),
		At:        at,
	}, nil
}

// DebtHistory returns every debt snapshot for a user, oldest first.
func (r *SnapshotRepository) DebtHistory(ctx context.Context, user common.Address) ([]*entity.DebtSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT amount, change, event_type, at
		 FROM debt_snapshot
		 WHERE "user" = $1
		 ORDER BY at ASC, id ASC`,
		user.Bytes())
	if err != nil {
		return nil, fmt.Errorf("failed to query debt history: %w", err)
	}
	defer rows.Close()

	var history []*entity.DebtSnapshot
	for rows.Next() {
		var (
			amountStr, changeStr, eventType string
			at                              time.Time
		)
		if err := rows.Scan(&amountStr, &changeStr, &eventType, &at); err != nil {
			return nil, fmt.Errorf("failed to scan debt snapshot: %w", err)
		}
		amount, ok := new(big.Int).SetString(amountStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stored amount %q", amountStr)
		}
		change, ok := new(big.Int).SetString(changeStr, 10)
		if !ok {
			return nil, fmt.Errorf("invalid stored change %q", changeStr)
		}
		history = append(history, &entity.DebtSnapshot{
			User:      user,
			Amount:    amount,
			Change:    change,
			EventType: entity.EventType(eventType),
			At:        at,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read debt history: %w", err)
	}
	return history, nil
}
