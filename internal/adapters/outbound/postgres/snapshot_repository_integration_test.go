//go:build integration

package postgres_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/synth-engine/internal/adapters/outbound/postgres"
	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/testutil"
)

func TestSnapshotRepository_RoundTrip(t *testing.T) {
	pool, _, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	repo, err := postgres.NewSnapshotRepository(pool, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	ctx := context.Background()
	user := common.HexToAddress("0x1111111111111111111111111111111111111111")
	asset := common.HexToAddress("0x2222222222222222222222222222222222222222")
	now := time.Now().UTC().Truncate(time.Microsecond)

	// Amounts exceeding uint64 must survive the NUMERIC round-trip intact.
	amount, _ := new(big.Int).SetString("123456789012345678901234567890", 10)
	change, _ := new(big.Int).SetString("-5000000000000000000", 10)

	first, err := entity.NewCollateralSnapshot(user, asset,
		new(big.Int).Add(amount, new(big.Int).Neg(change)), new(big.Int).Neg(change),
		entity.EventDeposit, now.Add(-time.Minute))
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}
	second, err := entity.NewCollateralSnapshot(user, asset, amount, change,
		entity.EventRedeem, now)
	if err != nil {
		t.Fatalf("build snapshot: %v", err)
	}

	if err := repo.SaveCollateral(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := repo.SaveCollateral(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}

	latest, err := repo.LatestCollateral(ctx, user, asset)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest == nil {
		t.Fatal("expected a snapshot, got nil")
	}
	if latest.Amount.Cmp(amount) != 0 {
		t.Errorf("amount = %s, want %s", latest.Amount, amount)
	}
	if latest.Change.Cmp(change) != 0 {
		t.Errorf("change = %s, want %s", latest.Change, change)
	}
	if latest.EventType != entity.EventRedeem {
		t.Errorf("event type = %s, want %s", latest.EventType, entity.EventRedeem)
	}
	if !latest.At.Equal(now) {
		t.Errorf("at = %s, want %s", latest.At, now)
	}
}

func TestSnapshotRepository_LatestCollateral_NoRows(t *testing.T) {
	pool, _, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	repo, err := postgres.NewSnapshotRepository(pool, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	user := common.HexToAddress("0x3333333333333333333333333333333333333333")
	asset := common.HexToAddress("0x4444444444444444444444444444444444444444")

	latest, err := repo.LatestCollateral(context.Background(), user, asset)
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest != nil {
		t.Fatalf("expected nil snapshot, got %+v", latest)
	}
}

func TestSnapshotRepository_DebtHistory(t *testing.T) {
	pool, _, cleanup := testutil.SetupPostgres(t)
	defer cleanup()

	repo, err := postgres.NewSnapshotRepository(pool, nil)
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}

	ctx := context.Background()
	user := common.HexToAddress("0x5555555555555555555555555555555555555555")
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Hour)

	steps := []struct {
		amount    string
		change    string
		eventType entity.EventType
	}{
		{"4000000000000000000000", "4000000000000000000000", entity.EventMint},
		{"6000000000000000000000", "2000000000000000000000", entity.EventMint},
		{"1000000000000000000000", "-5000000000000000000000", entity.EventBurn},
	}

	for i, step := range steps {
		amount, _ := new(big.Int).SetString(step.amount, 10)
		change, _ := new(big.Int).SetString(step.change, 10)
		snap, err := entity.NewDebtSnapshot(user, amount, change, step.eventType,
			base.Add(time.Duration(i)*time.Minute))
		if err != nil {
			t.Fatalf("build snapshot %d: %v", i, err)
		}
		if err := repo.SaveDebt(ctx, snap); err != nil {
			t.Fatalf("save snapshot %d: %v", i, err)
		}
	}

	history, err := repo.DebtHistory(ctx, user)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != len(steps) {
		t.Fatalf("history length = %d, want %d", len(history), len(steps))
	}
	for i, step := range steps {
		want, _ := new(big.Int).SetString(step.amount, 10)
		if history[i].Amount.Cmp(want) != 0 {
			t.Errorf("step %d amount = %s, want %s", i, history[i].Amount, want)
		}
		if history[i].EventType != step.eventType {
			t.Errorf("step %d event type = %s, want %s", i, history[i].EventType, step.eventType)
		}
	}

	other := common.HexToAddress("0x6666666666666666666666666666666666666666")
	empty, err := repo.DebtHistory(ctx, other)
	if err != nil {
		t.Fatalf("history for other user: %v", err)
	}
	if len(empty) != 0 {
		t.Fatalf("expected empty history, got %d rows", len(empty))
	}
}
