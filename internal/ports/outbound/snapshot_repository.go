package outbound

import (
	"context"

	"github.com/archon-research/synth-engine/internal/domain/entity"
)

// SnapshotRepository persists position snapshots for downstream analysis.
// Each record captures a user's collateral in one asset, or total debt,
// immediately after a state-mutating operation.
type SnapshotRepository interface {
	// SaveCollateral persists a collateral position snapshot.
	SaveCollateral(ctx context.Context, snapshot *entity.CollateralSnapshot) error

	// SaveDebt persists a debt position snapshot.
	SaveDebt(ctx context.Context, snapshot *entity.DebtSnapshot) error
}
