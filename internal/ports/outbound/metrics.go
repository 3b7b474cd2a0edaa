package outbound

import (
	"context"

	"github.com/archon-research/synth-engine/internal/domain/entity"
)

// MetricsRecorder provides an interface for recording application metrics.
// This allows the engine and services to record metrics without depending
// on specific telemetry implementations.
type MetricsRecorder interface {
	// RecordOperation records one successful state-mutating operation.
	RecordOperation(ctx context.Context, op entity.EventType)

	// RecordLiquidationScan records the outcome of one monitor sweep:
	// how many positions were scanned and how many were liquidatable.
	RecordLiquidationScan(ctx context.Context, scanned, liquidatable int)
}

// NopMetrics is a MetricsRecorder that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(context.Context, entity.EventType) {}
func (NopMetrics) RecordLiquidationScan(context.Context, int, int)   {}
