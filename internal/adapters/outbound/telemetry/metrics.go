package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
)

// Compile-time check that Metrics implements outbound.MetricsRecorder.
var _ outbound.MetricsRecorder = (*Metrics)(nil)

// Metrics implements the MetricsRecorder interface using OpenTelemetry.
type Metrics struct {
	operations            metric.Int64Counter
	scannedPositions      metric.Int64Counter
	liquidatablePositions metric.Int64Counter
}

// NewMetrics creates a new OpenTelemetry metrics recorder.
// meterName should typically be the package name or service name.
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	operations, err := meter.Int64Counter(
		"engine_operations_total",
		metric.WithDescription("Total number of successful engine operations by type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create engine_operations_total counter: %w", err)
	}

	scanned, err := meter.Int64Counter(
		"liquidation_scan_positions_total",
		metric.WithDescription("Total number of positions examined by liquidation sweeps"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create liquidation_scan_positions_total counter: %w", err)
	}

	liquidatable, err := meter.Int64Counter(
		"liquidation_scan_flagged_total",
		metric.WithDescription("Total number of positions found below the minimum health factor"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create liquidation_scan_flagged_total counter: %w", err)
	}

	return &Metrics{
		operations:            operations,
		scannedPositions:      scanned,
		liquidatablePositions: liquidatable,
	}, nil
}

// RecordOperation increments the operation counter for the given type.
func (m *Metrics) RecordOperation(ctx context.Context, op entity.EventType) {
	m.operations.Add(ctx, 1, metric.WithAttributes(attribute.String("operation", string(op))))
}

// RecordLiquidationScan records the outcome of one monitor sweep.
func (m *Metrics) RecordLiquidationScan(ctx context.Context, scanned, liquidatable int) {
	m.scannedPositions.Add(ctx, int64(scanned))
	m.liquidatablePositions.Add(ctx, int64(liquidatable))
}
