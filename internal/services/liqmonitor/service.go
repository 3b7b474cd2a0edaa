// Package liqmonitor implements the liquidation monitor: a periodic sweep
// over every debtor in the engine that publishes an event for each position
// observed below the minimum health factor, so liquidators can act on it.
package liqmonitor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/archon-research/synth-engine/internal/domain/entity"
	"github.com/archon-research/synth-engine/internal/ports/outbound"
	"github.com/archon-research/synth-engine/internal/services/engine"
)

// Config holds configuration for the monitor.
type Config struct {
	// Interval is the time between sweeps.
	Interval time.Duration

	// Logger is the structured logger for the service.
	Logger *slog.Logger
}

// ConfigDefaults returns sensible defaults for the monitor.
func ConfigDefaults() Config {
	return Config{
		Interval: 15 * time.Second,
		Logger:   slog.Default(),
	}
}

// Service is the liquidation monitor.
type Service struct {
	engine  *engine.Engine
	sink    outbound.EventSink
	metrics outbound.MetricsRecorder
	config  Config
}

// New creates a monitor over the given engine.
func New(eng *engine.Engine, sink outbound.EventSink, metrics outbound.MetricsRecorder, config Config) (*Service, error) {
	if eng == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	defaults := ConfigDefaults()
	if config.Interval <= 0 {
		config.Interval = defaults.Interval
	}
	if config.Logger == nil {
		config.Logger = defaults.Logger
	}
	if metrics == nil {
		metrics = outbound.NopMetrics{}
	}
	return &Service{
		engine:  eng,
		sink:    sink,
		metrics: metrics,
		config:  config,
	}, nil
}

// Run sweeps on the configured interval until the context is cancelled.
func (s *Service) Run(ctx context.Context) error {
	s.config.Logger.Info("starting liquidation monitor", "interval", s.config.Interval)

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.config.Logger.Info("liquidation monitor stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.ScanOnce(ctx); err != nil {
				s.config.Logger.Error("liquidation sweep failed", "error", err)
			}
		}
	}
}

// ScanOnce checks every debtor once and publishes an opportunity event for
// each liquidatable position. Returns the first hard error; individual
// publish failures are logged and do not stop the sweep.
func (s *Service) ScanOnce(ctx context.Context) error {
	debtors := s.engine.Debtors()
	liquidatable := 0

	for _, user := range debtors {
		factor, err := s.engine.HealthFactor(ctx, user)
		if err != nil {
			return fmt.Errorf("computing health factor for %s: %w", user, err)
		}
		if factor.Cmp(engine.MinHealthFactor) >= 0 {
			continue
		}
		liquidatable++

		event := entity.LiquidationOpportunityEvent{
			User:         user,
			HealthFactor: factor,
			Debt:         s.engine.Debt(user),
			At:           time.Now(),
		}
		if err := s.sink.Publish(ctx, event); err != nil {
			s.config.Logger.Error("publishing liquidation opportunity",
				"user", user, "error", err)
			continue
		}
		s.config.Logger.Warn("liquidatable position",
			"user", user, "healthFactor", factor, "debt", event.Debt)
	}

	s.metrics.RecordLiquidationScan(ctx, len(debtors), liquidatable)
	return nil
}
