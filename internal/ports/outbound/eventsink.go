package outbound

import (
	"context"

	"github.com/archon-research/synth-engine/internal/domain/entity"
)

// EventSink receives engine events after the emitting operation has
// committed. Publication is observational: a sink failure is logged by the
// caller but never rolls back the already-committed operation.
type EventSink interface {
	// Publish delivers one event.
	Publish(ctx context.Context, event entity.EngineEvent) error

	// Close releases sink resources. Publish must not be called after Close.
	Close() error
}
