package engine

import (
	"context"
	"log/slog"
)

// journal collects compensating actions for one operation. When any step of
// the operation fails, the recorded actions run in reverse order so ledger
// increments are undone and already-settled external transfers are sent
// back. A successful operation discards the journal untouched.
type journal struct {
	undos []func(ctx context.Context) error
}

// record appends one compensating action.
func (j *journal) record(undo func(ctx context.Context) error) {
	j.undos = append(j.undos, undo)
}

// revert runs the recorded actions newest-first. A failing compensation
// cannot be retried from here; it is logged and the remaining actions still
// run.
func (j *journal) revert(ctx context.Context, logger *slog.Logger) {
	for i := len(j.undos) - 1; i >= 0; i-- {
		if err := j.undos[i](ctx); err != nil {
			logger.Error("compensating action failed during revert", "error", err)
		}
	}
	j.undos = nil
}
