package hook

import (
	"context"

	"github.com/ayusman/hajira/internal/events"
	"go.uber.org/zap"
)

// Runner feeds hub events to the hooks that subscribed to them.
// Hooks run one at a time in event order.
type Runner struct {
	manager  *Manager
	executor *Executor
	logger   *zap.Logger
}

func NewRunner(manager *Manager, executor *Executor, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{manager: manager, executor: executor, logger: logger}
}

// Run dispatches events until ctx is cancelled or the subscription closes.
func (r *Runner) Run(ctx context.Context, hub *events.Hub) {
	ch, cancel := hub.Subscribe()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-ch:
			if !ok {
				return
			}
			r.Dispatch(ctx, e)
		}
	}
}

// Dispatch runs every hook subscribed to e and returns how many succeeded.
// Failures are logged and never propagated.
func (r *Runner) Dispatch(ctx context.Context, e events.Event) int {
	ok := 0
	for _, h := range r.manager.For(e.Type) {
		resp, err := r.executor.Execute(ctx, h, &Request{Event: e, Config: h.Manifest.Config})
		if err != nil {
			r.logger.Warn("hook failed", zap.String("hook", h.Manifest.Name),
				zap.String("type", e.Type), zap.Error(err))
			continue
		}
		if !resp.Success {
			r.logger.Warn("hook reported failure", zap.String("hook", h.Manifest.Name),
				zap.String("type", e.Type), zap.String("error", resp.Error))
			continue
		}
		r.logger.Debug("hook ran", zap.String("hook", h.Manifest.Name), zap.String("type", e.Type))
		ok++
	}
	return ok
}
