package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"graph-query-connector/internal/logging"
)

// cleanupStack releases resources in reverse order of acquisition.
type cleanupStack struct {
	items []cleanupItem
}

type cleanupItem struct {
	name string
	fn   func(context.Context) error
}

func (s *cleanupStack) push(name string, fn func(context.Context) error) {
	s.items = append(s.items, cleanupItem{name: name, fn: fn})
}

// run calls every cleanup even when some fail and reports all failures.
func (s *cleanupStack) run(ctx context.Context, logger *logging.Logger) error {
	var errs []error
	for i := len(s.items) - 1; i >= 0; i-- {
		item := s.items[i]
		if logger != nil {
			logger.Debug("releasing " + item.name)
		}
		err := item.fn(ctx)
		if err == nil {
			continue
		}
		errs = append(errs, fmt.Errorf("%s: %w", item.name, err))
		if logger != nil {
			logger.Warn("cleanup failed", slog.String("component", item.name), slog.String("error", err.Error()))
		}
	}
	s.items = nil
	return errors.Join(errs...)
}

// Shutdown releases everything Init acquired. Later calls return the
// result of the first.
func (a *App) Shutdown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.shutdownOnce.Do(func() {
		a.stateMu.Lock()
		cleanup := a.cleanup
		a.started = false
		a.stateMu.Unlock()

		a.shutdownErr = cleanup.run(ctx, a.logger)
		if a.shutdownErr == nil && a.logger != nil {
			a.logger.Info("shutdown complete")
		}
	})
	return a.shutdownErr
}
