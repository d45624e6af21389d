package serverapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"syscall"
	"time"
)

// StopReason reports why WaitForStop returned.
type StopReason string

const (
	StopSignal      StopReason = "signal"
	StopServerError StopReason = "server_error"
)

// signalReloadTimeout bounds a SIGHUP-triggered descriptor reload.
const signalReloadTimeout = 30 * time.Second

// Start launches the HTTP server goroutine. Init must have completed.
func (a *App) Start() (<-chan error, error) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()

	if !a.initialized {
		return nil, errors.New("app is not initialized")
	}
	if !a.started {
		a.serverErrors = startServer(a.cfg, a.logger, a.srv, a.serverAddr)
		a.started = true
	}
	return a.serverErrors, nil
}

// WaitForStop blocks until a stop signal arrives or the server fails. A SIGHUP
// on the stop channel reloads the schema descriptor and keeps waiting.
func (a *App) WaitForStop(stop <-chan os.Signal, serverErrors <-chan error) (StopReason, error) {
	if serverErrors == nil {
		a.stateMu.Lock()
		serverErrors = a.serverErrors
		a.stateMu.Unlock()
	}
	if stop == nil && serverErrors == nil {
		return "", errors.New("both stop and serverErrors channels are nil")
	}

	for {
		select {
		case err := <-serverErrors:
			if err == nil {
				return StopServerError, errors.New("server stopped unexpectedly")
			}
			return StopServerError, fmt.Errorf("server failed: %w", err)
		case sig := <-stop:
			if sig == syscall.SIGHUP {
				a.reloadDescriptor()
				continue
			}
			a.logger.Info("received shutdown signal", slog.String("signal", sig.String()))
			return StopSignal, nil
		}
	}
}

func (a *App) reloadDescriptor() {
	if a.manager == nil {
		a.logger.Warn("ignoring SIGHUP: schema manager is not running")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), signalReloadTimeout)
	defer cancel()
	if err := a.manager.RefreshNowContext(ctx); err != nil {
		a.logger.Error("schema reload on SIGHUP failed", slog.String("error", err.Error()))
		return
	}
	a.logger.Info("schema reloaded on SIGHUP", slog.String("schema_fingerprint", a.connector.Fingerprint()))
}
