package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/eventhost/internal/console"
	"github.com/vk/eventhost/internal/ctxlog"
)

const shutdownTimeout = 5 * time.Second

// Run connects bridges, loads scripts, starts the ingress server and the
// console, then blocks until ctx is done or the console exits.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	a.logger.Debug("App.Run method started.")

	if err := a.bridges.ConnectAll(ctx); err != nil {
		return err
	}
	defer a.bridges.Close()

	defer a.scripts.Close()
	for _, path := range a.model.Scripts {
		if err := a.scripts.LoadFile(ctx, path); err != nil {
			return err
		}
	}

	if a.ingress != nil {
		if _, err := a.ingress.Start(fmt.Sprintf(":%d", a.model.HTTP.Port)); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
			defer stop()
			_ = a.ingress.Shutdown(shutdownCtx)
		}()
	}

	if a.cfg.Console {
		rl, err := console.NewReadline("eventhost> ")
		if err != nil {
			return err
		}
		defer rl.Close()
		go func() {
			defer cancel()
			if err := console.New(a.bus, a.outW).Run(ctx, rl); err != nil {
				a.logger.Error("Console stopped.", "error", err)
			}
		}()
	}

	a.logger.Info("Event host running.", "events", len(a.bus.Names()))
	if err := a.bus.Dispatch(ctx, EventStarted, HostSource); err != nil {
		a.logger.Warn("Startup event was not delivered.", "error", err)
	}

	<-ctx.Done()

	a.logger.Info("Event host shutting down.")
	if err := a.bus.Dispatch(context.WithoutCancel(ctx), EventStopping, HostSource); err != nil {
		a.logger.Warn("Shutdown event was not delivered.", "error", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}
