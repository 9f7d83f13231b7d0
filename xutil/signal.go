package xutil

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"xwire/xlog"
)

// WaitSignal blocks until SIGINT/SIGTERM or ctx is done.
func WaitSignal(ctx context.Context) error {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(c)
	select {
	case sig := <-c:
		xlog.InfoF("caught signal: %v", sig)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
