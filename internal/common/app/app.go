package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
)

// CreateContextWithShutdown returns a context that will report done when a SIGINT or SIGTERM is received.
// Only the first signal is consumed; after that the default handling is restored so a second signal kills the
// process even if shutdown hangs.
func CreateContextWithShutdown() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	c := make(chan os.Signal, 1)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		defer signal.Stop(c)
		select {
		case sig := <-c:
			log.Warnf("Received %s, draining in-flight work before exit", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
