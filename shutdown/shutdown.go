// Package shutdown runs cleanup hooks when the process is asked to stop.
package shutdown

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/amp-labs/amp-dispatch/errors"
)

// Hook releases a resource. The context passed to it is still alive.
type Hook func(ctx context.Context) error

var (
	mut     sync.Mutex     //nolint:gochecknoglobals
	hooks   []Hook         //nolint:gochecknoglobals
	trigger chan os.Signal //nolint:gochecknoglobals
)

// BeforeShutdown registers a hook. Hooks run in reverse registration order,
// so resources set up later are released first.
func BeforeShutdown(h Hook) {
	mut.Lock()
	defer mut.Unlock()

	hooks = append(hooks, h)
}

// Shutdown starts the shutdown process programmatically. It does nothing
// unless SetupHandler was called.
func Shutdown() {
	mut.Lock()
	ch := trigger
	mut.Unlock()

	if ch != nil {
		select {
		case ch <- os.Interrupt:
		default:
		}
	}
}

// SetupHandler listens for SIGINT and SIGTERM. On the first one it runs the
// registered hooks with ctx, then cancels the returned context.
func SetupHandler(ctx context.Context) context.Context {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	mut.Lock()
	trigger = ch
	mut.Unlock()

	ctx, cancel := context.WithCancel(ctx)

	go func() {
		defer cancel()

		select {
		case sig := <-ch:
			slog.Warn("Received " + sig.String() + ", shutting down...")
		case <-ctx.Done():
		}

		signal.Stop(ch)

		mut.Lock()
		trigger = nil
		mut.Unlock()

		if err := RunHooks(ctx); err != nil {
			slog.Error("Shutdown hooks failed", "error", err)
		}
	}()

	return ctx
}

// RunHooks runs and clears the registered hooks, returning their errors.
func RunHooks(ctx context.Context) error {
	mut.Lock()
	pending := hooks
	hooks = nil
	mut.Unlock()

	var errs errors.Collection

	for _, h := range slices.Backward(pending) {
		errs.Add(h(ctx))
	}

	return errs.GetError()
}
