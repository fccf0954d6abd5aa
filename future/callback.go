package future

import (
	"runtime/debug"

	"github.com/amp-labs/amp-dispatch/errors"
	"github.com/amp-labs/amp-dispatch/logger"
)

// invokeCallback runs callback on its own goroutine so that a slow or
// panicking callback never blocks promise fulfillment. Panics are logged.
func invokeCallback[T any](kind string, callback func(T), value T) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Get().Error("panic encountered in future."+kind+" callback",
					"error", errors.FromPanic(r, debug.Stack()))
			}
		}()

		callback(value)
	}()
}
