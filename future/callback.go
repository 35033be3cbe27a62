package future

import (
	"log/slog"
	"runtime/debug"
)

// invokeCallback runs callback in its own goroutine so fulfillment never
// blocks on user code. A panic inside the callback is recovered and
// logged instead of tearing down the process.
func invokeCallback[T any](kind string, callback func(T), value T) {
	if callback == nil {
		return
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Default().Error("panic in future."+kind+" callback",
					"panic", r,
					"stack", string(debug.Stack()))
			}
		}()

		callback(value)
	}()
}
