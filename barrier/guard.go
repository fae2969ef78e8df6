// Package barrier wraps every function that crosses the host/plugin FFI
// seam in a catch-unwind so a panic on either side never crosses the
// boundary as a language-level exception.
package barrier

import (
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/nylonring/nylon-ring-host/abi"
)

// Guard runs f and recovers any panic, converting it to abi.StatusErr. If
// sidKnown is true, onPanicSID is invoked with the recovered panic so the
// caller can route a terminal Err delivery to that SID; otherwise the
// panic is only logged and discarded, per the spec's "unwinding from a
// plugin... otherwise discarded" rule.
func Guard(logger *slog.Logger, sidKnown bool, sid uint64, onPanicSID func(sid uint64, recovered any), f func() abi.Status) (status abi.Status) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, sid, sidKnown, r)
			status = abi.StatusErr
			if sidKnown && onPanicSID != nil {
				onPanicSID(sid, r)
			}
		}
	}()
	return f()
}

// GuardValue is the value-returning analog of Guard, used by set_state/
// get_state wrappers that must return a value (abi.ByteView) rather than a
// Status.
func GuardValue[T any](logger *slog.Logger, zero T, f func() T) (result T) {
	defer func() {
		if r := recover(); r != nil {
			logPanic(logger, 0, false, r)
			result = zero
		}
	}()
	return f()
}

func logPanic(logger *slog.Logger, sid uint64, sidKnown bool, recovered any) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := []any{
		"recovered", fmt.Sprint(recovered),
		"stack", string(debug.Stack()),
	}
	if sidKnown {
		attrs = append(attrs, "sid", sid)
	}
	logger.Error("nylon-ring: panic caught at ffi boundary", attrs...)
}
