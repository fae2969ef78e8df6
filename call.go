package ring

import (
	"context"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/ringerr"
)

// Call is the fire-and-forget pattern: it allocates a SID, invokes the
// plugin's Handle entry point, and returns as soon as Handle returns,
// without registering any completion. Any eventual send_result for this SID
// is silently dropped by the router's waterfall.
func (e *Engine) Call(ctx context.Context, entry string, req *abi.Request, payload []byte) (abi.Status, error) {
	if err := ctx.Err(); err != nil {
		return abi.StatusErr, ringerr.NewCancelled(err.Error())
	}
	id := e.alloc.Next()
	status := e.invokePlugin(id, func() abi.Status { return e.plugin.Handle(id, entry, req, payload) })
	// No completion was ever registered for id, so the router's waterfall
	// can never reach it to reclaim state on a later send_result; reclaim
	// it here instead, since a fire-and-forget call is its own close.
	e.store.Complete(id)
	return status, statusError(status, entry)
}

// CallResponse is the unary request/response pattern: it registers a
// sharded completion slot before invoking Handle, then awaits the plugin's
// send_result (or ctx cancellation) on that slot.
func (e *Engine) CallResponse(ctx context.Context, entry string, req *abi.Request, payload []byte) (abi.Status, []byte, error) {
	ctx, cancel := e.withCallTimeout(ctx)
	defer cancel()

	id := e.alloc.Next()
	ch, err := e.reg.RegisterUnary(id)
	if err != nil {
		return abi.StatusErr, nil, ringerr.NewInternal("registering unary completion", err)
	}

	status := e.invokePlugin(id, func() abi.Status { return e.plugin.Handle(id, entry, req, payload) })
	if status == abi.StatusInvalid {
		e.reg.Remove(id)
		return status, nil, ringerr.NewInvalidEntryPoint(entry)
	}
	if status == abi.StatusUnsupported {
		e.reg.Remove(id)
		return status, nil, ringerr.NewUnsupported(entry)
	}
	// A Handle panic recovered by invokePlugin already delivered a
	// terminal Err through ch, so a plain read below sees it like any
	// other completion.
	select {
	case d := <-ch:
		return d.Status, d.Payload, statusError(d.Status, entry)
	case <-ctx.Done():
		// The waterfall step 2 still owns the slot if send_result arrives
		// late; per §5 cancellation policy we don't remove it here, we
		// only stop waiting.
		return abi.StatusErr, nil, ringerr.NewCancelled(ctx.Err().Error())
	}
}

// statusError converts a non-terminal-success Status into the matching
// ringerr.RingError, or nil for Ok.
func statusError(status abi.Status, entry string) error {
	switch status {
	case abi.StatusOk:
		return nil
	case abi.StatusInvalid:
		return ringerr.NewInvalidEntryPoint(entry)
	case abi.StatusUnsupported:
		return ringerr.NewUnsupported(entry)
	case abi.StatusErr:
		return ringerr.NewPluginRejected("plugin returned Err for " + entry)
	default:
		return nil
	}
}
