package ring

import (
	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/ringerr"
)

// CallResponseFast is the zero-cross-core-traffic unary variant: it pins a
// thread-affine fast slot *and* a sharded unary slot for the same SID
// before invoking Handle, by contract expecting the plugin to call
// send_result synchronously from this same OS thread before Handle
// returns. It takes no context, since by contract it must not suspend
// across a scheduling point.
func (e *Engine) CallResponseFast(entry string, req *abi.Request, payload []byte) (abi.Status, []byte, error) {
	id := e.alloc.Next()

	ch, err := e.reg.RegisterUnary(id)
	if err != nil {
		return abi.StatusErr, nil, ringerr.NewInternal("registering fallback unary completion", err)
	}

	slot, unpin := registry.PinFastSlot(id)
	defer unpin()

	status := e.invokePlugin(id, func() abi.Status { return e.plugin.Handle(id, entry, req, payload) })
	if status == abi.StatusInvalid {
		e.reg.Remove(id)
		return status, nil, ringerr.NewInvalidEntryPoint(entry)
	}
	if status == abi.StatusUnsupported {
		e.reg.Remove(id)
		return status, nil, ringerr.NewUnsupported(entry)
	}

	if d, ok := slot.Poll(); ok {
		// Contract honored: the plugin delivered from this thread before
		// Handle returned. Drop the fallback sharded slot without waiting
		// on it; any already-queued duplicate would otherwise leak.
		e.reg.TakeUnary(id)
		return d.Status, d.Payload, statusError(d.Status, entry)
	}

	// Contract violated: the plugin delivered asynchronously, or from a
	// foreign thread, so the fast slot never saw it. Fall back to the
	// sharded slot, which the router's waterfall step 2 still reaches.
	if !e.cfg.DisableFastPathWarn {
		e.logger.Warn("nylon-ring: fast-path contract violated, falling back to sharded delivery",
			"entry", entry, "sid", id)
	}
	d := <-ch
	return d.Status, d.Payload, statusError(d.Status, entry)
}
