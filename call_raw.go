package ring

import (
	"context"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/ringerr"
)

// CallRaw is CallResponse without a structured Request: it invokes the
// plugin's HandleRaw entry point instead of Handle.
func (e *Engine) CallRaw(ctx context.Context, entry string, payload []byte) (abi.Status, []byte, error) {
	ctx, cancel := e.withCallTimeout(ctx)
	defer cancel()

	id := e.alloc.Next()
	ch, err := e.reg.RegisterUnary(id)
	if err != nil {
		return abi.StatusErr, nil, ringerr.NewInternal("registering unary completion", err)
	}

	status := e.invokePlugin(id, func() abi.Status { return e.plugin.HandleRaw(id, entry, payload) })
	if status == abi.StatusInvalid {
		e.reg.Remove(id)
		return status, nil, ringerr.NewInvalidEntryPoint(entry)
	}
	if status == abi.StatusUnsupported {
		e.reg.Remove(id)
		return status, nil, ringerr.NewUnsupported(entry)
	}

	select {
	case d := <-ch:
		return d.Status, d.Payload, statusError(d.Status, entry)
	case <-ctx.Done():
		return abi.StatusErr, nil, ringerr.NewCancelled(ctx.Err().Error())
	}
}

// CallRawFast is CallResponseFast without a structured Request: it invokes
// HandleRaw instead of Handle, under the same same-thread delivery
// contract.
func (e *Engine) CallRawFast(entry string, payload []byte) (abi.Status, []byte, error) {
	id := e.alloc.Next()

	ch, err := e.reg.RegisterUnary(id)
	if err != nil {
		return abi.StatusErr, nil, ringerr.NewInternal("registering fallback unary completion", err)
	}

	slot, unpin := registry.PinFastSlot(id)
	defer unpin()

	status := e.invokePlugin(id, func() abi.Status { return e.plugin.HandleRaw(id, entry, payload) })
	if status == abi.StatusInvalid {
		e.reg.Remove(id)
		return status, nil, ringerr.NewInvalidEntryPoint(entry)
	}
	if status == abi.StatusUnsupported {
		e.reg.Remove(id)
		return status, nil, ringerr.NewUnsupported(entry)
	}

	if d, ok := slot.Poll(); ok {
		e.reg.TakeUnary(id)
		return d.Status, d.Payload, statusError(d.Status, entry)
	}

	if !e.cfg.DisableFastPathWarn {
		e.logger.Warn("nylon-ring: fast-path contract violated, falling back to sharded delivery",
			"entry", entry, "sid", id)
	}
	d := <-ch
	return d.Status, d.Payload, statusError(d.Status, entry)
}
