package plugin

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/nylonring/nylon-ring-host/abi"
)

// invoke calls a raw plugin-exported function pointer with the System V
// integer-class calling convention purego.SyscallN implements, returning
// the low 32 bits of the primary return register as an abi.Status. A zero
// fn (an unimplemented optional vtable slot) is reported as
// abi.StatusUnsupported without making the call, matching the ABI's
// "nullable vtable slot" contract.
func invoke(fn uintptr, args ...uintptr) abi.Status {
	if fn == 0 {
		return abi.StatusUnsupported
	}
	r1, _, _ := purego.SyscallN(fn, args...)
	return abi.Status(uint32(r1))
}

// Init calls the plugin's Init entry point, handing it the host vtables
// resolved at Load time along with the plugin's own opaque context.
func (h *Handle) Init() abi.Status {
	return invoke(h.vtable.Init,
		uintptr(h.info.PluginCtx),
		uintptr(unsafe.Pointer(&h.hostVTable)),
		uintptr(unsafe.Pointer(&h.hostExtVTable)),
	)
}

// Handle calls the plugin's Handle entry point for a unary or streaming
// call: entry names the route, req carries the request views (may be nil
// for payload-only calls), and payload is the request body.
func (h *Handle) Handle(sid uint64, entry string, req *abi.Request, payload []byte) abi.Status {
	ev := abi.StringViewFromString(entry)
	var reqPtr unsafe.Pointer
	if req != nil {
		reqPtr = unsafe.Pointer(req)
	}
	pv := abi.ByteViewFromBytes(payload)
	return invoke(h.vtable.Handle,
		uintptr(h.info.PluginCtx),
		uintptr(sid),
		uintptr(ev.Ptr), uintptr(ev.Len),
		uintptr(reqPtr),
		uintptr(pv.Ptr), uintptr(pv.Len),
	)
}

// HandleRaw calls the plugin's HandleRaw entry point, used by
// CallRaw/CallRawFast where no structured Request is built.
func (h *Handle) HandleRaw(sid uint64, entry string, payload []byte) abi.Status {
	ev := abi.StringViewFromString(entry)
	pv := abi.ByteViewFromBytes(payload)
	return invoke(h.vtable.HandleRaw,
		uintptr(h.info.PluginCtx),
		uintptr(sid),
		uintptr(ev.Ptr), uintptr(ev.Len),
		uintptr(pv.Ptr), uintptr(pv.Len),
	)
}

// StreamData calls the plugin's StreamData entry point, delivering one
// more frame of caller-sent stream data for an already-open SID.
func (h *Handle) StreamData(sid uint64, payload []byte) abi.Status {
	pv := abi.ByteViewFromBytes(payload)
	return invoke(h.vtable.StreamData,
		uintptr(h.info.PluginCtx),
		uintptr(sid),
		uintptr(pv.Ptr), uintptr(pv.Len),
	)
}

// StreamClose calls the plugin's StreamClose entry point, informing it the
// caller side of an open stream is done sending.
func (h *Handle) StreamClose(sid uint64) abi.Status {
	return invoke(h.vtable.StreamClose, uintptr(h.info.PluginCtx), uintptr(sid))
}

// Shutdown calls the plugin's Shutdown entry point. It does not release the
// dynamic library handle; call Unload for that.
func (h *Handle) Shutdown() {
	if h.vtable.Shutdown == 0 {
		return
	}
	purego.SyscallN(h.vtable.Shutdown, uintptr(h.info.PluginCtx))
}

// Unload calls Shutdown and then releases the dynamic library handle. The
// Handle must not be used afterward. In-process handles (see
// NewInProcess) were never dlopen'd, so there is nothing to release.
func (h *Handle) Unload() error {
	h.Shutdown()
	if h.lib == 0 {
		return nil
	}
	return purego.Dlclose(h.lib)
}
