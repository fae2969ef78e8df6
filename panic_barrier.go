package ring

import (
	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/barrier"
)

// invokePlugin wraps a single call into the plugin's vtable in the panic
// barrier. A panicking plugin entry is converted to abi.StatusErr for the
// immediate caller, and — since the completion for sid may already be
// registered by the time Handle/HandleRaw is invoked — also delivered as a
// terminal Err through the router's own waterfall, so nothing is left
// waiting on a SID whose owning call never returns normally.
func (e *Engine) invokePlugin(sid uint64, f func() abi.Status) abi.Status {
	return barrier.Guard(e.logger, true, sid, func(sid uint64, _ any) {
		e.router.SendResult(sid, abi.StatusErr, abi.ByteView{})
	}, f)
}
