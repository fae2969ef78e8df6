// Package router implements the Callback Router: the send_result,
// set_state, and get_state entry points plugins invoke through the host
// vtable, plus the routing waterfall and terminal-state cleanup that make
// those calls correct across threads.
package router

import (
	"log/slog"
	"unsafe"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/barrier"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/state"
)

// Router wires the Completion Registry and State Store together with the
// panic barrier to implement the spec's routing waterfall.
type Router struct {
	reg    *registry.Registry
	store  *state.Store
	logger *slog.Logger
}

// New creates a Router over the given registry and state store.
func New(reg *registry.Registry, store *state.Store, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{reg: reg, store: store, logger: logger}
}

// SendResult is the Go-typed implementation of the ABI's send_result,
// running the routing waterfall under barrier.Guard. The plugin loader
// exports SendResultABI, which forwards here, as the C-callable function
// pointer via purego.NewCallback (see the plugin package).
func (r *Router) SendResult(sid uint64, status abi.Status, payload abi.ByteView) {
	barrier.Guard(r.logger, true, sid, r.onPanicDuringDelivery, func() abi.Status {
		r.route(sid, status, payload.Bytes())
		return abi.StatusOk
	})
}

// onPanicDuringDelivery converts an unwind observed while routing a
// delivery into a terminal Err delivery on the same SID, per the spec.
func (r *Router) onPanicDuringDelivery(sid uint64, _ any) {
	r.route(sid, abi.StatusErr, nil)
}

// route implements the routing waterfall: TLS fast-path slot, then sharded
// unary registry, then sharded stream registry, then silent drop.
func (r *Router) route(sid uint64, status abi.Status, payload []byte) {
	d := registry.Delivery{Status: status, Payload: payload}

	// Step 1: TLS fast-path slot of the current thread. A fast-slot
	// delivery is always the one-shot completion of a unary call, so the
	// fallback sharded registration and any per-SID state are cleaned up
	// regardless of status, the same way step 2 below does for a unary
	// delivery that missed the fast path.
	if registry.TryDeliverFastSlot(sid, d) {
		r.reg.Remove(sid)
		r.store.Complete(sid)
		return
	}

	// Step 2: sharded unary registry.
	if ch, ok := r.reg.TakeUnary(sid); ok {
		select {
		case ch <- d:
		default:
			// Invariant 3: a unary slot receives at most one delivery;
			// the channel has capacity 1 and was just taken, so this
			// branch is unreachable in practice, but never block the
			// delivering plugin thread under any circumstance.
		}
		r.store.Complete(sid)
		return
	}

	// Step 3: sharded stream registry. On a terminal status the registry
	// entry and per-SID state are removed before the frame is pushed, so a
	// consumer that has read the terminal frame never still sees either.
	delivered := r.reg.WithStream(sid, func(sink *registry.StreamSink) {
		if status.Terminal() {
			r.reg.RemoveIfStream(sid)
			r.store.Complete(sid)
		}
		sink.Push(d)
	})
	if delivered {
		return
	}

	// Step 4: drop silently. send_result on an unknown/already-terminal
	// SID is a documented no-op.
}

// SetState is the Go-typed implementation of the ABI's set_state.
func (r *Router) SetState(sid uint64, key string, value []byte) []byte {
	return barrier.GuardValue(r.logger, []byte(nil), func() []byte {
		return r.store.Set(sid, key, value)
	})
}

// GetState is the Go-typed implementation of the ABI's get_state.
func (r *Router) GetState(sid uint64, key string) []byte {
	return barrier.GuardValue(r.logger, []byte(nil), func() []byte {
		return r.store.Get(sid, key)
	})
}

// SendResultABI is the raw, C-ABI-shaped entry point registered with
// purego.NewCallback by the plugin loader: all arguments are primitive/
// pointer-width types so purego can marshal a genuine C call into it.
func (r *Router) SendResultABI(hostCtx unsafe.Pointer, sid uint64, status uint32, payloadPtr unsafe.Pointer, payloadLen uint64) {
	r.SendResult(sid, abi.Status(status), abi.ByteView{Ptr: payloadPtr, Len: payloadLen})
}

// SetStateABI is the raw C-ABI entry point for set_state. It returns the
// prior value as a (ptr, len) pair backed by Router-owned memory, valid
// until the next mutation on the same (sid, key) as documented on
// state.Store.Set.
func (r *Router) SetStateABI(hostCtx unsafe.Pointer, sid uint64, keyPtr unsafe.Pointer, keyLen uint32, valPtr unsafe.Pointer, valLen uint64) abi.ByteView {
	key := abi.StringView{Ptr: keyPtr, Len: keyLen}.String()
	val := abi.ByteView{Ptr: valPtr, Len: valLen}.Bytes()
	prior := r.SetState(sid, key, val)
	return abi.ByteViewFromBytes(prior)
}

// GetStateABI is the raw C-ABI entry point for get_state.
func (r *Router) GetStateABI(hostCtx unsafe.Pointer, sid uint64, keyPtr unsafe.Pointer, keyLen uint32) abi.ByteView {
	key := abi.StringView{Ptr: keyPtr, Len: keyLen}.String()
	val := r.GetState(sid, key)
	return abi.ByteViewFromBytes(val)
}
