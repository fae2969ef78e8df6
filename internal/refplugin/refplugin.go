// Package refplugin is a minimal in-process reference plugin used by the
// demo command and by package tests that exercise a full host/plugin round
// trip without compiling a real shared object. It registers a small set of
// named handlers the way examples/testplugin in the teacher corpus
// registers capability handlers, but speaks nylon-ring's vtable-based ABI
// directly instead of a framed wire protocol.
package refplugin

import (
	"unsafe"

	"github.com/ebitengine/purego"

	"github.com/nylonring/nylon-ring-host/abi"
)

// Plugin is the reference plugin's state: the host vtables handed to it at
// Init, and its table of sample entry points.
type Plugin struct {
	hostVTable    *abi.HostVTable
	hostExtVTable *abi.HostExtVTable

	info   abi.PluginInfo
	vtable abi.PluginVTable
}

// New builds a Plugin and wraps its vtable entries as C-callable function
// pointers via purego.NewCallback, returning the abi.PluginInfo a host's
// plugin.NewInProcess (or a real dlopen'd discovery symbol) would hand
// back.
func New() *Plugin {
	p := &Plugin{}
	p.vtable = abi.PluginVTable{
		Init:        purego.NewCallback(p.init),
		Handle:      purego.NewCallback(p.handle),
		HandleRaw:   purego.NewCallback(p.handleRaw),
		StreamData:  purego.NewCallback(p.streamData),
		StreamClose: purego.NewCallback(p.streamClose),
		Shutdown:    purego.NewCallback(p.shutdown),
	}
	p.info = abi.PluginInfo{
		AbiVersion: abi.AbiVersion1,
		StructSize: uint32(unsafe.Sizeof(abi.PluginInfo{})),
		Name:       abi.StringViewFromString("nylon-ring-refplugin"),
		Version:    abi.StringViewFromString("0.1.0"),
		VTable:     &p.vtable,
	}
	return p
}

// Info returns the PluginInfo to pass to plugin.NewInProcess.
func (p *Plugin) Info() *abi.PluginInfo { return &p.info }

func (p *Plugin) init(_pluginCtx, hostVTable, hostExtVTable uintptr) uint32 {
	p.hostVTable = (*abi.HostVTable)(unsafe.Pointer(hostVTable))
	p.hostExtVTable = (*abi.HostExtVTable)(unsafe.Pointer(hostExtVTable))
	return uint32(abi.StatusOk)
}

// handle dispatches by entry name. Supported entries:
//
//   - "echo": sends the payload back unchanged from the calling thread,
//     before Handle returns, honoring the fast-path same-thread delivery
//     contract.
//   - "echo-async": sends the payload back unchanged, but from a freshly
//     spawned goroutine rather than the calling thread, after Handle has
//     already returned — this deliberately violates the fast-path
//     contract, to exercise the sharded fallback delivery path.
//   - "counter-stream": opens a stream; each subsequent StreamData call
//     increments a per-SID "seq" state key (starting at 1) and pushes the
//     new count back as one frame, exercising the state store's per-SID
//     scoping across several calls on the same SID.
//   - "stream5": spawns a goroutine that delivers five frames, then a
//     terminal StreamEnd, exercising the streaming path end to end.
//   - "boom": panics, to exercise the host-side panic barrier's terminal
//     Err conversion.
//
// Any other entry returns Invalid.
func (p *Plugin) handle(_pluginCtx uintptr, sid uint64, entryPtr uintptr, entryLen uint32, _req uintptr, payloadPtr uintptr, payloadLen uint64) uint32 {
	entry := abi.StringView{Ptr: unsafe.Pointer(entryPtr), Len: entryLen}.String()
	payload := abi.ByteView{Ptr: unsafe.Pointer(payloadPtr), Len: payloadLen}.Bytes()
	return p.dispatch(sid, entry, payload)
}

// handleRaw dispatches the same entry table as handle, for callers that go
// through CallRaw/CallRawFast and never build a structured Request.
func (p *Plugin) handleRaw(_pluginCtx uintptr, sid uint64, entryPtr uintptr, entryLen uint32, payloadPtr uintptr, payloadLen uint64) uint32 {
	entry := abi.StringView{Ptr: unsafe.Pointer(entryPtr), Len: entryLen}.String()
	payload := abi.ByteView{Ptr: unsafe.Pointer(payloadPtr), Len: payloadLen}.Bytes()
	return p.dispatch(sid, entry, payload)
}

func (p *Plugin) dispatch(sid uint64, entry string, payload []byte) uint32 {
	switch entry {
	case "echo":
		p.sendResult(sid, abi.StatusOk, payload)
	case "echo-async":
		// The payload view is only valid for the duration of this call, so
		// copy it before handing it to a goroutine that outlives the call.
		owned := append([]byte(nil), payload...)
		go p.sendResult(sid, abi.StatusOk, owned)
	case "counter-stream":
		// Nothing to do yet; the caller drives increments via StreamData.
	case "stream5":
		go p.runStream(sid)
	case "boom":
		panic("refplugin: intentional handler panic")
	default:
		return uint32(abi.StatusInvalid)
	}
	return uint32(abi.StatusOk)
}

func (p *Plugin) streamData(_pluginCtx uintptr, sid uint64, _payloadPtr uintptr, _payloadLen uint64) uint32 {
	prior := p.getState(sid, "seq")
	next := byte(1)
	if len(prior) == 1 {
		next = prior[0] + 1
	}
	p.setState(sid, "seq", []byte{next})
	p.sendResult(sid, abi.StatusOk, []byte{next})
	return uint32(abi.StatusOk)
}

func (p *Plugin) runStream(sid uint64) {
	for i := byte(1); i <= 5; i++ {
		p.sendResult(sid, abi.StatusOk, []byte{i})
	}
	p.sendResult(sid, abi.StatusStreamEnd, nil)
}

func (p *Plugin) streamClose(_pluginCtx uintptr, sid uint64) uint32 {
	return uint32(abi.StatusOk)
}

func (p *Plugin) shutdown(_pluginCtx uintptr) {}

func (p *Plugin) sendResult(sid uint64, status abi.Status, payload []byte) {
	pv := abi.ByteViewFromBytes(payload)
	purego.SyscallN(p.hostVTable.SendResult,
		0, uintptr(sid), uintptr(status), uintptr(pv.Ptr), uintptr(pv.Len),
	)
}

func (p *Plugin) setState(sid uint64, key string, value []byte) {
	kv := abi.StringViewFromString(key)
	vv := abi.ByteViewFromBytes(value)
	purego.SyscallN(p.hostExtVTable.SetState,
		0, uintptr(sid), uintptr(kv.Ptr), uintptr(kv.Len), uintptr(vv.Ptr), uintptr(vv.Len),
	)
}

func (p *Plugin) getState(sid uint64, key string) []byte {
	kv := abi.StringViewFromString(key)
	r1, r2, _ := purego.SyscallN(p.hostExtVTable.GetState,
		0, uintptr(sid), uintptr(kv.Ptr), uintptr(kv.Len),
	)
	return abi.ByteView{Ptr: unsafe.Pointer(r1), Len: uint64(r2)}.Bytes()
}
