// Package abi defines the layout-frozen value types and vtable shapes that
// cross the nylon-ring host/plugin FFI boundary. Every type here must keep
// the exact field order, width, and padding of its C counterpart: this file
// is the one audit point for wire compatibility between independently
// compiled hosts and plugins.
package abi

import "unsafe"

// AbiVersion1 is the only ABI version this host currently speaks.
const AbiVersion1 uint32 = 1

// DiscoverySymbolV1 is the exported C symbol a plugin shared library must
// provide so the host can find its PluginInfo.
const DiscoverySymbolV1 = "nylon_ring_get_plugin_v1"

// Status is the closed set of outcomes a plugin call can report. Wire-sized
// as a 32-bit unsigned integer; values are fixed by the ABI contract and
// must never be renumbered.
type Status uint32

const (
	StatusOk          Status = 0
	StatusErr         Status = 1
	StatusInvalid     Status = 2
	StatusUnsupported Status = 3
	StatusStreamEnd   Status = 4
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusErr:
		return "Err"
	case StatusInvalid:
		return "Invalid"
	case StatusUnsupported:
		return "Unsupported"
	case StatusStreamEnd:
		return "StreamEnd"
	default:
		return "Unknown"
	}
}

// Terminal reports whether status ends a stream: Err, Invalid, Unsupported
// and StreamEnd are terminal, Ok is not. A unary call is completed by its
// single delivery whatever its status, so unary routing does not consult
// Terminal.
func (s Status) Terminal() bool {
	switch s {
	case StatusErr, StatusInvalid, StatusUnsupported, StatusStreamEnd:
		return true
	default:
		return false
	}
}

// StringView is a non-owning UTF-8 string slice: 16 bytes, 8-byte aligned.
// Layout: ptr (8) + len (4) + padding (4) = 16.
type StringView struct {
	Ptr unsafe.Pointer
	Len uint32
	_   [4]byte
}

// String copies the view's bytes into a Go string. The view must still be
// valid (i.e. the call or callback that produced it must not have returned).
func (s StringView) String() string {
	if s.Ptr == nil || s.Len == 0 {
		return ""
	}
	return string(unsafe.Slice((*byte)(s.Ptr), int(s.Len)))
}

// StringViewFromString builds a view over a Go string's bytes. The returned
// view is only valid as long as the backing string is kept alive and
// unmoved by the caller; it must not be retained past the call it is passed
// into.
func StringViewFromString(s string) StringView {
	if len(s) == 0 {
		return StringView{}
	}
	return StringView{Ptr: unsafe.Pointer(unsafe.StringData(s)), Len: uint32(len(s))}
}

// ByteView is a non-owning byte slice with a 64-bit length: 16 bytes.
type ByteView struct {
	Ptr unsafe.Pointer
	Len uint64
}

// Bytes copies the view's contents into an owned Go slice. Consumers that
// need to retain a payload past the call/callback that delivered it must
// call this rather than holding onto the view.
func (b ByteView) Bytes() []byte {
	if b.Ptr == nil || b.Len == 0 {
		return nil
	}
	out := make([]byte, b.Len)
	copy(out, unsafe.Slice((*byte)(b.Ptr), int(b.Len)))
	return out
}

// ByteViewFromBytes builds a view over a Go byte slice. Same validity
// caveats as StringViewFromString.
func ByteViewFromBytes(b []byte) ByteView {
	if len(b) == 0 {
		return ByteView{}
	}
	return ByteView{Ptr: unsafe.Pointer(&b[0]), Len: uint64(len(b))}
}

// Header is a single key/value pair of string views: 32 bytes.
type Header struct {
	Key   StringView
	Value StringView
}

// Request carries non-owning views of method, path, query and a contiguous
// header array, plus reserved words for additive extension within ABI
// version 1. Total size: 72 bytes.
type Request struct {
	Method      StringView
	Path        StringView
	Query       StringView
	Headers     *Header
	HeaderCount uint32
	Reserved0   uint32
	Reserved1   uint64
}

// HeaderSlice returns a Go slice view over the Request's header array. The
// slice aliases plugin-owned memory and must not be retained.
func (r *Request) HeaderSlice() []Header {
	if r.Headers == nil || r.HeaderCount == 0 {
		return nil
	}
	return unsafe.Slice(r.Headers, int(r.HeaderCount))
}

// HostVTable is the single-entry callback table the host hands the plugin
// at Init time. SendResult is a raw code pointer resolved via the FFI
// loader (purego.NewCallback over the router package's exported entry
// point) so it remains callable from any plugin thread for the life of the
// load.
type HostVTable struct {
	SendResult uintptr
}

// HostExtVTable is the state-store extension table. The host passes a
// pointer to it as the third argument of the plugin's Init entry point
// (see plugin.Handle.Init); there is no separate resolver function for it.
type HostExtVTable struct {
	SetState uintptr
	GetState uintptr
}

// PluginVTable is the function table a plugin exports. HandleRaw,
// StreamData, and StreamClose may be the zero uintptr, meaning "not
// implemented"; callers observe that as Unsupported.
type PluginVTable struct {
	Init        uintptr
	Handle      uintptr
	HandleRaw   uintptr
	StreamData  uintptr
	StreamClose uintptr
	Shutdown    uintptr
}

// PluginInfo is the metadata block a plugin's discovery symbol returns a
// pointer to.
type PluginInfo struct {
	AbiVersion uint32
	StructSize uint32
	Name       StringView
	Version    StringView
	PluginCtx  unsafe.Pointer
	VTable     *PluginVTable
}

// CheckCompat implements the ABI compatibility rule: the version must match
// exactly and the reported struct size must be at least as large as this
// host's own PluginInfo, so additive fields a newer plugin appends are
// simply ignored rather than causing a layout mismatch.
func CheckCompat(info *PluginInfo) error {
	if info == nil {
		return errNilPluginInfo
	}
	if info.AbiVersion != AbiVersion1 {
		return &AbiMismatchError{Reason: "unsupported abi_version", Got: info.AbiVersion, Want: AbiVersion1}
	}
	if uintptr(info.StructSize) < unsafe.Sizeof(PluginInfo{}) {
		return &AbiMismatchError{Reason: "struct_size too small", Got: uint32(info.StructSize), Want: uint32(unsafe.Sizeof(PluginInfo{}))}
	}
	return nil
}

// AbiMismatchError reports a failed ABI compatibility check.
type AbiMismatchError struct {
	Reason string
	Got    uint32
	Want   uint32
}

func (e *AbiMismatchError) Error() string {
	return "abi mismatch: " + e.Reason
}

var errNilPluginInfo = &AbiMismatchError{Reason: "nil plugin info"}
