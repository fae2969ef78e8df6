// Package plugin implements the FFI Loader: opening a plugin shared
// library, resolving its discovery symbol, checking ABI compatibility, and
// constructing the host vtables the plugin calls back through.
package plugin

import (
	"fmt"
	"log/slog"
	"unsafe"

	"github.com/ebitengine/purego"
	"github.com/google/uuid"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/router"
)

// discoverFn matches the C signature of the plugin's exported discovery
// symbol: a niladic function returning a pointer to a static PluginInfo.
type discoverFn func() uintptr

// Handle is a loaded plugin: its resolved vtable, ABI-checked metadata, and
// the dynamic library handle keeping its code pages mapped.
type Handle struct {
	lib       uintptr
	info      *abi.PluginInfo
	vtable    *abi.PluginVTable
	sessionID uuid.UUID
	logger    *slog.Logger

	hostVTable    abi.HostVTable
	hostExtVTable abi.HostExtVTable
}

// Load opens the shared library at path (cgo-free, via purego's dlopen
// wrapper), resolves its nylon_ring_get_plugin_v1 discovery symbol, checks
// ABI compatibility, and builds the host vtables bound to r so the plugin
// can call back into the router. It does not call the plugin's Init entry
// point; call Handle.Init for that.
func Load(path string, r *router.Router, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	lib, err := purego.Dlopen(path, purego.RTLD_NOW|purego.RTLD_GLOBAL)
	if err != nil {
		return nil, fmt.Errorf("nylon-ring: dlopen %s: %w", path, err)
	}

	var discover discoverFn
	purego.RegisterLibFunc(&discover, lib, abi.DiscoverySymbolV1)

	infoPtr := discover()
	if infoPtr == 0 {
		return nil, fmt.Errorf("nylon-ring: %s returned a null PluginInfo", abi.DiscoverySymbolV1)
	}
	info := (*abi.PluginInfo)(unsafe.Pointer(infoPtr))

	if err := abi.CheckCompat(info); err != nil {
		return nil, err
	}
	if info.VTable == nil {
		return nil, fmt.Errorf("nylon-ring: plugin %s exported a nil vtable", info.Name.String())
	}

	h := &Handle{
		lib:       lib,
		info:      info,
		vtable:    info.VTable,
		sessionID: uuid.New(),
		logger:    logger,
	}
	h.hostVTable = abi.HostVTable{
		SendResult: purego.NewCallback(r.SendResultABI),
	}
	h.hostExtVTable = abi.HostExtVTable{
		SetState: purego.NewCallback(r.SetStateABI),
		GetState: purego.NewCallback(r.GetStateABI),
	}

	logger.Info("nylon-ring: plugin loaded",
		"name", info.Name.String(),
		"version", info.Version.String(),
		"session_id", h.sessionID.String(),
	)
	return h, nil
}

// NewInProcess builds a Handle around a plugin that lives in the same
// process and address space as the host, skipping dlopen entirely. info's
// VTable slots are expected to be purego.NewCallback-wrapped Go functions
// (or zero, for unimplemented optional entries), exactly as a dlopen'd
// plugin's vtable slots would be real compiled code pointers. Used by the
// reference plugin in cmd/nylonhostdemo and by package tests that want a
// plugin without a compiled shared object.
func NewInProcess(info *abi.PluginInfo, r *router.Router, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := abi.CheckCompat(info); err != nil {
		return nil, err
	}
	if info.VTable == nil {
		return nil, fmt.Errorf("nylon-ring: in-process plugin %s has a nil vtable", info.Name.String())
	}

	h := &Handle{
		info:      info,
		vtable:    info.VTable,
		sessionID: uuid.New(),
		logger:    logger,
	}
	h.hostVTable = abi.HostVTable{
		SendResult: purego.NewCallback(r.SendResultABI),
	}
	h.hostExtVTable = abi.HostExtVTable{
		SetState: purego.NewCallback(r.SetStateABI),
		GetState: purego.NewCallback(r.GetStateABI),
	}
	return h, nil
}

// Name returns the plugin's self-reported name.
func (h *Handle) Name() string { return h.info.Name.String() }

// Version returns the plugin's self-reported version string.
func (h *Handle) Version() string { return h.info.Version.String() }

// SessionID returns the correlation id minted for this load. Load includes
// it in its "plugin loaded" log line; it is not attached to other log lines
// or to diagnostics reports.
func (h *Handle) SessionID() uuid.UUID { return h.sessionID }

// HostVTable returns the vtable pointer to pass to the plugin's Init entry
// point.
func (h *Handle) HostVTable() *abi.HostVTable { return &h.hostVTable }

// HostExtVTable returns the state-store extension vtable.
func (h *Handle) HostExtVTable() *abi.HostExtVTable { return &h.hostExtVTable }
