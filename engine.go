// Package ring implements the Call Dispatcher: the public entry points a
// host program uses to invoke a loaded plugin under nylon-ring's three call
// patterns, bundling the SID allocator, completion registry, state store,
// and loaded plugin handle into a single Engine.
package ring

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/barrier"
	"github.com/nylonring/nylon-ring-host/diag"
	"github.com/nylonring/nylon-ring-host/plugin"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/ringerr"
	"github.com/nylonring/nylon-ring-host/router"
	"github.com/nylonring/nylon-ring-host/sid"
	"github.com/nylonring/nylon-ring-host/state"
)

// Engine bundles the host-side machinery for one loaded plugin: SID
// allocation, the completion registry, per-SID state, and the dispatcher's
// view of the plugin's vtable.
type Engine struct {
	alloc  *sid.Allocator
	reg    *registry.Registry
	store  *state.Store
	router *router.Router
	plugin *plugin.Handle
	logger *slog.Logger
	cfg    Config
}

// New loads the plugin at path and returns a ready Engine. The plugin's
// Init entry point is called before New returns; a non-Ok status from Init
// is reported as ringerr.PluginRejected.
func New(path string, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()

	reg := registry.New()
	store := state.New()
	r := router.New(reg, store, cfg.Logger)

	h, err := plugin.Load(path, r, cfg.Logger)
	if err != nil {
		var mismatch *abi.AbiMismatchError
		if errors.As(err, &mismatch) {
			return nil, ringerr.NewAbiVersionMismatch("checking plugin "+path, err)
		}
		return nil, ringerr.NewLoadFailure("loading plugin "+path, err)
	}

	e := &Engine{
		alloc:  sid.NewAllocator(),
		reg:    reg,
		store:  store,
		router: r,
		plugin: h,
		logger: cfg.Logger,
		cfg:    cfg,
	}

	if err := runInit(h, cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// runInit calls h.Init under the panic barrier and converts a non-Ok status
// or recovered panic into ringerr.PluginRejected.
func runInit(h *plugin.Handle, cfg Config) error {
	status := barrier.Guard(cfg.Logger, false, 0, nil, h.Init)
	if status != abi.StatusOk {
		return ringerr.NewPluginRejected("plugin Init returned " + status.String())
	}
	return nil
}

// NewInProcess builds an Engine around a plugin.Handle constructed via
// plugin.NewInProcess, for the reference plugin used by cmd/nylonhostdemo
// and by package tests that don't want to compile and dlopen a real shared
// object. Unlike New, the caller builds the registry/state/router trio
// itself (via NewComponents) so it can hand the same router to
// plugin.NewInProcess before the Engine exists.
func NewInProcess(reg *registry.Registry, store *state.Store, r *router.Router, h *plugin.Handle, cfg Config) (*Engine, error) {
	cfg = cfg.withDefaults()
	e := &Engine{
		alloc:  sid.NewAllocator(),
		reg:    reg,
		store:  store,
		router: r,
		plugin: h,
		logger: cfg.Logger,
		cfg:    cfg,
	}
	if err := runInit(h, cfg); err != nil {
		return nil, err
	}
	return e, nil
}

// NewComponents creates a fresh registry, state store, and router, wired
// together, ready to be handed to plugin.NewInProcess and then NewInProcess
// above.
func NewComponents(cfg Config) (*registry.Registry, *state.Store, *router.Router) {
	cfg = cfg.withDefaults()
	reg := registry.New()
	store := state.New()
	return reg, store, router.New(reg, store, cfg.Logger)
}

// Unload shuts the plugin down and releases its dynamic library handle.
// The Engine must not be used afterward.
func (e *Engine) Unload() error {
	return e.plugin.Unload()
}

// PluginName returns the loaded plugin's self-reported name.
func (e *Engine) PluginName() string { return e.plugin.Name() }

// Logger returns the Engine's configured logger (Config.Logger), the same
// logger the Engine itself logs through. It carries no per-plugin fields.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Diagnostics returns a point-in-time CBOR-marshalable snapshot of the
// Engine's live SIDs and shard load.
func (e *Engine) Diagnostics() *diag.Report {
	return diag.Snapshot(e.reg, e.store, time.Now())
}

// withCallTimeout derives a context bounded by cfg.CallTimeout on top of
// ctx, for the suspending dispatcher operations (CallResponse/CallRaw and
// StreamReceiver.Next) to wait on. The returned cancel must always run, typically via
// defer, even when CallTimeout is unset and it does nothing.
func (e *Engine) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.cfg.CallTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, e.cfg.CallTimeout)
}
