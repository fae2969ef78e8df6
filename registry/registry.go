// Package registry implements the Completion Registry: a sharded, keyed
// container mapping a live SID to either a one-shot unary slot or a
// multi-frame stream sink, plus the thread-affine fast-path slot used by
// the *_fast call variants.
package registry

import (
	"sync"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/internal/shard"
	"github.com/nylonring/nylon-ring-host/ringerr"
)

// Delivery is a single (status, owned bytes) pair handed to a waiting
// consumer.
type Delivery struct {
	Status  abi.Status
	Payload []byte
}

// completion is the tagged union described by the spec's Data Model: an SID
// lives in the registry as exactly one shape, unary or stream, and never
// changes shape.
type completion struct {
	unary  *unarySlot
	stream *StreamSink
}

type unarySlot struct {
	ch chan Delivery
}

// Registry is the sharded SID → completion map.
type Registry struct {
	shards [shard.Count]registryShard
}

type registryShard struct {
	mu    sync.Mutex
	items map[uint64]*completion
}

// New creates an empty Registry with all shards initialized.
func New() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].items = make(map[uint64]*completion)
	}
	return r
}

func (r *Registry) shardFor(sid uint64) *registryShard {
	return &r.shards[shard.Index(sid)]
}

// RegisterUnary inserts a fresh unary slot for sid. Fails with
// ringerr.KindInternal (a defect: should be unreachable given the
// allocator's uniqueness contract) if sid is already present.
func (r *Registry) RegisterUnary(sid uint64) (chan Delivery, error) {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[sid]; exists {
		return nil, ringerr.NewInternal("sid already registered", nil)
	}
	ch := make(chan Delivery, 1)
	s.items[sid] = &completion{unary: &unarySlot{ch: ch}}
	return ch, nil
}

// RegisterStream inserts a fresh stream sink for sid, returning the sink so
// the Dispatcher can hand a receiver to the caller.
func (r *Registry) RegisterStream(sid uint64) (*StreamSink, error) {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[sid]; exists {
		return nil, ringerr.NewInternal("sid already registered", nil)
	}
	sink := newStreamSink()
	s.items[sid] = &completion{stream: sink}
	return sink, nil
}

// TakeUnary atomically removes and returns the unary slot for sid, if
// present. Used by the router on delivery and by the fast-path call variants
// to drop their fallback registration.
func (r *Registry) TakeUnary(sid uint64) (chan Delivery, bool) {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.items[sid]
	if !ok || c.unary == nil {
		return nil, false
	}
	delete(s.items, sid)
	return c.unary.ch, true
}

// lookup returns sid's completion of either shape without removing it, or
// nil if sid is not registered.
func (r *Registry) lookup(sid uint64) *completion {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.items[sid]
}

// WithStream invokes f with the stream sink for sid, if one is registered.
// Returns false if no stream sink is registered for sid (either it was
// never a stream, or it has already been removed after a terminal
// delivery).
func (r *Registry) WithStream(sid uint64, f func(*StreamSink)) bool {
	c := r.lookup(sid)
	if c == nil || c.stream == nil {
		return false
	}
	f(c.stream)
	return true
}

// removeIfStream deletes sid's registry entry, but only if it is currently a
// stream completion. Called by the router after delivering a terminal
// status to a stream sink.
func (r *Registry) removeIfStream(sid uint64) {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.items[sid]; ok && c.stream != nil {
		delete(s.items, sid)
	}
}

// RemoveIfStream is the exported form of removeIfStream, used by the router
// package after delivering a terminal status to a stream sink.
func (r *Registry) RemoveIfStream(sid uint64) {
	r.removeIfStream(sid)
}

// Remove unconditionally drops sid's registry entry, regardless of shape.
// Used by the dispatcher when Handle rejects a call synchronously, and by
// the router after a fast-slot delivery.
func (r *Registry) Remove(sid uint64) {
	s := r.shardFor(sid)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, sid)
}

// Has reports whether sid currently has a live completion of any shape.
// Used by SendStreamData/CloseStream to reject a SID with no open
// completion, and by tests.
func (r *Registry) Has(sid uint64) bool {
	return r.lookup(sid) != nil
}

// ShardLoad returns the current item count of each shard, for diagnostics.
func (r *Registry) ShardLoad() [shard.Count]int {
	var out [shard.Count]int
	for i := range r.shards {
		r.shards[i].mu.Lock()
		out[i] = len(r.shards[i].items)
		r.shards[i].mu.Unlock()
	}
	return out
}

// Entry describes one live registry completion for diagnostics purposes.
type Entry struct {
	SID   uint64
	Shape string // "unary" or "stream"
}

// Walk visits every live completion, one shard at a time under that
// shard's own lock, never holding more than one shard's lock at once. Used
// by the diagnostics snapshot; not on any call's hot path.
func (r *Registry) Walk() []Entry {
	var out []Entry
	for i := range r.shards {
		r.shards[i].mu.Lock()
		for sid, c := range r.shards[i].items {
			shape := "unary"
			if c.stream != nil {
				shape = "stream"
			}
			out = append(out, Entry{SID: sid, Shape: shape})
		}
		r.shards[i].mu.Unlock()
	}
	return out
}
