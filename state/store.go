// Package state implements the per-SID key→value State Store exposed to
// plugins through the host extension vtable.
package state

import (
	"sync"

	"github.com/nylonring/nylon-ring-host/internal/shard"
)

// Store is the sharded SID → ordered key/value map.
type Store struct {
	shards [shard.Count]storeShard
}

type storeShard struct {
	mu    sync.Mutex
	inner map[uint64]*sidState
}

// sidState is one SID's key→value bag. keys preserves insertion order so a
// future introspection/debug dump can present state deterministically;
// values holds the current owned buffer per key.
type sidState struct {
	keys   []string
	values map[string][]byte
}

func newSidState() *sidState {
	return &sidState{values: make(map[string][]byte)}
}

// New creates an empty Store with all shards initialized.
func New() *Store {
	s := &Store{}
	for i := range s.shards {
		s.shards[i].inner = make(map[uint64]*sidState)
	}
	return s
}

func (s *Store) shardFor(sid uint64) *storeShard {
	return &s.shards[shard.Index(sid)]
}

// Set stores value under key for sid, creating the inner map on first
// write, and returns the prior value for key as an owned copy (or nil if
// there was none). The returned buffer is valid until the next mutation on
// the same (sid, key), or SID completion, per the ABI extension's
// documented ownership rule.
func (s *Store) Set(sid uint64, key string, value []byte) (prior []byte) {
	sh := s.shardFor(sid)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.inner[sid]
	if !ok {
		st = newSidState()
		sh.inner[sid] = st
	}

	prior, hadPrior := st.values[key]
	owned := make([]byte, len(value))
	copy(owned, value)
	if !hadPrior {
		st.keys = append(st.keys, key)
	}
	st.values[key] = owned
	return prior
}

// Get returns the current value for key under sid, or nil if absent. The
// returned slice aliases Store-owned memory and is valid only until the
// next mutation on (sid, key) or SID completion; callers that need to
// retain it must copy.
func (s *Store) Get(sid uint64, key string) []byte {
	sh := s.shardFor(sid)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.inner[sid]
	if !ok {
		return nil
	}
	return st.values[key]
}

// Complete destroys sid's inner map entirely. Called by the Router on
// terminal delivery (Invariant 2: state-store membership and registry
// membership rise and fall together).
func (s *Store) Complete(sid uint64) {
	sh := s.shardFor(sid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	delete(sh.inner, sid)
}

// KeyCount reports how many keys sid currently has, for diagnostics. Zero
// if sid has no state or is unknown.
func (s *Store) KeyCount(sid uint64) int {
	sh := s.shardFor(sid)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if st, ok := sh.inner[sid]; ok {
		return len(st.keys)
	}
	return 0
}
