// Package diag implements a CBOR-encoded diagnostics snapshot of an
// Engine's live SIDs and shard load, for shipping to an external
// observability sink or dumping to a file for postmortem debugging. It
// does not touch the ABI payload format; it only serializes host-side
// bookkeeping metadata.
package diag

import (
	"time"

	"github.com/fxamacker/cbor/v2"

	"github.com/nylonring/nylon-ring-host/internal/shard"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/state"
)

// SIDInfo describes one live call's bookkeeping state.
type SIDInfo struct {
	SID           uint64 `cbor:"sid"`
	Shape         string `cbor:"shape"`
	StateKeyCount int    `cbor:"state_key_count"`
}

// Report is a point-in-time snapshot of an Engine's live SIDs and shard
// load.
type Report struct {
	LiveSIDs    []SIDInfo        `cbor:"live_sids"`
	ShardLoad   [shard.Count]int `cbor:"shard_load"`
	GeneratedAt time.Time        `cbor:"generated_at"`
}

// Snapshot walks every registry shard and the state store, one shard at a
// time under that shard's own lock, and produces a Report. It never holds
// more than one shard's lock at once, so it does not block the hot call
// path for more than a single shard's worth of work.
func Snapshot(reg *registry.Registry, store *state.Store, now time.Time) *Report {
	entries := reg.Walk()
	sids := make([]SIDInfo, 0, len(entries))
	for _, e := range entries {
		sids = append(sids, SIDInfo{
			SID:           e.SID,
			Shape:         e.Shape,
			StateKeyCount: store.KeyCount(e.SID),
		})
	}
	return &Report{
		LiveSIDs:    sids,
		ShardLoad:   reg.ShardLoad(),
		GeneratedAt: now,
	}
}

// Marshal encodes a Report as CBOR.
func Marshal(r *Report) ([]byte, error) {
	return cbor.Marshal(r)
}

// Unmarshal decodes a CBOR-encoded Report, for tooling that reads a
// dumped snapshot back.
func Unmarshal(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
