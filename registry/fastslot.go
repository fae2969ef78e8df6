package registry

import (
	"runtime"
	"sync"
)

// FastSlot is the thread-affine, lock-minimal parking spot used by
// call_response_fast. Go has no first-class thread-local storage, so the
// "current thread" the spec refers to is realized via the calling OS
// thread's id (see fastslot_linux.go / fastslot_other.go), combined with
// runtime.LockOSThread to pin the goroutine to that thread for the
// duration of the fast call — the same mechanism the fast-path contract
// itself requires ("handlers invoked via *_fast must deliver their
// send_result from the calling thread before returning").
type FastSlot struct {
	sid      uint64
	delivery Delivery
	ready    bool
}

// fastSlotTable is the process-wide table of per-OS-thread fast slots,
// split into 64 shards by thread id modulo the shard count to keep
// contention low even though in practice each entry is touched almost
// exclusively by its own owning thread.
type fastSlotTable struct {
	shards [tidShardCount]fastSlotShard
}

type fastSlotShard struct {
	mu    sync.Mutex
	slots map[uint64]*FastSlot
}

const tidShardCount = 64

var globalFastSlots = newFastSlotTable()

func newFastSlotTable() *fastSlotTable {
	t := &fastSlotTable{}
	for i := range t.shards {
		t.shards[i].slots = make(map[uint64]*FastSlot)
	}
	return t
}

func (t *fastSlotTable) shardFor(tid uint64) *fastSlotShard {
	return &t.shards[tid%tidShardCount]
}

// PinFastSlot locks the calling goroutine to its current OS thread and
// parks a fresh FastSlot for sid under that thread's id. The returned
// unpin function must be called (typically via defer) once the fast call
// completes, which also unlocks the OS thread.
func PinFastSlot(sid uint64) (slot *FastSlot, unpin func()) {
	runtime.LockOSThread()
	tid := currentThreadID()
	s := globalFastSlots.shardFor(tid)

	slot = &FastSlot{sid: sid}
	s.mu.Lock()
	s.slots[tid] = slot
	s.mu.Unlock()

	return slot, func() {
		s.mu.Lock()
		if s.slots[tid] == slot {
			delete(s.slots, tid)
		}
		s.mu.Unlock()
		runtime.UnlockOSThread()
	}
}

// TryDeliverFastSlot is step 1 of the router's waterfall: it checks the
// delivering goroutine's own OS thread for a pinned slot whose SID matches
// sid. Returns true if it delivered there.
func TryDeliverFastSlot(sid uint64, d Delivery) bool {
	tid := currentThreadID()
	s := globalFastSlots.shardFor(tid)

	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[tid]
	if !ok || slot.sid != sid || slot.ready {
		return false
	}
	slot.delivery = d
	slot.ready = true
	return true
}

// Poll returns the delivery parked in the slot, if any has arrived yet.
func (s *FastSlot) Poll() (Delivery, bool) {
	// ready only ever goes from false to true, and only the delivering
	// thread (which by fast-path contract is this same pinned
	// thread) writes it, so a plain read here is safe without extra
	// synchronization beyond what PinFastSlot's LockOSThread already gives
	// this goroutine over its own slot's lifetime.
	if s.ready {
		return s.delivery, true
	}
	return Delivery{}, false
}
