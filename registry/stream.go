package registry

import (
	"context"
	"sync"
)

// StreamSink is an unbounded multi-producer/single-consumer queue of
// deliveries for one SID, plus a closed flag. Producers (plugin threads,
// via the router) call Push; the one consumer (the caller's StreamReceiver)
// calls Next. Waiters wake via a channel that is swapped out on every push
// or close, rather than a sync.Cond, so Next can also select against a
// context's cancellation.
type StreamSink struct {
	mu     sync.Mutex
	queue  []Delivery
	closed bool
	wake   chan struct{}
}

func newStreamSink() *StreamSink {
	return &StreamSink{wake: make(chan struct{})}
}

// Push enqueues a delivery in call order and, if status is terminal, marks
// the sink closed so no further delivery is accepted. Returns false if the
// sink was already closed (the caller must silently drop the delivery per
// the spec's routing waterfall rule).
func (s *StreamSink) Push(d Delivery) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.queue = append(s.queue, d)
	if d.Status.Terminal() {
		s.closed = true
	}
	close(s.wake)
	s.wake = make(chan struct{})
	return true
}

// Next blocks until a delivery is available, the sink has been fully
// drained and closed (ok=false, err=nil), or ctx is done (err=ctx.Err()).
// Frames are returned in push order (P3: stream frame order equals
// send_result invocation order).
func (s *StreamSink) Next(ctx context.Context) (Delivery, bool, error) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			d := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			return d, true, nil
		}
		if s.closed {
			s.mu.Unlock()
			return Delivery{}, false, nil
		}
		w := s.wake
		s.mu.Unlock()

		select {
		case <-w:
		case <-ctx.Done():
			return Delivery{}, false, ctx.Err()
		}
	}
}

// Closed reports whether the sink has received its terminal delivery and
// been fully drained.
func (s *StreamSink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && len(s.queue) == 0
}
