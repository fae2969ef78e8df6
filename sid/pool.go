package sid

import "sync"

// syncPool adapts sync.Pool to the pool interface used by Allocator.
type syncPool struct {
	p sync.Pool
}

func newSyncPool() *syncPool {
	return &syncPool{p: sync.Pool{New: func() any { return &band{} }}}
}

func (s *syncPool) get() *band {
	return s.p.Get().(*band)
}

func (s *syncPool) put(b *band) {
	s.p.Put(b)
}
