//go:build !linux

package registry

import (
	"bytes"
	"runtime"
	"strconv"
)

// currentThreadID falls back to the calling goroutine's id on platforms
// without a cheap Gettid syscall. It is slow (parses runtime.Stack output)
// and is only a correctness fallback for non-Linux development and CI
// hosts; it is not the production hot path, which targets Linux.
func currentThreadID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	b := buf[:n]
	const prefix = "goroutine "
	if i := bytes.Index(b, []byte(prefix)); i >= 0 {
		b = b[i+len(prefix):]
		if sp := bytes.IndexByte(b, ' '); sp >= 0 {
			b = b[:sp]
		}
		if v, err := strconv.ParseUint(string(b), 10, 64); err == nil {
			return v
		}
	}
	return 0
}
