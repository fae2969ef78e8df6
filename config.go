package ring

import (
	"log/slog"
	"os"
	"time"
)

// Config tunes an Engine's behavior. The zero value is valid; withDefaults
// fills in every field a caller left unset.
type Config struct {
	// Logger receives structured logs for plugin loads, panics caught at
	// the FFI boundary, and fast-path contract violations. Defaults to
	// slog.Default().
	Logger *slog.Logger

	// CallTimeout bounds how long CallResponse/CallRaw and each
	// StreamReceiver.Next wait for a plugin's completion before returning
	// ringerr.Cancelled. Call and the *Fast variants do not apply it. Zero
	// means no timeout beyond the caller's own context.
	CallTimeout time.Duration

	// DisableFastPathWarn silences the warning CallResponseFast logs when
	// a plugin violates the same-thread delivery contract. Left false
	// (the zero value) the warning stays on, which is the useful default.
	DisableFastPathWarn bool
}

// withDefaults returns a copy of c with every unset field filled in from
// either a hardcoded default or the NYLON_RING_CALL_TIMEOUT_MS environment
// variable.
func (c Config) withDefaults() Config {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.CallTimeout == 0 {
		if ms, ok := envMillis("NYLON_RING_CALL_TIMEOUT_MS"); ok {
			c.CallTimeout = time.Duration(ms) * time.Millisecond
		}
	}
	return c
}

func envMillis(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n := 0
	for _, ch := range v {
		if ch < '0' || ch > '9' {
			return 0, false
		}
		n = n*10 + int(ch-'0')
	}
	return n, true
}
