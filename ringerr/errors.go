// Package ringerr defines the caller-visible error taxonomy for nylon-ring
// host operations, following the Type+Message-struct-with-constructors
// idiom used throughout the teacher corpus (HostError, PluginRepoError,
// CapHostRegistryError), generalized with error-wrapping support.
package ringerr

import "fmt"

// Kind is the closed set of caller-visible error categories.
type Kind string

const (
	KindLoadFailure        Kind = "LoadFailure"
	KindAbiVersionMismatch Kind = "AbiVersionMismatch"
	KindPluginRejected     Kind = "PluginRejected"
	KindInvalidEntryPoint  Kind = "InvalidEntryPoint"
	KindUnsupported        Kind = "Unsupported"
	KindStreamClosed       Kind = "StreamClosed"
	KindCancelled          Kind = "Cancelled"
	KindInternal           Kind = "Internal"
)

// RingError is the error type returned by the Engine's constructors and
// call operations.
type RingError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *RingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap lets errors.Is/errors.As see through to the wrapped cause.
func (e *RingError) Unwrap() error {
	return e.Cause
}

func new_(k Kind, msg string, cause error) *RingError {
	return &RingError{Kind: k, Message: msg, Cause: cause}
}

func NewLoadFailure(msg string, cause error) *RingError {
	return new_(KindLoadFailure, msg, cause)
}

func NewAbiVersionMismatch(msg string, cause error) *RingError {
	return new_(KindAbiVersionMismatch, msg, cause)
}

func NewPluginRejected(msg string) *RingError {
	return new_(KindPluginRejected, msg, nil)
}

func NewInvalidEntryPoint(entry string) *RingError {
	return new_(KindInvalidEntryPoint, fmt.Sprintf("unknown entry point %q", entry), nil)
}

func NewUnsupported(what string) *RingError {
	return new_(KindUnsupported, what, nil)
}

func NewStreamClosed(msg string) *RingError {
	return new_(KindStreamClosed, msg, nil)
}

func NewCancelled(msg string) *RingError {
	return new_(KindCancelled, msg, nil)
}

func NewInternal(msg string, cause error) *RingError {
	return new_(KindInternal, msg, cause)
}

// Is reports whether err is a RingError of the given kind. Preferred over
// direct field access so callers don't need a type assertion for the
// common case.
func Is(err error, k Kind) bool {
	re, ok := err.(*RingError)
	if !ok {
		return false
	}
	return re.Kind == k
}
