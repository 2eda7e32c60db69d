package iothreads

import "errors"

// Sentinel errors returned by the core. Callers should use errors.Is to
// distinguish them rather than comparing error strings.
var (
	// ErrInvalidKind is returned when an operation kind has no classifier
	// entry and least-priority scheduling is not enabled for its caller.
	ErrInvalidKind = errors.New("iothreads: invalid operation kind")

	// ErrOutOfMemory is returned when the host fails to allocate a stub
	// for a deferred operation.
	ErrOutOfMemory = errors.New("iothreads: out of memory allocating stub")

	// ErrInitFailure is returned by NewPool when configuration validation
	// or initial worker bring-up fails.
	ErrInitFailure = errors.New("iothreads: initialization failed")

	// ErrPoolClosed is returned by Submit once Shutdown has been called.
	ErrPoolClosed = errors.New("iothreads: pool is shut down")
)
