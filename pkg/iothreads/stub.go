package iothreads

import "github.com/google/uuid"

// OperationKind identifies the kind of filesystem operation being
// scheduled. The core does not interpret the value beyond classification
// and logging; the set of valid kinds is defined by the host via the
// classifier table passed to NewPool.
type OperationKind string

// DeferredOp is a unit of work queued for later execution by a worker.
// It is opaque to the core beyond its Kind and ID: Request and Resume are
// owned by the Host and only ever touched through the Host interface.
type DeferredOp struct {
	ID      uuid.UUID
	Kind    OperationKind
	Request any

	// Resume is invoked by the worker once a slot is available. It must
	// not block for long: it hands off to whatever executes the actual
	// filesystem operation and returns.
	Resume func()
}

// Host is the capability interface the surrounding stage graph implements
// to let the core allocate, run, and report on deferred operations without
// the core knowing anything about the concrete request/response types.
type Host interface {
	// MakeStub allocates a DeferredOp wrapping req and resume. It returns
	// a non-nil error if allocation fails; Submit reports and returns that
	// error wrapped in ErrOutOfMemory.
	MakeStub(kind OperationKind, req any, resume func()) (*DeferredOp, error)

	// Run executes op on the calling goroutine (a worker). It must not
	// return until the operation has been handed off or completed.
	Run(op *DeferredOp)

	// Destroy releases resources associated with op. Called after Run
	// returns, or instead of Run if the operation was rejected.
	Destroy(op *DeferredOp)

	// ReportFailure notifies the host that an operation of the given kind
	// could not be scheduled, with the reason as err.
	ReportFailure(kind OperationKind, err error)
}

func newDeferredID() uuid.UUID {
	return uuid.New()
}
