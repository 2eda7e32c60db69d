package main

import (
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/gluster-iot/iothreads/pkg/iothreads"
)

// demoHost is the minimal in-process Host the demo binary wires into the
// pool: it allocates stubs directly (no real allocator to fail), runs
// Resume synchronously, and logs reported failures. A production host
// would replace this with the surrounding stage graph's real request
// bookkeeping.
type demoHost struct{}

func (demoHost) MakeStub(kind iothreads.OperationKind, req any, resume func()) (*iothreads.DeferredOp, error) {
	if resume == nil {
		return nil, errors.New("resume closure is required")
	}
	return &iothreads.DeferredOp{ID: uuid.New(), Kind: kind, Request: req, Resume: resume}, nil
}

func (demoHost) Run(op *iothreads.DeferredOp) {
	op.Resume()
}

func (demoHost) Destroy(*iothreads.DeferredOp) {}

func (demoHost) ReportFailure(kind iothreads.OperationKind, err error) {
	log.Error().Str("kind", string(kind)).Err(err).Msg("iothreadsd: operation failed")
}
