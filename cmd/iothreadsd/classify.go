package main

import "github.com/gluster-iot/iothreads/pkg/iothreads"

// Operation kinds this demo host understands. A real host would have
// dozens of these (one per filesystem operation); a handful here is
// enough to illustrate Submit's band classification without reproducing
// the full glusterfs fop table as core API.
const (
	KindOpen    iothreads.OperationKind = "open"
	KindRead    iothreads.OperationKind = "read"
	KindWrite   iothreads.OperationKind = "write"
	KindFsync   iothreads.OperationKind = "fsync"
	KindLookup  iothreads.OperationKind = "lookup"
	KindReaddir iothreads.OperationKind = "readdir"
	KindUnlink  iothreads.OperationKind = "unlink"
)

// classify is the compiled-in fop-to-band table, the demo host's analogue
// of the original xlator's switch statement in iot_schedule.
func classify(kind iothreads.OperationKind) (iothreads.Band, bool) {
	switch kind {
	case KindOpen, KindLookup, KindReaddir:
		return iothreads.BandHi, true
	case KindUnlink:
		return iothreads.BandNormal, true
	case KindRead, KindWrite, KindFsync:
		return iothreads.BandLo, true
	default:
		return iothreads.BandUnspec, false
	}
}

// SubmitOpen, SubmitRead, and SubmitWrite illustrate the one-line
// forwarder shape described by the external interface: classify, enqueue,
// return. The remaining ~40 glusterfs fop names are not reproduced here
// since the forwarders themselves are out of the core's scope.

func SubmitOpen(pool *iothreads.Pool, callerPID int, req any, resume func()) error {
	return pool.Submit(KindOpen, callerPID, req, resume)
}

func SubmitRead(pool *iothreads.Pool, callerPID int, req any, resume func()) error {
	return pool.Submit(KindRead, callerPID, req, resume)
}

func SubmitWrite(pool *iothreads.Pool, callerPID int, req any, resume func()) error {
	return pool.Submit(KindWrite, callerPID, req, resume)
}
