package iothreads

import "github.com/rs/zerolog/log"

// ClassifierFunc maps an operation kind to a band. The core ships with no
// built-in table of filesystem operation names (that belongs to the host
// protocol, out of scope here); NewPool takes one of these from its
// caller, mirroring io-threads.c's compiled-in fop switch but keeping the
// core protocol-agnostic.
type ClassifierFunc func(kind OperationKind) (Band, bool)

// lowTrustPIDCeiling mirrors GF_CLIENT_PID_MAX from the original: callers
// tagged with a pid below this ceiling are internal/background
// originators (self-heal, rebalance, and similar maintenance processes
// reserve negative pids) rather than real client requests, and are
// low-trust in the sense that they must not be allowed to starve
// foreground I/O.
const lowTrustPIDCeiling = 0

// classify resolves kind to a Band for the given caller pid. A low-trust
// caller is forced to LEAST ahead of the classifier table entirely, per
// spec: the override takes priority over whatever band the operation
// kind would otherwise map to.
func (p *Pool) classify(kind OperationKind, callerPID int) (Band, error) {
	if callerPID < lowTrustPIDCeiling && p.leastPriorityEnabled() {
		log.Debug().Str("kind", string(kind)).Int("pid", callerPID).Msg("iothreads: low-trust caller forced to least-priority band")
		return BandLeast, nil
	}

	band, ok := p.classifier(kind)
	if !ok {
		log.Debug().Str("kind", string(kind)).Int("pid", callerPID).Msg("iothreads: unclassified operation kind")
		return BandUnspec, ErrInvalidKind
	}

	log.Debug().Str("kind", string(kind)).Str("band", band.String()).Msg("iothreads: classified operation")
	return band, nil
}
