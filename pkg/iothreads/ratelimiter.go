package iothreads

import "time"

// leastWindow is the aligned sampling window length used to measure and
// cap LEAST-band throughput, matching io-threads.c's one-second sample
// granularity.
const leastWindow = time.Second

// leastLimiter tracks LEAST-band dispatches in the current aligned
// window and decides whether the next dequeue must be deferred. It is
// guarded entirely by the owning Pool's mutex; no separate lock is taken
// (see DESIGN.md's Open Question decisions on eliding the legacy
// secondary mutex).
type leastLimiter struct {
	rateLimit  int       // operations per second; 0 disables throttling
	sampleTime time.Time // start of the current window
	sampleCnt  int       // dispatches counted in the current window
	cachedRate int       // dispatches observed in the most recently closed window
}

func newLeastLimiter(rateLimit int) *leastLimiter {
	return &leastLimiter{rateLimit: rateLimit}
}

// allow reports whether a LEAST-band operation may be dequeued now given
// now, and if not, the absolute instant at which it next may be. Callers
// must call recordDispatch after actually dequeuing one.
func (l *leastLimiter) allow(now time.Time) (bool, time.Time) {
	if l.rateLimit <= 0 {
		return true, time.Time{}
	}
	l.rotate(now)
	if l.sampleCnt < l.rateLimit {
		return true, time.Time{}
	}
	return false, l.sampleTime.Add(leastWindow)
}

// recordDispatch registers that one LEAST-band operation was dequeued at
// now. Must be called with allow's now (or later) under the same lock
// hold as the allow check that permitted it.
func (l *leastLimiter) recordDispatch(now time.Time) {
	if l.rateLimit <= 0 {
		return
	}
	l.rotate(now)
	l.sampleCnt++
}

// rotate advances the window if now has moved past the current one,
// caching the just-closed window's count for introspection.
func (l *leastLimiter) rotate(now time.Time) {
	if l.sampleTime.IsZero() {
		l.sampleTime = now
		return
	}
	if now.Sub(l.sampleTime) < leastWindow {
		return
	}
	l.cachedRate = l.sampleCnt
	// Re-align to now rather than incrementing by one window at a time:
	// after a long idle gap there is no backlog of windows to replay.
	l.sampleTime = now
	l.sampleCnt = 0
}
