package iothreads

import (
	"time"

	"github.com/rs/zerolog/log"
)

// workerState mirrors the teacher's WorkerState enum idiom, retargeted
// from OS-process monitoring to the select/run/idle-wait loop a worker
// goroutine here actually runs.
type workerState int

const (
	workerSelecting workerState = iota
	workerRunning
	workerIdleWait
	workerExiting
)

func (s workerState) String() string {
	switch s {
	case workerSelecting:
		return "selecting"
	case workerRunning:
		return "running"
	case workerIdleWait:
		return "idle-wait"
	case workerExiting:
		return "exiting"
	default:
		return "unknown"
	}
}

// dequeueLocked picks the highest-priority band with available capacity
// and a non-empty queue, applying the LEAST-band rate limit. Callers must
// hold p.mu. When nothing is dispatchable it returns ok=false along with
// how long the caller should wait before retrying: a shorter duration if
// LEAST work exists but is deferred by the rate limiter, otherwise the
// full idle timeout (nothing queued, or every non-empty band at its cap).
func (p *Pool) dequeueLocked(now time.Time) (band Band, op *DeferredOp, ok bool, wait time.Duration) {
	idleTimeout := time.Duration(p.cfg.IdleTimeSeconds) * time.Second
	wait = idleTimeout

	for i := 0; i < bandCount; i++ {
		b := bandFromIndex(i)
		if p.queues.len(b) == 0 {
			continue
		}
		if p.counts[i] >= p.limits[i] {
			continue
		}
		if b == BandLeast {
			allowed, until := p.limiter.allow(now)
			if !allowed {
				if w := until.Sub(now); w > 0 && w < wait {
					wait = w
				}
				continue
			}
		}

		item := p.queues.pop(b)
		p.counts[i]++
		p.watchdog.queueMarked[i] = false
		if b == BandLeast {
			p.limiter.recordDispatch(now)
		}
		return b, item, true, 0
	}

	return BandUnspec, nil, false, wait
}

// runWorker is one worker goroutine's lifetime: select an operation and
// run it, or wait for a wake-up or idle timeout, voluntarily exiting once
// idle past IdleTimeSeconds provided the pool is above its floor.
func (p *Pool) runWorker(id int) {
	defer p.wg.Done()

	for {
		p.mu.Lock()
		band, op, ok, wait := p.dequeueLocked(time.Now())
		if ok {
			p.mu.Unlock()
			p.logWorkerState(id, workerRunning)
			p.host.Run(op)
			p.host.Destroy(op)

			p.mu.Lock()
			p.counts[band.index()]--
			p.mu.Unlock()
			p.wake.wake()
			continue
		}

		if p.down && p.queues.totalLen() == 0 {
			p.currCount--
			p.mu.Unlock()
			p.logWorkerState(id, workerExiting)
			return
		}

		trueIdle := wait == time.Duration(p.cfg.IdleTimeSeconds)*time.Second
		canVolunteerExit := trueIdle && p.currCount > p.minCount
		p.sleepCount++
		ch := p.wake.waitChan()
		p.mu.Unlock()

		p.logWorkerState(id, workerIdleWait)
		woke := waitOn(ch, wait)

		p.mu.Lock()
		p.sleepCount--
		if !woke && canVolunteerExit && !p.down {
			p.currCount--
			p.mu.Unlock()
			p.logWorkerState(id, workerExiting)
			return
		}
		p.mu.Unlock()
	}
}

func (p *Pool) logWorkerState(id int, s workerState) {
	log.Debug().Int("worker", id).Str("state", s.String()).Msg("iothreads: worker state transition")
}
