package iothreads

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Pool is a priority-scheduled, dynamically-sized worker pool sitting in
// front of a Host. Callers submit operations via Submit; the pool
// classifies, enqueues, and dispatches them to worker goroutines subject
// to per-band concurrency caps, a LEAST-band rate limit, and a stall
// watchdog that raises caps on persistently stuck bands.
type Pool struct {
	mu sync.Mutex

	cfg        Config
	classifier ClassifierFunc
	host       Host

	queues  *queueSet
	wake    *broadcaster
	limits  [bandCount]int
	counts  [bandCount]int
	limiter *leastLimiter

	watchdog *watchdogState

	currCount  int
	sleepCount int
	nextID     int
	minCount   int
	maxCount   int

	down      bool
	wg        sync.WaitGroup
	scaleStop chan struct{}
	scaleDone chan struct{}

	metrics *poolMetrics
}

// NewPool validates cfg, wires classifier and host, and brings up the
// floor of worker goroutines. classifier must not be nil; a nil
// classifier would mean every submission is ErrInvalidKind.
func NewPool(cfg Config, classifier ClassifierFunc, host Host) (*Pool, error) {
	if classifier == nil {
		return nil, fmt.Errorf("%w: classifier is required", ErrInitFailure)
	}
	if host == nil {
		return nil, fmt.Errorf("%w: host is required", ErrInitFailure)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Pool{
		cfg:        cfg,
		classifier: classifier,
		host:       host,
		queues:     newQueueSet(),
		wake:       newBroadcaster(),
		limits:     cfg.bandLimits(),
		limiter:    newLeastLimiter(cfg.LeastRateLimit),
		watchdog:   newWatchdogState(),
		minCount:   MinWorkers,
		maxCount:   cfg.ThreadCount,
		scaleStop:  make(chan struct{}),
		scaleDone:  make(chan struct{}),
	}

	for i := 0; i < p.minCount; i++ {
		p.spawnWorkerLocked()
	}

	p.startWatchdog()
	go p.scaleLoop()

	log.Info().
		Int("thread_count", cfg.ThreadCount).
		Int("hi", cfg.HighPrioThreads).
		Int("normal", cfg.NormalPrioThreads).
		Int("lo", cfg.LowPrioThreads).
		Int("least", cfg.LeastPrioThreads).
		Bool("least_priority_enabled", cfg.EnableLeastPriority).
		Msg("iothreads: pool started")

	return p, nil
}

func (p *Pool) leastPriorityEnabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.EnableLeastPriority
}

// Submit classifies kind, asks the host to allocate a stub for req and
// resume, and enqueues it for dispatch. It is the single generic entry
// point standing in for the per-operation one-line forwarders, which stay
// out of the core (see SPEC_FULL.md §7).
//
// After enqueuing, it applies the growth gate: a sleeping worker is woken
// and scale-up is attempted only when fops-per-thread-ratio is 0 (gate
// disabled), or every worker is asleep, or the backlog per active worker
// exceeds the ratio and the pool is still below its max. Otherwise the
// new item is left for an already-running worker to pick up once it
// loops back to selecting, keeping existing workers busy instead of
// stampede-spawning.
func (p *Pool) Submit(kind OperationKind, callerPID int, req any, resume func()) error {
	band, err := p.classify(kind, callerPID)
	if err != nil {
		p.host.ReportFailure(kind, err)
		return err
	}

	stub, err := p.host.MakeStub(kind, req, resume)
	if err != nil {
		wrapped := fmt.Errorf("%w: %v", ErrOutOfMemory, err)
		p.host.ReportFailure(kind, wrapped)
		return wrapped
	}

	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		p.host.Destroy(stub)
		return ErrPoolClosed
	}
	p.queues.push(band, stub)

	ratio := p.cfg.FopsPerThreadRatio
	active := p.currCount - p.sleepCount
	queueSize := p.queues.totalLen()
	maxCount := p.maxCount
	grow := ratio == 0 || active == 0 || (queueSize/active > ratio && active < maxCount)
	p.mu.Unlock()

	if grow {
		p.wake.wake()
		p.maybeGrow()
	}
	return nil
}

// spawnWorkerLocked starts one worker goroutine. Callers must hold p.mu.
func (p *Pool) spawnWorkerLocked() {
	id := p.nextID
	p.nextID++
	p.currCount++
	p.wg.Add(1)
	go p.runWorker(id)
}

// targetScale computes the desired worker count from per-band demand
// (queued plus already in-flight operations, which covers the case where
// in-flight operations are long-running and queue depth alone would
// understate the pressure), each capped by its own concurrency limit to
// avoid sizing the pool for workers that would immediately block on a
// band cap anyway, clamped to [minCount, maxCount].
func (p *Pool) targetScale() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	sum := 0
	for i := 0; i < bandCount; i++ {
		b := bandFromIndex(i)
		demand := p.queues.len(b) + p.counts[i]
		if demand > p.limits[i] {
			demand = p.limits[i]
		}
		sum += demand
	}
	if sum < p.minCount {
		sum = p.minCount
	}
	if sum > p.maxCount {
		sum = p.maxCount
	}
	return sum
}

// maybeGrow spawns workers up to the current target scale.
func (p *Pool) maybeGrow() {
	target := p.targetScale()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.down {
		return
	}
	for p.currCount < target {
		p.spawnWorkerLocked()
	}
}

// scaleLoop periodically re-evaluates growth, mirroring the teacher's
// ticker-driven scaleLoop. Shrinkage happens through each worker's own
// idle-timeout exit, not from here.
func (p *Pool) scaleLoop() {
	defer close(p.scaleDone)

	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-p.scaleStop:
			return
		case <-ticker.C:
			p.maybeGrow()
		}
	}
}

// Reconfigure applies a partial configuration update, matching the
// original's per-option independent reconfiguration. Fields left at their
// Go zero value in patch are treated as unchanged, except booleans
// (EnableLeastPriority) and the rate/watchdog knobs, which are always
// taken from patch since zero is a meaningful value for them.
func (p *Pool) Reconfigure(patch Config) error {
	p.mu.Lock()
	merged := p.cfg.applyPartial(patch)
	if err := merged.Validate(); err != nil {
		p.mu.Unlock()
		return err
	}
	prevWatchdog := p.cfg.WatchdogSeconds
	p.cfg = merged
	p.limits = merged.bandLimits()
	p.limiter.rateLimit = merged.LeastRateLimit
	p.maxCount = merged.ThreadCount
	p.mu.Unlock()

	p.wake.wake()

	switch {
	case prevWatchdog == 0 && merged.WatchdogSeconds > 0:
		p.watchdog = newWatchdogState()
		p.startWatchdog()
	case prevWatchdog > 0 && merged.WatchdogSeconds == 0:
		p.stopWatchdog()
	}

	p.maybeGrow()

	log.Info().Interface("config", merged).Msg("iothreads: pool reconfigured")
	return nil
}

// Shutdown stops accepting new Submit calls, lets workers drain whatever
// is already queued, then waits for every worker to exit or ctx to expire.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.down {
		p.mu.Unlock()
		return nil
	}
	p.down = true
	p.mu.Unlock()

	close(p.scaleStop)
	p.wake.wake()
	p.stopWatchdog()

	doneCh := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(doneCh)
	}()

	select {
	case <-doneCh:
		<-p.scaleDone
		log.Info().Msg("iothreads: pool shut down")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
