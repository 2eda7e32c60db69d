package iothreads

import (
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
)

// Decay-threshold constants from the original xlator: a band's threshold
// value decays by real elapsed time and gains threshSeconds per stall
// event; THRESH_LIMIT is set so that THRESH_EVENTS stalls arriving faster
// than the decay window escalates.
const (
	threshSeconds = 7 * 24 * time.Hour // 604800s
	threshEvents  = 3
	threshLimit   = uint64(threshSeconds/time.Second) * (threshEvents - 1) // 1209600

	// stallStreak is the number of consecutive watchdog samples a band
	// must be observed non-empty-and-unserviced before it counts as stalled.
	stallStreak = 5
)

// threshold is a decaying event counter, one per band, used to decide
// whether repeated stalls on that band warrant escalation.
type threshold struct {
	value      uint64
	updateTime time.Time
}

// apply records one stall event at now and reports whether the band has
// crossed the escalation limit.
func (t *threshold) apply(now time.Time) bool {
	if !t.updateTime.IsZero() {
		elapsed := uint64(now.Sub(t.updateTime) / time.Second)
		if elapsed < t.value {
			t.value -= elapsed
		} else {
			t.value = 0
		}
	}
	t.value += uint64(threshSeconds / time.Second)
	t.updateTime = now
	return t.value >= threshLimit
}

// watchdogState holds the per-band bookkeeping the watchdog loop uses
// across samples; it lives under Pool.mu alongside everything else.
type watchdogState struct {
	thresholds  [bandCount]threshold
	badTimes    [bandCount]int
	queueMarked [bandCount]bool

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

func newWatchdogState() *watchdogState {
	return &watchdogState{stopCh: make(chan struct{}), done: make(chan struct{})}
}

// startWatchdog launches the sampling loop if configured; it is a no-op
// when WatchdogSeconds is 0, matching the original's conditional start.
func (p *Pool) startWatchdog() {
	if p.cfg.WatchdogSeconds <= 0 {
		close(p.watchdog.done)
		return
	}
	interval := time.Duration(p.cfg.WatchdogSeconds/5) * time.Second
	if interval < time.Second {
		interval = time.Second
	}
	go p.watchdogLoop(interval)
}

func (p *Pool) stopWatchdog() {
	p.watchdog.stopOnce.Do(func() { close(p.watchdog.stopCh) })
	<-p.watchdog.done
}

// watchdogLoop periodically samples each band's queue. A dequeue clears
// that band's mark (see dequeueLocked); a sample sets the mark whenever
// the band is non-empty. A band therefore reads as stuck only when its
// mark survived untouched from the previous sample to this one — meaning
// nothing was consumed from it in the interval — and it still has queued
// work now. stallStreak consecutive stuck samples raises its concurrency
// cap, structurally mirroring the teacher's ticker-driven
// snapshot-and-react background loops.
func (p *Pool) watchdogLoop(interval time.Duration) {
	defer close(p.watchdog.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.watchdog.stopCh:
			return
		case <-ticker.C:
			p.watchdogSample(time.Now())
		}
	}
}

func (p *Pool) watchdogSample(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ws := p.watchdog
	for i := 0; i < bandCount; i++ {
		b := bandFromIndex(i)
		// ws.queueMarked[i] is only still true here if nothing dequeued
		// from band i since the previous sample (dequeueLocked clears it
		// on every pop); paired with a non-empty queue now, that is the
		// "queued work, nothing consumed since last sample" stall.
		stuck := ws.queueMarked[i] && p.queues.len(b) > 0
		if stuck {
			ws.badTimes[i]++
		} else {
			ws.badTimes[i] = 0
		}

		if ws.badTimes[i] >= stallStreak {
			escalate := ws.thresholds[i].apply(now)
			p.limits[i]++
			log.Warn().Str("band", b.String()).Int("new_limit", p.limits[i]).Msg("iothreads: stalled band, raising concurrency cap")
			ws.badTimes[i] = 0
			if escalate {
				p.raiseTrap(b)
			}
		}

		ws.queueMarked[i] = p.queues.len(b) > 0
	}
	p.updateMetrics()
	p.wake.wake()
}

// sendSelfTrap delivers the original's kill(getpid(), SIGTRAP). It is a
// package variable so tests can stub the actual signal delivery.
var sendSelfTrap = func() error {
	return syscall.Kill(os.Getpid(), syscall.SIGTRAP)
}

// raiseTrap escalates a persistently stalled band by signaling the
// process. If the signal cannot be delivered the process exits with
// status 134 (the status of an abort) instead of silently continuing.
func (p *Pool) raiseTrap(b Band) {
	log.WithLevel(emergLevel).Str("band", b.String()).Msg("iothreads: escalating persistent stall")
	if p.metrics != nil {
		p.metrics.stallEscalations.Inc()
	}
	if err := sendSelfTrap(); err != nil {
		log.Error().Err(err).Msg("iothreads: SIGTRAP delivery failed, exiting")
		os.Exit(134)
	}
}
