package iothreads

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestThreshold_FirstEventNeverEscalates(t *testing.T) {
	var th threshold
	require.False(t, th.apply(time.Now()))
}

func TestThreshold_RapidEventsEscalate(t *testing.T) {
	var th threshold
	now := time.Now()

	escalated := false
	for i := 0; i < threshEvents+1; i++ {
		escalated = th.apply(now)
		now = now.Add(time.Second)
	}
	require.True(t, escalated, "threshEvents rapid-fire events should cross the escalation limit")
}

func TestThreshold_DecayPreventsEscalationWhenSpreadOut(t *testing.T) {
	var th threshold
	now := time.Now()

	escalated := false
	for i := 0; i < threshEvents+1; i++ {
		escalated = th.apply(now)
		now = now.Add(threshSeconds + time.Second)
	}
	require.False(t, escalated, "events spread well beyond the decay window should never escalate")
}

func TestWatchdogSample_RaisesLimitOnPersistentStall(t *testing.T) {
	orig := sendSelfTrap
	sendSelfTrap = func() error { return nil }
	t.Cleanup(func() { sendSelfTrap = orig })

	cfg := DefaultConfig()
	cfg.LowPrioThreads = 1
	pool, _ := testPool(t, cfg)

	pool.mu.Lock()
	pool.counts[BandLo.index()] = pool.limits[BandLo.index()]
	pool.queues.push(BandLo, &DeferredOp{ID: newDeferredID(), Kind: kindFsync})
	pool.mu.Unlock()

	now := time.Now()
	for i := 0; i < stallStreak+1; i++ {
		pool.watchdogSample(now)
		now = now.Add(time.Second)
	}

	pool.mu.Lock()
	limit := pool.limits[BandLo.index()]
	pool.mu.Unlock()

	require.Greater(t, limit, cfg.LowPrioThreads)
}
