package iothreads

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPool_RejectsNilCollaborators(t *testing.T) {
	_, err := NewPool(DefaultConfig(), nil, &fakeHost{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInitFailure))

	_, err = NewPool(DefaultConfig(), testClassifier, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInitFailure))
}

func TestNewPool_RejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 0
	_, err := NewPool(cfg, testClassifier, &fakeHost{})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInitFailure))
}

func TestSubmit_RunsResumeThroughHost(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	var ran atomic.Bool
	done := make(chan struct{})
	err := pool.Submit(kindRead, 1000, "req", func() {
		ran.Store(true)
		close(done)
	})
	require.NoError(t, err)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("resume was never invoked")
	}
	require.True(t, ran.Load())
}

func TestSubmit_InvalidKindReportsFailureAndReturnsError(t *testing.T) {
	pool, host := testPool(t, DefaultConfig())

	err := pool.Submit(kindBogus, 1000, nil, func() {})
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrInvalidKind))
	require.Equal(t, 1, host.failureCount())
}

func TestSubmit_AfterShutdownIsRejected(t *testing.T) {
	host := &fakeHost{}
	pool, err := NewPool(DefaultConfig(), testClassifier, host)
	require.NoError(t, err)
	require.NoError(t, pool.Shutdown(context.Background()))

	err = pool.Submit(kindRead, 1000, nil, func() {})
	require.ErrorIs(t, err, ErrPoolClosed)
}

func TestSubmit_HighBandDispatchedBeforeLowUnderSaturatedCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HighPrioThreads = 1
	cfg.NormalPrioThreads = 1
	cfg.LowPrioThreads = 1
	cfg.LeastPrioThreads = 1
	cfg.ThreadCount = 1 // single worker forces strict band-order contention
	cfg.IdleTimeSeconds = 1
	pool, _ := testPool(t, cfg)

	var mu sync.Mutex
	var order []string
	var wg sync.WaitGroup

	// Block the single worker first so both submissions queue up before
	// either can be dispatched.
	blockDone := make(chan struct{})
	wg.Add(1)
	require.NoError(t, pool.Submit(kindFsync, 1000, nil, func() {
		defer wg.Done()
		<-blockDone
		mu.Lock()
		order = append(order, "lo-blocker")
		mu.Unlock()
	}))

	time.Sleep(50 * time.Millisecond) // let the blocker start running

	wg.Add(1)
	require.NoError(t, pool.Submit(kindFsync, 1000, nil, func() {
		defer wg.Done()
		mu.Lock()
		order = append(order, "lo")
		mu.Unlock()
	}))

	wg.Add(1)
	require.NoError(t, pool.Submit(kindRead, 1000, nil, func() {
		defer wg.Done()
		mu.Lock()
		order = append(order, "hi")
		mu.Unlock()
	}))

	close(blockDone)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"lo-blocker", "hi", "lo"}, order)
}

func TestPool_GrowsWorkersUnderQueuePressure(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 8
	cfg.NormalPrioThreads = 8
	cfg.IdleTimeSeconds = 30
	cfg.FopsPerThreadRatio = 0 // disable the growth gate so light test load still triggers scale-up
	pool, _ := testPool(t, cfg)

	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(kindWrite, 1000, nil, func() {
			defer wg.Done()
			<-release
		}))
	}

	require.Eventually(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.currCount >= 5
	}, 2*time.Second, 10*time.Millisecond)

	close(release)
	wg.Wait()
}

func TestPool_ShutdownDrainsQueuedWork(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 1
	cfg.NormalPrioThreads = 1
	pool, err := NewPool(cfg, testClassifier, &fakeHost{})
	require.NoError(t, err)

	var completed atomic.Int32
	n := 20
	for i := 0; i < n; i++ {
		require.NoError(t, pool.Submit(kindWrite, 1000, nil, func() {
			completed.Add(1)
		}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, pool.Shutdown(ctx))
	require.EqualValues(t, n, completed.Load())
}

func TestPool_GrowthGateSuppressesScaleUpBelowRatio(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ThreadCount = 8
	cfg.NormalPrioThreads = 8
	cfg.IdleTimeSeconds = 30
	cfg.FopsPerThreadRatio = 20 // default: one active worker tolerates up to 20 queued ops
	pool, _ := testPool(t, cfg)

	release := make(chan struct{})
	defer close(release)
	var wg sync.WaitGroup

	// The first submission wakes the sole initial worker, which then
	// blocks on release; every subsequent submission keeps exactly one
	// worker active with a backlog well under the ratio, so the gate
	// should never fire and the pool should stay at its floor.
	for i := 0; i < 3; i++ {
		wg.Add(1)
		require.NoError(t, pool.Submit(kindWrite, 1000, nil, func() {
			defer wg.Done()
			<-release
		}))
	}

	require.Never(t, func() bool {
		pool.mu.Lock()
		defer pool.mu.Unlock()
		return pool.currCount > 1
	}, 200*time.Millisecond, 20*time.Millisecond)
}

func TestPool_ReconfigureUpdatesLimitsAndRateLimit(t *testing.T) {
	pool, _ := testPool(t, DefaultConfig())

	patch := DefaultConfig()
	patch.HighPrioThreads = 4
	patch.LeastRateLimit = 7
	require.NoError(t, pool.Reconfigure(patch))

	pool.mu.Lock()
	defer pool.mu.Unlock()
	require.Equal(t, 4, pool.limits[BandHi.index()])
	require.Equal(t, 7, pool.limiter.rateLimit)
}
