package iothreads

import "github.com/prometheus/client_golang/prometheus"

// PoolDump is the periodic state-dump shape, standing in for the
// original's iot_priv_dump output.
type PoolDump struct {
	CurrCount       int            `json:"curr_count"`
	SleepCount      int            `json:"sleep_count"`
	BandLimits      map[string]int `json:"band_limits"`
	BandInFlight    map[string]int `json:"band_in_flight"`
	QueueSizes      map[string]int `json:"queue_sizes"`
	LeastRateLimit  int            `json:"least_rate_limit"`
	LeastCachedRate int            `json:"least_cached_rate"`
	StackSizeHint   string         `json:"stack_size_hint"`
}

// QueueSizes answers the distinguished introspection query inline on the
// caller's goroutine without entering any queue, matching the original's
// special-cased getxattr interception of IO_THREADS_QUEUE_SIZE_KEY.
func (p *Pool) QueueSizes() map[string]int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queues.sizes()
}

// Dump returns a full snapshot of pool state for status endpoints and
// metrics scraping.
func (p *Pool) Dump() PoolDump {
	p.mu.Lock()
	defer p.mu.Unlock()

	limits := make(map[string]int, bandCount)
	inFlight := make(map[string]int, bandCount)
	for i := 0; i < bandCount; i++ {
		b := bandFromIndex(i)
		limits[b.String()] = p.limits[i]
		inFlight[b.String()] = p.counts[i]
	}

	return PoolDump{
		CurrCount:       p.currCount,
		SleepCount:      p.sleepCount,
		BandLimits:      limits,
		BandInFlight:    inFlight,
		QueueSizes:      p.queues.sizes(),
		LeastRateLimit:  p.limiter.rateLimit,
		LeastCachedRate: p.limiter.cachedRate,
		StackSizeHint:   stackSizeHint,
	}
}

// poolMetrics holds the named Prometheus instruments exposing pool state,
// grounded in the pack's MetricsCollector convention of fixed gauge
// fields registered once in a constructor rather than an ad hoc
// Collector implementation.
type poolMetrics struct {
	currWorkers      prometheus.Gauge
	sleepingWorkers  prometheus.Gauge
	queueDepth       *prometheus.GaugeVec
	bandLimit        *prometheus.GaugeVec
	leastRateLimit   prometheus.Gauge
	leastCachedRate  prometheus.Gauge
	stallEscalations prometheus.Counter
}

func newPoolMetrics(reg prometheus.Registerer) *poolMetrics {
	m := &poolMetrics{
		currWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iothreads_curr_workers",
			Help: "Current number of live worker goroutines.",
		}),
		sleepingWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iothreads_sleeping_workers",
			Help: "Number of workers currently idle-waiting.",
		}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iothreads_queue_depth",
			Help: "Queued operation count per band.",
		}, []string{"band"}),
		bandLimit: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "iothreads_band_limit",
			Help: "Concurrency cap per band.",
		}, []string{"band"}),
		leastRateLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iothreads_least_rate_limit",
			Help: "Configured LEAST-band operations-per-second cap; 0 disables throttling.",
		}),
		leastCachedRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "iothreads_least_cached_rate",
			Help: "LEAST-band dispatches observed in the most recently closed sampling window.",
		}),
		stallEscalations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "iothreads_stall_escalations_total",
			Help: "Number of times a persistently stalled band escalated past the watchdog threshold.",
		}),
	}

	reg.MustRegister(
		m.currWorkers, m.sleepingWorkers, m.queueDepth, m.bandLimit,
		m.leastRateLimit, m.leastCachedRate, m.stallEscalations,
	)
	return m
}

// AttachMetrics registers Prometheus instruments on reg. The gauges are
// refreshed on each watchdog sample only, so they are not updated while
// the watchdog is disabled (WatchdogSeconds == 0). It is optional: a Pool
// created without calling this never touches the prometheus package.
func (p *Pool) AttachMetrics(reg prometheus.Registerer) {
	p.mu.Lock()
	p.metrics = newPoolMetrics(reg)
	p.mu.Unlock()
}

// updateMetrics pushes a snapshot of locked state into the registered
// gauges. Called from the watchdog sampling loop; a no-op when
// AttachMetrics was never called.
func (p *Pool) updateMetrics() {
	if p.metrics == nil {
		return
	}
	p.metrics.currWorkers.Set(float64(p.currCount))
	p.metrics.sleepingWorkers.Set(float64(p.sleepCount))
	p.metrics.leastRateLimit.Set(float64(p.limiter.rateLimit))
	p.metrics.leastCachedRate.Set(float64(p.limiter.cachedRate))
	for i := 0; i < bandCount; i++ {
		b := bandFromIndex(i)
		p.metrics.queueDepth.WithLabelValues(b.String()).Set(float64(p.queues.len(b)))
		p.metrics.bandLimit.WithLabelValues(b.String()).Set(float64(p.limits[i]))
	}
}
