// Package expiry runs the periodic background sweep that physically removes
// expired entries from a table, independent of whether anybody reads them again.
//
// The scheduler only holds a handle to the swept table (the Sweeper interface),
// never ownership. It never reports errors to callers: a sweep that finds nothing
// is a silent no-op. Sweep statistics are tracked in a go-metrics registry.
package expiry

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/lni/dragonboat/v4/logger"
	gometrics "github.com/rcrowley/go-metrics"
)

var Logger = logger.GetLogger("expiry")

// DefaultInterval is the time between two sweeps if no interval is configured
const DefaultInterval = 5 * time.Minute

// Sweeper is implemented by anything that can remove its expired entries
type Sweeper interface {
	// Sweep removes all expired entries and returns how many were removed
	Sweep() int
}

// Report summarizes the work done by a scheduler.
// Runs only counts sweeps of the background loop, sweeps requested through
// SweepNow are counted in OnDemandRuns. Evicted and the timing figures cover both.
type Report struct {
	IntervalMillis     int64      `json:"intervalMillis"`
	Running            bool       `json:"running"`
	Runs               int64      `json:"runs"`
	OnDemandRuns       int64      `json:"onDemandRuns"`
	Evicted            int64      `json:"evicted"`
	LastSweep          *time.Time `json:"lastSweep,omitempty"`
	MeanDurationMicros float64    `json:"meanDurationMicros"`
}

// --------------------------------------------------------------------------
// Scheduler
// --------------------------------------------------------------------------

// Scheduler periodically calls Sweep on its target
type Scheduler struct {
	target   Sweeper
	interval time.Duration

	// lifecycle
	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}

	// sweep statistics
	registry  gometrics.Registry
	runs      gometrics.Counter
	onDemand  gometrics.Counter
	evicted   gometrics.Counter
	duration  gometrics.Histogram
	lastSweep atomic.Int64
}

// NewScheduler creates a stopped scheduler for the target.
// An interval <= 0 selects DefaultInterval.
func NewScheduler(target Sweeper, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	registry := gometrics.NewRegistry()
	return &Scheduler{
		target:   target,
		interval: interval,
		registry: registry,
		runs:     gometrics.GetOrRegisterCounter("sweep.runs", registry),
		onDemand: gometrics.GetOrRegisterCounter("sweep.on_demand_runs", registry),
		evicted:  gometrics.GetOrRegisterCounter("sweep.evicted", registry),
		duration: gometrics.GetOrRegisterHistogram("sweep.duration_us", registry, gometrics.NewExpDecaySample(1028, 0.015)),
	}
}

// Start begins the periodic sweep. Calling Start on a running scheduler does nothing.
// A stopped scheduler can be started again.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.running = true
	s.stop = make(chan struct{})
	s.done = make(chan struct{})

	go s.loop(s.stop, s.done)
}

// Stop halts the periodic sweep and waits until the background goroutine exited.
// Calling Stop twice or before Start is a no-op.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false
	close(s.stop)
	<-s.done
}

// Running returns whether the background sweep is active
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// loop is the background goroutine started by Start
// WARNING: this method should never be called directly! Use Start() and Stop()
func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.sweep(s.runs)
		}
	}
}

// SweepNow runs one sweep synchronously and returns the number of removed entries.
// It is counted as an on-demand run.
func (s *Scheduler) SweepNow() int {
	return s.sweep(s.onDemand)
}

// sweep runs the target once and records the run in counter
func (s *Scheduler) sweep(counter gometrics.Counter) int {
	start := time.Now()
	removed := s.target.Sweep()
	took := time.Since(start)

	counter.Inc(1)
	s.evicted.Inc(int64(removed))
	s.duration.Update(took.Microseconds())
	s.lastSweep.Store(start.UnixNano())

	if removed > 0 {
		Logger.Debugf("sweep removed %d expired entries in %s", removed, took)
	}
	return removed
}

// Report returns a snapshot of the sweep statistics
func (s *Scheduler) Report() Report {
	r := Report{
		IntervalMillis:     s.interval.Milliseconds(),
		Running:            s.Running(),
		Runs:               s.runs.Count(),
		OnDemandRuns:       s.onDemand.Count(),
		Evicted:            s.evicted.Count(),
		MeanDurationMicros: s.duration.Mean(),
	}
	if last := s.lastSweep.Load(); last != 0 {
		ts := time.Unix(0, last)
		r.LastSweep = &ts
	}
	return r
}

// Registry exposes the go-metrics registry holding the sweep statistics
func (s *Scheduler) Registry() gometrics.Registry {
	return s.registry
}
