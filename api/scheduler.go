/*
scheduler.go - Periodic pipeline scheduler

PURPOSE:
  In serve mode the engine runs itself: a background goroutine
  triggers a pipeline run at a fixed interval, the in-process
  equivalent of the cron/CI trigger used for one-shot runs.

DESIGN:
  - Runs go through Handler.RunOnce, so they serialize with manual
    triggers on the same mutex
  - A run fires immediately on Start, then on every tick
  - Stop waits for an in-flight run to finish

USAGE:
  scheduler := NewRunScheduler(handler, 15*time.Minute)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunOnce, the serialized entry point
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"
)

// RunScheduler triggers periodic pipeline runs.
type RunScheduler struct {
	Handler  *Handler
	Interval time.Duration
	Logger   *log.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewRunScheduler creates a scheduler over the handler's pipeline.
func NewRunScheduler(h *Handler, interval time.Duration) *RunScheduler {
	return &RunScheduler{
		Handler:  h,
		Interval: interval,
		Logger:   log.Default(),
		stop:     make(chan struct{}),
	}
}

// Start begins the scheduler.
func (rs *RunScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.ticker = time.NewTicker(rs.Interval)
	rs.wg.Add(1)
	go rs.run()

	rs.Logger.Printf("[Scheduler] Started with run interval: %v", rs.Interval)
}

// Stop stops the scheduler and waits for any in-flight run.
func (rs *RunScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.Logger.Println("[Scheduler] Stopped")
	}
}

func (rs *RunScheduler) run() {
	defer rs.wg.Done()

	// Run immediately on start
	rs.runOnce()

	for {
		select {
		case <-rs.ticker.C:
			rs.runOnce()
		case <-rs.stop:
			return
		}
	}
}

func (rs *RunScheduler) runOnce() {
	sum, err := rs.Handler.RunOnce(context.Background())
	switch {
	case err != nil:
		rs.Logger.Printf("[Scheduler] Run aborted: %v", err)
	case !sum.Success():
		rs.Logger.Printf("[Scheduler] Run completed with %d failed batches", sum.BatchesFailed)
	}
}
