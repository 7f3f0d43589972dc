/*
runner.go - Periodic pass trigger

PURPOSE:
  Background goroutine that fires a compliance pass on a fixed interval.
  The engine itself never self-schedules; this runner is the external
  trigger, and each tick gets a brand-new RunCache so nothing leaks
  between passes.

USAGE:
  runner := sched.NewRunner(orchestrator, 10*time.Minute, log)
  runner.Start()
  // ... later
  runner.Stop()
*/
package sched

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Runner triggers orchestrator passes on an interval.
type Runner struct {
	Orchestrator *Orchestrator
	Interval     time.Duration
	Log          *logrus.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

func NewRunner(orchestrator *Orchestrator, interval time.Duration, log *logrus.Logger) *Runner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Runner{
		Orchestrator: orchestrator,
		Interval:     interval,
		Log:          log,
	}
}

// Start begins the periodic passes. Calling Start on a running runner is a
// no-op; after Stop, Start begins a fresh cycle.
func (r *Runner) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker != nil {
		return // already running
	}
	r.ticker = time.NewTicker(r.Interval)
	r.stop = make(chan struct{})
	r.wg.Add(1)
	go r.run(r.ticker, r.stop)

	r.log().Infof("pass runner started, interval %v", r.Interval)
}

// Stop halts the runner and waits for an in-flight pass to finish. Safe to
// call on a stopped runner.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ticker == nil {
		return
	}
	r.ticker.Stop()
	close(r.stop)
	r.wg.Wait()
	r.ticker = nil
	r.log().Info("pass runner stopped")
}

func (r *Runner) run(ticker *time.Ticker, stop chan struct{}) {
	defer r.wg.Done()

	for {
		select {
		case <-ticker.C:
			r.RunNow()
		case <-stop:
			return
		}
	}
}

// RunNow triggers an immediate pass (also used by the admin endpoint).
func (r *Runner) RunNow() {
	started := time.Now()
	if err := r.Orchestrator.RunScheduledPass(context.Background(), started, make(RunCache)); err != nil {
		r.log().Errorf("pass finished with errors after %v: %v", time.Since(started), err)
		return
	}
	r.log().Debugf("pass completed in %v", time.Since(started))
}

func (r *Runner) log() *logrus.Logger {
	if r.Log != nil {
		return r.Log
	}
	return logrus.StandardLogger()
}
