package live

import (
	"sync"
	"time"
)

// Scheduler runs callbacks on the wall clock. The lifecycle only ever talks
// to time through it, so tests can drive ticks by hand.
type Scheduler interface {
	// Every calls f every d until stop is called.
	Every(d time.Duration, f func()) (stop func())
	// After calls f once after d unless cancel is called first.
	After(d time.Duration, f func()) (cancel func())
}

// ClockScheduler is the Scheduler backed by time.Ticker and time.AfterFunc.
type ClockScheduler struct{}

// Every starts a ticker goroutine.
func (ClockScheduler) Every(d time.Duration, f func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				f()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}

// After arms a one-shot timer.
func (ClockScheduler) After(d time.Duration, f func()) func() {
	t := time.AfterFunc(d, f)
	return func() { t.Stop() }
}
