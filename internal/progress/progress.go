// Package progress reports periodic "[k/N] [p%]" progress lines for
// long-running phases, the user-visible behavior described for the
// archiving run's console output.
package progress

import (
	"context"
	"sync/atomic"
	"time"
)

// Counter is anything that can report how many units of work have completed.
type Counter interface {
	Count() int64
}

// AtomicCounter is a Counter incremented from multiple goroutines.
type AtomicCounter struct {
	count int64
}

func (c *AtomicCounter) Inc() {
	atomic.AddInt64(&c.count, 1)
}

func (c *AtomicCounter) Count() int64 {
	return atomic.LoadInt64(&c.count)
}

// Snapshot is one tick's worth of progress, with the remaining time
// estimated from the elapsed-per-unit rate observed so far.
type Snapshot struct {
	Count     int64
	Total     int64
	Started   time.Time
	Current   time.Time
	Elapsed   time.Duration
	remaining time.Duration
	estimated time.Time
}

// Percent returns the completion ratio as a number in [0, 100].
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Count) / float64(s.Total) * 100.0
}

func (s Snapshot) Remaining() time.Duration {
	return s.remaining
}

func (s Snapshot) Estimated() time.Time {
	return s.estimated
}

// Ticker periodically emits a Snapshot on C until Stop is called or ctx is
// done.
type Ticker struct {
	C    <-chan Snapshot
	stop func()
}

func (t *Ticker) Stop() {
	t.stop()
}

// NewTicker starts emitting snapshots of counter's progress toward total
// every interval.
func NewTicker(ctx context.Context, counter Counter, total int64, interval time.Duration) *Ticker {
	ctx, cancel := context.WithCancel(ctx)
	started := time.Now()
	output := make(chan Snapshot)
	ticker := time.NewTicker(interval)

	go func() {
		defer cancel()
		defer close(output)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				snapshot := Snapshot{
					Count:   counter.Count(),
					Total:   total,
					Started: started,
					Current: now,
					Elapsed: now.Sub(started),
				}
				if snapshot.Count > 0 && total > 0 {
					ratio := float64(snapshot.Count) / float64(total)
					elapsed := float64(snapshot.Elapsed)
					estimatedTotal := time.Duration(elapsed / ratio)
					snapshot.estimated = started.Add(estimatedTotal)
					snapshot.remaining = snapshot.estimated.Sub(now)
				}
				if ctx.Err() != nil {
					return
				}
				output <- snapshot
			}
		}
	}()

	return &Ticker{
		C:    output,
		stop: cancel,
	}
}
