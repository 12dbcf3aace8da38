// Package scheduler decides, once per second, which display program is
// active and drives the tubes accordingly.  It owns the clock's on/off
// power window and the once-per-minute program transitions.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	missedTicksMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "missed_ticks",
		Help: "count of second ticks that fired while the scheduler was busy with a sweep",
	})

	tickDelayMetric = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tick_delay",
		Help:    "nanoseconds between the second boundary and the tick being delivered",
		Buckets: prometheus.ExponentialBuckets(1000, 10, 20),
	})
)

// Tick sends the wall time to ch at the instant the seconds change,
// according to the provided clock.  A busy listener does not receive an
// outdated time; that tick is skipped and counted.  Cancelling the
// context causes this to return immediately.
func Tick(ctx context.Context, now func() time.Time, ch chan<- time.Time) error {
	for {
		nextSecond := now().Add(time.Second).Truncate(time.Second)

		select {
		case <-time.After(nextSecond.Sub(now())):
		case <-ctx.Done():
			return fmt.Errorf("waiting for next second: %w", ctx.Err())
		}

		select {
		case ch <- nextSecond:
			tickDelayMetric.Observe(float64(now().Sub(nextSecond).Nanoseconds()))
		case <-time.After(500 * time.Millisecond):
			missedTicksMetric.Inc()
		case <-ctx.Done():
			return fmt.Errorf("waiting to send tick: %w", ctx.Err())
		}
	}
}
