package timesource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/trace"
)

var (
	// ErrNoTime means neither the network nor the hardware clock could
	// produce a time.  Callers must keep their last known time; never
	// reset toward the epoch.
	ErrNoTime = errors.New("no time source available")

	// ErrRTCUnresponsive means the hardware clock's seconds register
	// never advanced within the read bound.
	ErrRTCUnresponsive = errors.New("rtc did not respond")
)

const (
	// How long to wait for the RTC's seconds register to tick over.
	rtcAlignBound = 3 * time.Second
	rtcPollWait   = 10 * time.Millisecond
)

var (
	rtcFallbacksMetric = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rtc_fallbacks_total",
		Help: "count of time resolutions that fell back to the hardware clock",
	})
	syncsMetric = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "time_syncs_total",
		Help: "count of time sync attempts by result",
	}, []string{"result"})
)

// networkTime is the network side of a Source; *NTPClient in production.
type networkTime interface {
	Query(ctx context.Context) (time.Time, error)
}

// Source resolves the current wall time.  The network is authoritative;
// the hardware clock is the fallback, and is rewritten on every network
// success so it stays correct across power loss.
type Source struct {
	ntp    networkTime
	rtc    RTC // nil when the shield's clock is absent
	events trace.EventLog
}

// NewSource returns a Source.  rtc may be nil.
func NewSource(ntp *NTPClient, rtc RTC) *Source {
	return &Source{ntp: ntp, rtc: rtc, events: trace.NewEventLog("service", "timesource")}
}

// Resolve returns the current time.  It only fails when both the network
// and the hardware clock are unavailable.
func (s *Source) Resolve(ctx context.Context) (time.Time, error) {
	t, err := s.ntp.Query(ctx)
	if err == nil {
		if s.rtc != nil {
			if err := s.rtc.SetTime(t); err != nil {
				// The network result is still good.
				s.events.Errorf("update rtc: %v", err)
				logrus.Warnf("could not update rtc after sync: %v", err)
			}
		}
		return t, nil
	}
	s.events.Errorf("ntp: %v", err)
	logrus.Warnf("could not obtain NTP time, falling back to rtc: %v", err)
	rtcFallbacksMetric.Inc()

	if s.rtc == nil {
		return time.Time{}, fmt.Errorf("%w: ntp failed and no rtc fitted", ErrNoTime)
	}
	t, err = s.readAligned(ctx)
	if err != nil {
		s.events.Errorf("rtc: %v", err)
		return time.Time{}, fmt.Errorf("%w: %v", ErrNoTime, err)
	}
	s.events.Printf("got time %v from rtc", t)
	return t, nil
}

// readAligned reads the hardware clock, then polls until the seconds
// register changes so the returned value lands on a true second boundary.
// A clock whose seconds never advance is unresponsive (or its oscillator
// is stopped), and its stale registers must not be trusted.
func (s *Source) readAligned(ctx context.Context) (time.Time, error) {
	t, err := s.rtc.ReadTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("read rtc: %w", err)
	}
	deadline := time.Now().Add(rtcAlignBound)
	for {
		next, err := s.rtc.ReadTime()
		if err != nil {
			return time.Time{}, fmt.Errorf("read rtc: %w", err)
		}
		if next.Second() != t.Second() {
			return next, nil
		}
		if time.Now().After(deadline) {
			return time.Time{}, ErrRTCUnresponsive
		}
		select {
		case <-ctx.Done():
			return time.Time{}, fmt.Errorf("waiting for rtc second boundary: %w", ctx.Err())
		case <-time.After(rtcPollWait):
		}
	}
}

// resolver is what a Clock syncs against; *Source in production.
type resolver interface {
	Resolve(ctx context.Context) (time.Time, error)
}

// Clock holds the authoritative wall-clock offset and re-synchronizes it
// on a fixed cadence.  There is exactly one of these per process, owned
// by whoever constructs it; everything else reads through Now.
type Clock struct {
	source        resolver
	syncInterval  time.Duration // cadence after a successful sync
	retryInterval time.Duration // cadence after a failed sync

	mu       sync.Mutex
	wallAt   time.Time // wall time at the last successful sync
	syncedAt time.Time // local monotonic reading at the last successful sync
	valid    bool
}

// NewClock returns a Clock over the source.  Canonical intervals are one
// hour between syncs and one minute after a failure.
func NewClock(source *Source, syncInterval, retryInterval time.Duration) *Clock {
	return &Clock{source: source, syncInterval: syncInterval, retryInterval: retryInterval}
}

// Now returns the current wall time.  Before the first successful sync it
// falls back to the host clock, which on this hardware is all we have.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.valid {
		return time.Now()
	}
	return c.wallAt.Add(time.Since(c.syncedAt))
}

// Synced reports whether at least one sync has succeeded.
func (c *Clock) Synced() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valid
}

// Sync resolves the time once and, on success, adopts it as the new
// offset.  On failure the previous offset is retained unchanged.
func (c *Clock) Sync(ctx context.Context) error {
	t, err := c.source.Resolve(ctx)
	if err != nil {
		syncsMetric.WithLabelValues("failure").Inc()
		return fmt.Errorf("resolve time: %w", err)
	}
	c.mu.Lock()
	c.wallAt = t
	c.syncedAt = time.Now()
	c.valid = true
	c.mu.Unlock()
	syncsMetric.WithLabelValues("success").Inc()
	logrus.Infof("time synced: %v", t.UTC().Format(time.RFC3339))
	return nil
}

// Run re-synchronizes until the context is cancelled, using the retry
// interval after failures.
func (c *Clock) Run(ctx context.Context) error {
	for {
		wait := c.syncInterval
		if err := c.Sync(ctx); err != nil {
			logrus.Warnf("time sync failed, will retry: %v", err)
			wait = c.retryInterval
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for next sync: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
}
