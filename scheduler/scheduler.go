package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/trace"

	"github.com/jrockway/nixie-clock/nixie"
	"github.com/jrockway/nixie-clock/timesource"
)

// Config is the scheduler's fixed runtime policy.
type Config struct {
	TwelveHour bool // 12-hour display; otherwise 24-hour
	OnHour     int  // local hour the tubes turn on
	OffHour    int  // local hour the tubes turn off

	// Leading-zero suppression, per field.  A suppressed tens digit of
	// zero renders as a dark tube.  Units digits, minutes, and seconds
	// are never suppressed.
	SuppressHourTens bool
	SuppressDayTens  bool
	SuppressYearTens bool
}

// Scheduler consumes one tick per second and picks exactly one display
// program for it.
type Scheduler struct {
	cfg     Config
	display Display
	now     func() time.Time
	zone    timesource.Zone
	events  trace.EventLog

	on         bool
	dots       bool
	lastMinute int // last minute that fired a one-shot program
	program    Program
	task       task
}

// New returns a Scheduler reading time from now (the authoritative clock)
// and rendering through display.
func New(cfg Config, display Display, now func() time.Time, zone timesource.Zone) *Scheduler {
	return &Scheduler{
		cfg:        cfg,
		display:    display,
		now:        now,
		zone:       zone,
		events:     trace.NewEventLog("service", "scheduler"),
		lastMinute: -1,
		program:    PoweredOff,
	}
}

// Program returns the currently active display program.
func (s *Scheduler) Program() Program {
	return s.program
}

// inWindow reports whether the tubes should be lit at the given local
// hour.  The window may wrap midnight; equal on and off hours mean the
// clock never sleeps.
func (s *Scheduler) inWindow(hour int) bool {
	if s.cfg.OnHour == s.cfg.OffHour {
		return true
	}
	if s.cfg.OnHour < s.cfg.OffHour {
		return hour >= s.cfg.OnHour && hour < s.cfg.OffHour
	}
	return hour >= s.cfg.OnHour || hour < s.cfg.OffHour
}

// Tick handles one elapsed second.  At most one program renders per tick;
// the minute-driven programs each fire exactly once per qualifying minute,
// guarded by the last-handled-minute cell.
func (s *Scheduler) Tick() error {
	local := s.zone.ToLocal(s.now())
	if !s.inWindow(local.Hour()) {
		return s.powerOff()
	}
	if !s.on {
		if err := s.display.HVEnable(true); err != nil {
			return fmt.Errorf("enable hv: %w", err)
		}
		s.on = true
		s.events.Printf("clock on at %v", local.Format("15:04:05 MST"))
	}

	// Minute 0 also satisfies the %15 and %10 checks; the order here is
	// the contract.
	m := local.Minute()
	switch {
	case m != s.lastMinute && m == 0:
		s.lastMinute = m
		s.program = AntiPoisoningSweep
		s.task = newAntiPoisonTask()
		s.events.Printf("anti-poisoning sweep at %v", local.Format("15:04"))
		return nil
	case m != s.lastMinute && m%15 == 0:
		s.lastMinute = m
		s.program = RainbowSweep
		s.task = newRainbowTask()
		s.events.Printf("rainbow sweep at %v", local.Format("15:04"))
		if err := s.display.Show(nixie.BlankFrame()); err != nil {
			return fmt.Errorf("blank for rainbow sweep: %w", err)
		}
		return nil
	case m != s.lastMinute && m%10 == 0:
		s.lastMinute = m
		s.program = ShowDate
		s.task = &holdTask{dwell: dateDwell}
		s.events.Printf("date display at %v", local.Format("15:04"))
		return s.renderDate(local)
	default:
		s.program = ShowTime
		return s.renderTime(local)
	}
}

// powerOff performs the ordered shutdown exactly once: dots off, tubes
// blanked, frame pushed, accent dark, then the high voltage supply off.
func (s *Scheduler) powerOff() error {
	if !s.on {
		return nil
	}
	s.on = false
	s.program = PoweredOff
	s.task = nil
	s.events.Printf("clock off")
	if err := s.display.Show(nixie.BlankFrame()); err != nil {
		return fmt.Errorf("blank tubes: %w", err)
	}
	if err := s.display.SetColor(nixie.Black); err != nil {
		return fmt.Errorf("darken accent led: %w", err)
	}
	if err := s.display.HVEnable(false); err != nil {
		return fmt.Errorf("disable hv: %w", err)
	}
	return nil
}

// tensDigit splits out the tens place, optionally suppressing a leading
// zero to a dark tube.
func tensDigit(v int, suppress bool) nixie.Digit {
	if suppress && v < 10 {
		return nixie.Blank
	}
	return nixie.Digit(v / 10)
}

func (s *Scheduler) renderTime(local time.Time) error {
	h, m, sec := local.Clock()
	cycle := 24
	displayH := h
	if s.cfg.TwelveHour {
		cycle = 12
		displayH = h % 12
		if displayH == 0 {
			displayH = 12
		}
	}
	s.dots = !s.dots // 1 Hz blink
	f := nixie.Frame{
		Digits: [6]nixie.Digit{
			tensDigit(displayH, s.cfg.SuppressHourTens),
			nixie.Digit(displayH % 10),
			nixie.Digit(m / 10),
			nixie.Digit(m % 10),
			nixie.Digit(sec / 10),
			nixie.Digit(sec % 10),
		},
		Dots: s.dots,
	}
	if err := s.display.Show(f); err != nil {
		return fmt.Errorf("show time: %w", err)
	}
	// Accent hue tracks the hour around the wheel.
	if err := s.display.SetColor(nixie.ColorWheel((h % cycle) * 256 / cycle)); err != nil {
		return fmt.Errorf("set hour color: %w", err)
	}
	return nil
}

func (s *Scheduler) renderDate(local time.Time) error {
	y := local.Year() % 100
	f := nixie.Frame{
		Digits: [6]nixie.Digit{
			nixie.Digit(int(local.Month()) / 10),
			nixie.Digit(int(local.Month()) % 10),
			tensDigit(local.Day(), s.cfg.SuppressDayTens),
			nixie.Digit(local.Day() % 10),
			tensDigit(y, s.cfg.SuppressYearTens),
			nixie.Digit(y % 10),
		},
		Dots: true,
	}
	if err := s.display.Show(f); err != nil {
		return fmt.Errorf("show date: %w", err)
	}
	if err := s.display.SetColor(nixie.Blue); err != nil {
		return fmt.Errorf("set date color: %w", err)
	}
	return nil
}

// Run drives the scheduler until the context is cancelled.  It starts
// with an anti-poisoning sweep so every cathode gets exercised before the
// first real frame.  While a sweep or the date dwell is in progress,
// second ticks are skipped (and counted); the task always completes
// before the next tick is considered.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.display.HVEnable(true); err != nil {
		return fmt.Errorf("enable hv: %w", err)
	}
	s.on = true
	s.program = AntiPoisoningSweep
	s.task = newAntiPoisonTask()

	tickCh := make(chan time.Time)
	tickErrCh := make(chan error)
	go func() {
		err := Tick(ctx, s.now, tickCh)
		select {
		case tickErrCh <- err:
		case <-ctx.Done():
		}
		close(tickErrCh)
	}()

	for {
		if s.task != nil {
			dwell, done := s.task.step(s.display)
			if done {
				s.task = nil
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("sweep interrupted: %w", ctx.Err())
			case <-time.After(dwell):
			}
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("scheduler: %w", ctx.Err())
		case err := <-tickErrCh:
			return fmt.Errorf("ticker: %w", err)
		case <-tickCh:
			if err := s.Tick(); err != nil {
				logrus.Warnf("tick: %v", err)
			}
		}
	}
}
