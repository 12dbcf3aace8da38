package scheduler

import (
	"testing"
	"time"

	"github.com/jrockway/nixie-clock/nixie"
	"github.com/jrockway/nixie-clock/timesource"
)

// testZone keeps local time equal to UTC so tests can state wall times
// directly.
var testZone = timesource.Zone{
	DST: timesource.Rule{Name: "UTC", Week: 2, Weekday: time.Sunday, Month: time.March, Hour: 2},
	STD: timesource.Rule{Name: "UTC", Week: 1, Weekday: time.Sunday, Month: time.November, Hour: 2},
}

// testScheduler returns a scheduler whose clock the test controls.
func testScheduler(cfg Config) (*Scheduler, *fakeDisplay, *time.Time) {
	d := &fakeDisplay{}
	now := time.Date(2021, time.June, 5, 12, 34, 56, 0, time.UTC)
	s := New(cfg, d, func() time.Time { return now }, testZone)
	s.on = true // as after Run's startup sweep
	return s, d, &now
}

func defaultConfig() Config {
	return Config{OnHour: 7, OffHour: 23}
}

// tickAt advances the controlled clock and delivers one tick.
func tickAt(t *testing.T, s *Scheduler, now *time.Time, at time.Time) {
	t.Helper()
	*now = at
	if err := s.Tick(); err != nil {
		t.Fatalf("tick at %v: %v", at, err)
	}
	// A long-running program completes before the next tick; the run
	// loop guarantees this, so the test just discards the task.
	s.task = nil
}

func at(hour, min, sec int) time.Time {
	return time.Date(2021, time.June, 5, hour, min, sec, 0, time.UTC)
}

func TestMinuteZeroSelectsAntiPoisoningOnce(t *testing.T) {
	s, _, now := testScheduler(defaultConfig())

	tickAt(t, s, now, at(11, 59, 59))
	if got, want := s.Program(), ShowTime; got != want {
		t.Fatalf("program before the hour:\n  got: %v\n want: %v", got, want)
	}

	tickAt(t, s, now, at(12, 0, 0))
	if got, want := s.Program(), AntiPoisoningSweep; got != want {
		t.Fatalf("program at minute 0:\n  got: %v\n want: %v", got, want)
	}

	// Repeated ticks in the same minute fall back to the time display
	// and never re-trigger the sweep.
	for sec := 1; sec < 60; sec++ {
		tickAt(t, s, now, at(12, 0, sec))
		if got, want := s.Program(), ShowTime; got != want {
			t.Fatalf("program at 12:00:%02d:\n  got: %v\n want: %v", sec, got, want)
		}
	}

	// The next hour's minute 0 triggers it again.  (The intervening
	// half-hour sweep overwrites the last-handled-minute cell, as it
	// would during continuous operation.)
	tickAt(t, s, now, at(12, 30, 0))
	if got, want := s.Program(), RainbowSweep; got != want {
		t.Fatalf("program at 12:30:\n  got: %v\n want: %v", got, want)
	}
	tickAt(t, s, now, at(13, 0, 0))
	if got, want := s.Program(), AntiPoisoningSweep; got != want {
		t.Errorf("program at next minute 0:\n  got: %v\n want: %v", got, want)
	}
}

func TestMinuteDispatchPriority(t *testing.T) {
	testData := []struct {
		min  int
		want Program
	}{
		{0, AntiPoisoningSweep}, // 0 is %15 and %10 too, but anti-poisoning wins
		{15, RainbowSweep},
		{30, RainbowSweep}, // 30 is %10 too, but %15 is checked first
		{45, RainbowSweep},
		{10, ShowDate},
		{20, ShowDate},
		{40, ShowDate},
		{50, ShowDate},
		{7, ShowTime},
		{59, ShowTime},
	}
	for _, test := range testData {
		s, _, now := testScheduler(defaultConfig())
		tickAt(t, s, now, at(12, test.min, 0))
		if got := s.Program(); got != test.want {
			t.Errorf("program at minute %d:\n  got: %v\n want: %v", test.min, got, test.want)
		}
	}
}

func TestOneShotProgramsFireOncePerMinute(t *testing.T) {
	s, _, now := testScheduler(defaultConfig())

	tickAt(t, s, now, at(12, 15, 0))
	if got, want := s.Program(), RainbowSweep; got != want {
		t.Fatalf("program at 12:15:00:\n  got: %v\n want: %v", got, want)
	}
	tickAt(t, s, now, at(12, 15, 7))
	if got, want := s.Program(), ShowTime; got != want {
		t.Errorf("program at 12:15:07:\n  got: %v\n want: %v", got, want)
	}

	tickAt(t, s, now, at(12, 20, 0))
	if got, want := s.Program(), ShowDate; got != want {
		t.Fatalf("program at 12:20:00:\n  got: %v\n want: %v", got, want)
	}
	tickAt(t, s, now, at(12, 20, 11))
	if got, want := s.Program(), ShowTime; got != want {
		t.Errorf("program at 12:20:11:\n  got: %v\n want: %v", got, want)
	}
}

func TestShowTimeRendering(t *testing.T) {
	s, d, now := testScheduler(defaultConfig())

	tickAt(t, s, now, at(12, 34, 56))
	f := d.lastFrame()
	want := [6]nixie.Digit{1, 2, 3, 4, 5, 6}
	if f.Digits != want {
		t.Errorf("time digits:\n  got: %v\n want: %v", f.Digits, want)
	}

	// Dots blink at 1 Hz.
	first := f.Dots
	tickAt(t, s, now, at(12, 34, 57))
	if got := d.lastFrame().Dots; got == first {
		t.Errorf("dots did not toggle between ticks")
	}
}

func TestLeadingZeroSuppression(t *testing.T) {
	testData := []struct {
		name    string
		cfg     Config
		wantNX1 nixie.Digit
		wantNX2 nixie.Digit
	}{
		{
			name:    "suppressed",
			cfg:     Config{TwelveHour: true, SuppressHourTens: true},
			wantNX1: nixie.Blank,
			wantNX2: 7,
		},
		{
			name:    "not suppressed",
			cfg:     Config{TwelveHour: true},
			wantNX1: 0,
			wantNX2: 7,
		},
	}
	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			s, d, now := testScheduler(test.cfg)
			tickAt(t, s, now, at(7, 5, 9))
			f := d.lastFrame()
			if f.Digits[0] != test.wantNX1 || f.Digits[1] != test.wantNX2 {
				t.Errorf("hour digits:\n  got: %v %v\n want: %v %v",
					f.Digits[0], f.Digits[1], test.wantNX1, test.wantNX2)
			}
		})
	}
}

func TestTwelveHourMode(t *testing.T) {
	testData := []struct {
		hour       int
		twelveHour bool
		want       [2]nixie.Digit
	}{
		{0, true, [2]nixie.Digit{1, 2}},  // midnight shows 12
		{13, true, [2]nixie.Digit{0, 1}}, // 1 PM shows 01
		{13, false, [2]nixie.Digit{1, 3}},
		{0, false, [2]nixie.Digit{0, 0}},
	}
	for _, test := range testData {
		s, d, now := testScheduler(Config{TwelveHour: test.twelveHour})
		tickAt(t, s, now, at(test.hour, 34, 56))
		f := d.lastFrame()
		if got := [2]nixie.Digit{f.Digits[0], f.Digits[1]}; got != test.want {
			t.Errorf("hour %d (12h=%v):\n  got: %v\n want: %v", test.hour, test.twelveHour, got, test.want)
		}
	}
}

func TestShowDateRendering(t *testing.T) {
	s, d, now := testScheduler(Config{SuppressDayTens: true, SuppressYearTens: true})

	// 2021-06-05 12:10, so the date program fires: month 06, day 5
	// (tens suppressed), year 21.
	tickAt(t, s, now, at(12, 10, 0))
	if got, want := s.Program(), ShowDate; got != want {
		t.Fatalf("program:\n  got: %v\n want: %v", got, want)
	}
	f := d.lastFrame()
	want := [6]nixie.Digit{0, 6, nixie.Blank, 5, 2, 1}
	if f.Digits != want {
		t.Errorf("date digits:\n  got: %v\n want: %v", f.Digits, want)
	}
	if !f.Dots {
		t.Error("date display should force the dots on")
	}
	if got, want := d.lastColor(), nixie.Blue; got != want {
		t.Errorf("date accent:\n  got: %+v\n want: %+v", got, want)
	}
}

func TestPowerOffTransition(t *testing.T) {
	s, d, now := testScheduler(defaultConfig())

	tickAt(t, s, now, at(22, 59, 58))
	if got, want := s.Program(), ShowTime; got != want {
		t.Fatalf("program before off-hour:\n  got: %v\n want: %v", got, want)
	}

	framesBefore := len(d.frames)
	tickAt(t, s, now, at(23, 0, 0))
	if got, want := s.Program(), PoweredOff; got != want {
		t.Fatalf("program at off-hour:\n  got: %v\n want: %v", got, want)
	}
	// The shutdown pushes one fully blanked frame with the dots off...
	if got, want := len(d.frames), framesBefore+1; got != want {
		t.Fatalf("frames pushed during shutdown:\n  got: %v\n want: %v", got-framesBefore, 1)
	}
	if got, want := d.lastFrame(), nixie.BlankFrame(); got != want {
		t.Errorf("shutdown frame:\n  got: %+v\n want: %+v", got, want)
	}
	// ...darkens the accent, and drops the high voltage.
	if got, want := d.lastColor(), nixie.Black; got != want {
		t.Errorf("shutdown accent:\n  got: %+v\n want: %+v", got, want)
	}
	if len(d.hv) == 0 || d.hv[len(d.hv)-1] {
		t.Error("high voltage still enabled after shutdown")
	}

	// Later ticks while off do no rendering work at all.
	frames, colors := len(d.frames), len(d.colors)
	tickAt(t, s, now, at(23, 30, 0))
	tickAt(t, s, now, at(1, 15, 0))
	if len(d.frames) != frames || len(d.colors) != colors {
		t.Error("scheduler rendered while powered off")
	}
}

func TestPowerOnTransition(t *testing.T) {
	s, d, now := testScheduler(defaultConfig())

	// Start powered off overnight.
	tickAt(t, s, now, at(3, 0, 0))
	if got, want := s.Program(), PoweredOff; got != want {
		t.Fatalf("program overnight:\n  got: %v\n want: %v", got, want)
	}

	tickAt(t, s, now, at(7, 0, 0))
	// Entering the window re-enables HV; minute 0 immediately triggers
	// the anti-poisoning sweep.
	if len(d.hv) == 0 || !d.hv[len(d.hv)-1] {
		t.Error("high voltage not enabled on power-on")
	}
	if got, want := s.Program(), AntiPoisoningSweep; got != want {
		t.Errorf("program at power-on minute 0:\n  got: %v\n want: %v", got, want)
	}
}
