package scheduler

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jrockway/nixie-clock/nixie"
)

// Program identifies which renderer owns the display this tick.  Exactly
// one is active at a time, and only the scheduler changes it.
type Program int

const (
	PoweredOff Program = iota
	ShowTime
	ShowDate
	RainbowSweep
	AntiPoisoningSweep
)

func (p Program) String() string {
	switch p {
	case PoweredOff:
		return "powered-off"
	case ShowTime:
		return "time"
	case ShowDate:
		return "date"
	case RainbowSweep:
		return "rainbow"
	case AntiPoisoningSweep:
		return "anti-poisoning"
	default:
		return "unknown"
	}
}

// Display is the control surface the programs render through.
// *nixie.Shield implements it.
type Display interface {
	Show(f nixie.Frame) error
	SetColor(c nixie.RGB) error
	HVEnable(on bool) error
}

// task is a display program that runs longer than one tick, modeled as a
// resumable step machine so the run loop stays in control between steps.
// While a task is active, second ticks are skipped; a task always runs to
// completion before normal rendering resumes.
type task interface {
	// step renders one step and returns how long to hold it, plus
	// whether the task has finished.
	step(d Display) (time.Duration, bool)
}

const (
	antiPoisonReps  = 4
	antiPoisonDwell = 500 * time.Millisecond

	rainbowReps  = 4
	rainbowSteps = 16
	rainbowDwell = 400 * time.Millisecond

	dateDwell = 10 * time.Second
)

// antiPoisonTask cycles every cathode on every tube to even out wear.
// Each step shows one value (0-9, then blank) on all six tubes at once,
// toggling the dot lamps and walking the accent through red/green/blue.
type antiPoisonTask struct {
	rep   int
	value int // 0-10; 10 is blank
	dots  bool
}

func newAntiPoisonTask() *antiPoisonTask {
	return &antiPoisonTask{}
}

func (t *antiPoisonTask) step(d Display) (time.Duration, bool) {
	if err := d.Show(nixie.Fill(nixie.Digit(t.value), t.dots)); err != nil {
		logShowError(err)
	}
	var c nixie.RGB
	switch t.value % 3 {
	case 0:
		c = nixie.RGB{R: 255}
	case 1:
		c = nixie.RGB{G: 255}
	case 2:
		c = nixie.RGB{B: 255}
	}
	if err := d.SetColor(c); err != nil {
		logShowError(err)
	}
	t.dots = !t.dots
	t.value++
	if t.value > 10 {
		t.value = 0
		t.rep++
	}
	return antiPoisonDwell, t.rep >= antiPoisonReps
}

// rainbowTask sweeps the accent LED through the full hue wheel with the
// tubes dark.  The scheduler blanks the frame before starting it.
type rainbowTask struct {
	rep int
	pos int // 0 to rainbowSteps-1
}

func newRainbowTask() *rainbowTask {
	return &rainbowTask{}
}

func (t *rainbowTask) step(d Display) (time.Duration, bool) {
	if err := d.SetColor(nixie.ColorWheel(t.pos * (256 / rainbowSteps))); err != nil {
		logShowError(err)
	}
	t.pos++
	if t.pos >= rainbowSteps {
		t.pos = 0
		t.rep++
	}
	return rainbowDwell, t.rep >= rainbowReps
}

// holdTask keeps the current frame visible for a fixed dwell; the date
// display uses it to stay up for ten seconds.
type holdTask struct {
	dwell time.Duration
}

func (t *holdTask) step(d Display) (time.Duration, bool) {
	return t.dwell, true
}

func logShowError(err error) {
	logrus.Warnf("display: %v", err)
}
