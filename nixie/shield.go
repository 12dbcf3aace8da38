package nixie

import (
	"fmt"
	"sync"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
)

// The accent LED PWM frequency.  The shield's LED driver is happy anywhere
// above flicker; this matches the reference hardware.
const ledPWMFreq = 12 * physic.KiloHertz

// Pins collects the GPIO lines the shield uses beyond SPI.
type Pins struct {
	Latch    gpio.PinOut // low = registers accept data, high = latched
	HV       gpio.PinOut // high-voltage supply enable
	Dots     gpio.PinOut // neon dot lamps
	LEDRed   gpio.PinOut
	LEDGreen gpio.PinOut
	LEDBlue  gpio.PinOut
}

// Shield talks to the nixie tube shield.  It retains a copy of the last
// frame and accent color so the rest of the program can be debugged over
// HTTP without the hardware attached.
type Shield struct {
	conn spi.Conn
	pins Pins

	mu    sync.Mutex
	frame Frame
	color RGB
	hvOn  bool
}

// New returns an initialized Shield.  A nil SPI port puts the shield in
// headless mode: all operations succeed and only the in-memory copy is
// updated.
func New(p spi.Port, pins Pins) (*Shield, error) {
	s := &Shield{pins: pins, frame: BlankFrame()}
	if p == nil {
		return s, nil
	}
	conn, err := p.Connect(2*physic.MegaHertz, spi.Mode0, 8)
	if err != nil {
		return nil, fmt.Errorf("connect to shift registers: %w", err)
	}
	s.conn = conn
	return s, nil
}

// Show pushes a frame to the tubes.  The transfer is bracketed by the
// latch line so a partially-shifted frame is never visible.
func (s *Shield) Show(f Frame) error {
	s.mu.Lock()
	s.frame = f
	s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	if err := s.pins.Latch.Out(gpio.Low); err != nil {
		return fmt.Errorf("latch low: %w", err)
	}
	if err := s.conn.Tx(f.Bytes(), nil); err != nil {
		return fmt.Errorf("shift out frame: %w", err)
	}
	if err := s.pins.Latch.Out(gpio.High); err != nil {
		return fmt.Errorf("latch high: %w", err)
	}
	if err := s.pins.Dots.Out(gpio.Level(f.Dots)); err != nil {
		return fmt.Errorf("set dot lamps: %w", err)
	}
	return nil
}

// Blank turns every tube and the dot lamps off.
func (s *Shield) Blank() error {
	if err := s.Show(BlankFrame()); err != nil {
		return fmt.Errorf("blank tubes: %w", err)
	}
	return nil
}

// HVEnable switches the tubes' high-voltage supply.
func (s *Shield) HVEnable(on bool) error {
	s.mu.Lock()
	s.hvOn = on
	s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	if err := s.pins.HV.Out(gpio.Level(on)); err != nil {
		return fmt.Errorf("set hv enable: %w", err)
	}
	return nil
}

// SetColor sets the accent LED, applying gamma correction to each channel
// before the PWM output.
func (s *Shield) SetColor(c RGB) error {
	s.mu.Lock()
	s.color = c
	s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	for _, ch := range []struct {
		pin gpio.PinOut
		v   uint8
	}{
		{s.pins.LEDRed, gamma(c.R)},
		{s.pins.LEDGreen, gamma(c.G)},
		{s.pins.LEDBlue, gamma(c.B)},
	} {
		duty := gpio.Duty(uint64(ch.v) * uint64(gpio.DutyMax) / 255)
		if err := ch.pin.PWM(duty, ledPWMFreq); err != nil {
			return fmt.Errorf("set led pwm on %s: %w", ch.pin, err)
		}
	}
	return nil
}

// Snapshot returns the last frame, accent color, and HV state pushed to
// the shield.
func (s *Shield) Snapshot() (Frame, RGB, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frame, s.color, s.hvOn
}
