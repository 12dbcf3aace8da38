package timesource

import (
	"fmt"
	"time"

	"periph.io/x/conn/v3/i2c"
)

// DS1307 I2C address on the shield.
const ds1307Addr = 0x68

// RTC is a battery-backed hardware clock.  Implemented by DS1307; a fake
// stands in during tests.
type RTC interface {
	// ReadTime reads the stored date and time, at one-second resolution.
	ReadTime() (time.Time, error)
	// SetTime writes a new date and time.
	SetTime(t time.Time) error
}

// DS1307 reads and writes the shield's real-time clock chip.  The chip
// stores seven consecutive BCD registers: second, minute, hour, weekday,
// day, month, year.  Time is kept in UTC so seasonal changes never touch
// the hardware.
type DS1307 struct {
	dev i2c.Dev
}

// NewDS1307 returns a clock on the given I2C bus.
func NewDS1307(bus i2c.Bus) *DS1307 {
	return &DS1307{dev: i2c.Dev{Bus: bus, Addr: ds1307Addr}}
}

func decToBCD(v uint8) uint8 {
	return v/10*16 + v%10
}

func bcdToDec(v uint8) uint8 {
	return v/16*10 + v%16
}

// ReadTime implements RTC.
func (r *DS1307) ReadTime() (time.Time, error) {
	var buf [7]byte
	if err := r.dev.Tx([]byte{0x00}, buf[:]); err != nil {
		return time.Time{}, fmt.Errorf("read rtc registers: %w", err)
	}
	sec := int(bcdToDec(buf[0] & 0x7f)) // top bit is the oscillator-halt flag
	min := int(bcdToDec(buf[1]))
	hour := int(bcdToDec(buf[2] & 0x3f)) // 24-hour mode
	day := int(bcdToDec(buf[4]))
	month := time.Month(bcdToDec(buf[5]))
	year := 2000 + int(bcdToDec(buf[6]))
	return time.Date(year, month, day, hour, min, sec, 0, time.UTC), nil
}

// SetTime implements RTC.  Writing the seconds register also restarts the
// oscillator if the battery had drained.
func (r *DS1307) SetTime(t time.Time) error {
	t = t.UTC()
	buf := []byte{
		0x00, // register pointer
		decToBCD(uint8(t.Second())),
		decToBCD(uint8(t.Minute())),
		decToBCD(uint8(t.Hour())),
		decToBCD(uint8(t.Weekday()) + 1), // chip counts 1-7
		decToBCD(uint8(t.Day())),
		decToBCD(uint8(t.Month())),
		decToBCD(uint8(t.Year() % 100)),
	}
	if err := r.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("write rtc registers: %w", err)
	}
	return nil
}
