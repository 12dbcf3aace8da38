package timesource

import (
	"reflect"
	"testing"
	"time"

	"periph.io/x/conn/v3/physic"
)

func TestBCD(t *testing.T) {
	for dec := uint8(0); dec < 100; dec++ {
		bcd := decToBCD(dec)
		if got, want := bcd, dec/10*16+dec%10; got != want {
			t.Errorf("decToBCD(%d):\n  got: %#x\n want: %#x", dec, got, want)
		}
		if got := bcdToDec(bcd); got != dec {
			t.Errorf("bcd round trip for %d: got %d", dec, got)
		}
	}
}

// fakeBus is an in-memory DS1307 register file.
type fakeBus struct {
	regs    [8]byte
	written []byte
}

func (b *fakeBus) String() string { return "fake" }

func (b *fakeBus) SetSpeed(f physic.Frequency) error { return nil }

func (b *fakeBus) Tx(addr uint16, w, r []byte) error {
	if len(r) > 0 {
		// Register read starting at w[0].
		copy(r, b.regs[w[0]:])
		return nil
	}
	b.written = append([]byte(nil), w...)
	return nil
}

func TestDS1307ReadTime(t *testing.T) {
	bus := &fakeBus{}
	// 2021-03-20 04:20:48 UTC, a Saturday.
	bus.regs = [8]byte{0x48, 0x20, 0x04, 0x07, 0x20, 0x03, 0x21, 0x00}
	rtc := NewDS1307(bus)

	got, err := rtc.ReadTime()
	if err != nil {
		t.Fatalf("read time: %v", err)
	}
	want := time.Date(2021, time.March, 20, 4, 20, 48, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("rtc time:\n  got: %v\n want: %v", got, want)
	}
}

func TestDS1307ReadTimeMasksControlBits(t *testing.T) {
	bus := &fakeBus{}
	// Oscillator-halt flag set on the seconds register; should be masked.
	bus.regs = [8]byte{0x80 | 0x05, 0x00, 0x40 | 0x12, 0x01, 0x01, 0x01, 0x21, 0x00}
	rtc := NewDS1307(bus)

	got, err := rtc.ReadTime()
	if err != nil {
		t.Fatalf("read time: %v", err)
	}
	if got.Second() != 5 || got.Hour() != 12 {
		t.Errorf("masked read:\n  got: %02d:xx:%02d\n want: 12:xx:05", got.Hour(), got.Second())
	}
}

func TestDS1307SetTime(t *testing.T) {
	bus := &fakeBus{}
	rtc := NewDS1307(bus)

	if err := rtc.SetTime(time.Date(2021, time.March, 20, 4, 20, 48, 0, time.UTC)); err != nil {
		t.Fatalf("set time: %v", err)
	}
	// Register pointer, then sec/min/hour/weekday/day/month/year in BCD.
	want := []byte{0x00, 0x48, 0x20, 0x04, 0x07, 0x20, 0x03, 0x21}
	if got := bus.written; !reflect.DeepEqual(got, want) {
		t.Errorf("written registers:\n  got: %#x\n want: %#x", got, want)
	}
}
