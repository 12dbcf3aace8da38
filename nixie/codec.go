// Package nixie drives the six-tube nixie shield: two daisy-chained 32-bit
// shift registers for the digit cathodes, a latch line, a high-voltage
// enable line, neon dot lamps, and an RGB accent LED on three PWM pins.
package nixie

import "encoding/binary"

// Digit is one tube's value: 0 through 9, or Blank.
type Digit uint8

// Blank lights no cathode.
const Blank Digit = 10

// The dot lamps occupy the top two bits of each transfer word.  The shield
// wires both lamps to the same control signal, so they are always set
// together.
const (
	upperDotsMask = 0x80000000
	lowerDotsMask = 0x40000000
)

// Code returns the shift-register pattern for a digit: a single active bit
// at position d in a 10-bit field.  Blank (or anything out of range)
// asserts no bit, leaving every cathode off.
func (d Digit) Code() uint32 {
	if d > 9 {
		return 0
	}
	return 1 << d
}

// Frame is one complete display state.  Digits are ordered NX1 (hour tens,
// leftmost tube) through NX6 (second units).  Dots drives both neon dot
// lamps; they have no independent control.
type Frame struct {
	Digits [6]Digit
	Dots   bool
}

// BlankFrame returns a frame with every tube dark and the dots off.
func BlankFrame() Frame {
	return Frame{Digits: [6]Digit{Blank, Blank, Blank, Blank, Blank, Blank}}
}

// Fill returns a frame showing the same digit on all six tubes.
func Fill(d Digit, dots bool) Frame {
	return Frame{Digits: [6]Digit{d, d, d, d, d, d}, Dots: dots}
}

// Words packs the frame into the two shift-register words, in transfer
// order.  The first word carries the right-hand tube group (NX6 at bit 20,
// NX5 at bit 10, NX4 at bit 0), the second the left-hand group (NX3, NX2,
// NX1).  The dot masks are set identically in both words.
func (f Frame) Words() [2]uint32 {
	var dots uint32
	if f.Dots {
		dots = upperDotsMask | lowerDotsMask
	}
	return [2]uint32{
		f.Digits[5].Code()<<20 | f.Digits[4].Code()<<10 | f.Digits[3].Code() | dots,
		f.Digits[2].Code()<<20 | f.Digits[1].Code()<<10 | f.Digits[0].Code() | dots,
	}
}

// Bytes returns the 8-byte transfer sequence for the frame, each word
// most-significant byte first.  This is exactly what goes out on the wire
// between the latch-low and latch-high edges.
func (f Frame) Bytes() []byte {
	w := f.Words()
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], w[0])
	binary.BigEndian.PutUint32(buf[4:8], w[1])
	return buf
}
