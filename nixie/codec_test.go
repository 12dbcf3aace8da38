package nixie

import (
	"reflect"
	"testing"
)

func TestDigitCode(t *testing.T) {
	for d := Digit(0); d <= 9; d++ {
		got := d.Code()
		if want := uint32(1) << d; got != want {
			t.Errorf("code for digit %d:\n  got: %#x\n want: %#x", d, got, want)
		}
		if n := popcount(got); n != 1 {
			t.Errorf("digit %d asserts %d bits; want exactly 1", d, n)
		}
	}
	if got := Blank.Code(); got != 0 {
		t.Errorf("blank code:\n  got: %#x\n want: 0", got)
	}
}

func TestFrameWords(t *testing.T) {
	testData := []struct {
		name  string
		frame Frame
		want  [2]uint32
	}{
		{
			name:  "all blank",
			frame: BlankFrame(),
			want:  [2]uint32{0, 0},
		},
		{
			name:  "all blank with dots",
			frame: Fill(Blank, true),
			want:  [2]uint32{0xc0000000, 0xc0000000},
		},
		{
			// 12:34:56 -> NX1..NX6 = 1,2,3,4,5,6.
			name:  "time",
			frame: Frame{Digits: [6]Digit{1, 2, 3, 4, 5, 6}},
			want: [2]uint32{
				1<<6<<20 | 1<<5<<10 | 1<<4,
				1<<3<<20 | 1<<2<<10 | 1<<1,
			},
		},
		{
			name:  "zeros with dots",
			frame: Frame{Digits: [6]Digit{0, 0, 0, 0, 0, 0}, Dots: true},
			want: [2]uint32{
				0xc0000000 | 1<<20 | 1<<10 | 1,
				0xc0000000 | 1<<20 | 1<<10 | 1,
			},
		},
		{
			// Leading-zero suppression leaves NX1 dark.
			name:  "suppressed hour tens",
			frame: Frame{Digits: [6]Digit{Blank, 7, 0, 5, 0, 0}},
			want: [2]uint32{
				1<<0<<20 | 1<<0<<10 | 1<<5,
				1<<0<<20 | 1<<7<<10 | 0,
			},
		},
	}

	for _, test := range testData {
		t.Run(test.name, func(t *testing.T) {
			got := test.frame.Words()
			if want := test.want; got != want {
				t.Errorf("pack frame %+v:\n  got: %#x\n want: %#x", test.frame, got, want)
			}
		})
	}
}

// TestFrameRoundTrip checks that every slot value can be recovered from
// the packed words by inspecting the bit fields.
func TestFrameRoundTrip(t *testing.T) {
	frames := []Frame{
		{Digits: [6]Digit{0, 1, 2, 3, 4, 5}},
		{Digits: [6]Digit{9, 8, 7, 6, 5, 4}, Dots: true},
		{Digits: [6]Digit{Blank, 0, Blank, 9, Blank, 5}},
		BlankFrame(),
	}
	for _, f := range frames {
		got := unpack(f.Words())
		if want := f; !reflect.DeepEqual(got, want) {
			t.Errorf("round trip:\n  got: %+v\n want: %+v", got, want)
		}
	}
}

func TestFrameBytes(t *testing.T) {
	f := Frame{Digits: [6]Digit{1, 2, 3, 4, 5, 6}, Dots: true}
	w := f.Words()
	got := f.Bytes()
	want := []byte{
		byte(w[0] >> 24), byte(w[0] >> 16), byte(w[0] >> 8), byte(w[0]),
		byte(w[1] >> 24), byte(w[1] >> 16), byte(w[1] >> 8), byte(w[1]),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("transfer bytes:\n  got: %#x\n want: %#x", got, want)
	}
}

// unpack is the inverse of Frame.Words, for tests only.
func unpack(w [2]uint32) Frame {
	var f Frame
	fields := []uint32{
		w[1] & 0x3ff, w[1] >> 10 & 0x3ff, w[1] >> 20 & 0x3ff,
		w[0] & 0x3ff, w[0] >> 10 & 0x3ff, w[0] >> 20 & 0x3ff,
	}
	for i, field := range fields {
		f.Digits[i] = Blank
		for b := Digit(0); b <= 9; b++ {
			if field == 1<<b {
				f.Digits[i] = b
			}
		}
	}
	f.Dots = w[0]&0xc0000000 != 0
	return f
}

func popcount(v uint32) int {
	n := 0
	for ; v != 0; v &= v - 1 {
		n++
	}
	return n
}
