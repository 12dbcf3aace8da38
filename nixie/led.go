package nixie

// RGB is a 24-bit accent LED color, before gamma correction.
type RGB struct {
	R, G, B uint8
}

// A few colors the display programs use.
var (
	Black = RGB{0, 0, 0}
	Blue  = RGB{0, 0, 127}
	Green = RGB{0, 127, 0}
	Red   = RGB{127, 0, 0}
	White = RGB{127, 127, 127}
)

// ColorWheel maps a position 0-255 onto a color that transitions
// red -> green -> blue -> back to red.  Positions outside the range wrap.
func ColorWheel(pos int) RGB {
	pos %= 256
	if pos < 0 {
		pos += 256
	}
	switch {
	case pos < 85:
		return RGB{R: uint8(255 - pos*3), G: uint8(pos * 3)}
	case pos < 170:
		pos -= 85
		return RGB{G: uint8(255 - pos*3), B: uint8(pos * 3)}
	default:
		pos -= 170
		return RGB{R: uint8(pos * 3), B: uint8(255 - pos*3)}
	}
}

// gammaTable linearizes perceived LED brightness.  Taken from the shield's
// datasheet; applied to each channel just before the PWM output.
var gammaTable = [256]uint8{
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1,
	1, 1, 1, 1, 1, 1, 1, 1, 1, 2, 2, 2, 2, 2, 2, 2,
	2, 3, 3, 3, 3, 3, 3, 3, 4, 4, 4, 4, 4, 5, 5, 5,
	5, 6, 6, 6, 6, 7, 7, 7, 7, 8, 8, 8, 9, 9, 9, 10,
	10, 10, 11, 11, 11, 12, 12, 13, 13, 13, 14, 14, 15, 15, 16, 16,
	17, 17, 18, 18, 19, 19, 20, 20, 21, 21, 22, 22, 23, 24, 24, 25,
	25, 26, 27, 27, 28, 29, 29, 30, 31, 32, 32, 33, 34, 35, 35, 36,
	37, 38, 39, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 50,
	51, 52, 54, 55, 56, 57, 58, 59, 60, 61, 62, 63, 64, 66, 67, 68,
	69, 70, 72, 73, 74, 75, 77, 78, 79, 81, 82, 83, 85, 86, 87, 89,
	90, 92, 93, 95, 96, 98, 99, 101, 102, 104, 105, 107, 109, 110, 112, 114,
	115, 117, 119, 120, 122, 124, 126, 127, 129, 131, 133, 135, 137, 138, 140, 142,
	144, 146, 148, 150, 152, 154, 156, 158, 160, 162, 164, 167, 169, 171, 173, 175,
	177, 180, 182, 184, 186, 189, 191, 193, 196, 198, 200, 203, 205, 208, 210, 213,
	215, 218, 220, 223, 225, 228, 231, 233, 236, 239, 241, 244, 247, 249, 252, 255,
}

// gamma applies the correction table to one channel.
func gamma(v uint8) uint8 {
	return gammaTable[v]
}
