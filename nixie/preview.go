package nixie

import (
	"image"
	"image/color"
	"image/png"
	"net/http"

	"github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ServeHTTP serves the shield's current state as a PNG: the six tubes as
// orange glyphs, the dot lamps as colons, and the accent LED as a bar
// along the bottom.  Handy for debugging without the hardware attached.
func (s *Shield) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	f, c, hv := s.Snapshot()

	const width, height = 68, 24
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{A: 0xff})
		}
	}

	if hv {
		drawer := &font.Drawer{
			Dst:  img,
			Src:  image.NewUniform(color.RGBA{R: 0xff, G: 0x8c, B: 0x1a, A: 0xff}),
			Face: basicfont.Face7x13,
			Dot:  fixed.P(2, 14),
		}
		drawer.DrawString(faceString(f))
	}

	// Accent LED state, gamma left off so dim colors stay visible.
	for x := 0; x < width; x++ {
		for y := height - 4; y < height; y++ {
			img.Set(x, y, color.RGBA{R: c.R, G: c.G, B: c.B, A: 0xff})
		}
	}

	w.Header().Add("content-type", "image/png")
	w.WriteHeader(http.StatusOK)
	if err := png.Encode(w, img); err != nil {
		logrus.Errorf("encoding preview image: %v", err)
	}
}

// faceString formats a frame the way the tubes show it, e.g. "12:34:56" or
// " 7:05:00" with a blanked tube, with the colons tracking the dot lamps.
func faceString(f Frame) string {
	sep := byte(' ')
	if f.Dots {
		sep = ':'
	}
	buf := make([]byte, 0, 8)
	for i, d := range f.Digits {
		if i == 2 || i == 4 {
			buf = append(buf, sep)
		}
		if d > 9 {
			buf = append(buf, ' ')
		} else {
			buf = append(buf, '0'+byte(d))
		}
	}
	return string(buf)
}
