package rimage

import (
	"fmt"
	"image/color"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
)

// RGB is a color with channels normalized to [0,1], the form vertex colors take.
type RGB struct {
	R, G, B float64
}

// NewRGB255 normalizes 8-bit channels.
func NewRGB255(r, g, b uint8) RGB {
	return RGB{float64(r) / 255., float64(g) / 255., float64(b) / 255.}
}

// NewRGBHex converts a packed 0xRRGGBB value.
func NewRGBHex(hex uint32) RGB {
	return NewRGB255(uint8(hex>>16), uint8(hex>>8), uint8(hex))
}

// RGBA implements color.Color.
func (c RGB) RGBA() (r, g, b, a uint32) {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().RGBA()
}

// NRGBA converts to an opaque 8-bit color.
func (c RGB) NRGBA() color.NRGBA {
	r, g, b := colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().RGB255()
	return color.NRGBA{r, g, b, 0xFF}
}

// Hex returns the "#rrggbb" form.
func (c RGB) Hex() string {
	return colorful.Color{R: c.R, G: c.G, B: c.B}.Clamped().Hex()
}

func (c RGB) String() string {
	return fmt.Sprintf("rgb(%.3f,%.3f,%.3f)", c.R, c.G, c.B)
}

// ParseColor accepts "#rgb" and "#rrggbb" strings.
func ParseColor(s string) (RGB, error) {
	c, err := colorful.Hex(s)
	if err != nil {
		return RGB{}, errors.Wrapf(err, "invalid color %q", s)
	}
	return NewRGB255(c.RGB255()), nil
}
