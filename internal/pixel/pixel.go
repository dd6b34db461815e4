// Package pixel holds the color and grid types fed through the LED pipeline
// and the byte encodings understood by the matrix firmware.
package pixel

import (
	"errors"
	"fmt"
	"image"
	"image/color"
)

// ErrGridSize is returned when a grid's pixel count does not match its dimensions.
var ErrGridSize = errors.New("pixel: grid size mismatch")

// Color is an 8-bit RGB triple.
type Color struct {
	R, G, B uint8
}

// RGB builds a Color.
func RGB(r, g, b uint8) Color { return Color{R: r, G: g, B: b} }

// RGBA implements color.Color; pixels are always opaque.
func (c Color) RGBA() (r, g, b, a uint32) {
	r = uint32(c.R)
	r |= r << 8
	g = uint32(c.G)
	g |= g << 8
	b = uint32(c.B)
	b |= b << 8
	return r, g, b, 0xffff
}

// Floats returns the channels normalized to 0..1.
func (c Color) Floats() (r, g, b float64) {
	return float64(c.R) / 255, float64(c.G) / 255, float64(c.B) / 255
}

// Max returns the largest channel value.
func (c Color) Max() uint8 {
	m := c.R
	if c.G > m {
		m = c.G
	}
	if c.B > m {
		m = c.B
	}
	return m
}

// Min returns the smallest channel value.
func (c Color) Min() uint8 {
	m := c.R
	if c.G < m {
		m = c.G
	}
	if c.B < m {
		m = c.B
	}
	return m
}

func (c Color) String() string {
	return fmt.Sprintf("(%d, %d, %d)", c.R, c.G, c.B)
}

// Model converts any color.Color to a Color, dropping alpha.
var Model color.Model = color.ModelFunc(model)

func model(c color.Color) color.Color {
	if _, ok := c.(Color); ok {
		return c
	}
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return Color{R: n.R, G: n.G, B: n.B}
}

// Grid is a row-major block of colors. len(Pix) == Width*Height.
type Grid struct {
	Width  int
	Height int
	Pix    []Color
}

// NewGrid wraps pix as a width x height grid.
func NewGrid(width, height int, pix []Color) (Grid, error) {
	if width < 0 || height < 0 || len(pix) != width*height {
		return Grid{}, fmt.Errorf("%w: %dx%d with %d pixels", ErrGridSize, width, height, len(pix))
	}
	return Grid{Width: width, Height: height, Pix: pix}, nil
}

// At returns the color at (x, y).
func (g Grid) At(x, y int) Color {
	return g.Pix[y*g.Width+x]
}

// Len is the number of pixels in the grid.
func (g Grid) Len() int { return len(g.Pix) }

// FromImage extracts the pixels of img in row-major order, starting at the
// top left of its bounds.
func FromImage(img image.Image) Grid {
	b := img.Bounds()
	g := Grid{Width: b.Dx(), Height: b.Dy(), Pix: make([]Color, 0, b.Dx()*b.Dy())}

	if n, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			i := n.PixOffset(b.Min.X, y)
			for x := b.Min.X; x < b.Max.X; x++ {
				g.Pix = append(g.Pix, Color{R: n.Pix[i], G: n.Pix[i+1], B: n.Pix[i+2]})
				i += 4
			}
		}
		return g
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Pix = append(g.Pix, Model.Convert(img.At(x, y)).(Color))
		}
	}
	return g
}

// Strip renders colors as a 1-pixel-high image in sequence order.
func Strip(colors []Color) *image.NRGBA {
	im := image.NewNRGBA(image.Rect(0, 0, len(colors), 1))
	for x, c := range colors {
		im.SetNRGBA(x, 0, color.NRGBA{R: c.R, G: c.G, B: c.B, A: 255})
	}
	return im
}
