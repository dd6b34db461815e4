package matrix

import (
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/gift"
	"golang.org/x/image/draw"

	"github.com/coreman2200/ledmatrix/internal/colormath"
	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/pixel"
)

// ErrNoImage is returned when asked to render a nil image.
var ErrNoImage = errors.New("matrix: no image")

// Render runs img through the pixel pipeline of p: rotate, bilinear resize,
// color correction, power limiting, wiring order and encoding. It returns
// the frame to emit and the colors in wiring order.
func Render(img image.Image, p Profile) (firmata.Frame, []pixel.Color, error) {
	if img == nil {
		return firmata.Frame{}, nil, ErrNoImage
	}
	if p.ChunkSize < 0 {
		return firmata.Frame{}, nil, fmt.Errorf("%w: %w: %d", ErrConfig, firmata.ErrChunkSize, p.ChunkSize)
	}

	grid := pixel.FromImage(fit(rotate(img, p.Rotation), p.Width, p.Height))
	colormath.Adjust(grid.Pix, p.Perceptual, p.Gamma)
	if p.Power.Enabled() {
		p.Power.Apply(grid.Pix)
	}

	seq, err := p.Layout().Apply(grid)
	if err != nil {
		return firmata.Frame{}, nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	return encode(seq, p), seq, nil
}

func encode(seq []pixel.Color, p Profile) firmata.Frame {
	f := firmata.Frame{Format: p.Format, ChunkSize: p.ChunkSize}
	switch p.Format {
	case firmata.Pixel7:
		f.Pixels = pixel.EncodeMono(seq)
	case firmata.Palette:
		pal := pixel.BuildPalette(seq)
		f.Table = pal.Encode()
		f.Pixels = pal.Indices(seq)
	default:
		f.Pixels = pixel.EncodeSequence(seq)
	}
	return f
}

// rotate turns img clockwise by deg degrees.
func rotate(img image.Image, deg int) image.Image {
	var f gift.Filter
	switch ((deg % 360) + 360) % 360 {
	case 90:
		f = gift.Rotate270()
	case 180:
		f = gift.Rotate180()
	case 270:
		f = gift.Rotate90()
	default:
		return img
	}
	g := gift.New(f)
	dst := image.NewNRGBA(g.Bounds(img.Bounds()))
	g.Draw(dst, img)
	return dst
}

// fit returns img scaled to w x h with bilinear interpolation. Images that
// already have that size are copied as is.
func fit(img image.Image, w, h int) *image.NRGBA {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	src := img.Bounds()
	if src.Dx() == w && src.Dy() == h {
		draw.Copy(dst, image.Point{}, img, src, draw.Src, nil)
		return dst
	}
	draw.BiLinear.Scale(dst, dst.Bounds(), img, src, draw.Src, nil)
	return dst
}
