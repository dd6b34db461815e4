package pixel

import (
	"image"
	"image/color"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWireBytesRoundTrip(t *testing.T) {
	for v := 0; v < 256; v++ {
		c := RGB(uint8(v), uint8(255-v), uint8(v/2))
		w := WireBytes(c)
		for i, want := range []uint8{c.R, c.G, c.B} {
			require.Less(t, w[i], byte(0x80), "wire byte must be 7-bit")
			got := int(w[i]) << 1
			assert.InDelta(t, int(want), got, 1, "channel %d of %v", i, c)
		}
	}
}

func TestEncodeSequence(t *testing.T) {
	colors := []Color{RGB(255, 0, 128), RGB(1, 2, 3), RGB(200, 100, 50)}
	got := EncodeSequence(colors)
	assert.Len(t, got, 3*len(colors))
	assert.Equal(t, []byte{127, 0, 64, 0, 1, 1, 100, 50, 25}, got)

	assert.Empty(t, EncodeSequence(nil))
}

func TestEncodeMono(t *testing.T) {
	got := EncodeMono([]Color{RGB(0, 0, 0), RGB(255, 255, 255), RGB(255, 0, 0)})
	assert.Equal(t, []byte{0, 127, 38}, got)
}

func TestNewGrid(t *testing.T) {
	_, err := NewGrid(2, 2, make([]Color, 3))
	assert.ErrorIs(t, err, ErrGridSize)

	g, err := NewGrid(2, 1, []Color{RGB(1, 1, 1), RGB(2, 2, 2)})
	require.NoError(t, err)
	assert.Equal(t, RGB(2, 2, 2), g.At(1, 0))
	assert.Equal(t, 2, g.Len())
}

func TestFromImage(t *testing.T) {
	for _, tc := range []struct {
		name string
		img  func(r image.Rectangle) image.Image
	}{
		{"nrgba", func(r image.Rectangle) image.Image { return fill(image.NewNRGBA(r)) }},
		{"rgba", func(r image.Rectangle) image.Image { return fill(image.NewRGBA(r)) }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			img := tc.img(image.Rect(3, 5, 6, 7))
			g := FromImage(img)
			require.Equal(t, 3, g.Width)
			require.Equal(t, 2, g.Height)
			require.Len(t, g.Pix, 6)
			assert.Equal(t, RGB(3, 5, 9), g.At(0, 0))
			assert.Equal(t, RGB(5, 6, 12), g.At(2, 1))
		})
	}
}

func fill(img interface {
	image.Image
	Set(x, y int, c color.Color)
}) image.Image {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x), G: uint8(y), B: uint8(x + y + 1), A: 255})
		}
	}
	return img
}

func TestStrip(t *testing.T) {
	im := Strip([]Color{RGB(1, 2, 3), RGB(4, 5, 6)})
	assert.Equal(t, image.Rect(0, 0, 2, 1), im.Bounds())
	assert.Equal(t, RGB(4, 5, 6), Model.Convert(im.At(1, 0)))
}

func TestPaletteExact(t *testing.T) {
	colors := []Color{RGB(255, 0, 0), RGB(0, 255, 0), RGB(255, 0, 0), RGB(0, 0, 254)}
	p := BuildPalette(colors)
	require.True(t, p.Exact())
	assert.Equal(t, 3, p.Len())
	assert.Equal(t, []byte{127, 0, 0, 0, 127, 0, 0, 0, 127}, p.Encode())
	assert.Equal(t, []byte{0, 1, 0, 2}, p.Indices(colors))
}

func TestPaletteUniform(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))
	colors := make([]Color, 1024)
	for i := range colors {
		colors[i] = RGB(uint8(rnd.Intn(256)), uint8(rnd.Intn(256)), uint8(rnd.Intn(256)))
	}
	p := BuildPalette(colors)
	require.False(t, p.Exact())
	assert.Equal(t, MaxPaletteSize, p.Len())
	for _, b := range p.Encode() {
		assert.Less(t, b, byte(0x80))
	}
	for _, i := range p.Indices(colors) {
		assert.Less(t, int(i), MaxPaletteSize)
	}

	idx := p.Indices([]Color{RGB(255, 255, 255), RGB(0, 0, 0)})
	assert.Equal(t, []byte{127, 0}, idx)
}
