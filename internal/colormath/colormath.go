// Package colormath converts pixel colors to HSI components and remaps them
// so LED output looks perceptually even.
//
// All conversions back to 8-bit channels truncate toward zero and clamp to
// [0, 255]; the perceptual output depends on that rounding staying fixed.
package colormath

import (
	"math"

	"github.com/coreman2200/ledmatrix/internal/pixel"
)

const (
	piOverThree     = math.Pi / 3
	twoPiOverThree  = 2 * piOverThree
	fourPiOverThree = 4 * piOverThree
)

// Hue returns the hue of c in degrees, in [0, 360). Grays have hue 0.
func Hue(c pixel.Color) float64 {
	if c.R == c.G && c.G == c.B {
		return 0
	}

	r, g, b := c.Floats()
	delta := float64(c.Max())/255 - float64(c.Min())/255

	var h float64
	switch c.Max() {
	case c.R:
		h = (g - b) / delta
	case c.G:
		h = 2 + (b-r)/delta
	default:
		h = 4 + (r-g)/delta
	}
	return math.Mod(h*60+360, 360)
}

// Intensity returns the HSI intensity of c in [0, 1].
func Intensity(c pixel.Color) float64 {
	m := c.Max()
	if m == 0 {
		return 0
	}
	return float64(m) / 255
}

// Saturation returns the HSI saturation of c in [0, 1]. Black has zero
// saturation.
func Saturation(c pixel.Color) float64 {
	hi := c.Max()
	if hi == 0 {
		return 0
	}
	return 1 - float64(c.Min())/float64(hi)
}

// ApplyGamma raises each channel to gamma in normalized space.
// gamma > 1 darkens midtones, gamma < 1 brightens them.
func ApplyGamma(c pixel.Color, gamma float64) pixel.Color {
	return pixel.Color{
		R: gammaChannel(c.R, gamma),
		G: gammaChannel(c.G, gamma),
		B: gammaChannel(c.B, gamma),
	}
}

func gammaChannel(v uint8, gamma float64) uint8 {
	return toByte(255 * math.Pow(float64(v)/255, gamma))
}

// ToPerceptual rebuilds c from its HSI components with intensity spread over
// the three channels, so green does not dominate the LED output.
func ToPerceptual(c pixel.Color) pixel.Color {
	hue := Hue(c) * (math.Pi / 180)
	intensity := Intensity(c) / 3
	saturation := Saturation(c)

	switch {
	case hue < twoPiOverThree:
		return pixel.Color{
			R: transformA(hue, saturation, intensity),
			G: transformB(hue, saturation, intensity),
			B: transformC(saturation, intensity),
		}
	case hue < fourPiOverThree:
		hue -= twoPiOverThree
		return pixel.Color{
			R: transformC(saturation, intensity),
			G: transformA(hue, saturation, intensity),
			B: transformB(hue, saturation, intensity),
		}
	default:
		hue -= fourPiOverThree
		return pixel.Color{
			R: transformB(hue, saturation, intensity),
			G: transformC(saturation, intensity),
			B: transformA(hue, saturation, intensity),
		}
	}
}

// hueRatio is cos(h)/cos(π/3-h); h stays below 2π/3 so the denominator
// never reaches zero.
func hueRatio(hue float64) float64 {
	return math.Cos(hue) / math.Cos(piOverThree-hue)
}

func transformA(hue, saturation, intensity float64) uint8 {
	return toByte(255 * intensity * (1 + saturation*hueRatio(hue)))
}

func transformB(hue, saturation, intensity float64) uint8 {
	return toByte(255 * intensity * (1 + saturation*(1-hueRatio(hue))))
}

func transformC(saturation, intensity float64) uint8 {
	return toByte(255 * intensity * (1 - saturation))
}

// toByte truncates v toward zero and clamps it to a channel value.
func toByte(v float64) uint8 {
	switch {
	case math.IsNaN(v) || v <= 0:
		return 0
	case v >= 255:
		return 255
	default:
		return uint8(v)
	}
}

// Adjust applies the perceptual remap and then gamma to colors in place.
// A gamma of 0 or 1 leaves the channels untouched.
func Adjust(colors []pixel.Color, perceptual bool, gamma float64) {
	useGamma := gamma > 0 && gamma != 1
	if !perceptual && !useGamma {
		return
	}
	for i, c := range colors {
		if perceptual {
			c = ToPerceptual(c)
		}
		if useGamma {
			c = ApplyGamma(c, gamma)
		}
		colors[i] = c
	}
}
