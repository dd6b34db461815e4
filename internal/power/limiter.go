// Package power keeps a frame inside the current the matrix supply can
// deliver.
package power

import "github.com/coreman2200/ledmatrix/internal/pixel"

// DefaultChannelMilliamps is the draw of one channel at full scale.
const DefaultChannelMilliamps = 20.0

// Limiter caps per-LED and whole-frame brightness. The zero value does
// nothing.
type Limiter struct {
	// WhiteCap limits R+G+B of each LED to this fraction of full white.
	// 0 or >= 1 disables it.
	WhiteCap float64
	// ChannelMilliamps is the current of one channel at 255.
	ChannelMilliamps float64
	// BudgetMilliamps is the frame budget; 0 disables it.
	BudgetMilliamps float64
}

// Enabled reports whether Apply can change anything.
func (l Limiter) Enabled() bool {
	return (l.WhiteCap > 0 && l.WhiteCap < 1) || l.BudgetMilliamps > 0
}

func (l Limiter) channelMilliamps() float64 {
	if l.ChannelMilliamps > 0 {
		return l.ChannelMilliamps
	}
	return DefaultChannelMilliamps
}

// Estimate returns the current drawn by colors in mA.
func (l Limiter) Estimate(colors []pixel.Color) float64 {
	var sum float64
	for _, c := range colors {
		sum += float64(c.R) + float64(c.G) + float64(c.B)
	}
	return sum / 255 * l.channelMilliamps()
}

// Apply scales colors in place: first each LED down to the white cap, then
// the whole frame down to the budget.
func (l Limiter) Apply(colors []pixel.Color) {
	if l.WhiteCap > 0 && l.WhiteCap < 1 {
		limit := l.WhiteCap * 3 * 255
		for i, c := range colors {
			s := float64(c.R) + float64(c.G) + float64(c.B)
			if s > limit {
				colors[i] = scale(c, limit/s)
			}
		}
	}

	if l.BudgetMilliamps <= 0 {
		return
	}
	total := l.Estimate(colors)
	if total <= l.BudgetMilliamps {
		return
	}
	s := l.BudgetMilliamps / total
	for i, c := range colors {
		colors[i] = scale(c, s)
	}
}

// scale truncates so the result never exceeds the requested limit.
func scale(c pixel.Color, s float64) pixel.Color {
	return pixel.Color{
		R: uint8(float64(c.R) * s),
		G: uint8(float64(c.G) * s),
		B: uint8(float64(c.B) * s),
	}
}
