// Package pattern generates calibration images used to check how a matrix
// is wired and to locate its magic pixel.
package pattern

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/fogleman/gg"

	"github.com/coreman2200/ledmatrix/internal/matrix"
	"github.com/coreman2200/ledmatrix/internal/pixel"
)

type Kind string

const (
	None Kind = ""
	// IndexSweep lights one wiring index per step, in wiring order.
	IndexSweep Kind = "index_sweep"
	// ColumnSweep lights one image column per step.
	ColumnSweep Kind = "column_sweep"
	// RGBTest fills the matrix red, then green, then blue.
	RGBTest Kind = "rgb_channels"
	// Solid fills the matrix with Plan.Color.
	Solid Kind = "solid"
)

// Kinds lists the known patterns.
func Kinds() []Kind { return []Kind{IndexSweep, ColumnSweep, RGBTest, Solid} }

// ParseKind returns the pattern named s.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return None, fmt.Errorf("pattern: unknown pattern %q", s)
}

type Plan struct {
	Kind  Kind
	Color pixel.Color
	// Start skips the first steps of a sweep.
	Start int
}

type Runner struct {
	plan Plan
	step int
}

func NewRunner(plan Plan) *Runner { return &Runner{plan: plan, step: plan.Start} }
func (r *Runner) Kind() Kind      { return r.plan.Kind }

// Step returns the next image for p; false when the pattern is complete.
func (r *Runner) Step(p matrix.Profile) (image.Image, bool) {
	dc := gg.NewContext(p.Width, p.Height)
	dc.SetRGB255(0, 0, 0)
	dc.Clear()
	dc.SetRGB255(255, 255, 255)

	switch r.plan.Kind {
	case IndexSweep:
		if r.step >= p.Width*p.Height {
			return nil, false
		}
		l := p.Layout()
		for y := 0; y < p.Height; y++ {
			for x := 0; x < p.Width; x++ {
				if l.Index(x, y, p.Width, p.Height) == r.step {
					dc.SetPixel(x, y)
				}
			}
		}
	case ColumnSweep:
		if r.step >= p.Width {
			return nil, false
		}
		for y := 0; y < p.Height; y++ {
			dc.SetPixel(r.step, y)
		}
	case RGBTest:
		if r.step >= 3 {
			return nil, false
		}
		switch r.step {
		case 0:
			dc.SetRGB255(255, 0, 0)
		case 1:
			dc.SetRGB255(0, 255, 0)
		case 2:
			dc.SetRGB255(0, 0, 255)
		}
		dc.Clear()
	case Solid:
		if r.step >= 1 {
			return nil, false
		}
		c := r.plan.Color
		dc.SetRGB255(int(c.R), int(c.G), int(c.B))
		dc.Clear()
	default:
		return nil, false
	}
	r.step++
	return dc.Image(), true
}

// ErrInterval is returned by Run for an interval that is not positive.
var ErrInterval = errors.New("pattern: interval must be positive")

// Run initializes m and displays every step of plan on it, one per interval.
func Run(ctx context.Context, m *matrix.Matrix, plan Plan, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%w: %v", ErrInterval, interval)
	}
	if err := m.Initialize(ctx); err != nil {
		return fmt.Errorf("pattern: %w", err)
	}
	r := NewRunner(plan)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	p := m.Profile()
	for {
		img, ok := r.Step(p)
		if !ok {
			return nil
		}
		if err := m.DisplayImage(ctx, img); err != nil {
			return fmt.Errorf("pattern: %s step %d: %w", plan.Kind, r.step-1, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
