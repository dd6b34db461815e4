package matrix

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/layout"
	"github.com/coreman2200/ledmatrix/internal/power"
)

var (
	// ErrConfig marks a profile that cannot render the current frame, such
	// as a magic pixel outside the grid or a negative chunk size. Nothing is
	// sent to the device.
	ErrConfig = errors.New("matrix: configuration error")
	// ErrInvalidProfile is returned by New and Validate for a profile that
	// can never render.
	ErrInvalidProfile = errors.New("matrix: invalid profile")
	// ErrUnknownPreset is returned by Preset.
	ErrUnknownPreset = errors.New("matrix: unknown preset")
	// ErrNotInitialized is returned by DisplayImage when the profile has
	// init codes that have not been sent on the current connection.
	ErrNotInitialized = errors.New("matrix: not initialized")
)

// Profile describes one physical matrix: its size, wiring and firmware
// dialect.
type Profile struct {
	Name   string
	Width  int
	Height int

	Topology layout.Topology
	Scan     layout.Scan
	Mirror   bool
	// Rotation in degrees clockwise, a multiple of 90.
	Rotation int

	Perceptual bool
	// Gamma of 0 or 1 disables gamma correction.
	Gamma float64
	// MagicPixel is a per-unit calibration constant, nil when the strand
	// has no hidden pixel.
	MagicPixel *int
	// Power limits brightness after color correction.
	Power power.Limiter

	ChunkSize int
	Format    firmata.Format
	// Init is the control codes Initialize sends once per connection.
	Init []byte
	// Pace is the gap between frames.
	Pace time.Duration
}

// Validate reports structural problems. Problems that depend on the frame,
// like the magic pixel index, surface at render time as ErrConfig.
func (p Profile) Validate() error {
	switch {
	case p.Width <= 0 || p.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidProfile, p.Width, p.Height)
	case p.Rotation%90 != 0:
		return fmt.Errorf("%w: rotation %d is not a multiple of 90", ErrInvalidProfile, p.Rotation)
	case p.Gamma < 0:
		return fmt.Errorf("%w: gamma %v", ErrInvalidProfile, p.Gamma)
	case p.Format > firmata.Raw:
		return fmt.Errorf("%w: format %v", ErrInvalidProfile, p.Format)
	case p.Pace < 0:
		return fmt.Errorf("%w: pace %v", ErrInvalidProfile, p.Pace)
	case p.Power.WhiteCap < 0 || p.Power.BudgetMilliamps < 0 || p.Power.ChannelMilliamps < 0:
		return fmt.Errorf("%w: power limits %+v", ErrInvalidProfile, p.Power)
	}
	for _, code := range p.Init {
		if code&0x80 != 0 {
			return fmt.Errorf("%w: init code %#x is not 7-bit", ErrInvalidProfile, code)
		}
	}
	return nil
}

// Layout returns the wiring transform of p.
func (p Profile) Layout() layout.Layout {
	return layout.Layout{
		Topology:   p.Topology,
		Scan:       p.Scan,
		Mirror:     p.Mirror,
		MagicPixel: p.MagicPixel,
	}
}

// Pixels is the number of pixels sent per frame.
func (p Profile) Pixels() int { return p.Layout().Count(p.Width, p.Height) }

// Clone returns a deep copy of p.
func (p Profile) Clone() Profile {
	if p.MagicPixel != nil {
		v := *p.MagicPixel
		p.MagicPixel = &v
	}
	p.Init = append([]byte(nil), p.Init...)
	return p
}

func intp(v int) *int { return &v }

var presets = map[string]Profile{
	// 48x48 LPD8806 strand behind curtain firmware.
	"lpd8806": {
		Name:       "lpd8806",
		Width:      48,
		Height:     48,
		Topology:   layout.Serpentine,
		Mirror:     true,
		Perceptual: true,
		Gamma:      1.5,
		MagicPixel: intp(947),
		ChunkSize:  30,
		Format:     firmata.Raw,
		Init:       []byte{firmata.LEDConfig, firmata.LEDReset},
		Pace:       firmata.DefaultPace,
	},
	"ledpanel": {
		Name:      "ledpanel",
		Width:     32,
		Height:    32,
		ChunkSize: 30,
		Format:    firmata.Pixel21,
		Init:      []byte{firmata.LEDConfig},
		Pace:      firmata.DefaultPace,
	},
	// The panel firmware configures itself on boot.
	"matrixpanel": {
		Name:      "matrixpanel",
		Width:     32,
		Height:    32,
		ChunkSize: 30,
		Format:    firmata.Raw,
		Pace:      firmata.DefaultPace,
	},
}

// Preset returns a copy of a built-in hardware profile.
func Preset(name string) (Profile, error) {
	p, ok := presets[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return p.Clone(), nil
}

// Presets lists the built-in profile names.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for n := range presets {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
