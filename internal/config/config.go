package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
	"periph.io/x/conn/v3/physic"

	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/layout"
	"github.com/coreman2200/ledmatrix/internal/matrix"
	"github.com/coreman2200/ledmatrix/internal/power"
)

type PowerCfg struct {
	LimitAmps float64 `yaml:"limit_amps"`
	WhiteCap  float64 `yaml:"white_cap"`
	ChannelMA float64 `yaml:"channel_ma"` // per channel at full scale; LPD8806 ≈ 20
}

// Limiter converts the section to a power limiter.
func (p PowerCfg) Limiter() power.Limiter {
	return power.Limiter{
		WhiteCap:         p.WhiteCap,
		ChannelMilliamps: p.ChannelMA,
		BudgetMilliamps:  p.LimitAmps * 1000,
	}
}

type Serial struct {
	Port string `yaml:"port"` // e.g. /dev/ttyACM0 or COM3
	Baud int    `yaml:"baud"`
}

type SPI struct {
	Port    string `yaml:"port"`     // "" picks the first port
	SpeedHz int64  `yaml:"speed_hz"` // e.g. 1000000
}

// Matrix overrides fields of the preset it names. Zero values keep the
// preset's value; pointers distinguish "unset" from false/0.
type Matrix struct {
	Preset     string   `yaml:"preset"`
	Width      int      `yaml:"width,omitempty"`
	Height     int      `yaml:"height,omitempty"`
	Topology   string   `yaml:"topology,omitempty"` // direct | serpentine
	Scan       string   `yaml:"scan,omitempty"`     // rows | columns
	Mirror     *bool    `yaml:"mirror,omitempty"`
	Rotation   int      `yaml:"rotation,omitempty"`
	Perceptual *bool    `yaml:"perceptual,omitempty"`
	Gamma      *float64 `yaml:"gamma,omitempty"`
	MagicPixel *int     `yaml:"magic_pixel,omitempty"`
	NoMagic    bool     `yaml:"no_magic_pixel,omitempty"`
	ChunkSize  *int     `yaml:"chunk_size,omitempty"`
	Format     string   `yaml:"format,omitempty"` // pixel21 | pixel7 | palette | raw
	Init       []int    `yaml:"init,omitempty,flow"` // control codes, e.g. [0x44, 0x43]
	PaceMs     *int     `yaml:"pace_ms,omitempty"`
	Power      PowerCfg `yaml:"power,omitempty"`
}

type Config struct {
	Driver string `yaml:"driver"` // "serial" | "spi" | "sim"
	Listen string `yaml:"listen"`
	FPS    int    `yaml:"fps"`

	Matrix Matrix `yaml:"matrix"`
	Serial Serial `yaml:"serial,omitempty"`
	SPI    SPI    `yaml:"spi,omitempty"`
}

func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return &c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}

// Profile resolves the matrix section into a profile. An empty preset name
// starts from ledpanel.
func (m Matrix) Profile() (matrix.Profile, error) {
	name := m.Preset
	if name == "" {
		name = "ledpanel"
	}
	p, err := matrix.Preset(name)
	if err != nil {
		return matrix.Profile{}, err
	}

	if m.Width > 0 {
		p.Width = m.Width
	}
	if m.Height > 0 {
		p.Height = m.Height
	}
	if m.Topology != "" {
		if p.Topology, err = layout.ParseTopology(m.Topology); err != nil {
			return matrix.Profile{}, err
		}
	}
	if m.Scan != "" {
		if p.Scan, err = layout.ParseScan(m.Scan); err != nil {
			return matrix.Profile{}, err
		}
	}
	if m.Mirror != nil {
		p.Mirror = *m.Mirror
	}
	if m.Rotation != 0 {
		p.Rotation = m.Rotation
	}
	if m.Perceptual != nil {
		p.Perceptual = *m.Perceptual
	}
	if m.Gamma != nil {
		p.Gamma = *m.Gamma
	}
	switch {
	case m.NoMagic:
		p.MagicPixel = nil
	case m.MagicPixel != nil:
		v := *m.MagicPixel
		p.MagicPixel = &v
	}
	if m.ChunkSize != nil {
		p.ChunkSize = *m.ChunkSize
	}
	if m.Format != "" {
		if p.Format, err = firmata.ParseFormat(m.Format); err != nil {
			return matrix.Profile{}, err
		}
	}
	if m.Init != nil {
		p.Init = make([]byte, len(m.Init))
		for i, code := range m.Init {
			if code < 0 || code > 0x7F {
				return matrix.Profile{}, fmt.Errorf("config: init code %#x out of range", code)
			}
			p.Init[i] = byte(code)
		}
	}
	if lim := m.Power.Limiter(); lim.Enabled() {
		p.Power = lim
	}
	if m.PaceMs != nil {
		p.Pace = time.Duration(*m.PaceMs) * time.Millisecond
	}
	return p, p.Validate()
}

// Speed is the SPI clock, 1MHz when unset.
func (s SPI) Speed() physic.Frequency {
	if s.SpeedHz <= 0 {
		return physic.MegaHertz
	}
	return physic.Frequency(s.SpeedHz) * physic.Hertz
}
