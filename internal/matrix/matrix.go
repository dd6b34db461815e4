// Package matrix drives one LED matrix: it renders images for a hardware
// profile and sends them through the sysex frame protocol.
package matrix

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"golang.org/x/image/draw"
	"periph.io/x/conn/v3/display"

	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/led"
	"github.com/coreman2200/ledmatrix/internal/pixel"
)

// Matrix is a connected LED matrix. It is safe for concurrent use; display
// calls are serialized so at most one frame is in flight.
type Matrix struct {
	mu      sync.Mutex
	profile Profile
	sink    led.Sink
	emitter *firmata.Emitter
	log     zerolog.Logger
	preview display.Drawer
	canvas  *image.NRGBA

	initialized atomic.Bool
	frames      atomic.Uint64
}

// Option configures a Matrix.
type Option func(*Matrix)

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Matrix) { m.log = l }
}

// WithPreview mirrors every frame, in wiring order, as a one pixel high
// strip onto d.
func WithPreview(d display.Drawer) Option {
	return func(m *Matrix) { m.preview = d }
}

// New returns a Matrix for p writing to sink.
func New(sink led.Sink, p Profile, opts ...Option) (*Matrix, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	m := &Matrix{
		profile: p.Clone(),
		sink:    sink,
		log:     zerolog.Nop(),
		canvas:  image.NewNRGBA(image.Rect(0, 0, p.Width, p.Height)),
	}
	for _, o := range opts {
		o(m)
	}
	m.log = m.log.With().Str("matrix", m.String()).Logger()
	m.emitter = firmata.NewEmitter(sink, firmata.WithPace(p.Pace), firmata.WithLogger(m.log))
	return m, nil
}

// Profile returns a copy of the matrix profile.
func (m *Matrix) Profile() Profile { return m.profile.Clone() }

// Frames is the number of images displayed.
func (m *Matrix) Frames() uint64 { return m.frames.Load() }

// Initialize sends the profile's configuration codes. It does nothing if the
// current connection is already initialized.
func (m *Matrix) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.initialize(ctx)
}

func (m *Matrix) initialize(ctx context.Context) error {
	if m.initialized.Load() {
		return nil
	}
	cmds := make([]firmata.Command, len(m.profile.Init))
	for i, code := range m.profile.Init {
		cmds[i] = firmata.NewControl(code)
	}
	if err := m.emitter.Send(ctx, cmds...); err != nil {
		return fmt.Errorf("matrix: initialize: %w", err)
	}
	m.initialized.Store(true)
	m.log.Info().Int("codes", len(cmds)).Msg("initialized")
	return nil
}

// DisplayImage renders img and sends it as one sequence that starts and ends
// with a Reset. A profile with init codes must be initialized on the current
// connection first, otherwise ErrNotInitialized is returned and nothing is
// written.
func (m *Matrix) DisplayImage(ctx context.Context, img image.Image) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.display(ctx, img)
}

func (m *Matrix) display(ctx context.Context, img image.Image) error {
	frame, seq, err := Render(img, m.profile)
	if err != nil {
		return err
	}
	if len(m.profile.Init) > 0 && !m.initialized.Load() {
		return ErrNotInitialized
	}
	if err := m.emitter.Emit(ctx, frame); err != nil {
		return err
	}
	n := m.frames.Add(1)
	m.log.Debug().Uint64("frame", n).Int("pixels", len(seq)).Msg("displayed")

	if m.preview != nil {
		strip := pixel.Strip(seq)
		if err := m.preview.Draw(m.preview.Bounds(), strip, image.Point{}); err != nil {
			m.log.Warn().Err(err).Msg("preview")
		}
	}
	return nil
}

// ConnectionChanged implements led.Listener. A new or lost connection needs
// Initialize again before the next display.
func (m *Matrix) ConnectionChanged(s led.State) {
	switch s {
	case led.Connected, led.Lost, led.NotConnected, led.CouldNotConnect:
		if m.initialized.Swap(false) {
			m.log.Info().Stringer("state", s).Msg("connection changed, initialization re-armed")
		}
	}
}

// String implements conn.Resource.
func (m *Matrix) String() string {
	name := m.profile.Name
	if name == "" {
		name = "matrix"
	}
	return fmt.Sprintf("%s(%dx%d)", name, m.profile.Width, m.profile.Height)
}

// Halt blanks the matrix.
func (m *Matrix) Halt() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draw.Draw(m.canvas, m.canvas.Bounds(), image.Black, image.Point{}, draw.Src)
	return m.display(context.Background(), m.canvas)
}

// ColorModel implements display.Drawer.
func (m *Matrix) ColorModel() color.Model { return pixel.Model }

// Bounds implements display.Drawer.
func (m *Matrix) Bounds() image.Rectangle {
	return image.Rect(0, 0, m.profile.Width, m.profile.Height)
}

// Draw implements display.Drawer. src is drawn at sp into r of the matrix
// canvas, which keeps its content between calls, and the canvas is
// displayed.
func (m *Matrix) Draw(r image.Rectangle, src image.Image, sp image.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	draw.Draw(m.canvas, r, src, sp, draw.Src)
	return m.display(context.Background(), m.canvas)
}

var _ display.Drawer = (*Matrix)(nil)
var _ led.Listener = (*Matrix)(nil)
