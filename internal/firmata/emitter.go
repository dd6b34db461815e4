package firmata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/coreman2200/ledmatrix/internal/led"
)

// State is where an Emitter is within a frame sequence.
type State uint32

const (
	Idle State = iota
	ResetSent
	PayloadSent
	FinalResetSent
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ResetSent:
		return "reset_sent"
	case PayloadSent:
		return "payload_sent"
	case FinalResetSent:
		return "final_reset_sent"
	default:
		return fmt.Sprintf("State(%d)", uint32(s))
	}
}

// DefaultPace is the gap between frames the firmware needs to drain its
// input buffer.
const DefaultPace = time.Millisecond

// Emitter writes frame sequences to a sink, one flush per frame.
type Emitter struct {
	mu    sync.Mutex
	sink  led.Sink
	pace  time.Duration
	log   zerolog.Logger
	state atomic.Uint32
	sent  atomic.Uint64

	// onState, when set, observes every state change. Tests only.
	onState func(State)
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

// WithPace sets the delay between frames. Zero disables pacing.
func WithPace(d time.Duration) EmitterOption {
	return func(e *Emitter) { e.pace = d }
}

// WithLogger sets the emitter logger.
func WithLogger(l zerolog.Logger) EmitterOption {
	return func(e *Emitter) { e.log = l }
}

// NewEmitter returns an Emitter over sink paced by DefaultPace.
func NewEmitter(sink led.Sink, opts ...EmitterOption) *Emitter {
	e := &Emitter{sink: sink, pace: DefaultPace, log: zerolog.Nop()}
	for _, o := range opts {
		o(e)
	}
	return e
}

// State returns the current sequence state.
func (e *Emitter) State() State { return State(e.state.Load()) }

// Sent is the number of frames written so far.
func (e *Emitter) Sent() uint64 { return e.sent.Load() }

func (e *Emitter) setState(s State) {
	e.state.Store(uint32(s))
	if e.onState != nil {
		e.onState(s)
	}
}

// Emit frames f and writes it. Configuration errors are returned before
// anything is written. Once the first Reset is out, a sink failure or
// cancellation still attempts a closing Reset before returning.
func (e *Emitter) Emit(ctx context.Context, f Frame) error {
	cmds, err := f.Commands()
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	last := len(cmds) - 1
	for i, c := range cmds {
		if i > 0 {
			if err := e.wait(ctx); err != nil {
				return e.abort(err)
			}
		}
		if err := e.write(c); err != nil {
			return e.abort(fmt.Errorf("%w: %s: %w", ErrTransport, c, err))
		}
		switch i {
		case 0:
			e.setState(ResetSent)
		case last:
			e.setState(FinalResetSent)
		default:
			e.setState(PayloadSent)
		}
	}
	e.setState(Idle)
	e.log.Debug().Stringer("format", f.Format).Int("bytes", len(f.Pixels)).Int("frames", len(cmds)).Msg("frame sent")
	return nil
}

// Send writes standalone commands, one flush each, with no Reset framing.
// Used for device configuration.
func (e *Emitter) Send(ctx context.Context, cmds ...Command) error {
	for _, c := range cmds {
		if err := c.Validate(); err != nil {
			return err
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for i, c := range cmds {
		if i > 0 {
			if err := e.wait(ctx); err != nil {
				return err
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}
		if err := e.write(c); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrTransport, c, err)
		}
	}
	return nil
}

func (e *Emitter) write(c Command) error {
	if _, err := e.sink.Write(c.Bytes()); err != nil {
		return err
	}
	if err := e.sink.Flush(); err != nil {
		return err
	}
	e.sent.Add(1)
	return nil
}

func (e *Emitter) wait(ctx context.Context) error {
	if e.pace <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(e.pace)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// abort leaves the device addressable again before returning cause.
func (e *Emitter) abort(cause error) error {
	if err := e.write(Reset()); err != nil {
		e.log.Warn().Err(err).AnErr("cause", cause).Msg("closing reset failed")
	} else {
		e.setState(FinalResetSent)
	}
	e.setState(Idle)
	return cause
}
