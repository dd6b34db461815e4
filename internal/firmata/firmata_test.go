package firmata

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreman2200/ledmatrix/internal/led/fake"
)

var (
	resetFrame   = []byte{0xF0, 0x43, 0xF7}
	pixel21Frame = []byte{0xF0, 0x42, 0xF7}
)

func payload(n int) []byte {
	p := make([]byte, n)
	for i := range p {
		p[i] = byte(i % 128)
	}
	return p
}

func TestChunks(t *testing.T) {
	cases := []struct {
		n, size, want int
	}{
		{0, 0, 1},
		{1000, 0, 1},
		{0, 30, 0},
		{30, 30, 1},
		{31, 30, 2},
		{3069, 30, 103},
		{7, 1, 7},
	}
	for _, c := range cases {
		p := payload(c.n)
		chunks, err := Chunks(p, c.size)
		if err != nil {
			t.Fatalf("Chunks(%d, %d): %v", c.n, c.size, err)
		}
		if len(chunks) != c.want {
			t.Fatalf("Chunks(%d, %d) = %d chunks, want %d", c.n, c.size, len(chunks), c.want)
		}
		var joined []byte
		for _, ch := range chunks {
			if c.size > 0 && len(ch) > c.size {
				t.Fatalf("chunk of %d bytes exceeds %d", len(ch), c.size)
			}
			joined = append(joined, ch...)
		}
		if !bytes.Equal(joined, p) {
			t.Fatalf("Chunks(%d, %d) does not reassemble", c.n, c.size)
		}
	}

	if _, err := Chunks(payload(3), -1); !errors.Is(err, ErrChunkSize) {
		t.Fatalf("negative size: got %v", err)
	}
}

func TestCommandBytes(t *testing.T) {
	if got := Reset().Bytes(); !bytes.Equal(got, resetFrame) {
		t.Fatalf("reset = % x", got)
	}
	got := NewBlob([]byte{1, 2, 0x7F}).Bytes()
	want := []byte{0xF0, 0x7C, 1, 2, 0x7F, 0xF7}
	if !bytes.Equal(got, want) {
		t.Fatalf("blob = % x, want % x", got, want)
	}
	if err := NewBlob([]byte{0x80}).Validate(); !errors.Is(err, ErrNotSevenBit) {
		t.Fatalf("8-bit blob: got %v", err)
	}
}

func codes(cmds []Command) []string {
	out := make([]string, len(cmds))
	for i, c := range cmds {
		out[i] = c.String()
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestFrameCommands(t *testing.T) {
	cases := []struct {
		name  string
		frame Frame
		want  []string
	}{
		{"pixel21", Frame{Format: Pixel21, Pixels: payload(9), ChunkSize: 4},
			[]string{"control(0x43)", "control(0x42)", "blob[4]", "blob[4]", "blob[1]", "control(0x43)"}},
		{"raw", Frame{Format: Raw, Pixels: payload(6), ChunkSize: 0},
			[]string{"control(0x43)", "blob[6]", "control(0x43)"}},
		{"mono", Frame{Format: Pixel7, Pixels: payload(3), ChunkSize: 30},
			[]string{"control(0x43)", "control(0x46)", "blob[3]", "control(0x43)"}},
		{"palette", Frame{Format: Palette, Table: payload(6), Pixels: payload(4), ChunkSize: 3},
			[]string{"control(0x43)", "control(0x47)", "blob[3]", "blob[3]", "control(0x45)", "blob[3]", "blob[1]", "control(0x43)"}},
		{"empty", Frame{Format: Raw, ChunkSize: 30},
			[]string{"control(0x43)", "control(0x43)"}},
		{"empty unchunked", Frame{Format: Pixel21},
			[]string{"control(0x43)", "control(0x42)", "blob[0]", "control(0x43)"}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			cmds, err := c.frame.Commands()
			if err != nil {
				t.Fatalf("Commands: %v", err)
			}
			if got := codes(cmds); !equal(got, c.want) {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestFrameCommandsErrors(t *testing.T) {
	if _, err := (Frame{ChunkSize: -1}).Commands(); !errors.Is(err, ErrChunkSize) {
		t.Fatalf("negative chunk: got %v", err)
	}
	if _, err := (Frame{Pixels: []byte{0xFF}}).Commands(); !errors.Is(err, ErrNotSevenBit) {
		t.Fatalf("8-bit payload: got %v", err)
	}
}

func TestEmit(t *testing.T) {
	sink := &fake.Sink{}
	e := NewEmitter(sink, WithPace(0))
	var states []State
	e.onState = func(s State) { states = append(states, s) }

	f := Frame{Format: Pixel21, Pixels: payload(5), ChunkSize: 3}
	if err := e.Emit(context.Background(), f); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	cmds, _ := f.Commands()
	frames := sink.Frames()
	if len(frames) != len(cmds) {
		t.Fatalf("got %d frames, want %d", len(frames), len(cmds))
	}
	for i, c := range cmds {
		if !bytes.Equal(frames[i], c.Bytes()) {
			t.Fatalf("frame %d = % x, want % x", i, frames[i], c.Bytes())
		}
	}
	if e.State() != Idle {
		t.Fatalf("state = %v after emit", e.State())
	}
	if e.Sent() != uint64(len(cmds)) {
		t.Fatalf("sent = %d", e.Sent())
	}
	want := []State{ResetSent, PayloadSent, PayloadSent, PayloadSent, FinalResetSent, Idle}
	if len(states) != len(want) {
		t.Fatalf("states = %v, want %v", states, want)
	}
	for i := range want {
		if states[i] != want[i] {
			t.Fatalf("states = %v, want %v", states, want)
		}
	}
}

func TestEmitConfigErrorWritesNothing(t *testing.T) {
	sink := &fake.Sink{}
	e := NewEmitter(sink, WithPace(0))
	err := e.Emit(context.Background(), Frame{Pixels: payload(3), ChunkSize: -2})
	if !errors.Is(err, ErrChunkSize) {
		t.Fatalf("got %v", err)
	}
	if n := len(sink.Frames()); n != 0 {
		t.Fatalf("%d frames emitted", n)
	}
}

func TestEmitCancelledBeforeStart(t *testing.T) {
	sink := &fake.Sink{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewEmitter(sink).Emit(ctx, Frame{Pixels: payload(3)}); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	if n := len(sink.Frames()); n != 0 {
		t.Fatalf("%d frames emitted", n)
	}
}

func TestEmitCancelledMidSequenceEndsWithReset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := &fake.Sink{OnFlush: func(n int) {
		if n == 2 {
			cancel()
		}
	}}
	e := NewEmitter(sink, WithPace(0))
	err := e.Emit(ctx, Frame{Format: Pixel21, Pixels: payload(90), ChunkSize: 30})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v", err)
	}
	frames := sink.Frames()
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want reset, format, reset", len(frames))
	}
	if !bytes.Equal(frames[0], resetFrame) || !bytes.Equal(frames[1], pixel21Frame) || !bytes.Equal(frames[2], resetFrame) {
		t.Fatalf("frames = % x", frames)
	}
	if e.State() != Idle {
		t.Fatalf("state = %v", e.State())
	}
}

func TestEmitTransportFailure(t *testing.T) {
	sink := &fake.Sink{FailWriteAt: 3}
	err := NewEmitter(sink, WithPace(0)).Emit(context.Background(), Frame{Pixels: payload(9), ChunkSize: 3})
	if !errors.Is(err, ErrTransport) || !errors.Is(err, fake.ErrInjected) {
		t.Fatalf("got %v", err)
	}
	frames := sink.Frames()
	if len(frames) != 3 || !bytes.Equal(frames[2], resetFrame) {
		t.Fatalf("expected closing reset, frames = % x", frames)
	}
}

func TestEmitTransportDown(t *testing.T) {
	sink := &fake.Sink{FailAfter: 1}
	err := NewEmitter(sink, WithPace(0)).Emit(context.Background(), Frame{Pixels: payload(9)})
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("got %v", err)
	}
	if n := len(sink.Frames()); n != 1 {
		t.Fatalf("got %d frames", n)
	}
}

func TestSend(t *testing.T) {
	sink := &fake.Sink{}
	e := NewEmitter(sink, WithPace(0))
	if err := e.Send(context.Background(), NewControl(LEDConfig), Reset()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	frames := sink.Frames()
	if len(frames) != 2 || !bytes.Equal(frames[0], []byte{0xF0, 0x44, 0xF7}) || !bytes.Equal(frames[1], resetFrame) {
		t.Fatalf("frames = % x", frames)
	}
	if err := e.Send(context.Background(), NewControl(0x90)); err == nil {
		t.Fatalf("8-bit code accepted")
	}
}

func TestEmitPaces(t *testing.T) {
	const pace = 5 * time.Millisecond
	sink := &fake.Sink{}
	start := time.Now()
	if err := NewEmitter(sink, WithPace(pace)).Emit(context.Background(), Frame{Format: Raw, Pixels: payload(3)}); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	// reset, blob, reset: two gaps
	if el := time.Since(start); el < 2*pace {
		t.Fatalf("emitted in %v, want at least %v", el, 2*pace)
	}
}
