package pattern

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/coreman2200/ledmatrix/internal/layout"
	"github.com/coreman2200/ledmatrix/internal/led/fake"
	"github.com/coreman2200/ledmatrix/internal/matrix"
	"github.com/coreman2200/ledmatrix/internal/pixel"
)

func TestIndexSweepFollowsWiring(t *testing.T) {
	p := matrix.Profile{Width: 3, Height: 4, Topology: layout.Serpentine, Scan: layout.Columns, Mirror: true}
	r := NewRunner(Plan{Kind: IndexSweep})
	for step := 0; ; step++ {
		img, ok := r.Step(p)
		if !ok {
			if step != 12 {
				t.Fatalf("sweep ended after %d steps, want 12", step)
			}
			return
		}
		_, seq, err := matrix.Render(img, p)
		if err != nil {
			t.Fatalf("render step %d: %v", step, err)
		}
		for i, c := range seq {
			lit := c != pixel.Color{}
			if lit != (i == step) {
				t.Fatalf("step %d: wiring index %d lit=%v", step, i, lit)
			}
		}
	}
}

func TestRGBTest(t *testing.T) {
	p := matrix.Profile{Width: 2, Height: 2}
	r := NewRunner(Plan{Kind: RGBTest})
	want := []pixel.Color{pixel.RGB(255, 0, 0), pixel.RGB(0, 255, 0), pixel.RGB(0, 0, 255)}
	for i, w := range want {
		img, ok := r.Step(p)
		if !ok {
			t.Fatalf("ended at step %d", i)
		}
		if got := pixel.FromImage(img).At(1, 1); got != w {
			t.Fatalf("step %d = %v, want %v", i, got, w)
		}
	}
	if _, ok := r.Step(p); ok {
		t.Fatalf("expected end after blue")
	}
}

func TestColumnSweepAndSolid(t *testing.T) {
	p := matrix.Profile{Width: 3, Height: 2}
	r := NewRunner(Plan{Kind: ColumnSweep, Start: 2})
	img, ok := r.Step(p)
	if !ok {
		t.Fatalf("no step")
	}
	g := pixel.FromImage(img)
	if g.At(2, 0) != pixel.RGB(255, 255, 255) || g.At(2, 1) != pixel.RGB(255, 255, 255) || g.At(1, 0) != (pixel.Color{}) {
		t.Fatalf("column 2 not lit alone: %v", g.Pix)
	}
	if _, ok := r.Step(p); ok {
		t.Fatalf("expected end after last column")
	}

	s := NewRunner(Plan{Kind: Solid, Color: pixel.RGB(9, 8, 7)})
	img, _ = s.Step(p)
	if got := pixel.FromImage(img).At(0, 1); got != pixel.RGB(9, 8, 7) {
		t.Fatalf("solid = %v", got)
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		if err != nil || got != k {
			t.Fatalf("ParseKind(%q) = %q, %v", k, got, err)
		}
	}
	if _, err := ParseKind("plane_z"); err == nil {
		t.Fatalf("unknown pattern accepted")
	}
}

func TestRun(t *testing.T) {
	sink := &fake.Sink{}
	m, err := matrix.New(sink, matrix.Profile{Width: 2, Height: 2, ChunkSize: 0})
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), m, Plan{Kind: RGBTest}, time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if m.Frames() != 3 {
		t.Fatalf("displayed %d images, want 3", m.Frames())
	}
	// reset, pixel21, blob, reset per image
	if n := len(sink.Frames()); n != 12 {
		t.Fatalf("got %d frames", n)
	}
}

func TestRunInitializesFirst(t *testing.T) {
	sink := &fake.Sink{}
	p := matrix.Profile{Width: 1, Height: 1, Init: []byte{0x44}}
	m, err := matrix.New(sink, p)
	if err != nil {
		t.Fatal(err)
	}
	if err := Run(context.Background(), m, Plan{Kind: Solid}, time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}
	frames := sink.Frames()
	// config, then reset, pixel21, blob, reset
	if len(frames) != 5 || frames[0][1] != 0x44 || frames[1][1] != 0x43 {
		t.Fatalf("frames = % x", frames)
	}
}

func TestRunRejectsInterval(t *testing.T) {
	m, err := matrix.New(&fake.Sink{}, matrix.Profile{Width: 1, Height: 1})
	if err != nil {
		t.Fatal(err)
	}
	for _, d := range []time.Duration{0, -time.Second} {
		if err := Run(context.Background(), m, Plan{Kind: Solid}, d); !errors.Is(err, ErrInterval) {
			t.Fatalf("interval %v: got %v", d, err)
		}
	}
	if m.Frames() != 0 {
		t.Fatalf("displayed %d images", m.Frames())
	}
}
