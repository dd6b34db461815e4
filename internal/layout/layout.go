// Package layout reorders pixel data to match how a matrix is physically wired.
package layout

import (
	"errors"
	"fmt"
	"strings"

	"github.com/coreman2200/ledmatrix/internal/pixel"
)

// ErrMagicPixel is returned when the magic pixel index does not fit the grid.
var ErrMagicPixel = errors.New("layout: magic pixel out of range")

// Topology is the wiring pattern of a matrix.
type Topology uint8

const (
	// Direct panels take pixels in scan order.
	Direct Topology = iota
	// Serpentine strands snake up one column and down the next.
	Serpentine
)

func (t Topology) String() string {
	switch t {
	case Direct:
		return "direct"
	case Serpentine:
		return "serpentine"
	default:
		return fmt.Sprintf("Topology(%d)", uint8(t))
	}
}

// ParseTopology accepts "direct", "grid", "serpentine" or "strand".
func ParseTopology(s string) (Topology, error) {
	switch strings.ToLower(s) {
	case "", "direct", "grid":
		return Direct, nil
	case "serpentine", "strand":
		return Serpentine, nil
	}
	return Direct, fmt.Errorf("layout: unknown topology %q", s)
}

// Scan is the order a grid is flattened in before reordering.
type Scan uint8

const (
	Rows Scan = iota
	Columns
)

func (s Scan) String() string {
	if s == Columns {
		return "columns"
	}
	return "rows"
}

// ParseScan accepts "rows" or "columns".
func ParseScan(s string) (Scan, error) {
	switch strings.ToLower(s) {
	case "", "rows", "row":
		return Rows, nil
	case "columns", "column", "cols":
		return Columns, nil
	}
	return Rows, fmt.Errorf("layout: unknown scan order %q", s)
}

// Layout describes the wiring of one matrix.
type Layout struct {
	Topology Topology
	Scan     Scan
	// Mirror flips every row left to right before flattening.
	Mirror bool
	// MagicPixel is the wiring index of a non-visible pixel to drop.
	MagicPixel *int
}

// Apply reorders grid into wiring order: mirror, flatten, serpentine flip,
// then magic pixel removal. The grid itself is not modified.
func (l Layout) Apply(grid pixel.Grid) ([]pixel.Color, error) {
	if l.MagicPixel != nil && (*l.MagicPixel < 0 || *l.MagicPixel >= grid.Len()) {
		return nil, fmt.Errorf("%w: index %d, %d pixels", ErrMagicPixel, *l.MagicPixel, grid.Len())
	}

	seq := make([]pixel.Color, 0, grid.Len())
	switch l.Scan {
	case Columns:
		for x := 0; x < grid.Width; x++ {
			for y := 0; y < grid.Height; y++ {
				seq = append(seq, grid.At(l.sourceX(grid, x), y))
			}
		}
	default:
		for y := 0; y < grid.Height; y++ {
			for x := 0; x < grid.Width; x++ {
				seq = append(seq, grid.At(l.sourceX(grid, x), y))
			}
		}
	}

	if l.Topology == Serpentine {
		FlipAlternate(seq, grid.Height)
	}
	if l.MagicPixel != nil {
		return RemoveAt(seq, *l.MagicPixel)
	}
	return seq, nil
}

func (l Layout) sourceX(grid pixel.Grid, x int) int {
	if l.Mirror {
		return grid.Width - 1 - x
	}
	return x
}

// Index maps (x, y) of a width x height grid to its wiring position, before
// magic pixel removal.
func (l Layout) Index(x, y, width, height int) int {
	if l.Mirror {
		x = width - 1 - x
	}
	i := y*width + x
	if l.Scan == Columns {
		i = x*height + y
	}
	if l.Topology == Serpentine && height > 1 {
		group, offset := i/height, i%height
		if group%2 == 0 {
			i = group*height + (height - 1 - offset)
		}
	}
	return i
}

// Count is the number of pixels sent for a width x height grid.
func (l Layout) Count(width, height int) int {
	n := width * height
	if l.MagicPixel != nil && *l.MagicPixel >= 0 && *l.MagicPixel < n {
		n--
	}
	return n
}

// FlipAlternate reverses every other group of size n in place, starting
// with the first. A trailing partial group is treated as a group of its own.
func FlipAlternate(seq []pixel.Color, n int) {
	if n <= 1 {
		return
	}
	flip := true
	for start := 0; start < len(seq); start += n {
		end := start + n
		if end > len(seq) {
			end = len(seq)
		}
		if flip {
			reverse(seq[start:end])
		}
		flip = !flip
	}
}

func reverse(s []pixel.Color) {
	for i, j := 0, len(s)-1; i < j; i, j = i+1, j-1 {
		s[i], s[j] = s[j], s[i]
	}
}

// RemoveAt returns seq without the element at index.
func RemoveAt(seq []pixel.Color, index int) ([]pixel.Color, error) {
	if index < 0 || index >= len(seq) {
		return nil, fmt.Errorf("%w: index %d, %d pixels", ErrMagicPixel, index, len(seq))
	}
	return append(seq[:index], seq[index+1:]...), nil
}
