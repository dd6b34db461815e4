package pixel

// The firmware reserves the top bit of every payload byte for sysex framing,
// so every channel travels as a 7-bit value. The dropped low bit is not
// recoverable.

// WireBytes converts c into three 7-bit bytes in R, G, B order.
func WireBytes(c Color) [3]byte {
	return [3]byte{c.R >> 1, c.G >> 1, c.B >> 1}
}

// EncodeSequence concatenates the wire bytes of every color in order.
func EncodeSequence(colors []Color) []byte {
	out := make([]byte, 0, len(colors)*3)
	for _, c := range colors {
		w := WireBytes(c)
		out = append(out, w[0], w[1], w[2])
	}
	return out
}

// EncodeMono converts each color to a single 7-bit luma byte.
func EncodeMono(colors []Color) []byte {
	out := make([]byte, len(colors))
	for i, c := range colors {
		// Same 0.299/0.587/0.114 weights as the JFIF luma.
		y := (299*uint32(c.R) + 587*uint32(c.G) + 114*uint32(c.B) + 500) / 1000
		out[i] = byte(y >> 1)
	}
	return out
}

// MaxPaletteSize is the number of entries addressable by a 7-bit index.
const MaxPaletteSize = 128

// Uniform palette levels per channel when a frame has too many colors.
const (
	levelsR = 4
	levelsG = 8
	levelsB = 4
)

// Palette is an indexed color table in wire (7-bit) space.
type Palette struct {
	entries [][3]byte
	lookup  map[[3]byte]byte
}

// BuildPalette returns an exact palette of the distinct wire colors in
// colors, in order of first appearance. Frames with more than
// MaxPaletteSize distinct colors get a fixed 4x8x4 uniform palette instead.
func BuildPalette(colors []Color) Palette {
	p := Palette{lookup: make(map[[3]byte]byte)}
	for _, c := range colors {
		w := WireBytes(c)
		if _, ok := p.lookup[w]; ok {
			continue
		}
		if len(p.entries) == MaxPaletteSize {
			return uniformPalette()
		}
		p.lookup[w] = byte(len(p.entries))
		p.entries = append(p.entries, w)
	}
	return p
}

func uniformPalette() Palette {
	p := Palette{entries: make([][3]byte, 0, MaxPaletteSize)}
	for r := 0; r < levelsR; r++ {
		for g := 0; g < levelsG; g++ {
			for b := 0; b < levelsB; b++ {
				p.entries = append(p.entries, [3]byte{
					byte(r * 127 / (levelsR - 1)),
					byte(g * 127 / (levelsG - 1)),
					byte(b * 127 / (levelsB - 1)),
				})
			}
		}
	}
	return p
}

// Len is the number of palette entries.
func (p Palette) Len() int { return len(p.entries) }

// Exact reports whether every color maps to an identical entry.
func (p Palette) Exact() bool { return p.lookup != nil }

// Encode returns the palette table, three 7-bit bytes per entry.
func (p Palette) Encode() []byte {
	out := make([]byte, 0, len(p.entries)*3)
	for _, e := range p.entries {
		out = append(out, e[0], e[1], e[2])
	}
	return out
}

// Indices maps each color to its palette index.
func (p Palette) Indices(colors []Color) []byte {
	out := make([]byte, len(colors))
	for i, c := range colors {
		out[i] = p.index(WireBytes(c))
	}
	return out
}

func (p Palette) index(w [3]byte) byte {
	if p.lookup != nil {
		if i, ok := p.lookup[w]; ok {
			return i
		}
	}
	r := level(w[0], levelsR)
	g := level(w[1], levelsG)
	b := level(w[2], levelsB)
	return byte(r*levelsG*levelsB + g*levelsB + b)
}

// level rounds a 7-bit channel to the nearest of n evenly spaced levels.
func level(v byte, n int) int {
	return (int(v)*(n-1)*2 + 127) / (127 * 2)
}
