package firmata

import (
	"fmt"
	"strings"
)

// Format is the pixel byte encoding declared to the firmware.
type Format uint8

const (
	// Pixel21 is three 7-bit channels per pixel.
	Pixel21 Format = iota
	// Pixel7 is one 7-bit luma byte per pixel.
	Pixel7
	// Palette sends a color table followed by one 7-bit index per pixel.
	Palette
	// Raw sends 21-bit pixels without a format frame. Strand firmware
	// accepts nothing else.
	Raw
)

func (f Format) String() string {
	switch f {
	case Pixel21:
		return "pixel21"
	case Pixel7:
		return "pixel7"
	case Palette:
		return "palette"
	case Raw:
		return "raw"
	default:
		return fmt.Sprintf("Format(%d)", uint8(f))
	}
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "pixel21", "rgb":
		return Pixel21, nil
	case "pixel7", "mono":
		return Pixel7, nil
	case "palette":
		return Palette, nil
	case "raw":
		return Raw, nil
	}
	return Pixel21, fmt.Errorf("firmata: unknown pixel format %q", s)
}

// BytesPerPixel is the payload size of one pixel in format f.
func (f Format) BytesPerPixel() int {
	switch f {
	case Pixel7, Palette:
		return 1
	default:
		return 3
	}
}

// Frame is one encoded image ready to be framed.
type Frame struct {
	Format Format
	// Pixels is the encoded pixel payload, or palette indices.
	Pixels []byte
	// Table is the palette, three bytes per entry. Palette format only.
	Table     []byte
	ChunkSize int
}

// Commands returns the full frame sequence, starting and ending with Reset.
// Nothing is returned on error, so a caller never emits a partial frame.
func (f Frame) Commands() ([]Command, error) {
	pixels, err := Chunks(f.Pixels, f.ChunkSize)
	if err != nil {
		return nil, err
	}

	cmds := []Command{Reset()}
	switch f.Format {
	case Pixel21:
		cmds = append(cmds, NewControl(LEDPixel21))
	case Pixel7:
		cmds = append(cmds, NewControl(LEDPixel7))
	case Palette:
		table, err := Chunks(f.Table, f.ChunkSize)
		if err != nil {
			return nil, err
		}
		cmds = append(cmds, NewControl(LEDPixel7Palette))
		cmds = appendBlobs(cmds, table)
		cmds = append(cmds, NewControl(LEDIndexed7))
	case Raw:
	default:
		return nil, fmt.Errorf("firmata: unknown pixel format %d", f.Format)
	}
	cmds = appendBlobs(cmds, pixels)
	cmds = append(cmds, Reset())

	for _, c := range cmds {
		if err := c.Validate(); err != nil {
			return nil, err
		}
	}
	return cmds, nil
}

func appendBlobs(cmds []Command, chunks [][]byte) []Command {
	for _, c := range chunks {
		cmds = append(cmds, NewBlob(c))
	}
	return cmds
}
