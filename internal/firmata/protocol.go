// Package firmata frames pixel data into the sysex commands understood by
// the LED matrix firmware.
//
// Every display operation is one sequence of frames:
//
//	Reset, [pixel format], Blob..., Reset
//
// The palette format sends its table first:
//
//	Reset, LEDPixel7Palette, table Blob..., LEDIndexed7, index Blob..., Reset
//
// A control frame is F0 <code> F7. A blob frame is F0 7C <bytes> F7 where
// every payload byte is 7-bit.
package firmata

import (
	"errors"
	"fmt"
)

// Sysex envelope and LED command codes. These must match the firmware.
const (
	StartSysex  byte = 0xF0
	EndSysex    byte = 0xF7
	BlobCommand byte = 0x7C

	LEDPixel21       byte = 0x42
	LEDReset         byte = 0x43
	LEDConfig        byte = 0x44
	LEDIndexed7      byte = 0x45 // 7-bit palette indices follow
	LEDPixel7        byte = 0x46
	LEDPixel7Palette byte = 0x47
)

var (
	// ErrChunkSize is returned for a negative chunk size.
	ErrChunkSize = errors.New("firmata: negative chunk size")
	// ErrNotSevenBit is returned when a blob byte has its top bit set.
	ErrNotSevenBit = errors.New("firmata: blob byte is not 7-bit")
	// ErrTransport wraps sink failures while a frame sequence is emitted.
	ErrTransport = errors.New("firmata: transport failure")
)

// Kind tells control frames from blob frames.
type Kind uint8

const (
	Control Kind = iota
	Blob
)

func (k Kind) String() string {
	if k == Blob {
		return "blob"
	}
	return "control"
}

// Command is one sysex frame.
type Command struct {
	Kind    Kind
	Code    byte
	Payload []byte
}

// NewControl returns a control frame for code.
func NewControl(code byte) Command { return Command{Kind: Control, Code: code} }

// NewBlob returns a blob frame carrying payload.
func NewBlob(payload []byte) Command {
	return Command{Kind: Blob, Code: BlobCommand, Payload: payload}
}

// Reset is the control frame that clears device pixel addressing.
func Reset() Command { return NewControl(LEDReset) }

// Validate checks that c can be framed.
func (c Command) Validate() error {
	if c.Code&0x80 != 0 {
		return fmt.Errorf("firmata: command code %#x is not 7-bit", c.Code)
	}
	for i, b := range c.Payload {
		if b&0x80 != 0 {
			return fmt.Errorf("%w: %#x at offset %d", ErrNotSevenBit, b, i)
		}
	}
	return nil
}

// Bytes returns the framed command.
func (c Command) Bytes() []byte {
	out := make([]byte, 0, len(c.Payload)+3)
	out = append(out, StartSysex, c.Code)
	out = append(out, c.Payload...)
	return append(out, EndSysex)
}

func (c Command) String() string {
	if c.Kind == Blob {
		return fmt.Sprintf("blob[%d]", len(c.Payload))
	}
	return fmt.Sprintf("control(%#x)", c.Code)
}

// Chunks splits payload into pieces of at most size bytes. A size of 0 means
// no chunking and always yields exactly one chunk, even for an empty payload.
// The chunks share payload's backing array.
func Chunks(payload []byte, size int) ([][]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("%w: %d", ErrChunkSize, size)
	}
	if size == 0 {
		return [][]byte{payload}, nil
	}
	out := make([][]byte, 0, (len(payload)+size-1)/size)
	for len(payload) > 0 {
		n := size
		if n > len(payload) {
			n = len(payload)
		}
		out = append(out, payload[:n:n])
		payload = payload[n:]
	}
	return out, nil
}
