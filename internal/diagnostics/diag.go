package diagnostics

import (
	"context"
	"errors"

	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/layout"
	"github.com/coreman2200/ledmatrix/internal/matrix"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromError explains a failed display call.
func FromError(err error) Diagnostic {
	d := Diagnostic{Severity: Err, Detail: err.Error()}
	switch {
	case errors.Is(err, layout.ErrMagicPixel):
		d.Code = "CONFIG.MAGIC_PIXEL"
		d.Summary = "Magic pixel index does not fit the matrix"
		d.LikelyCauses = []string{"matrix size changed without updating magic_pixel", "preset meant for another unit"}
		d.SuggestedFixes = []string{"run the index_sweep pattern to find the hidden pixel", "set no_magic_pixel if the strand has none"}
	case errors.Is(err, firmata.ErrChunkSize):
		d.Code = "CONFIG.CHUNK_SIZE"
		d.Summary = "Chunk size is negative"
		d.SuggestedFixes = []string{"use 0 for a single blob or the firmware buffer size (30)"}
	case errors.Is(err, matrix.ErrConfig):
		d.Code = "CONFIG"
		d.Summary = "Matrix profile cannot render this frame"
	case errors.Is(err, matrix.ErrNotInitialized):
		d.Severity = Warn
		d.Code = "DEVICE.NOT_INITIALIZED"
		d.Summary = "Matrix has not been initialized on this connection"
		d.SuggestedFixes = []string{"wait for the connection to come back; initialization runs on connect"}
	case errors.Is(err, firmata.ErrTransport):
		d.Code = "TRANSPORT.WRITE"
		d.Summary = "Writing to the matrix failed"
		d.LikelyCauses = []string{"cable unplugged", "wrong serial port or baud rate", "firmware reset"}
		d.SuggestedFixes = []string{"check the connection and restart"}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		d.Severity = Warn
		d.Code = "FRAME.CANCELLED"
		d.Summary = "Frame abandoned before it was fully sent"
	default:
		d.Code = "FRAME.ERROR"
		d.Summary = "Frame could not be displayed"
	}
	return d
}
