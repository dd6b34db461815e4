package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/coreman2200/ledmatrix/internal/firmata"
	"github.com/coreman2200/ledmatrix/internal/layout"
	"github.com/coreman2200/ledmatrix/internal/matrix"
)

func TestFromError(t *testing.T) {
	cases := []struct {
		err  error
		code string
		sev  Severity
	}{
		{fmt.Errorf("%w: %w", matrix.ErrConfig, layout.ErrMagicPixel), "CONFIG.MAGIC_PIXEL", Err},
		{fmt.Errorf("%w: %w", matrix.ErrConfig, firmata.ErrChunkSize), "CONFIG.CHUNK_SIZE", Err},
		{matrix.ErrConfig, "CONFIG", Err},
		{matrix.ErrNotInitialized, "DEVICE.NOT_INITIALIZED", Warn},
		{fmt.Errorf("%w: boom", firmata.ErrTransport), "TRANSPORT.WRITE", Err},
		{context.Canceled, "FRAME.CANCELLED", Warn},
		{errors.New("odd"), "FRAME.ERROR", Err},
	}
	for _, c := range cases {
		d := FromError(c.err)
		if d.Code != c.code || d.Severity != c.sev {
			t.Fatalf("FromError(%v) = %s/%s, want %s/%s", c.err, d.Code, d.Severity, c.code, c.sev)
		}
		if d.Detail != c.err.Error() {
			t.Fatalf("detail = %q", d.Detail)
		}
	}
}
