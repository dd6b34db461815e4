// Package ws accepts frames for the matrix over websockets and paces them
// onto the device.
package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	diag "github.com/coreman2200/ledmatrix/internal/diagnostics"
	"github.com/coreman2200/ledmatrix/internal/matrix"
	"github.com/coreman2200/ledmatrix/internal/pattern"
)

// Display is the device side of the server.
type Display interface {
	Initialize(ctx context.Context) error
	DisplayImage(ctx context.Context, img image.Image) error
	Profile() matrix.Profile
}

// DefaultMaxFrameBytes bounds one encoded image on /frames.
const DefaultMaxFrameBytes = 4 << 20

// State holds the latest submitted frame and the render loop that sends it.
// Frames that arrive faster than FPS replace each other; only the newest is
// displayed.
type State struct {
	mu  sync.RWMutex
	FPS int
	// MaxFrameBytes is the largest message /frames accepts. Larger messages
	// close the connection.
	MaxFrameBytes int64

	display Display
	log     zerolog.Logger

	pending    image.Image
	received   uint64
	dropped    uint64
	frameID    uint64
	failures   uint64
	lastErr    string
	startTime  time.Time
	testRunner *pattern.Runner

	dmu         sync.Mutex
	diagClients map[*websocket.Conn]bool
}

func NewState(d Display, fps int, log zerolog.Logger) *State {
	return &State{
		FPS:           fps,
		MaxFrameBytes: DefaultMaxFrameBytes,
		display:       d,
		log:           log,
		startTime:     time.Now(),
		diagClients:   map[*websocket.Conn]bool{},
	}
}

// Handler routes /frames, /control, /diag and /health.
func (s *State) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/frames", s.HandleFramesWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// Submit queues img for display, replacing any frame not yet shown.
func (s *State) Submit(img image.Image) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending != nil {
		s.dropped++
	}
	s.pending = img
	s.received++
	return s.received
}

// RunRenderLoop displays pending frames at FPS until ctx is done.
func (s *State) RunRenderLoop(ctx context.Context) error {
	s.mu.RLock()
	fps := s.FPS
	s.mu.RUnlock()
	ticker := time.NewTicker(time.Second / time.Duration(max(1, fps)))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick displays one frame: the next test pattern step if a test is running,
// otherwise the pending frame.
func (s *State) tick(ctx context.Context) {
	s.mu.Lock()
	var img image.Image
	if s.testRunner != nil {
		next, ok := s.testRunner.Step(s.display.Profile())
		if ok {
			img = next
		} else {
			kind := string(s.testRunner.Kind())
			s.log.Info().Str("test", kind).Msg("test complete")
			s.testRunner = nil
			go s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "Test complete", Detail: kind})
		}
	}
	if img == nil {
		img = s.pending
		s.pending = nil
	}
	s.mu.Unlock()

	if img == nil {
		return
	}
	err := s.display.Initialize(ctx)
	if err == nil {
		err = s.display.DisplayImage(ctx, img)
	}

	s.mu.Lock()
	if err != nil {
		s.failures++
		s.lastErr = err.Error()
		s.mu.Unlock()
		s.log.Warn().Err(err).Msg("display frame")
		s.pushDiag(diag.FromError(err))
		return
	}
	s.frameID++
	s.mu.Unlock()
}

type reply struct {
	Accepted uint64 `json:"accepted,omitempty"`
	Error    string `json:"error,omitempty"`
}

// HandleFramesWS reads binary messages holding encoded images (PNG, JPEG,
// GIF, BMP or WebP) and submits each one.
func (s *State) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	conn.SetReadLimit(s.MaxFrameBytes)
	s.log.Debug().Str("remote", r.RemoteAddr).Msg("frame client connected")

	for {
		typ, data, err := conn.ReadMessage()
		if err != nil {
			if errors.Is(err, websocket.ErrReadLimit) {
				s.log.Warn().Str("remote", r.RemoteAddr).Int64("limit", s.MaxFrameBytes).Msg("frame too large")
			}
			return
		}
		if typ != websocket.BinaryMessage {
			_ = conn.WriteJSON(reply{Error: "frames must be binary messages"})
			continue
		}
		img, format, err := image.Decode(bytes.NewReader(data))
		if err != nil {
			_ = conn.WriteJSON(reply{Error: err.Error()})
			continue
		}
		id := s.Submit(img)
		s.log.Trace().Str("format", format).Uint64("id", id).Msg("frame received")
		if err := conn.WriteJSON(reply{Accepted: id}); err != nil {
			return
		}
	}
}

// HandleControlWS accepts JSON control messages: {"runTest": "index_sweep"}
// starts a calibration pattern.
func (s *State) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg map[string]any
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = conn.WriteJSON(reply{Error: err.Error()})
			continue
		}
		if err := s.applyControl(msg); err != nil {
			_ = conn.WriteJSON(reply{Error: err.Error()})
			continue
		}
		_ = conn.WriteJSON(s.health())
	}
}

func (s *State) applyControl(msg map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := msg["runTest"].(string); ok {
		kind, err := pattern.ParseKind(v)
		if err != nil {
			go s.pushDiag(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "Unknown test name",
				Evidence: map[string]any{"name": v},
			})
			return err
		}
		s.log.Info().Str("test", v).Msg("running test")
		s.testRunner = pattern.NewRunner(pattern.Plan{Kind: kind})
		go s.pushDiag(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "Running test", Detail: v})
	}
	if v, ok := msg["stopTest"].(bool); ok && v {
		s.testRunner = nil
	}
	return nil
}

// HandleDiagWS streams diagnostics as JSON text messages.
func (s *State) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.dmu.Lock()
	s.diagClients[conn] = true
	s.dmu.Unlock()
	go func() {
		defer func() {
			s.dmu.Lock()
			delete(s.diagClients, conn)
			s.dmu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *State) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.dmu.Lock()
	defer s.dmu.Unlock()
	for c := range s.diagClients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			s.log.Debug().Err(err).Msg("write diagnostic")
		}
	}
}

func (s *State) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.health())
}

func (s *State) health() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := s.display.Profile()
	resp := map[string]any{
		"frame_id": s.frameID,
		"received": s.received,
		"dropped":  s.dropped,
		"failures": s.failures,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"matrix":   p.Name,
		"width":    p.Width,
		"height":   p.Height,
		"fps":      s.FPS,
	}
	if s.lastErr != "" {
		resp["last_error"] = s.lastErr
	}
	if s.testRunner != nil {
		resp["test"] = string(s.testRunner.Kind())
	}
	return resp
}
