// Package fake provides an in-memory led.Sink for tests and headless runs.
package fake

import (
	"errors"
	"sync"
)

// ErrInjected is returned by a Sink told to fail.
var ErrInjected = errors.New("fake: injected failure")

// Sink records every flushed frame. Writes after the last flush that were
// never flushed are kept in Pending.
type Sink struct {
	mu      sync.Mutex
	frames  [][]byte
	pending []byte
	closed  bool

	// FailWriteAt makes the n-th Write (1-based) fail; 0 disables.
	FailWriteAt int
	// FailAfter makes every Write fail once this many frames are flushed;
	// 0 disables.
	FailAfter int
	// OnFlush runs after each successful flush with the frame count.
	OnFlush func(n int)

	writes int
}

func (s *Sink) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writes++
	if s.FailWriteAt > 0 && s.writes == s.FailWriteAt {
		return 0, ErrInjected
	}
	if s.FailAfter > 0 && len(s.frames) >= s.FailAfter {
		return 0, ErrInjected
	}
	s.pending = append(s.pending, p...)
	return len(p), nil
}

func (s *Sink) Flush() error {
	s.mu.Lock()
	s.frames = append(s.frames, s.pending)
	s.pending = nil
	n := len(s.frames)
	hook := s.OnFlush
	s.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Frames returns a copy of the flushed frames.
func (s *Sink) Frames() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]byte, len(s.frames))
	for i, f := range s.frames {
		out[i] = append([]byte(nil), f...)
	}
	return out
}

// Pending returns bytes written but not yet flushed.
func (s *Sink) Pending() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]byte(nil), s.pending...)
}

// Closed reports whether Close was called.
func (s *Sink) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Reset drops everything recorded.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	s.pending = nil
	s.writes = 0
}
