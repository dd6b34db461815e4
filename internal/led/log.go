package led

import (
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog"
)

// Log is a Sink that writes every flushed frame to a logger instead of a
// device. Used for simulation and dry runs.
type Log struct {
	mu     sync.Mutex
	log    zerolog.Logger
	level  zerolog.Level
	buf    []byte
	frames uint64
}

// NewLog returns a Log sink that logs frames at level.
func NewLog(log zerolog.Logger, level zerolog.Level) *Log {
	return &Log{log: log.With().Str("sink", "log").Logger(), level: level}
}

func (s *Log) String() string { return "log" }

func (s *Log) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.buf = append(s.buf, p...)
	s.mu.Unlock()
	return len(p), nil
}

func (s *Log) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames++
	ev := s.log.WithLevel(s.level).Uint64("frame", s.frames).Int("bytes", len(s.buf))
	if len(s.buf) > 16 {
		ev = ev.Str("head", hex.EncodeToString(s.buf[:16]))
	} else {
		ev = ev.Str("data", hex.EncodeToString(s.buf))
	}
	ev.Msg("frame")
	s.buf = s.buf[:0]
	return nil
}

// Frames is the number of frames flushed so far.
func (s *Log) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Log) Close() error { return nil }
