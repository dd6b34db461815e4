package led

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/tarm/serial"
)

// ErrClosed is returned by sinks used after Close.
var ErrClosed = errors.New("led: sink closed")

// Stream is a Sink over any byte stream, typically a serial port. Writes are
// buffered until Flush.
type Stream struct {
	mu       sync.Mutex
	name     string
	w        *bufio.Writer
	c        io.Closer
	listener Listener
	log      zerolog.Logger
	closed   bool
}

// NewStream wraps wc. The listener is told the link is Connected right away,
// and Lost when a flush fails.
func NewStream(name string, wc io.WriteCloser, l Listener, log zerolog.Logger) *Stream {
	s := &Stream{
		name:     name,
		w:        bufio.NewWriter(wc),
		c:        wc,
		listener: l,
		log:      log.With().Str("sink", name).Logger(),
	}
	notify(l, Connected)
	return s
}

// SerialConfig selects a serial port.
type SerialConfig struct {
	Name        string
	Baud        int
	ReadTimeout time.Duration
}

// DefaultBaud matches the firmware's Firmata serial rate.
const DefaultBaud = 57600

// OpenSerial opens a serial port as a Stream.
func OpenSerial(cfg SerialConfig, l Listener, log zerolog.Logger) (*Stream, error) {
	if cfg.Baud == 0 {
		cfg.Baud = DefaultBaud
	}
	notify(l, Connecting)
	log.Info().Str("port", cfg.Name).Int("baud", cfg.Baud).Msg("opening serial port")
	port, err := serial.OpenPort(&serial.Config{Name: cfg.Name, Baud: cfg.Baud, ReadTimeout: cfg.ReadTimeout})
	if err != nil {
		notify(l, CouldNotConnect)
		return nil, fmt.Errorf("led: open %s: %w", cfg.Name, err)
	}
	return NewStream(cfg.Name, port, l, log), nil
}

func (s *Stream) String() string { return s.name }

func (s *Stream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	return s.w.Write(p)
}

func (s *Stream) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	n := s.w.Buffered()
	if err := s.w.Flush(); err != nil {
		s.log.Error().Err(err).Msg("flush failed")
		notify(s.listener, Lost)
		return err
	}
	s.log.Trace().Int("bytes", n).Msg("flushed")
	return nil
}

func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	notify(s.listener, Disconnecting)
	err := s.w.Flush()
	if cerr := s.c.Close(); err == nil {
		err = cerr
	}
	notify(s.listener, NotConnected)
	return err
}
