package led

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"periph.io/x/conn/v3"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/host/v3"
)

// Conn is a Sink over a periph half-duplex connection. Written bytes are
// collected and sent with one Tx per flush, split when the connection
// reports a maximum transfer size.
type Conn struct {
	mu       sync.Mutex
	c        conn.Conn
	closer   func() error
	buf      []byte
	listener Listener
	log      zerolog.Logger
	closed   bool
}

// NewConn wraps c. closer may be nil.
func NewConn(c conn.Conn, closer func() error, l Listener, log zerolog.Logger) *Conn {
	s := &Conn{
		c:        c,
		closer:   closer,
		listener: l,
		log:      log.With().Str("sink", c.String()).Logger(),
	}
	notify(l, Connected)
	return s
}

// SPIConfig selects a SPI port. An empty Port picks the first one available.
type SPIConfig struct {
	Port  string
	Speed physic.Frequency
}

// OpenSPI initializes the host drivers and connects to a SPI port.
func OpenSPI(cfg SPIConfig, l Listener, log zerolog.Logger) (*Conn, error) {
	notify(l, Connecting)
	if _, err := host.Init(); err != nil {
		notify(l, CouldNotConnect)
		return nil, fmt.Errorf("led: host init: %w", err)
	}
	p, err := spireg.Open(cfg.Port)
	if err != nil {
		notify(l, CouldNotConnect)
		return nil, fmt.Errorf("led: open spi %q: %w", cfg.Port, err)
	}
	speed := cfg.Speed
	if speed == 0 {
		speed = physic.MegaHertz
	}
	c, err := p.Connect(speed, spi.Mode0, 8)
	if err != nil {
		p.Close()
		notify(l, CouldNotConnect)
		return nil, fmt.Errorf("led: connect spi %s: %w", p, err)
	}
	log.Info().Str("port", p.String()).Str("speed", speed.String()).Msg("spi connected")
	return NewConn(c, p.Close, l, log), nil
}

func (s *Conn) String() string { return s.c.String() }

func (s *Conn) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	s.buf = append(s.buf, p...)
	return len(p), nil
}

func (s *Conn) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if len(s.buf) == 0 {
		return nil
	}
	size := len(s.buf)
	if lim, ok := s.c.(conn.Limits); ok && lim.MaxTxSize() > 0 {
		size = min(size, lim.MaxTxSize())
	}
	for p := s.buf; len(p) > 0; {
		n := min(size, len(p))
		if err := s.c.Tx(p[:n], nil); err != nil {
			s.buf = s.buf[:0]
			s.log.Error().Err(err).Msg("tx failed")
			notify(s.listener, Lost)
			return err
		}
		p = p[n:]
	}
	s.buf = s.buf[:0]
	return nil
}

func (s *Conn) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	notify(s.listener, Disconnecting)
	var err error
	if s.closer != nil {
		err = s.closer()
	}
	notify(s.listener, NotConnected)
	return err
}
