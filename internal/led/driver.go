package led

import "fmt"

// Sink is the byte link to the matrix firmware.
type Sink interface {
	// Write queues p for transmission. It may buffer.
	Write(p []byte) (int, error)
	// Flush pushes everything written so far onto the wire. Each flush is a
	// frame boundary; sinks must not merge data across it.
	Flush() error
	// Close releases the link.
	Close() error
}

// State is the connection state of a sink as seen by its owner.
type State uint8

const (
	NotConnected State = iota
	Connecting
	Connected
	CouldNotConnect
	Disconnecting
	// Lost means an established link failed underneath us.
	Lost
)

func (s State) String() string {
	switch s {
	case NotConnected:
		return "not_connected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case CouldNotConnect:
		return "could_not_connect"
	case Disconnecting:
		return "disconnecting"
	case Lost:
		return "lost"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Listener is notified of connection state changes by the transport.
type Listener interface {
	ConnectionChanged(State)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(State)

func (f ListenerFunc) ConnectionChanged(s State) { f(s) }

// Listeners fans a state change out to several listeners in order.
type Listeners []Listener

func (ls Listeners) ConnectionChanged(s State) {
	for _, l := range ls {
		if l != nil {
			l.ConnectionChanged(s)
		}
	}
}

func notify(l Listener, s State) {
	if l != nil {
		l.ConnectionChanged(s)
	}
}
