package connection

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// Errors
var (
	ErrNotConnected  = errors.New("not connected")
	ErrClosedByPeer  = errors.New("connection closed by peer")
	ErrAlreadyClosed = errors.New("already closed")
)

// State is the lifecycle state of the supervised connection.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateError        State = "error"
)

// Conn is an open message-oriented socket.
type Conn interface {
	// ReadMessage blocks for the next frame. A clean close by the peer
	// returns an error wrapping ErrClosedByPeer.
	ReadMessage() ([]byte, error)

	// WriteMessage sends one text frame. Safe for concurrent use.
	WriteMessage(data []byte) error

	// Close closes the socket.
	Close() error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// DialerFunc is a function adapter for Dialer.
type DialerFunc func(ctx context.Context, url string) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, url string) (Conn, error) {
	return f(ctx, url)
}

// Config configures the supervisor and its WebSocket dialer.
type Config struct {
	URL              string        // WebSocket endpoint (e.g., wss://spruce.catenarymaps.org/ws/)
	HandshakeTimeout time.Duration // Max time for the opening handshake
	WriteTimeout     time.Duration // Write deadline for sends
	Header           http.Header   // Extra handshake headers
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "wss://spruce.catenarymaps.org/ws/",
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}
