package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/catenarymaps/spruce-sync/internal/observable"
)

// Supervisor owns one client session's connection.
type Supervisor struct {
	cfg    Config
	dialer Dialer
	logger *slog.Logger

	states *observable.Value[State]

	mu         sync.Mutex
	state      State
	conn       Conn
	gen        uint64 // bumped on every dial and teardown
	opens      uint64
	cancelDial context.CancelFunc

	hooksMu  sync.Mutex
	nextID   int
	hooks    []hook
	handlers []handler
}

type hook struct {
	id int
	fn func()
}

type handler struct {
	id int
	fn func(data []byte)
}

// NewSupervisor creates an idle supervisor. A nil dialer dials over
// gorilla/websocket.
func NewSupervisor(cfg Config, dialer Dialer, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	if dialer == nil {
		dialer = NewWebSocketDialer(cfg, logger)
	}

	return &Supervisor{
		cfg:    cfg,
		dialer: dialer,
		logger: logger.With("url", cfg.URL),
		states: observable.NewValue(StateIdle),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Supervisor) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Opens returns how many connections have been opened. It is bumped
// before the on-connected hooks of the new connection run.
func (s *Supervisor) Opens() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens
}

// States returns the published connection state.
func (s *Supervisor) States() *observable.Value[State] {
	return s.states
}

// EnsureConnection starts opening the connection unless it is already
// connecting or connected. It returns without waiting for the open.
func (s *Supervisor) EnsureConnection() {
	s.mu.Lock()
	if s.state == StateConnecting || s.state == StateConnected {
		s.mu.Unlock()
		return
	}

	s.gen++
	gen := s.gen
	ctx, cancel := context.WithCancel(context.Background())
	s.cancelDial = cancel
	s.state = StateConnecting
	s.mu.Unlock()

	s.logger.Info("connecting")
	s.states.Set(StateConnecting)

	go s.open(ctx, gen)
}

// open dials and, on success, runs the on-connected hooks and the read
// loop for generation gen.
func (s *Supervisor) open(ctx context.Context, gen uint64) {
	conn, err := s.dialer.Dial(ctx, s.cfg.URL)

	s.mu.Lock()
	if gen != s.gen {
		// Torn down while dialing.
		s.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return
	}
	s.cancelDial = nil
	if err != nil {
		s.state = StateError
		s.mu.Unlock()

		s.logger.Error("connection failed", "error", err)
		s.states.Set(StateError)
		return
	}
	s.conn = conn
	s.state = StateConnected
	s.opens++
	s.mu.Unlock()

	s.logger.Info("connected")
	s.states.Set(StateConnected)

	for _, h := range s.snapshotHooks() {
		h.fn()
	}

	s.readLoop(conn, gen)
}

// readLoop delivers frames to message handlers until the socket fails.
func (s *Supervisor) readLoop(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			s.lost(conn, gen, err)
			return
		}

		for _, h := range s.snapshotHandlers() {
			h.fn(data)
		}
	}
}

// lost records the end of connection gen. A peer close moves to
// disconnected, any other failure to error. No reconnect is attempted.
func (s *Supervisor) lost(conn Conn, gen uint64, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	next := StateError
	if errors.Is(err, ErrClosedByPeer) {
		next = StateDisconnected
	}
	s.conn = nil
	s.state = next
	s.mu.Unlock()

	conn.Close()

	if next == StateError {
		s.logger.Error("connection error", "error", err)
	} else {
		s.logger.Info("connection closed", "reason", err)
	}
	s.states.Set(next)
}

// Send transmits data if connected and reports whether it was written.
// Frames sent in any other state are dropped.
func (s *Supervisor) Send(data []byte) bool {
	s.mu.Lock()
	conn := s.conn
	state := s.state
	s.mu.Unlock()

	if state != StateConnected || conn == nil {
		s.logger.Debug("dropping frame", "state", state, "error", ErrNotConnected)
		return false
	}

	if err := conn.WriteMessage(data); err != nil {
		s.logger.Warn("send failed", "error", err)
		return false
	}
	return true
}

// Close tears the connection down and moves to disconnected. A later
// EnsureConnection opens a new connection.
func (s *Supervisor) Close() error {
	s.mu.Lock()
	s.gen++
	conn := s.conn
	cancel := s.cancelDial
	prev := s.state
	s.conn = nil
	s.cancelDial = nil
	s.state = StateDisconnected
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if conn != nil {
		err = conn.Close()
	}

	if prev != StateDisconnected {
		s.logger.Info("connection torn down", "previous", prev)
		s.states.Set(StateDisconnected)
	}
	return err
}

// OnConnected registers fn to run after every successful open, after
// hooks registered earlier. The returned func removes it.
func (s *Supervisor) OnConnected(fn func()) (remove func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	s.nextID++
	id := s.nextID
	s.hooks = append(s.hooks, hook{id: id, fn: fn})

	return func() {
		s.hooksMu.Lock()
		defer s.hooksMu.Unlock()
		for i, h := range s.hooks {
			if h.id == id {
				s.hooks = append(s.hooks[:i:i], s.hooks[i+1:]...)
				return
			}
		}
	}
}

// OnMessage registers fn to receive every inbound frame. The returned
// func removes it.
func (s *Supervisor) OnMessage(fn func(data []byte)) (remove func()) {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()

	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, handler{id: id, fn: fn})

	return func() {
		s.hooksMu.Lock()
		defer s.hooksMu.Unlock()
		for i, h := range s.handlers {
			if h.id == id {
				s.handlers = append(s.handlers[:i:i], s.handlers[i+1:]...)
				return
			}
		}
	}
}

func (s *Supervisor) snapshotHooks() []hook {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	return append([]hook(nil), s.hooks...)
}

func (s *Supervisor) snapshotHandlers() []handler {
	s.hooksMu.Lock()
	defer s.hooksMu.Unlock()
	return append([]handler(nil), s.handlers...)
}
