package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Anay7520/ChatSphere/internal/socket"
)

// ConnState is the connection lifecycle state.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// Default connect retry bounds. The retry is deliberately simple: a fixed
// delay and a hard attempt cap, after which the manager rests in
// Disconnected until the next explicit Connect.
const (
	DefaultMaxConnectAttempts = 5
	DefaultConnectRetryDelay  = 2 * time.Second
)

// ErrNotConnected is returned by signal methods while disconnected.
var ErrNotConnected = errors.New("not connected")

// Conn is the slice of socket.Conn the manager needs. Satisfied by
// *socket.Conn; tests substitute fakes.
type Conn interface {
	JoinChat(ctx context.Context, chatID string) error
	LeaveChat(ctx context.Context, chatID string) error
	TypingStart(ctx context.Context, chatID string) error
	TypingStop(ctx context.Context, chatID string) error
	Listen(ctx context.Context) <-chan socket.Event
	Close() error
}

// Dialer opens a new connection. Injected so tests can fail or count dials.
type Dialer func(ctx context.Context) (Conn, error)

// ConnectionManager owns the single live connection. It is not safe for
// concurrent use; the session loop is its only caller.
type ConnectionManager struct {
	dial        Dialer
	maxAttempts int
	retryDelay  time.Duration

	state ConnState
	conn  Conn

	handlers      map[int]func(socket.Event)
	nextHandlerID int
}

// NewConnectionManager creates a manager with the default retry bounds.
func NewConnectionManager(dial Dialer) *ConnectionManager {
	return &ConnectionManager{
		dial:        dial,
		maxAttempts: DefaultMaxConnectAttempts,
		retryDelay:  DefaultConnectRetryDelay,
		handlers:    make(map[int]func(socket.Event)),
	}
}

// OnEvent registers a push-event handler and returns its deregistration
// handle. Handlers run on whatever goroutine calls Dispatch.
func (m *ConnectionManager) OnEvent(fn func(socket.Event)) (deregister func()) {
	m.nextHandlerID++
	id := m.nextHandlerID
	m.handlers[id] = fn
	return func() { delete(m.handlers, id) }
}

// Dispatch fans one event out to the registered handlers. Nothing fires
// after ClearHandlers.
func (m *ConnectionManager) Dispatch(ev socket.Event) {
	for _, fn := range m.handlers {
		fn(ev)
	}
}

// ClearHandlers deregisters every handler, part of teardown.
func (m *ConnectionManager) ClearHandlers() {
	m.handlers = make(map[int]func(socket.Event))
}

// SetRetry overrides the attempt cap and inter-attempt delay.
func (m *ConnectionManager) SetRetry(maxAttempts int, delay time.Duration) {
	if maxAttempts > 0 {
		m.maxAttempts = maxAttempts
	}
	m.retryDelay = delay
}

// State returns the current lifecycle state.
func (m *ConnectionManager) State() ConnState { return m.state }

// Conn returns the live connection, or nil while disconnected.
func (m *ConnectionManager) Conn() Conn { return m.conn }

// Connect establishes the connection. Connecting or already connected is a
// no-op: at most one connection exists at a time. On failure each attempt is
// retried after a fixed delay up to the attempt cap, then the manager returns
// the last error and rests in Disconnected.
func (m *ConnectionManager) Connect(ctx context.Context) error {
	if m.state != StateDisconnected {
		return nil
	}
	m.state = StateConnecting

	var lastErr error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		conn, err := m.dial(ctx)
		if err == nil {
			m.conn = conn
			m.state = StateConnected
			return nil
		}
		lastErr = err
		slog.Warn("connect failed", "attempt", attempt, "max", m.maxAttempts, "error", err)

		if attempt == m.maxAttempts {
			break
		}
		timer := time.NewTimer(m.retryDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			m.state = StateDisconnected
			return ctx.Err()
		}
	}

	m.state = StateDisconnected
	return fmt.Errorf("connect: giving up after %d attempts: %w", m.maxAttempts, lastErr)
}

// Disconnect tears down the connection. Already disconnected is a no-op.
func (m *ConnectionManager) Disconnect() {
	if m.state == StateDisconnected {
		return
	}
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

// ConnectionLost marks the connection dead without a close handshake, for
// use when the read loop reports an error.
func (m *ConnectionManager) ConnectionLost() {
	if m.conn != nil {
		_ = m.conn.Close()
		m.conn = nil
	}
	m.state = StateDisconnected
}

// JoinChat emits join_chat over the live connection.
func (m *ConnectionManager) JoinChat(ctx context.Context, chatID string) error {
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	return m.conn.JoinChat(ctx, chatID)
}

// LeaveChat emits leave_chat over the live connection.
func (m *ConnectionManager) LeaveChat(ctx context.Context, chatID string) error {
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	return m.conn.LeaveChat(ctx, chatID)
}

// TypingStart emits typing_start over the live connection.
func (m *ConnectionManager) TypingStart(ctx context.Context, chatID string) error {
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	return m.conn.TypingStart(ctx, chatID)
}

// TypingStop emits typing_stop over the live connection.
func (m *ConnectionManager) TypingStop(ctx context.Context, chatID string) error {
	if m.state != StateConnected || m.conn == nil {
		return ErrNotConnected
	}
	return m.conn.TypingStop(ctx, chatID)
}
