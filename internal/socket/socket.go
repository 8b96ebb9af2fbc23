// Package socket implements the ChatSphere real-time connection.
//
// The server speaks JSON frames of the form {"event": ..., "data": ...} over a
// WebSocket mounted at /socket.io. Authentication happens at handshake time:
// the bearer token is passed as a query parameter, and the server answers a
// successful handshake with a "connected" frame carrying the user id.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/coder/websocket"
)

// DefaultPingTimeout is how long we wait without receiving any frame
// (including server pings) before treating the connection as dead.
// The server pings every ~25s, so 60s matches its own ping timeout.
var DefaultPingTimeout = 60 * time.Second

// ErrPingTimeout is returned when no frames are received within the ping timeout.
var ErrPingTimeout = errors.New("ping timeout: no frames received")

// frame is a raw ChatSphere JSON frame.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Client-to-server signal names.
const (
	SignalJoinChat    = "join_chat"
	SignalLeaveChat   = "leave_chat"
	SignalTypingStart = "typing_start"
	SignalTypingStop  = "typing_stop"
	SignalMessageRead = "message_read"
)

// Server-to-client event names.
const (
	EventConnected      = "connected"
	EventNewMessage     = "new_message"
	EventMessageUpdated = "message_updated"
	EventMessageDeleted = "message_deleted"
	EventUserTyping     = "user_typing"
	EventUserJoined     = "user_joined"
	EventMessagesRead   = "messages_read"
	EventError          = "error"
)

// Event is a message received from the server.
type Event struct {
	Name string          // server event name, e.g. "new_message"
	Data json.RawMessage // the "data" field payload
	Err  error           // non-nil on read error or disconnect
}

// TypingData is the payload of a user_typing event.
type TypingData struct {
	ChatID   string `json:"chat_id"`
	UserID   string `json:"user_id"`
	IsTyping bool   `json:"is_typing"`
}

// Conn is a live authenticated connection to the ChatSphere socket endpoint.
type Conn struct {
	conn   *websocket.Conn
	url    string
	userID string // set from the connected frame
}

// maxReadSize caps the maximum WebSocket frame size to 1 MB.
// ChatSphere events are small JSON; anything larger is likely malformed.
const maxReadSize = 1 << 20 // 1 MB

// URL converts a ChatSphere base URL to its socket WebSocket URL,
// attaching the bearer token as a query parameter.
func URL(baseURL, token string) string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return baseURL // fallback
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/socket.io"
	q := url.Values{}
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// Dial connects to the socket endpoint and waits for the connected frame.
// The handshake fails if the server closes without acknowledging (bad token)
// or answers with an error frame.
func Dial(ctx context.Context, socketURL string) (*Conn, error) {
	conn, _, err := websocket.Dial(ctx, socketURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	conn.SetReadLimit(maxReadSize)

	// Read the connected frame.
	_, data, err := conn.Read(ctx)
	if err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("read handshake: %w", err)
	}

	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		_ = conn.CloseNow()
		return nil, fmt.Errorf("parse handshake: %w", err)
	}
	switch f.Event {
	case EventConnected:
	case EventError:
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(f.Data, &payload)
		_ = conn.CloseNow()
		return nil, fmt.Errorf("handshake rejected: %s", payload.Message)
	default:
		_ = conn.CloseNow()
		return nil, fmt.Errorf("expected connected, got %q", f.Event)
	}

	var payload struct {
		UserID string `json:"user_id"`
	}
	_ = json.Unmarshal(f.Data, &payload)

	return &Conn{conn: conn, url: socketURL, userID: payload.UserID}, nil
}

// UserID returns the authenticated user id reported by the server handshake.
func (c *Conn) UserID() string {
	return c.userID
}

// Close gracefully closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "bye")
}

// Emit sends an event frame to the server.
func (c *Conn) Emit(ctx context.Context, event string, data any) error {
	var raw json.RawMessage
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("marshal %s payload: %w", event, err)
		}
		raw = b
	}
	b, _ := json.Marshal(frame{Event: event, Data: raw})
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("write %s: %w", event, err)
	}
	return nil
}

type chatRef struct {
	ChatID string `json:"chat_id"`
}

// JoinChat registers this connection for push events of a chat room.
func (c *Conn) JoinChat(ctx context.Context, chatID string) error {
	return c.Emit(ctx, SignalJoinChat, chatRef{ChatID: chatID})
}

// LeaveChat deregisters this connection from a chat room.
func (c *Conn) LeaveChat(ctx context.Context, chatID string) error {
	return c.Emit(ctx, SignalLeaveChat, chatRef{ChatID: chatID})
}

// TypingStart signals that the user began composing in a chat.
func (c *Conn) TypingStart(ctx context.Context, chatID string) error {
	return c.Emit(ctx, SignalTypingStart, chatRef{ChatID: chatID})
}

// TypingStop signals that the user stopped composing in a chat.
func (c *Conn) TypingStop(ctx context.Context, chatID string) error {
	return c.Emit(ctx, SignalTypingStop, chatRef{ChatID: chatID})
}

// MarkRead reports messages as read to the other room members.
func (c *Conn) MarkRead(ctx context.Context, chatID string, messageIDs []string) error {
	payload := struct {
		ChatID     string   `json:"chat_id"`
		MessageIDs []string `json:"message_ids"`
	}{ChatID: chatID, MessageIDs: messageIDs}
	return c.Emit(ctx, SignalMessageRead, payload)
}

// Listen starts the read loop and returns a channel of events.
// Pings are handled silently. The channel closes when the connection
// drops or ctx is cancelled.
//
// A rolling ping timeout detects half-dead connections: if no frame
// (including server pings) arrives within DefaultPingTimeout, the
// connection is treated as dead and an ErrPingTimeout is emitted.
func (c *Conn) Listen(ctx context.Context) <-chan Event {
	return c.ListenWithTimeout(ctx, DefaultPingTimeout)
}

// ListenWithTimeout is like Listen but with a configurable ping timeout.
// Use 0 to disable the timeout (not recommended in production).
func (c *Conn) ListenWithTimeout(ctx context.Context, pingTimeout time.Duration) <-chan Event {
	ch := make(chan Event, 64)
	go func() {
		defer close(ch)
		for {
			// Per-read deadline so silent connections (no FIN/RST) get detected.
			readCtx := ctx
			var readCancel context.CancelFunc
			if pingTimeout > 0 {
				readCtx, readCancel = context.WithTimeout(ctx, pingTimeout)
			}

			_, data, err := c.conn.Read(readCtx)

			if readCancel != nil {
				readCancel()
			}

			if err != nil {
				// Distinguish ping timeout from parent context cancellation.
				if pingTimeout > 0 && ctx.Err() == nil && readCtx.Err() != nil {
					err = ErrPingTimeout
				}
				select {
				case ch <- Event{Err: err}:
				case <-ctx.Done():
				}
				return
			}

			var f frame
			if err := json.Unmarshal(data, &f); err != nil {
				continue // skip malformed frames
			}

			switch f.Event {
			case "ping", "":
				continue
			default:
				select {
				case ch <- Event{Name: f.Event, Data: f.Data}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch
}
