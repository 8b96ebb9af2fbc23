package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Anay7520/ChatSphere/internal/api"
	"github.com/Anay7520/ChatSphere/internal/socket"
)

// Fetcher is the slice of the REST client the session needs. Satisfied by
// *api.Client.
type Fetcher interface {
	ListMessages(ctx context.Context, chatID string, limit int, before string) (*api.MessageListResponse, error)
	SendMessage(ctx context.Context, chatID, content string) (*api.Message, error)
	CreateChat(ctx context.Context, name, chatType string, participantIDs []string) (*api.Chat, error)
}

// UpdateKind discriminates Update payloads.
type UpdateKind int

const (
	// UpdateMessages replaces the whole message view (history loaded).
	UpdateMessages UpdateKind = iota
	// UpdateMessage appends one message to the view.
	UpdateMessage
	// UpdateTyping changes who is typing in the selected chat.
	UpdateTyping
	// UpdateChatList changes the conversation list.
	UpdateChatList
	// UpdateConnState changes the connection state.
	UpdateConnState
	// UpdateError reports a non-fatal background error.
	UpdateError
)

// Update is pushed to the UI callback from the loop goroutine. The callback
// must not call back into the Session synchronously.
type Update struct {
	Kind        UpdateKind
	ChatID      string
	Messages    []api.Message
	Message     api.Message
	TypingUsers []string
	Chats       []api.ChatSummary
	ConnState   ConnState
	Err         error
}

// Config assembles a Session.
type Config struct {
	API          Fetcher
	Dial         Dialer
	Clock        Clock
	SelfID       string
	OnUpdate     func(Update)
	HistoryLimit int
}

// Session is the reconciliation loop. One goroutine owns all state; the
// exported methods post work onto that goroutine and are safe to call from
// anywhere. Updates flow out through the OnUpdate callback.
type Session struct {
	cfg       Config
	conn      *ConnectionManager
	sub       *RoomSubscription
	merger    *MessageMerger
	typing    *TypingTracker
	projector *ConversationListProjector

	cmds   chan func()
	done   chan struct{}
	closed bool
}

// New assembles a Session. Call Start to connect and begin the loop.
func New(cfg Config) *Session {
	if cfg.Clock == nil {
		cfg.Clock = NewRealClock()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = api.DefaultMessagePageSize
	}
	if cfg.OnUpdate == nil {
		cfg.OnUpdate = func(Update) {}
	}
	conn := NewConnectionManager(cfg.Dial)
	return &Session{
		cfg:       cfg,
		conn:      conn,
		sub:       NewRoomSubscription(conn),
		merger:    NewMessageMerger(),
		typing:    NewTypingTracker(cfg.Clock, cfg.SelfID),
		projector: NewConversationListProjector(),
		cmds:      make(chan func(), 64),
		done:      make(chan struct{}),
	}
}

// ConnectionManager exposes the manager for retry tuning before Start.
func (s *Session) ConnectionManager() *ConnectionManager { return s.conn }

// TypingTracker exposes the tracker for debounce tuning before Start.
func (s *Session) TypingTracker() *TypingTracker { return s.typing }

// SeedChats installs the initial conversation list before Start.
func (s *Session) SeedChats(chats []api.ChatSummary) {
	s.projector.Seed(chats)
}

// Start connects (with the manager's bounded retry) and spawns the loop.
// A connect failure leaves the session inert; Start may be called again.
func (s *Session) Start(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		return err
	}
	s.conn.OnEvent(func(ev socket.Event) { s.handleEvent(ctx, ev) })
	go s.run(ctx)
	go s.pump(ctx, s.conn.Conn())
	s.cfg.OnUpdate(Update{Kind: UpdateConnState, ConnState: StateConnected})
	return nil
}

// run executes posted commands until Close.
func (s *Session) run(ctx context.Context) {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// pump forwards socket events onto the loop. The connection is passed in
// rather than read from the manager: the manager's conn field belongs to
// the loop goroutine, and this runs off it.
func (s *Session) pump(ctx context.Context, conn Conn) {
	if conn == nil {
		return
	}
	for ev := range conn.Listen(ctx) {
		ev := ev
		s.post(func() { s.conn.Dispatch(ev) })
	}
}

// post queues fn for the loop goroutine, dropping it if the session closed.
func (s *Session) post(fn func()) {
	select {
	case s.cmds <- fn:
	case <-s.done:
	}
}

// call posts fn and waits for it to run, returning its error.
func (s *Session) call(fn func() error) error {
	errCh := make(chan error, 1)
	s.post(func() { errCh <- fn() })
	select {
	case err := <-errCh:
		return err
	case <-s.done:
		return fmt.Errorf("session closed")
	}
}

// Select switches the active chat: leaves the old room, joins the new one,
// resets typing state, and kicks off the history fetch. Selecting the
// current chat is a no-op.
func (s *Session) Select(ctx context.Context, chatID string) error {
	return s.call(func() error { return s.selectChat(ctx, chatID) })
}

// selectChat performs the selection switch; it must run on the loop.
func (s *Session) selectChat(ctx context.Context, chatID string) error {
	old := s.sub.Current()
	changed, err := s.sub.Select(ctx, chatID)
	if !changed {
		return err
	}
	if stopChat, due := s.typing.SwitchAway(); due {
		_ = s.conn.TypingStop(ctx, stopChat)
	}
	if old != "" {
		s.typing.ResetRemote(old)
	}
	s.projector.ClearUnread(chatID)
	s.fetchHistory(ctx, chatID)
	return err
}

// CreateChat creates a conversation over REST, inserts it at the front of
// the projected list, and makes it the active selection. An API error
// changes nothing locally.
func (s *Session) CreateChat(ctx context.Context, name, chatType string, participantIDs []string) (string, error) {
	// REST call off the loop, like Send.
	chat, err := s.cfg.API.CreateChat(ctx, name, chatType, participantIDs)
	if err != nil {
		return "", err
	}
	err = s.call(func() error {
		s.projector.InsertFront(chat.Summary())
		s.cfg.OnUpdate(Update{Kind: UpdateChatList, Chats: s.projector.Chats()})
		return s.selectChat(ctx, chat.ID)
	})
	return chat.ID, err
}

// Deselect leaves the current room and clears the message view.
func (s *Session) Deselect(ctx context.Context) error {
	return s.call(func() error {
		if stopChat, due := s.typing.SwitchAway(); due {
			_ = s.conn.TypingStop(ctx, stopChat)
		}
		old := s.sub.Current()
		err := s.sub.Deselect(ctx)
		if old != "" {
			s.typing.ResetRemote(old)
			s.merger.Reset("")
		}
		return err
	})
}

// Current returns the selected chat id, or "".
func (s *Session) Current() string {
	var id string
	_ = s.call(func() error {
		id = s.sub.Current()
		return nil
	})
	return id
}

// Chats returns a snapshot of the projected conversation list.
func (s *Session) Chats() []api.ChatSummary {
	var out []api.ChatSummary
	_ = s.call(func() error {
		out = append(out, s.projector.Chats()...)
		return nil
	})
	return out
}

// Input records a local keystroke, emitting typing_start on the first one
// of a burst and arming the idle stop.
func (s *Session) Input(ctx context.Context) {
	s.post(func() {
		chatID := s.sub.Current()
		if chatID == "" {
			return
		}
		emitStart := s.typing.Input(chatID, func(gen uint64) {
			// Timer callback runs off-loop; hop back before touching state.
			s.post(func() {
				if stopChat, due := s.typing.IdleFired(gen); due {
					_ = s.conn.TypingStop(ctx, stopChat)
				}
			})
		})
		if emitStart {
			_ = s.conn.TypingStart(ctx, chatID)
		}
	})
}

// Send delivers a message to the selected chat over REST. Errors are
// returned to the caller and change nothing locally: no placeholder is
// appended and the draft stays with the caller for retry. On success the
// result is merged immediately; the socket echo dedupes against it.
func (s *Session) Send(ctx context.Context, content string) error {
	var chatID string
	if err := s.call(func() error {
		chatID = s.sub.Current()
		if chatID == "" {
			return fmt.Errorf("no chat selected")
		}
		if stopChat, due := s.typing.SwitchAway(); due {
			_ = s.conn.TypingStop(ctx, stopChat)
		}
		return nil
	}); err != nil {
		return err
	}

	// REST call off the loop so sends don't block event handling.
	msg, err := s.cfg.API.SendMessage(ctx, chatID, content)
	if err != nil {
		return err
	}

	s.post(func() {
		if s.merger.Append(*msg) {
			s.cfg.OnUpdate(Update{Kind: UpdateMessage, ChatID: chatID, Message: *msg})
		}
		if s.projector.ApplyMessage(*msg, chatID == s.sub.Current()) {
			s.cfg.OnUpdate(Update{Kind: UpdateChatList, Chats: s.projector.Chats()})
		}
	})
	return nil
}

// Close tears the session down: pending typing owes a final typing_stop,
// the room is left, the connection dropped, and the loop stopped. Late
// fetch results and events are dropped on the floor. Idempotent.
func (s *Session) Close(ctx context.Context) {
	_ = s.call(func() error {
		if s.closed {
			return nil
		}
		s.closed = true
		if stopChat, due := s.typing.SwitchAway(); due {
			_ = s.conn.TypingStop(ctx, stopChat)
		}
		_ = s.sub.Deselect(ctx)
		s.conn.ClearHandlers()
		s.conn.Disconnect()
		close(s.done)
		return nil
	})
}

// fetchHistory loads the newest history page for chatID async. The result
// is tagged with the merger generation and discarded if the selection moved
// on before it lands. A fetch error yields an empty view, never a crash.
func (s *Session) fetchHistory(ctx context.Context, chatID string) {
	gen := s.merger.Reset(chatID)
	go func() {
		resp, err := s.cfg.API.ListMessages(ctx, chatID, s.cfg.HistoryLimit, "")
		s.post(func() {
			if err != nil {
				slog.Warn("history fetch failed", "chat", chatID, "error", err)
				if s.merger.SeedHistory(chatID, gen, nil) {
					s.cfg.OnUpdate(Update{Kind: UpdateMessages, ChatID: chatID, Messages: nil})
					s.cfg.OnUpdate(Update{Kind: UpdateError, ChatID: chatID, Err: err})
				}
				return
			}
			if s.merger.SeedHistory(chatID, gen, resp.Messages) {
				s.cfg.OnUpdate(Update{
					Kind:     UpdateMessages,
					ChatID:   chatID,
					Messages: s.merger.Messages(),
				})
			}
		})
	}()
}

// handleEvent applies one socket event on the loop goroutine. Anomalous
// payloads are ignored: a malformed frame must never take the client down.
func (s *Session) handleEvent(ctx context.Context, ev socket.Event) {
	if ev.Err != nil {
		s.handleConnectionLoss(ctx, ev.Err)
		return
	}

	switch ev.Name {
	case socket.EventNewMessage:
		var msg api.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil || msg.ID == "" {
			slog.Debug("ignoring malformed new_message", "error", err)
			return
		}
		selected := msg.ChatID == s.sub.Current()
		if selected && s.merger.Append(msg) {
			s.cfg.OnUpdate(Update{Kind: UpdateMessage, ChatID: msg.ChatID, Message: msg})
		}
		if s.projector.ApplyMessage(msg, selected) {
			s.cfg.OnUpdate(Update{Kind: UpdateChatList, Chats: s.projector.Chats()})
		}

	case socket.EventMessageUpdated:
		var msg api.Message
		if err := json.Unmarshal(ev.Data, &msg); err != nil || msg.ID == "" {
			slog.Debug("ignoring malformed message_updated", "error", err)
			return
		}
		if s.merger.ApplyEdit(msg) {
			s.cfg.OnUpdate(Update{
				Kind:     UpdateMessages,
				ChatID:   msg.ChatID,
				Messages: s.merger.Messages(),
			})
		}

	case socket.EventMessageDeleted:
		var ref struct {
			MessageID string `json:"message_id"`
		}
		if err := json.Unmarshal(ev.Data, &ref); err != nil || ref.MessageID == "" {
			slog.Debug("ignoring malformed message_deleted", "error", err)
			return
		}
		if s.merger.ApplyDelete(ref.MessageID) {
			s.cfg.OnUpdate(Update{
				Kind:     UpdateMessages,
				ChatID:   s.merger.ChatID(),
				Messages: s.merger.Messages(),
			})
		}

	case socket.EventUserTyping:
		var td socket.TypingData
		if err := json.Unmarshal(ev.Data, &td); err != nil || td.ChatID == "" {
			slog.Debug("ignoring malformed user_typing", "error", err)
			return
		}
		s.typing.ApplyRemote(td.ChatID, td.UserID, td.IsTyping)
		if td.ChatID == s.sub.Current() {
			s.cfg.OnUpdate(Update{
				Kind:        UpdateTyping,
				ChatID:      td.ChatID,
				TypingUsers: s.typing.TypingUsers(td.ChatID),
			})
		}

	case socket.EventUserJoined, socket.EventMessagesRead:
		// Rendering these is a UI concern; state is unaffected.

	case socket.EventError:
		var payload struct {
			Message string `json:"message"`
		}
		_ = json.Unmarshal(ev.Data, &payload)
		slog.Warn("server error event", "message", payload.Message)

	default:
		slog.Debug("ignoring unknown event", "name", ev.Name)
	}
}

// handleConnectionLoss reconnects with the manager's bounded retry and, on
// success, rejoins the selected room and refetches its history. When the
// retry budget runs out the session rests disconnected and reports it.
func (s *Session) handleConnectionLoss(ctx context.Context, cause error) {
	if s.closed {
		return
	}
	slog.Warn("connection lost", "error", cause)
	s.conn.ConnectionLost()
	s.cfg.OnUpdate(Update{Kind: UpdateConnState, ConnState: StateDisconnected, Err: cause})

	if err := s.conn.Connect(ctx); err != nil {
		s.cfg.OnUpdate(Update{Kind: UpdateError, Err: err})
		return
	}
	s.cfg.OnUpdate(Update{Kind: UpdateConnState, ConnState: StateConnected})
	go s.pump(ctx, s.conn.Conn())

	if chatID := s.sub.Current(); chatID != "" {
		_ = s.conn.JoinChat(ctx, chatID)
		s.fetchHistory(ctx, chatID)
	}
}
