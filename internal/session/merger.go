package session

import "github.com/Anay7520/ChatSphere/internal/api"

// MessageMerger reconciles the message sequence of the selected chat:
// a REST history fetch seeds it, push events append to it. Fetches run
// async, so every fetch carries the generation current at request time;
// results from a superseded selection are discarded wholesale.
// Not safe for concurrent use.
type MessageMerger struct {
	chatID     string
	generation uint64
	messages   []api.Message
	seen       map[string]int // message id -> index in messages
}

// NewMessageMerger creates an empty merger.
func NewMessageMerger() *MessageMerger {
	return &MessageMerger{seen: make(map[string]int)}
}

// Reset clears the sequence for a new selection and returns the generation
// to tag the history fetch with.
func (m *MessageMerger) Reset(chatID string) uint64 {
	m.chatID = chatID
	m.generation++
	m.messages = nil
	m.seen = make(map[string]int)
	return m.generation
}

// Generation returns the current selection generation.
func (m *MessageMerger) Generation() uint64 { return m.generation }

// ChatID returns the chat the sequence belongs to.
func (m *MessageMerger) ChatID() string { return m.chatID }

// SeedHistory installs a fetch result. The result is applied only if gen and
// chatID still match the current selection; a stale result reports false and
// leaves the sequence untouched. Messages are kept in server order.
func (m *MessageMerger) SeedHistory(chatID string, gen uint64, msgs []api.Message) bool {
	if gen != m.generation || chatID != m.chatID {
		return false
	}
	m.messages = append([]api.Message(nil), msgs...)
	m.seen = make(map[string]int, len(msgs))
	for i, msg := range m.messages {
		m.seen[msg.ID] = i
	}
	return true
}

// Append adds a pushed message to the end of the sequence. Messages for
// another chat or with an id already present (e.g. the socket echo of our
// own REST send) are dropped. Reports whether the sequence changed.
func (m *MessageMerger) Append(msg api.Message) bool {
	if m.chatID == "" || msg.ChatID != m.chatID {
		return false
	}
	if _, dup := m.seen[msg.ID]; dup {
		return false
	}
	m.seen[msg.ID] = len(m.messages)
	m.messages = append(m.messages, msg)
	return true
}

// ApplyEdit replaces the content of an existing message in place. Unknown
// ids are ignored.
func (m *MessageMerger) ApplyEdit(msg api.Message) bool {
	i, ok := m.seen[msg.ID]
	if !ok || msg.ChatID != m.chatID {
		return false
	}
	m.messages[i].Content = msg.Content
	m.messages[i].IsEdited = true
	m.messages[i].EditedAt = msg.EditedAt
	return true
}

// ApplyDelete flags an existing message as deleted in place. Unknown ids
// are ignored.
func (m *MessageMerger) ApplyDelete(messageID string) bool {
	i, ok := m.seen[messageID]
	if !ok {
		return false
	}
	m.messages[i].IsDeleted = true
	return true
}

// Messages returns the current sequence in server order. The slice is the
// merger's own; callers must not mutate it.
func (m *MessageMerger) Messages() []api.Message { return m.messages }

// Len returns the number of messages in the sequence.
func (m *MessageMerger) Len() int { return len(m.messages) }
