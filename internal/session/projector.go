package session

import (
	"time"

	"github.com/Anay7520/ChatSphere/internal/api"
)

// previewLength matches the server's own preview truncation.
const previewLength = 100

// ConversationListProjector keeps the chat list's previews and activity
// timestamps current from push traffic, independent of which chat is
// selected. The list is never re-sorted on message updates; the server
// returns it sorted by recency on the next fetch, and only chat creation
// moves an entry (to the front). Not safe for concurrent use.
type ConversationListProjector struct {
	chats []api.ChatSummary
	index map[string]int // chat id -> position in chats
}

// NewConversationListProjector creates an empty projector.
func NewConversationListProjector() *ConversationListProjector {
	return &ConversationListProjector{index: make(map[string]int)}
}

// Seed replaces the list with a fetch result, preserving server order.
func (p *ConversationListProjector) Seed(chats []api.ChatSummary) {
	p.chats = append([]api.ChatSummary(nil), chats...)
	p.index = make(map[string]int, len(chats))
	for i, c := range p.chats {
		p.index[c.ID] = i
	}
}

// ApplyMessage updates the preview and last-activity timestamp of the
// message's chat in place. When the chat is not selected, its unread count
// is bumped too. A message for a chat not in the list reports false and is
// otherwise ignored. Positions never change.
func (p *ConversationListProjector) ApplyMessage(msg api.Message, selected bool) bool {
	i, ok := p.index[msg.ChatID]
	if !ok {
		return false
	}
	p.chats[i].LastMessagePreview = truncatePreview(msg.Content)
	at := msg.CreatedAt
	p.chats[i].LastMessageAt = &at
	if !selected {
		p.chats[i].UnreadCount++
	}
	return true
}

// ClearUnread zeroes a chat's unread count, called when it gains selection.
func (p *ConversationListProjector) ClearUnread(chatID string) {
	if i, ok := p.index[chatID]; ok {
		p.chats[i].UnreadCount = 0
	}
}

// InsertFront puts a newly created chat at the top of the list. If the chat
// is already present it stays where it is.
func (p *ConversationListProjector) InsertFront(chat api.ChatSummary) {
	if _, ok := p.index[chat.ID]; ok {
		return
	}
	p.chats = append([]api.ChatSummary{chat}, p.chats...)
	p.index = make(map[string]int, len(p.chats))
	for i, c := range p.chats {
		p.index[c.ID] = i
	}
}

// Get returns the summary for a chat id.
func (p *ConversationListProjector) Get(chatID string) (api.ChatSummary, bool) {
	i, ok := p.index[chatID]
	if !ok {
		return api.ChatSummary{}, false
	}
	return p.chats[i], true
}

// Chats returns the projected list. The slice is the projector's own;
// callers must not mutate it.
func (p *ConversationListProjector) Chats() []api.ChatSummary { return p.chats }

// LastActivity is a convenience accessor for tests and rendering.
func (p *ConversationListProjector) LastActivity(chatID string) (time.Time, bool) {
	i, ok := p.index[chatID]
	if !ok || p.chats[i].LastMessageAt == nil {
		return time.Time{}, false
	}
	return *p.chats[i].LastMessageAt, true
}

// truncatePreview clips content to the server's preview length, counting
// code points the way the server slices strings.
func truncatePreview(content string) string {
	if len(content) <= previewLength {
		return content
	}
	runes := []rune(content)
	if len(runes) <= previewLength {
		return content
	}
	return string(runes[:previewLength])
}
