package api

import "time"

// Chat type constants
const (
	ChatTypeDirect = "direct"
	ChatTypeGroup  = "group"
)

// Message type constants
const (
	MessageTypeText  = "text"
	MessageTypeImage = "image"
	MessageTypeFile  = "file"
	MessageTypeVideo = "video"
	MessageTypeAudio = "audio"
)

// Message status constants
const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

// User is a ChatSphere account.
type User struct {
	ID       string     `json:"_id"`
	Username string     `json:"username"`
	Email    string     `json:"email"`
	Avatar   string     `json:"avatar,omitempty"`
	Bio      string     `json:"bio,omitempty"`
	IsOnline bool       `json:"is_online"`
	LastSeen *time.Time `json:"last_seen,omitempty"`
}

// Message is a chat message. IDs are Mongo ObjectId strings.
type Message struct {
	ID        string              `json:"_id"`
	ChatID    string              `json:"chat_id"`
	SenderID  string              `json:"sender_id"`
	Content   string              `json:"content"`
	Type      string              `json:"message_type"`
	Status    string              `json:"status"`
	CreatedAt time.Time           `json:"created_at"`
	UpdatedAt *time.Time          `json:"updated_at,omitempty"`
	IsEdited  bool                `json:"is_edited"`
	EditedAt  *time.Time          `json:"edited_at,omitempty"`
	IsDeleted bool                `json:"is_deleted"`
	ReplyTo   string              `json:"reply_to,omitempty"`
	Reactions map[string][]string `json:"reactions,omitempty"`
}

// ChatSummary is the list-view projection of a chat.
type ChatSummary struct {
	ID                 string     `json:"_id"`
	Name               string     `json:"name,omitempty"`
	ChatType           string     `json:"chat_type"`
	Avatar             string     `json:"avatar,omitempty"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	UnreadCount        int        `json:"unread_count"`
}

// Chat is the full chat document.
type Chat struct {
	ID                 string     `json:"_id"`
	Name               string     `json:"name,omitempty"`
	ChatType           string     `json:"chat_type"`
	Avatar             string     `json:"avatar,omitempty"`
	Participants       []string   `json:"participants"`
	Admins             []string   `json:"admins,omitempty"`
	CreatedBy          string     `json:"created_by"`
	CreatedAt          time.Time  `json:"created_at"`
	LastMessageAt      *time.Time `json:"last_message_at,omitempty"`
	LastMessagePreview string     `json:"last_message_preview,omitempty"`
	IsArchived         bool       `json:"is_archived"`
}

// Summary projects a Chat to its list view.
func (c Chat) Summary() ChatSummary {
	return ChatSummary{
		ID:                 c.ID,
		Name:               c.Name,
		ChatType:           c.ChatType,
		Avatar:             c.Avatar,
		LastMessageAt:      c.LastMessageAt,
		LastMessagePreview: c.LastMessagePreview,
	}
}

// ChatListResponse is the GET /chats response.
type ChatListResponse struct {
	Chats []ChatSummary `json:"chats"`
	Total int           `json:"total"`
}

// MessageListResponse is the GET /messages/{chat_id} response.
type MessageListResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
	HasMore  bool      `json:"has_more"`
}

// TokenResponse is the login/refresh response.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	User         User   `json:"user"`
}
