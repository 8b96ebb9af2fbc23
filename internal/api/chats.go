package api

import (
	"context"
	"fmt"
	"net/url"
)

// ListChats fetches the user's chats, sorted by last activity (server-side).
func (c *Client) ListChats(ctx context.Context, includeArchived bool) (*ChatListResponse, error) {
	path := "/chats/"
	if includeArchived {
		q := url.Values{}
		q.Set("include_archived", "true")
		path += "?" + q.Encode()
	}
	var resp ChatListResponse
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	return &resp, nil
}

// GetChat fetches a single chat by id.
func (c *Client) GetChat(ctx context.Context, chatID string) (*Chat, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	var chat Chat
	if err := c.Get(ctx, "/chats/"+chatID, &chat); err != nil {
		return nil, fmt.Errorf("get chat: %w", err)
	}
	return &chat, nil
}

// CreateChat creates a direct or group chat with the given participants.
// name is ignored for direct chats.
func (c *Client) CreateChat(ctx context.Context, name, chatType string, participantIDs []string) (*Chat, error) {
	if chatType != ChatTypeDirect && chatType != ChatTypeGroup {
		return nil, fmt.Errorf("chat type must be %q or %q", ChatTypeDirect, ChatTypeGroup)
	}
	if len(participantIDs) == 0 {
		return nil, fmt.Errorf("at least one participant is required")
	}
	body := struct {
		Name         string   `json:"name,omitempty"`
		ChatType     string   `json:"chat_type"`
		Participants []string `json:"participants"`
	}{Name: name, ChatType: chatType, Participants: participantIDs}
	var chat Chat
	if err := c.Post(ctx, "/chats/", body, &chat); err != nil {
		return nil, fmt.Errorf("create chat: %w", err)
	}
	return &chat, nil
}

// ArchiveChat archives a chat for the current user.
func (c *Client) ArchiveChat(ctx context.Context, chatID string) error {
	if chatID == "" {
		return fmt.Errorf("chat id is required")
	}
	if err := c.Post(ctx, "/chats/"+chatID+"/archive", nil, nil); err != nil {
		return fmt.Errorf("archive chat: %w", err)
	}
	return nil
}
