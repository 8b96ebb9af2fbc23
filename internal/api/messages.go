package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// DefaultMessagePageSize matches the server's default page size.
const DefaultMessagePageSize = 50

// ListMessages fetches a page of messages for a chat, newest page first,
// in ascending server order within the page. before is an optional message
// id cursor for older pages; pass "" for the newest page.
func (c *Client) ListMessages(ctx context.Context, chatID string, limit int, before string) (*MessageListResponse, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	if limit <= 0 {
		limit = DefaultMessagePageSize
	}
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	if before != "" {
		q.Set("before", before)
	}
	var resp MessageListResponse
	if err := c.Get(ctx, "/messages/"+chatID+"?"+q.Encode(), &resp); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return &resp, nil
}

// SendMessage creates a message in a chat. The server also pushes the created
// message to the chat room as a new_message event.
func (c *Client) SendMessage(ctx context.Context, chatID, content string) (*Message, error) {
	if chatID == "" {
		return nil, fmt.Errorf("chat id is required")
	}
	if content == "" {
		return nil, fmt.Errorf("message content is required")
	}
	body := struct {
		ChatID  string `json:"chat_id"`
		Content string `json:"content"`
		Type    string `json:"message_type"`
	}{ChatID: chatID, Content: content, Type: MessageTypeText}
	var msg Message
	if err := c.Post(ctx, "/messages/", body, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

// EditMessage updates the content of an existing message.
func (c *Client) EditMessage(ctx context.Context, messageID, content string) (*Message, error) {
	if messageID == "" {
		return nil, fmt.Errorf("message id is required")
	}
	body := struct {
		Content string `json:"content"`
	}{Content: content}
	var msg Message
	if err := c.Put(ctx, "/messages/"+messageID, body, &msg); err != nil {
		return nil, fmt.Errorf("edit message: %w", err)
	}
	return &msg, nil
}

// DeleteMessage soft-deletes a message.
func (c *Client) DeleteMessage(ctx context.Context, messageID string) error {
	if messageID == "" {
		return fmt.Errorf("message id is required")
	}
	if err := c.Delete(ctx, "/messages/"+messageID); err != nil {
		return fmt.Errorf("delete message: %w", err)
	}
	return nil
}

// MarkMessagesRead marks messages in a chat as read.
func (c *Client) MarkMessagesRead(ctx context.Context, chatID string, messageIDs []string) error {
	if chatID == "" {
		return fmt.Errorf("chat id is required")
	}
	body := struct {
		MessageIDs []string `json:"message_ids"`
	}{MessageIDs: messageIDs}
	if err := c.Post(ctx, "/messages/"+chatID+"/read", body, nil); err != nil {
		return fmt.Errorf("mark messages read: %w", err)
	}
	return nil
}
