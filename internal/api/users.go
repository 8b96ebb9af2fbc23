package api

import (
	"context"
	"fmt"
	"net/url"
)

// SearchUsers finds users by username or email prefix.
func (c *Client) SearchUsers(ctx context.Context, query string, limit int) ([]User, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}
	q := url.Values{}
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	var users []User
	if err := c.Get(ctx, "/users/search?"+q.Encode(), &users); err != nil {
		return nil, fmt.Errorf("search users: %w", err)
	}
	return users, nil
}

// GetUser fetches a user's public profile by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user id is required")
	}
	var u User
	if err := c.Get(ctx, "/users/"+userID, &u); err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}
