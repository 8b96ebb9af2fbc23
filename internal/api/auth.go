package api

import (
	"context"
	"errors"
	"fmt"
)

// Login exchanges email/password for a token pair. The client's Token is not
// updated automatically; callers store the token and construct a new client.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	if email == "" || password == "" {
		return nil, fmt.Errorf("email and password are required")
	}
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Email: email, Password: password}
	var resp TokenResponse
	if err := c.Post(ctx, "/auth/login", body, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
			return nil, &AuthError{Reason: "invalid email or password"}
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	return &resp, nil
}

// Register creates a new account and returns a token pair.
func (c *Client) Register(ctx context.Context, username, email, password string) (*TokenResponse, error) {
	if username == "" || email == "" || password == "" {
		return nil, fmt.Errorf("username, email and password are required")
	}
	body := struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}{Username: username, Email: email, Password: password}
	var resp TokenResponse
	if err := c.Post(ctx, "/auth/register", body, &resp); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return &resp, nil
}

// RefreshToken exchanges a refresh token for a fresh token pair.
func (c *Client) RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	body := struct {
		RefreshToken string `json:"refresh_token"`
	}{RefreshToken: refreshToken}
	var resp TokenResponse
	if err := c.Post(ctx, "/auth/refresh", body, &resp); err != nil {
		return nil, fmt.Errorf("refresh token: %w", err)
	}
	return &resp, nil
}

// Me fetches the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.Get(ctx, "/auth/me", &u); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 401 {
			return nil, &AuthError{Reason: "token expired or invalid"}
		}
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	return &u, nil
}
