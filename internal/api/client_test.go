package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(srvURL string) *Client {
	c := New(srvURL, "test-token")
	// Fast retries so tests don't sleep for real.
	c.SetRetryConfig(RetryConfig{
		MaxRateLimitRetries:     2,
		Max5xxRetries:           1,
		RateLimitBaseDelay:      time.Millisecond,
		ServerErrorRetryDelay:   time.Millisecond,
		CircuitBreakerThreshold: 5,
		CircuitBreakerResetTime: 30 * time.Second,
	})
	return c
}

func TestBearerTokenHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Get(context.Background(), "/auth/me", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q, want Bearer test-token", gotAuth)
	}
}

func TestAPIPathPrefix(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Get(context.Background(), "chats/", nil); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if gotPath != "/api/v1/chats/" {
		t.Errorf("path = %q, want /api/v1/chats/", gotPath)
	}
}

func TestRetryOn429WithRetryAfter(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Get(context.Background(), "/chats/", nil); err != nil {
		t.Fatalf("Get after 429: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestNoRetryOn429ForPost(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	err := c.Post(context.Background(), "/messages/", map[string]string{"content": "hi"}, nil)
	if !IsRateLimitError(err) {
		t.Fatalf("expected RateLimitError, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("calls = %d, want 1 (POST must not retry)", calls)
	}
}

func TestRetryOn5xxForGet(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if err := c.Get(context.Background(), "/chats/", nil); err != nil {
		t.Fatalf("Get after 502: %v", err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.SetRetryConfig(RetryConfig{
		Max5xxRetries:           0,
		CircuitBreakerThreshold: 2,
		CircuitBreakerResetTime: time.Hour,
	})

	_ = c.Get(context.Background(), "/chats/", nil)
	_ = c.Get(context.Background(), "/chats/", nil)

	err := c.Get(context.Background(), "/chats/", nil)
	if !IsCircuitBreakerError(err) {
		t.Fatalf("expected CircuitBreakerError after threshold, got %v", err)
	}

	c.ResetCircuitBreaker()
	err = c.Get(context.Background(), "/chats/", nil)
	if IsCircuitBreakerError(err) {
		t.Fatal("circuit should be closed after reset")
	}
}

func TestSanitizeErrorBody(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Chat not found"}`, "Chat not found"},
		{"message field", `{"message":"bad request"}`, "bad request"},
		{"not json", `<html>oops</html>`, "API request failed (response body redacted)"},
		{"empty object", `{}`, "API request failed (response body redacted)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeErrorBody(tt.body); got != tt.want {
				t.Errorf("sanitizeErrorBody(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestAPIErrorFrom404(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Chat not found"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GetChat(context.Background(), "nope")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsNotFoundError(err) {
		t.Errorf("expected not-found classification, got %v", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 404 {
		t.Errorf("expected wrapped APIError 404, got %v", err)
	}
}

func TestLoginDecodesTokenPair(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/auth/login" {
			t.Errorf("path = %q", r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@b.c" {
			t.Errorf("email = %q", body["email"])
		}
		_, _ = w.Write([]byte(`{"access_token":"tok","refresh_token":"ref","token_type":"bearer","user":{"_id":"u1","username":"alice","email":"a@b.c"}}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.Login(context.Background(), "a@b.c", "pw")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.AccessToken != "tok" || resp.User.ID != "u1" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestLoginMapsUnauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect email or password"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	if !IsAuthError(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}
