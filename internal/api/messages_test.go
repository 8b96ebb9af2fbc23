package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestListMessagesQueryParams(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/messages/c1" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("limit") != "25" {
			t.Errorf("limit = %q, want 25", q.Get("limit"))
		}
		if q.Get("before") != "m10" {
			t.Errorf("before = %q, want m10", q.Get("before"))
		}
		_, _ = w.Write([]byte(`{"messages":[{"_id":"m9","chat_id":"c1","content":"older"}],"count":1,"has_more":false}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.ListMessages(context.Background(), "c1", 25, "m10")
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(resp.Messages) != 1 || resp.Messages[0].ID != "m9" {
		t.Errorf("unexpected messages: %+v", resp.Messages)
	}
	if resp.HasMore {
		t.Error("has_more should be false")
	}
}

func TestListMessagesDefaultsLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "50" {
			t.Errorf("limit = %q, want 50", got)
		}
		if r.URL.Query().Has("before") {
			t.Error("before should be omitted for the newest page")
		}
		_, _ = w.Write([]byte(`{"messages":[],"count":0,"has_more":false}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	if _, err := c.ListMessages(context.Background(), "c1", 0, ""); err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
}

func TestSendMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/messages/" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["chat_id"] != "c1" || body["content"] != "hello" || body["message_type"] != "text" {
			t.Errorf("body = %v", body)
		}
		_, _ = w.Write([]byte(`{"_id":"m1","chat_id":"c1","sender_id":"u1","content":"hello","message_type":"text","status":"sent"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	msg, err := c.SendMessage(context.Background(), "c1", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if msg.ID != "m1" || msg.Status != MessageStatusSent {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestSendMessageRequiresContent(t *testing.T) {
	c := testClient("http://unused")
	if _, err := c.SendMessage(context.Background(), "c1", ""); err == nil {
		t.Fatal("expected validation error for empty content")
	}
	if _, err := c.SendMessage(context.Background(), "", "hi"); err == nil {
		t.Fatal("expected validation error for empty chat id")
	}
}

func TestEditAndDeleteMessage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPut && r.URL.Path == "/api/v1/messages/m1":
			_, _ = w.Write([]byte(`{"_id":"m1","chat_id":"c1","content":"edited","is_edited":true}`))
		case r.Method == http.MethodDelete && r.URL.Path == "/api/v1/messages/m1":
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	msg, err := c.EditMessage(context.Background(), "m1", "edited")
	if err != nil {
		t.Fatalf("EditMessage: %v", err)
	}
	if !msg.IsEdited || msg.Content != "edited" {
		t.Errorf("unexpected message: %+v", msg)
	}
	if err := c.DeleteMessage(context.Background(), "m1"); err != nil {
		t.Fatalf("DeleteMessage: %v", err)
	}
}

func TestChatListDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chats":[{"_id":"c1","name":"standup","chat_type":"group","last_message_preview":"see you","unread_count":3}],"total":1}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	resp, err := c.ListChats(context.Background(), false)
	if err != nil {
		t.Fatalf("ListChats: %v", err)
	}
	if resp.Total != 1 || resp.Chats[0].Name != "standup" || resp.Chats[0].UnreadCount != 3 {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestCreateChatValidatesType(t *testing.T) {
	c := testClient("http://unused")
	if _, err := c.CreateChat(context.Background(), "x", "broadcast", []string{"u2"}); err == nil {
		t.Fatal("expected error for invalid chat type")
	}
	if _, err := c.CreateChat(context.Background(), "x", ChatTypeGroup, nil); err == nil {
		t.Fatal("expected error for empty participants")
	}
}
