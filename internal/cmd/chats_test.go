package cmd

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newChatListServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")

		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/chats/":
			archived := r.URL.Query().Get("include_archived") == "true"
			chats := `[
				{"_id": "c1", "name": "standup", "chat_type": "group", "unread_count": 2, "last_message_preview": "see you at 10"},
				{"_id": "c2", "chat_type": "direct", "unread_count": 0}
			]`
			if archived {
				chats = `[{"_id": "c9", "name": "old-project", "chat_type": "group", "unread_count": 0}]`
			}
			_, _ = w.Write([]byte(`{"chats": ` + chats + `, "total": 2}`))

		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/chats/":
			var body map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{
				"_id": "c3", "name": "retro", "chat_type": "group",
				"participants": ["u1", "u2"], "created_by": "u1",
				"created_at": "2026-08-30T12:00:00Z"
			}`))

		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail": "Not found"}`))
		}
	}))
}

func useServerCredentials(t *testing.T, serverURL string) {
	t.Helper()
	t.Setenv("CHATSPHERE_BASE_URL", serverURL)
	t.Setenv("CHATSPHERE_TOKEN", "test-token")
}

func TestChatsList_Text(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	stdout, _, err := runCommand(t, "chats", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "standup")
	assert.Contains(t, stdout, "see you at 10")
	assert.Contains(t, stdout, "direct chat c2")
}

func TestChatsList_JSON(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	stdout, _, err := runCommand(t, "chats", "list", "--json")
	require.NoError(t, err)

	var chats []map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &chats))
	require.Len(t, chats, 2)
	assert.Equal(t, "standup", chats[0]["name"])
	assert.Equal(t, float64(2), chats[0]["unread_count"])
}

func TestChatsList_JQFilter(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	stdout, _, err := runCommand(t, "chats", "list", "--json", "--jq", ".[0].name")
	require.NoError(t, err)
	assert.Contains(t, stdout, `"standup"`)
}

func TestChatsList_Archived(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	stdout, _, err := runCommand(t, "chats", "list", "--archived")
	require.NoError(t, err)
	assert.Contains(t, stdout, "old-project")
	assert.NotContains(t, stdout, "standup")
}

func TestChatsCreate_Group(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	stdout, _, err := runCommand(t, "chats", "create",
		"--type", "group", "--name", "retro",
		"--participant", "u1", "--participant", "u2")
	require.NoError(t, err)
	assert.Contains(t, stdout, "Created group chat c3")
	assert.Contains(t, stdout, "Name: retro")
}

func TestChatsCreate_GroupRequiresName(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	_, stderr, err := runCommand(t, "chats", "create", "--type", "group", "--participant", "u1")
	require.Error(t, err)
	assert.Contains(t, stderr, "--name is required for group chats")
}

func TestChatsCreate_InvalidType(t *testing.T) {
	server := newChatListServer(t)
	defer server.Close()
	useServerCredentials(t, server.URL)

	_, _, err := runCommand(t, "chats", "create", "--type", "broadcast", "--participant", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat type")
}
