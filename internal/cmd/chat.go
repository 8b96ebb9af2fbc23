package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Anay7520/ChatSphere/internal/api"
	"github.com/Anay7520/ChatSphere/internal/config"
	"github.com/Anay7520/ChatSphere/internal/iocontext"
	"github.com/Anay7520/ChatSphere/internal/resolve"
	"github.com/Anay7520/ChatSphere/internal/session"
	"github.com/Anay7520/ChatSphere/internal/socket"
)

// newChatCmd creates the interactive chat command
func newChatCmd() *cobra.Command {
	var historyLimit int

	cmd := &cobra.Command{
		Use:   "chat <id|name>",
		Short: "Open a live chat session",
		Long: strings.TrimSpace(`
Open a conversation and stay connected: incoming messages, edits, and
typing indicators stream in as they happen. Type a message and press
enter to send it.

Session commands:
  /switch <id|name>          Switch to another conversation
  /chats                     Show the conversation list
  /create <name> <user>...   Create a group chat and switch to it
  /quit                      Leave the session
`),
		Example: strings.TrimSpace(`
  # Open a chat by name (fuzzy matched)
  chatsphere chat standup

  # Open a chat by id
  chatsphere chat 665f1c2e9b3a7d0012345678
`),
		Args: cobra.ExactArgs(1),
		RunE: RunE(func(cmd *cobra.Command, args []string) error {
			account, err := config.LoadAccount()
			if err != nil {
				return err
			}
			client := api.New(account.BaseURL, account.Token)
			client.HTTP.Timeout = flags.Timeout

			// Fetch the profile and the chat list concurrently. The profile
			// gives us the self user id for typing self-echo filtering when
			// the stored account predates it.
			var (
				selfID = account.UserID
				chats  []api.ChatSummary
			)
			g, gctx := errgroup.WithContext(cmd.Context())
			if selfID == "" {
				g.Go(func() error {
					me, err := client.Me(gctx)
					if err != nil {
						return err
					}
					selfID = me.ID
					return nil
				})
			}
			g.Go(func() error {
				resp, err := client.ListChats(gctx, false)
				if err != nil {
					return err
				}
				chats = resp.Chats
				return nil
			})
			if err := g.Wait(); err != nil {
				return err
			}

			chatID, err := resolveChatRef(args[0], chats)
			if err != nil {
				return err
			}

			ioStreams := iocontext.GetIO(cmd.Context())
			renderer := newRenderer(ioStreams.Out, ioStreams.ErrOut, selfID)

			socketURL := socket.URL(account.BaseURL, account.Token)
			sess := session.New(session.Config{
				API: client,
				Dial: func(ctx context.Context) (session.Conn, error) {
					return socket.Dial(ctx, socketURL)
				},
				SelfID:       selfID,
				OnUpdate:     renderer.render,
				HistoryLimit: historyLimit,
			})
			sess.SeedChats(chats)

			if err := sess.Start(cmd.Context()); err != nil {
				return fmt.Errorf("failed to connect: %w", err)
			}
			defer sess.Close(context.Background())

			renderer.announce(chatLabel(chatID, chats))
			if err := sess.Select(cmd.Context(), chatID); err != nil {
				renderer.warn("join failed: %v", err)
			}

			return runChatLoop(cmd.Context(), sess, renderer, ioStreams.In)
		}),
	}

	cmd.Flags().IntVar(&historyLimit, "history", api.DefaultMessagePageSize, "Messages of history to load on join")
	flagAlias(cmd.Flags(), "history", "hi")

	return cmd
}

// runChatLoop reads lines from in until /quit, EOF, or context cancellation.
func runChatLoop(ctx context.Context, sess *session.Session, r *renderer, in io.Reader) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 64*1024), 64*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			return err
		case line := <-lines:
			line = strings.TrimSpace(line)
			switch {
			case line == "":
				continue
			case line == "/quit" || line == "/q":
				return nil
			case line == "/chats":
				r.printChats(sess.Chats())
			case strings.HasPrefix(line, "/switch "):
				ref := strings.TrimSpace(strings.TrimPrefix(line, "/switch "))
				chats := sess.Chats()
				chatID, err := resolveChatRef(ref, chats)
				if err != nil {
					r.warn("%v", err)
					continue
				}
				r.announce(chatLabel(chatID, chats))
				if err := sess.Select(ctx, chatID); err != nil {
					r.warn("switch failed: %v", err)
				}
			case strings.HasPrefix(line, "/create"):
				fields := strings.Fields(strings.TrimPrefix(line, "/create"))
				if len(fields) < 2 {
					r.warn("usage: /create <name> <user-id>...")
					continue
				}
				name, participants := fields[0], fields[1:]
				if _, err := sess.CreateChat(ctx, name, api.ChatTypeGroup, participants); err != nil {
					r.warn("create failed: %v", err)
					continue
				}
				r.announce(name)
			case strings.HasPrefix(line, "/"):
				r.warn("unknown command %s (try /switch, /chats, /create, /quit)", line)
			default:
				sess.Input(ctx)
				if err := sess.Send(ctx, line); err != nil {
					r.warn("send failed: %v", err)
				}
			}
		}
	}
}

// resolveChatRef resolves a chat id or name against the known chat list.
func resolveChatRef(ref string, chats []api.ChatSummary) (string, error) {
	items := make([]resolve.Named, len(chats))
	for i, c := range chats {
		items[i] = resolve.Named{ID: c.ID, Name: chatDisplayName(c)}
	}

	id, err := resolve.FuzzyMatch(ref, items)
	if err == nil {
		return id, nil
	}

	var ae *resolve.AmbiguousError
	if errors.As(err, &ae) {
		var options []string
		for _, m := range ae.Matches {
			options = append(options, fmt.Sprintf("  %s: %s", m.ID, m.Name))
		}
		return "", fmt.Errorf("multiple chats match %q, specify an id:\n%s", ref, strings.Join(options, "\n"))
	}
	if errors.Is(err, resolve.ErrEmptyItems) {
		return "", fmt.Errorf("no conversations yet; create one with 'chatsphere chats create'")
	}
	return "", fmt.Errorf("no chat found matching %q", ref)
}

func chatLabel(chatID string, chats []api.ChatSummary) string {
	for _, c := range chats {
		if c.ID == chatID {
			return chatDisplayName(c)
		}
	}
	return chatID
}

// renderer serializes session updates onto the terminal. Updates arrive from
// the session loop goroutine while the input loop writes prompts, so all
// output goes through one mutex.
type renderer struct {
	mu     sync.Mutex
	out    io.Writer
	errOut io.Writer
	selfID string
	typing []string
}

func newRenderer(out, errOut io.Writer, selfID string) *renderer {
	return &renderer{out: out, errOut: errOut, selfID: selfID}
}

func (r *renderer) render(u session.Update) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch u.Kind {
	case session.UpdateMessages:
		_, _ = fmt.Fprintf(r.out, "--- %d message(s) ---\n", len(u.Messages))
		for _, m := range u.Messages {
			r.printMessage(m)
		}
	case session.UpdateMessage:
		r.printMessage(u.Message)
	case session.UpdateTyping:
		r.printTyping(u.TypingUsers)
	case session.UpdateConnState:
		_, _ = fmt.Fprintf(r.errOut, "* %s\n", u.ConnState)
	case session.UpdateError:
		_, _ = fmt.Fprintf(r.errOut, "* error: %v\n", u.Err)
	case session.UpdateChatList:
		// The list is only shown on demand via /chats.
	}
}

func (r *renderer) printMessage(m api.Message) {
	sender := r.senderLabel(m.SenderID)
	content := m.Content
	if m.IsDeleted {
		content = "(deleted)"
	} else if m.IsEdited {
		content += " (edited)"
	}
	_, _ = fmt.Fprintf(r.out, "[%s] %s: %s\n", formatClock(m.CreatedAt), sender, content)
}

func (r *renderer) printTyping(users []string) {
	if len(users) == len(r.typing) {
		same := true
		for i := range users {
			if users[i] != r.typing[i] {
				same = false
				break
			}
		}
		if same {
			return
		}
	}
	r.typing = users
	if len(users) == 0 {
		return
	}
	labels := make([]string, len(users))
	for i, u := range users {
		labels[i] = r.senderLabel(u)
	}
	_, _ = fmt.Fprintf(r.errOut, "* typing: %s\n", strings.Join(labels, ", "))
}

func (r *renderer) senderLabel(userID string) string {
	if userID == r.selfID {
		return "me"
	}
	if len(userID) > 8 {
		return userID[len(userID)-8:]
	}
	return userID
}

func (r *renderer) announce(label string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.out, "=== %s ===\n", label)
}

func (r *renderer) warn(format string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintf(r.errOut, "* "+format+"\n", args...)
}

func (r *renderer) printChats(chats []api.ChatSummary) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(chats) == 0 {
		_, _ = fmt.Fprintln(r.out, "No conversations.")
		return
	}
	for _, c := range chats {
		marker := " "
		if c.UnreadCount > 0 {
			marker = fmt.Sprintf("(%d)", c.UnreadCount)
		}
		_, _ = fmt.Fprintf(r.out, "%s %s  %s\n", marker, chatDisplayName(c), c.ID)
	}
}
