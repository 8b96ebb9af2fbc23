package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Anay7520/ChatSphere/internal/api"
)

// newChatsCmd returns the chats command with subcommands
func newChatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "chats",
		Aliases: []string{"ch"},
		Short:   "Manage conversations",
	}

	cmd.AddCommand(newChatsListCmd())
	cmd.AddCommand(newChatsCreateCmd())

	return cmd
}

func newChatsListCmd() *cobra.Command {
	var (
		archived bool
		noCache  bool
	)

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List your conversations",
		Example: strings.TrimSpace(`
  # List conversations
  chatsphere chats list

  # Include archived chats, skip the local cache
  chatsphere chats list --archived --no-cache

  # Names and unread counts as JSON
  chatsphere chats list --json --jq '.[] | {name, unread_count}'
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			chats, err := listChats(cmd, client, archived, noCache)
			if err != nil {
				return err
			}

			if isJSON(cmd) {
				return printJSON(cmd, chats)
			}

			if len(chats) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No conversations.")
				return nil
			}

			w := newTabWriter(cmd.OutOrStdout())
			_, _ = fmt.Fprintln(w, "ID\tNAME\tTYPE\tUNREAD\tLAST ACTIVITY\tPREVIEW")
			for _, c := range chats {
				last := "-"
				if c.LastMessageAt != nil {
					last = formatTimestamp(*c.LastMessageAt)
				}
				preview := strings.ReplaceAll(c.LastMessagePreview, "\n", " ")
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					c.ID, chatDisplayName(c), c.ChatType, c.UnreadCount, last, preview)
			}
			return w.Flush()
		}),
	}

	cmd.Flags().BoolVar(&archived, "archived", false, "Include archived chats")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the local chat list cache")
	flagAlias(cmd.Flags(), "no-cache", "nc")

	return cmd
}

// listChats fetches the chat list, consulting the local cache first.
// Archived listings always hit the API; the cache only holds the active set.
func listChats(cmd *cobra.Command, client *api.Client, archived, noCache bool) ([]api.ChatSummary, error) {
	store := chatCacheStore(client)

	if !archived && !noCache && store != nil {
		var cached []api.ChatSummary
		if store.Get(&cached) {
			return cached, nil
		}
	}

	resp, err := client.ListChats(cmd.Context(), archived)
	if err != nil {
		return nil, err
	}

	if !archived && store != nil {
		store.Put(resp.Chats)
	}
	return resp.Chats, nil
}

func newChatsCreateCmd() *cobra.Command {
	var (
		name         string
		chatType     string
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a direct or group chat",
		Example: strings.TrimSpace(`
  # Start a direct chat
  chatsphere chats create --type direct --participant 665f1c2e9b3a7d0012345678

  # Create a group
  chatsphere chats create --type group --name standup --participant ID1 --participant ID2
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			client, err := getClient()
			if err != nil {
				return err
			}

			if chatType == api.ChatTypeGroup && strings.TrimSpace(name) == "" {
				return fmt.Errorf("--name is required for group chats")
			}

			chat, err := client.CreateChat(cmd.Context(), name, chatType, participants)
			if err != nil {
				return err
			}

			// The cached list is stale now.
			if store := chatCacheStore(client); store != nil {
				store.Clear()
			}

			if isJSON(cmd) {
				return printJSON(cmd, chat)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Created %s chat %s\n", chat.ChatType, chat.ID)
			if chat.Name != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Name: %s\n", chat.Name)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Participants: %d\n", len(chat.Participants))
			return nil
		}),
	}

	cmd.Flags().StringVar(&name, "name", "", "Chat name (required for groups)")
	cmd.Flags().StringVar(&chatType, "type", api.ChatTypeDirect, "Chat type: direct|group")
	cmd.Flags().StringArrayVar(&participants, "participant", nil, "Participant user ID (repeatable)")
	flagAlias(cmd.Flags(), "participant", "pa")

	return cmd
}
