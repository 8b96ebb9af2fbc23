package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Anay7520/ChatSphere/internal/api"
	"github.com/Anay7520/ChatSphere/internal/config"
	"github.com/Anay7520/ChatSphere/internal/iocontext"
)

// newAuthCmd returns the auth command with subcommands
func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "auth",
		Aliases: []string{"au"},
		Short:   "Manage authentication credentials",
		Long:    "Log in to a ChatSphere server and manage credentials stored securely in your OS keychain.",
	}

	cmd.AddCommand(newAuthLoginCmd())
	cmd.AddCommand(newAuthStatusCmd())
	cmd.AddCommand(newAuthLogoutCmd())

	return cmd
}

// newAuthLoginCmd creates the auth login command
func newAuthLoginCmd() *cobra.Command {
	var (
		server   string
		email    string
		password string
		profile  string
		envFile  string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Authenticate with a ChatSphere server",
		Long: strings.TrimSpace(`
Log in with your email and password and save the issued token securely
to your OS keychain.

The password can be passed with --password, read from a .env file with
--env-file, or typed at the prompt.
`),
		Example: strings.TrimSpace(`
  # Prompted login
  chatsphere auth login --server https://chat.example.com --email me@example.com

  # Non-interactive login
  chatsphere auth login --server https://chat.example.com --email me@example.com --password secret

  # Save to a named profile
  chatsphere auth login --server https://chat.example.com --email me@example.com --profile staging

  # Load CHATSPHERE_* values from a .env file
  chatsphere auth login --env-file .env
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if envFile != "" {
				envVars, err := loadAuthEnvFile(envFile)
				if err != nil {
					return err
				}
				applyAuthEnvFileRuntimeVars(envVars)

				if server == "" {
					server = strings.TrimSpace(envVars["CHATSPHERE_BASE_URL"])
				}
				if email == "" {
					email = strings.TrimSpace(envVars["CHATSPHERE_EMAIL"])
				}
				if password == "" {
					password = strings.TrimSpace(envVars["CHATSPHERE_PASSWORD"])
				}
				if !cmd.Flags().Changed("profile") {
					if envProfile := strings.TrimSpace(envVars["CHATSPHERE_PROFILE"]); envProfile != "" {
						profile = envProfile
					}
				}
			}

			if server == "" {
				return fmt.Errorf("--server is required (e.g. https://chat.example.com)")
			}
			if email == "" {
				return fmt.Errorf("--email is required")
			}
			server = strings.TrimSuffix(server, "/")
			if !strings.HasPrefix(server, "http://") && !strings.HasPrefix(server, "https://") {
				return fmt.Errorf("invalid --server %q: must start with http:// or https://", server)
			}

			if password == "" {
				var err error
				password, err = promptPassword(cmd)
				if err != nil {
					return err
				}
			}
			if password == "" {
				return fmt.Errorf("--password is required in non-interactive mode")
			}

			client := api.New(server, "")
			client.HTTP.Timeout = flags.Timeout
			tokens, err := client.Login(cmd.Context(), email, password)
			if err != nil {
				return err
			}

			account := config.Account{
				BaseURL:      server,
				Token:        tokens.AccessToken,
				RefreshToken: tokens.RefreshToken,
				UserID:       tokens.User.ID,
				Username:     tokens.User.Username,
				Email:        tokens.User.Email,
			}
			if err := config.SaveProfile(profile, account); err != nil {
				return fmt.Errorf("failed to save credentials: %w", err)
			}

			if isJSON(cmd) {
				return printJSON(cmd, map[string]any{
					"authenticated": true,
					"base_url":      server,
					"user_id":       account.UserID,
					"username":      account.Username,
				})
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged in successfully!")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Server: %s\n", server)
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  User: %s (%s)\n", account.Username, account.Email)
			if profile != "" && profile != "default" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Profile: %s\n", profile)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&server, "server", "", "ChatSphere base URL (e.g. https://chat.example.com)")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVar(&profile, "profile", "default", "Profile name to save credentials under")
	cmd.Flags().StringVar(&envFile, "env-file", "", "Load CHATSPHERE_* values from a .env file")
	flagAlias(cmd.Flags(), "server", "sv")
	flagAlias(cmd.Flags(), "profile", "pf")
	flagAlias(cmd.Flags(), "env-file", "env")

	return cmd
}

func promptPassword(cmd *cobra.Command) (string, error) {
	ioStreams := iocontext.GetIO(cmd.Context())
	info, err := os.Stdin.Stat()
	if err != nil || (info.Mode()&os.ModeCharDevice) == 0 {
		return "", nil
	}
	_, _ = fmt.Fprint(ioStreams.ErrOut, "Password: ")
	reader := bufio.NewReader(ioStreams.In)
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func loadAuthEnvFile(path string) (map[string]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("--env-file requires a file path")
	}

	envVars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read --env-file %q: %w", path, err)
	}

	return envVars, nil
}

// applyAuthEnvFileRuntimeVars copies keyring/runtime settings from --env-file
// into process environment when they are not already exported.
func applyAuthEnvFileRuntimeVars(envVars map[string]string) {
	keys := []string{
		"CHATSPHERE_KEYRING_BACKEND",
		"CHATSPHERE_KEYRING_PASSWORD",
		"CHATSPHERE_CREDENTIALS_DIR",
	}

	for _, key := range keys {
		if _, exists := os.LookupEnv(key); exists {
			continue
		}
		value := strings.TrimSpace(envVars[key])
		if value == "" {
			continue
		}
		_ = os.Setenv(key, value)
	}
}

// newAuthStatusCmd creates the auth status command
func newAuthStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show current authentication configuration",
		Long:  "Display the currently saved authentication configuration (the token is masked).",
		Example: strings.TrimSpace(`
  # Check authentication status
  chatsphere auth status

  # JSON output for scripting
  chatsphere auth status --json
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			envBaseURL := strings.TrimSpace(os.Getenv("CHATSPHERE_BASE_URL"))
			envToken := strings.TrimSpace(os.Getenv("CHATSPHERE_TOKEN"))
			usingEnv := envBaseURL != "" || envToken != ""

			account, err := config.LoadAccount()
			if err != nil {
				if err == config.ErrNotConfigured {
					if isJSON(cmd) {
						return printJSON(cmd, map[string]any{
							"authenticated": false,
							"message":       "Not authenticated. Run 'chatsphere auth login' to configure credentials.",
						})
					}
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Not authenticated.")
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Run 'chatsphere auth login' to configure credentials.")
					return nil
				}
				return fmt.Errorf("failed to load credentials: %w", err)
			}

			var profile string
			if !usingEnv {
				if current, err := config.CurrentProfile(); err == nil {
					profile = current
				}
			}

			if isJSON(cmd) {
				payload := map[string]any{
					"authenticated": true,
					"base_url":      account.BaseURL,
					"user_id":       account.UserID,
					"username":      account.Username,
					"token":         maskToken(account.Token),
					"source":        map[bool]string{true: "env", false: "keychain"}[usingEnv],
				}
				if profile != "" {
					payload["profile"] = profile
				}
				return printJSON(cmd, payload)
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Authenticated")
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Server: %s\n", account.BaseURL)
			if account.Username != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  User: %s (%s)\n", account.Username, account.Email)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Token: %s\n", maskToken(account.Token))
			if profile != "" {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "  Profile: %s\n", profile)
			}
			if usingEnv {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "  Source: env")
			}

			return nil
		}),
	}

	return cmd
}

// newAuthLogoutCmd creates the auth logout command
func newAuthLogoutCmd() *cobra.Command {
	var profile string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove credentials from keychain",
		Long:  "Delete the stored authentication credentials from your OS keychain.",
		Example: strings.TrimSpace(`
  # Remove stored credentials
  chatsphere auth logout
`),
		RunE: RunE(func(cmd *cobra.Command, _ []string) error {
			if profile == "" {
				current, err := config.CurrentProfile()
				if err == nil {
					profile = current
				}
			}

			if profile == "" && !config.HasAccount() {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No credentials found.")
				return nil
			}

			if err := config.DeleteProfile(profile); err != nil {
				return fmt.Errorf("failed to remove credentials: %w", err)
			}

			if profile == "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials removed successfully.")
			} else {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Profile %s removed successfully.\n", profile)
			}
			return nil
		}),
	}

	cmd.Flags().StringVar(&profile, "profile", "", "Profile name to remove (defaults to current)")
	flagAlias(cmd.Flags(), "profile", "pf")

	return cmd
}
