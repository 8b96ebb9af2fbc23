package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Anay7520/ChatSphere/internal/update"
)

// version is set at build time via ldflags
var version = "dev"

func newVersionCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:     "version",
		Aliases: []string{"v"},
		Short:   "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "chatsphere version %s\n", version)

			if !check {
				return
			}
			// Update check is best-effort and fails silently.
			result := update.CheckForUpdate(cmd.Context(), version)
			if result == nil {
				return
			}
			errOut := cmd.ErrOrStderr()
			if result.UpdateAvailable {
				_, _ = fmt.Fprintf(errOut, "\nUpdate available: %s -> %s\n", result.CurrentVersion, result.LatestVersion) //nolint:errcheck
				_, _ = fmt.Fprintf(errOut, "Download: %s\n", result.UpdateURL)                                            //nolint:errcheck
			} else {
				_, _ = fmt.Fprintln(errOut, "You are on the latest version.") //nolint:errcheck
			}
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Check GitHub for a newer release")

	return cmd
}
