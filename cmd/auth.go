package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teemow/pushbox/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth [auth-code]",
		Short: "Complete the Google OAuth flow and store a token",
		Long: `Authorize pushbox to access Gmail and Calendar for a Google account.

Without arguments, prints the authorization URL and reads the resulting
code from stdin. The code can also be passed as an argument directly.

Tokens are stored per account under the user cache directory, so multiple
Google accounts can be authorized side by side using --account.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			var authCode string
			if len(args) == 1 {
				authCode = args[0]
			} else {
				fmt.Printf("Visit the following URL to authorize pushbox:\n\n  %s\n\n", google.GetAuthURL())
				fmt.Print("Enter the authorization code: ")

				reader := bufio.NewReader(os.Stdin)
				line, err := reader.ReadString('\n')
				if err != nil {
					return fmt.Errorf("failed to read authorization code: %w", err)
				}
				authCode = strings.TrimSpace(line)
			}

			if authCode == "" {
				return fmt.Errorf("authorization code cannot be empty")
			}

			if err := google.SaveTokenForAccount(ctx, account, authCode); err != nil {
				return fmt.Errorf("failed to save token for account %s: %w", account, err)
			}

			fmt.Printf("Token stored for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to store the token under")
	return cmd
}
