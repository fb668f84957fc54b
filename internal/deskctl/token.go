package deskctl

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dmitrijs2005/merchantdesk/internal/server/auth"
)

// readSecret is a test seam; it prompts on w and reads without echo.
var readSecret = func(w io.Writer) ([]byte, error) {
	fmt.Fprint(w, "Signing secret: ")
	b, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	return b, err
}

func tokenCmd() *cobra.Command {
	var (
		sub    string
		email  string
		secret string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an HS256 bearer token for local testing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(sub) == "" {
				return errors.New("--sub is required")
			}
			key := []byte(secret)
			if len(key) == 0 {
				var err error
				if key, err = readSecret(cmd.ErrOrStderr()); err != nil {
					return fmt.Errorf("read secret: %w", err)
				}
			}
			if len(key) == 0 {
				return errors.New("signing secret is empty")
			}

			tok, err := auth.GenerateToken(sub, email, key, ttl)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVar(&sub, "sub", "", "subject (principal id)")
	cmd.Flags().StringVar(&email, "email", "", "principal email")
	cmd.Flags().StringVar(&secret, "secret", "", "HS256 signing secret (prompted when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")

	return cmd
}
