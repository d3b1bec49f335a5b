package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fivetwenty-io/dtclient/internal/auth"
	"github.com/fivetwenty-io/dtclient/internal/constants"
)

type tokenInfo struct {
	Type      string     `json:"type"                 yaml:"type"`
	Token     string     `json:"token"                yaml:"token"`
	ExpiresAt *time.Time `json:"expires_at,omitempty" yaml:"expires_at,omitempty"`
}

// NewTokenCommand creates the token command.
func NewTokenCommand() *cobra.Command {
	var (
		refresh bool
		header  bool
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print an access token for the configured service account",
		Long: `Print an access token for the configured service account.

Tokens are cached in $HOME/.dtctl/tokens.yml and reused until they expire. When
DT_SERVICE_ACCOUNT_SECRET is not set the secret is read from the terminal.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings()
			if err != nil {
				return err
			}

			logger, err := newLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			config := settings.Config()
			config.Logger = logger

			credential, err := newCredential(cmd.Context(), cmd.ErrOrStderr(), settings, config)
			if err != nil {
				return err
			}

			if refresh {
				err = credential.RefreshToken(cmd.Context())
				if err != nil {
					return fmt.Errorf("refreshing token: %w", err)
				}
			}

			value, err := credential.GetToken(cmd.Context())
			if err != nil {
				return fmt.Errorf("getting token: %w", err)
			}

			info := tokenInfo{Token: value}
			if scheme, token, ok := strings.Cut(value, " "); ok && !header {
				info.Type, info.Token = scheme, token
			}

			if persisting, ok := credential.(*auth.PersistingCredential); ok {
				if expiresAt := persisting.TokenExpiry(); !expiresAt.IsZero() {
					info.ExpiresAt = &expiresAt
				}
			}

			w := cmd.OutOrStdout()

			return render(w, info, func() error {
				if info.ExpiresAt != nil {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Token expires in %s\n", expiresIn(info.ExpiresAt))
				}

				_, err := fmt.Fprintln(w, info.Token)

				return err
			})
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false, "exchange a new token even if the cached one is valid")
	cmd.Flags().BoolVar(&header, "header", false, "print the full Authorization header value")

	return cmd
}

// expiresIn formats the remaining lifetime of a token for humans.
func expiresIn(expiresAt *time.Time) string {
	if expiresAt == nil {
		return constants.NotAvailable
	}

	return time.Until(*expiresAt).Round(time.Second).String()
}
