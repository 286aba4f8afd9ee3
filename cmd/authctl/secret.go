package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Generate a random HS256 secret",
		Long:  "Generate a cryptographically secure secret for symmetric key mode (AUTH_HMAC_SECRET_FILE)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			size, _ := cmd.Flags().GetInt("bytes")
			out, _ := cmd.Flags().GetString("out")
			if size < jwtx.MinHMACSecretSize {
				return fmt.Errorf("secret must be at least %d bytes", jwtx.MinHMACSecretSize)
			}

			secret, err := cryptox.GenerateToken(size)
			if err != nil {
				return err
			}
			if out == "" {
				fmt.Fprintln(cmd.OutOrStdout(), secret)
				return nil
			}
			if err := os.WriteFile(out, []byte(secret+"\n"), 0o600); err != nil {
				return fmt.Errorf("write secret: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "export AUTH_KEY_MODE=symmetric\nexport AUTH_HMAC_SECRET_FILE=%q\n", out)
			return nil
		},
	}
	cmd.Flags().Int("bytes", cryptox.TokenSize256, "Random bytes before encoding")
	cmd.Flags().StringP("out", "o", "", "Write the secret to a file instead of stdout")
	return cmd
}
