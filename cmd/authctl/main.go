package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "authctl",
		Short: "authcore operator utilities",
		Long:  "Key generation, secret generation, user provisioning and token inspection for the authcore service",

		SilenceUsage: true,
	}
	root.AddCommand(
		newKeygenCmd(),
		newSecretCmd(),
		newUseraddCmd(),
		newPasswdCmd(),
		newUserdelCmd(),
		newVerifyCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// envOr returns the environment variable key, or fallback when unset.
func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
