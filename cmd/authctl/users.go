package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/nimbusvault/authcore/internal/auth/app"
	"github.com/nimbusvault/authcore/internal/auth/service"
	"github.com/nimbusvault/authcore/internal/auth/store"
	"github.com/nimbusvault/authcore/pkg/cryptox"
)

func newUseraddCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "useradd <username>",
		Short: "Create a login",
		Long: "Create a username and password in the credential database. The password is " +
			"prompted for on a terminal, read from stdin with --password-stdin, or generated " +
			"with --generate.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				password, generated, err := readNewPassword(cmd)
				if err != nil {
					return err
				}
				cred, err := svc.Register(ctx, args[0], password)
				if err != nil {
					return describeUserError(err)
				}
				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "created %s (identity %s)\n", cred.Username, cred.IdentityID)
				if generated {
					fmt.Fprintf(w, "password: %s\n", password)
				}
				return nil
			})
		},
	}
	userFlags(cmd)
	cmd.Flags().Bool("generate", false, "Generate a random password and print it")
	return cmd
}

func newPasswdCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "passwd <username>",
		Short: "Change the password of a login",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				cred, err := svc.Credentials.LookupByUsername(ctx, args[0])
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no such user %q", args[0])
				}
				if err != nil {
					return err
				}
				password, generated, err := readNewPassword(cmd)
				if err != nil {
					return err
				}
				if err := svc.SetPassword(ctx, cred.IdentityID, password); err != nil {
					return describeUserError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "password changed for %s\n", cred.Username)
				if generated {
					fmt.Fprintf(cmd.OutOrStdout(), "password: %s\n", password)
				}
				return nil
			})
		},
	}
	userFlags(cmd)
	cmd.Flags().Bool("generate", false, "Generate a random password and print it")
	return cmd
}

func newUserdelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "userdel <username>",
		Short: "Delete a login",
		Long: "Delete a username from the credential database. Refresh tokens already issued " +
			"to it are rejected from then on; access tokens stay valid until they expire.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withUserService(cmd, func(ctx context.Context, svc *service.AuthService) error {
				cred, err := svc.DeleteUser(ctx, args[0])
				if errors.Is(err, service.ErrIdentityNotFound) {
					return fmt.Errorf("no such user %q", args[0])
				}
				if err != nil {
					return describeUserError(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s (identity %s)\n", cred.Username, cred.IdentityID)
				return nil
			})
		},
	}
	storeFlags(cmd)
	return cmd
}

func userFlags(cmd *cobra.Command) {
	storeFlags(cmd)
	cmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
}

func storeFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", envOr("AUTH_DATABASE_FILE", "auth.db"), "Credential database file")
	cmd.Flags().String("hash", envOr("AUTH_PASSWORD_HASH", cryptox.AlgorithmBcrypt), "Password hash algorithm (bcrypt, argon2id)")
	cmd.Flags().String("pepper", os.Getenv("AUTH_PEPPER"), "Pepper for argon2id, must match the service")
}

// withUserService opens the credential database and runs fn with a service
// that can only manage credentials.
func withUserService(cmd *cobra.Command, fn func(context.Context, *service.AuthService) error) error {
	dbFile, _ := cmd.Flags().GetString("db")
	algorithm, _ := cmd.Flags().GetString("hash")
	pepper, _ := cmd.Flags().GetString("pepper")

	hasher, err := cryptox.NewHasher(algorithm, pepper)
	if err != nil {
		return err
	}
	db, err := app.OpenDatabase(dbFile)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	svc := &service.AuthService{
		Credentials: db.Credentials(),
		Revocations: db.Revocations(),
		Hasher:      hasher,
	}
	return fn(cmd.Context(), svc)
}

// readNewPassword picks the password source from the flags. The bool reports
// whether the password was generated.
func readNewPassword(cmd *cobra.Command) (string, bool, error) {
	if generate, _ := cmd.Flags().GetBool("generate"); generate {
		p, err := cryptox.GeneratePassword()
		return p, true, err
	}

	fromStdin, _ := cmd.Flags().GetBool("password-stdin")
	if f, ok := cmd.InOrStdin().(*os.File); ok && !fromStdin && term.IsTerminal(int(f.Fd())) {
		p, err := promptPassword(cmd, int(f.Fd()))
		return p, false, err
	}

	p, err := readLine(cmd.InOrStdin())
	return p, false, err
}

func promptPassword(cmd *cobra.Command, fd int) (string, error) {
	w := cmd.ErrOrStderr()
	fmt.Fprint(w, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	fmt.Fprint(w, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New("empty password on stdin")
	}
	return line, nil
}

func describeUserError(err error) error {
	switch {
	case errors.Is(err, service.ErrUsernameTaken):
		return errors.New("username already exists")
	case errors.Is(err, service.ErrInvalidInput):
		return err
	default:
		return fmt.Errorf("credential store: %w", err)
	}
}
