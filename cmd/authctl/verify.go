package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nimbusvault/authcore/pkg/authsdk"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

func newVerifyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify [token]",
		Short: "Verify a token and print its claims",
		Long: "Verify a token against a PEM public key (--pubkey) or a running service's JWKS " +
			"(--url). The token is read from stdin when not given as an argument.",
		Args: cobra.MaximumNArgs(1),
		RunE: runVerify,
	}
	cmd.Flags().String("pubkey", "", "PEM public key file")
	cmd.Flags().StringP("alg", "a", jwtx.AlgorithmEdDSA, "Algorithm of --pubkey")
	cmd.Flags().String("url", "", "Base URL of the auth service, JWKS is fetched from it")
	cmd.Flags().String("issuer", envOr("AUTH_ISSUER", "authcore"), "Expected issuer, empty accepts any")
	cmd.Flags().String("kind", "", "Required token kind (access, refresh), empty accepts both")
	cmd.Flags().Duration("leeway", 0, "Allowed clock skew")
	return cmd
}

type verifyOutput struct {
	Kind       jwtx.Kind `json:"kind"`
	Subject    string    `json:"sub"`
	IdentityID string    `json:"iid"`
	Issuer     string    `json:"iss"`
	JTI        string    `json:"jti"`
	IssuedAt   time.Time `json:"iat"`
	ExpiresAt  time.Time `json:"exp"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	pubkey, _ := cmd.Flags().GetString("pubkey")
	alg, _ := cmd.Flags().GetString("alg")
	baseURL, _ := cmd.Flags().GetString("url")
	issuer, _ := cmd.Flags().GetString("issuer")
	kind, _ := cmd.Flags().GetString("kind")
	leeway, _ := cmd.Flags().GetDuration("leeway")

	want := jwtx.Kind(kind)
	if want != jwtx.KindAny && !want.Valid() {
		return fmt.Errorf("unknown token kind %q", kind)
	}

	keys := jwtx.NewKeySet()
	switch {
	case pubkey != "" && baseURL != "":
		return errors.New("use either --pubkey or --url, not both")
	case pubkey != "":
		if _, err := jwtx.LoadPublicKeyFile(keys, alg, pubkey); err != nil {
			return err
		}
	case baseURL != "":
		if err := authsdk.NewSDKClient(baseURL).FetchKeySet(cmd.Context(), keys); err != nil {
			return fmt.Errorf("fetch jwks: %w", err)
		}
	default:
		return errors.New("one of --pubkey or --url is required")
	}

	var token string
	if len(args) == 1 {
		token = args[0]
	} else {
		line, err := readLine(cmd.InOrStdin())
		if err != nil {
			return errors.New("no token given")
		}
		token = line
	}

	verifier := jwtx.NewVerifier(keys, jwtx.VerifyOptions{Issuer: issuer, Leeway: leeway})
	claims, err := verifier.Verify(strings.TrimSpace(token), want)
	switch {
	case errors.Is(err, jwtx.ErrExpired):
		return fmt.Errorf("token expired: %w", err)
	case err != nil:
		return fmt.Errorf("token invalid: %w", err)
	}

	out := verifyOutput{
		Kind:       claims.Kind,
		Subject:    claims.Subject,
		IdentityID: claims.IdentityID,
		Issuer:     claims.Issuer,
		JTI:        claims.ID,
		ExpiresAt:  claims.ExpiresAtTime().UTC(),
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.UTC()
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
