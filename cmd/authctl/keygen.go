package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

func newKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a token signing key pair",
		Long: "Generate a private signing key for AUTH_PRIVATE_KEY_FILE and its public half " +
			"for verifier-only services. With --seal the private key is encrypted with the " +
			"master key read from the given file (AUTH_MASTER_KEY_FILE).",
		Args: cobra.NoArgs,
		RunE: runKeygen,
	}
	cmd.Flags().StringP("alg", "a", jwtx.AlgorithmEdDSA, "Signing algorithm (EdDSA, ES256, RS256)")
	cmd.Flags().Int("bits", cryptox.MinRSABits, "RSA modulus size, RS256 only")
	cmd.Flags().StringP("out", "o", "auth_private.pem", "Private key output file")
	cmd.Flags().String("pub", "auth_public.pem", "Public key output file")
	cmd.Flags().String("seal", "", "Master key file used to seal the private key")
	return cmd
}

func runKeygen(cmd *cobra.Command, _ []string) error {
	alg, _ := cmd.Flags().GetString("alg")
	bits, _ := cmd.Flags().GetInt("bits")
	out, _ := cmd.Flags().GetString("out")
	pubOut, _ := cmd.Flags().GetString("pub")
	sealWith, _ := cmd.Flags().GetString("seal")

	var (
		privPEM []byte
		err     error
	)
	switch alg {
	case jwtx.AlgorithmEdDSA:
		privPEM, err = cryptox.GenerateEd25519Key()
	case jwtx.AlgorithmES256:
		privPEM, err = cryptox.GenerateES256Key()
	case jwtx.AlgorithmRS256:
		privPEM, err = cryptox.GenerateRSAKey(bits)
	default:
		return fmt.Errorf("unsupported algorithm %q (use EdDSA, ES256 or RS256)", alg)
	}
	if err != nil {
		return err
	}

	signer, err := jwtx.NewSigner(alg, privPEM)
	if err != nil {
		return err
	}
	provider, ok := signer.(jwtx.PublicKeyProvider)
	if !ok {
		return fmt.Errorf("algorithm %q has no public key", alg)
	}
	pubPEM, err := cryptox.MarshalPublicKeyPEM(provider.PublicKey())
	if err != nil {
		return err
	}

	if sealWith != "" {
		material, err := os.ReadFile(sealWith)
		if err != nil {
			return fmt.Errorf("read master key: %w", err)
		}
		master, err := cryptox.DeriveMasterKey(material)
		if err != nil {
			return err
		}
		if privPEM, err = cryptox.SealPrivateKey(master, privPEM); err != nil {
			return err
		}
	}

	if err := os.WriteFile(out, privPEM, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}
	if err := os.WriteFile(pubOut, pubPEM, 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Algorithm:   %s\n", alg)
	fmt.Fprintf(w, "Key ID:      %s\n", signer.KID())
	fmt.Fprintf(w, "Private key: %s", out)
	if sealWith != "" {
		fmt.Fprint(w, " (sealed)")
	}
	fmt.Fprintf(w, "\nPublic key:  %s\n", pubOut)
	fmt.Fprintf(w, "\nexport AUTH_ALGORITHM=%q\nexport AUTH_PRIVATE_KEY_FILE=%q\n", alg, out)
	if sealWith != "" {
		fmt.Fprintf(w, "export AUTH_MASTER_KEY_FILE=%q\n", sealWith)
	}
	return nil
}
