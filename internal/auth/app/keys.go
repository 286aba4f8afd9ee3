package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/nimbusvault/authcore/pkg/cryptox"
	"github.com/nimbusvault/authcore/pkg/jwtx"
)

// TokenKeys is the signing half and the matching verifier. Keys is the
// published set and is empty in symmetric mode.
type TokenKeys struct {
	Signer   jwtx.Signer
	Verifier *jwtx.TokenVerifier
	Keys     *jwtx.KeySet
}

// InitTokenKeys loads signing material for the configured key mode.
//
// Key modes:
//   - "asymmetric": a PEM private key from AUTH_PRIVATE_KEY_FILE, optionally
//     sealed with the key in AUTH_MASTER_KEY_FILE. Consumers verify with the
//     public key alone.
//   - "symmetric": an HS256 secret from AUTH_HMAC_SECRET_FILE. Every verifier
//     can also mint tokens, so this is logged as degraded.
//   - "ephemeral": a key generated at startup. Tokens die with the process.
//
// Missing or invalid material is an error; there is no fallback.
func InitTokenKeys(cfg Config, logger *slog.Logger) (*TokenKeys, error) {
	opts := jwtx.VerifyOptions{Issuer: cfg.Issuer, Leeway: cfg.ClockLeeway}

	var (
		signer jwtx.Signer
		err    error
	)
	switch cfg.KeyMode {
	case KeyModeAsymmetric:
		var masterKey []byte
		if cfg.MasterKeyFile != "" {
			secret, err := os.ReadFile(cfg.MasterKeyFile)
			if err != nil {
				return nil, fmt.Errorf("read master key: %w", err)
			}
			if masterKey, err = cryptox.DeriveMasterKey(secret); err != nil {
				return nil, err
			}
		}
		signer, err = jwtx.LoadSignerFile(cfg.Algorithm, cfg.PrivateKeyFile, masterKey)
		if err != nil {
			return nil, err
		}
		logger.Info("signing key loaded",
			"algorithm", signer.Alg(),
			"kid", signer.KID(),
			"sealed", masterKey != nil,
		)

	case KeyModeSymmetric:
		secret, err := jwtx.LoadHMACSecretFile(cfg.HMACSecretFile)
		if err != nil {
			return nil, err
		}
		hs, err := jwtx.NewHMACSigner(secret)
		if err != nil {
			return nil, err
		}
		verifier, err := jwtx.NewHMACVerifier(secret, opts)
		if err != nil {
			return nil, err
		}
		logger.Warn("degraded signing mode: HS256 shared secret, every verifier can mint tokens and JWKS is empty")
		return &TokenKeys{Signer: hs, Verifier: verifier, Keys: jwtx.NewKeySet()}, nil

	case KeyModeEphemeral:
		signer, err = jwtx.NewEphemeralSigner(cfg.Algorithm)
		if err != nil {
			return nil, err
		}
		logger.Warn("ephemeral signing key generated; tokens become invalid on restart",
			"algorithm", signer.Alg(),
			"kid", signer.KID(),
		)

	default:
		return nil, fmt.Errorf("unknown key mode %q", cfg.KeyMode)
	}

	verifier, err := jwtx.NewVerifierForSigner(signer, opts)
	if err != nil {
		return nil, err
	}
	return &TokenKeys{Signer: signer, Verifier: verifier, Keys: verifier.Keys()}, nil
}
