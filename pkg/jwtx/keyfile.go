package jwtx

import (
	"bytes"
	"fmt"
	"os"

	"github.com/nimbusvault/authcore/pkg/cryptox"
)

// LoadSignerFile reads a private key from path. When masterKey is non-nil the
// file holds a key sealed with cryptox.SealPrivateKey.
func LoadSignerFile(alg, path string, masterKey []byte) (Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwtx: read signing key: %w", err)
	}
	if masterKey != nil {
		data, err = cryptox.OpenPrivateKey(masterKey, data)
		if err != nil {
			return nil, fmt.Errorf("jwtx: unseal signing key: %w", err)
		}
	}
	return NewSigner(alg, data)
}

// LoadPublicKeyFile adds the PEM public key at path to keys and returns the
// derived kid.
func LoadPublicKeyFile(keys *KeySet, alg, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("jwtx: read public key: %w", err)
	}
	return keys.AddPublicKeyPEM(alg, data)
}

// LoadHMACSecretFile reads an HS256 secret, trimming a trailing newline.
func LoadHMACSecretFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("jwtx: read hmac secret: %w", err)
	}
	secret := bytes.TrimRight(data, "\r\n")
	if len(secret) < MinHMACSecretSize {
		return nil, ErrWeakSecret
	}
	return secret, nil
}

// NewEphemeralSigner generates a fresh key pair that lives only in memory.
// Tokens it signs stop verifying when the process restarts.
func NewEphemeralSigner(alg string) (Signer, error) {
	var (
		pemKey []byte
		err    error
	)
	switch alg {
	case AlgorithmEdDSA:
		pemKey, err = cryptox.GenerateEd25519Key()
	case AlgorithmES256:
		pemKey, err = cryptox.GenerateES256Key()
	case AlgorithmRS256:
		pemKey, err = cryptox.GenerateRSAKey(cryptox.MinRSABits)
	default:
		return nil, fmt.Errorf("jwtx: no ephemeral keys for algorithm %q", alg)
	}
	if err != nil {
		return nil, err
	}
	return NewSigner(alg, pemKey)
}
