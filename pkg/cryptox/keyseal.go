package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
)

// MasterKeySize is the AES-256 key size used to seal private keys at rest.
const MasterKeySize = 32

// DeriveMasterKey turns arbitrary secret material (for example the contents
// of a mounted secret file) into an AES-256 key.
func DeriveMasterKey(secret []byte) ([]byte, error) {
	if len(secret) < 16 {
		return nil, errors.New("cryptox: master key material must be at least 16 bytes")
	}
	sum := sha256.Sum256(secret)
	return sum[:], nil
}

// SealPrivateKey encrypts PEM key material with AES-GCM. The output is
// nonce || ciphertext.
func SealPrivateKey(masterKey, pemData []byte) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("cryptox: nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, pemData, nil), nil
}

// OpenPrivateKey reverses SealPrivateKey.
func OpenPrivateKey(masterKey, sealed []byte) ([]byte, error) {
	gcm, err := newGCM(masterKey)
	if err != nil {
		return nil, err
	}

	if len(sealed) < gcm.NonceSize() {
		return nil, errors.New("cryptox: sealed key too short")
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]

	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("cryptox: open sealed key: %w", err)
	}
	return plain, nil
}

func newGCM(masterKey []byte) (cipher.AEAD, error) {
	if len(masterKey) != MasterKeySize {
		return nil, fmt.Errorf("cryptox: master key must be %d bytes", MasterKeySize)
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
