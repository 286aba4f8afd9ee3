package jwtx

import (
	"crypto"
	"errors"
	"fmt"
	"sync"

	"github.com/nimbusvault/authcore/pkg/cryptox"
)

var ErrNoKey = errors.New("jwtx: key not found")

type keyEntry struct {
	alg string
	pub crypto.PublicKey
}

// KeySet holds public verification keys by kid. The issuing service fills
// it from its signer and publishes it as JWKS; consumer services fill it
// from a mounted PEM file or the JWKS endpoint. It is safe for concurrent
// use and can be swapped wholesale with ResetFromJWKS.
type KeySet struct {
	mu   sync.RWMutex
	jwks JWKS
	keys map[string]keyEntry
}

// NewKeySet returns an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{keys: make(map[string]keyEntry)}
}

// AddSigner registers the public half of an asymmetric signer. Symmetric
// signers have nothing to publish and are rejected.
func (k *KeySet) AddSigner(s Signer) error {
	p, ok := s.(PublicKeyProvider)
	if !ok {
		return fmt.Errorf("jwtx: %s signer has no public key", s.Alg())
	}
	return k.AddJWK(p.PublicJWK())
}

// AddPublicKey registers pub for alg under its thumbprint kid and returns
// that kid.
func (k *KeySet) AddPublicKey(alg string, pub crypto.PublicKey) (string, error) {
	j, err := NewJWK("", alg, pub)
	if err != nil {
		return "", err
	}
	if err := k.AddJWK(j); err != nil {
		return "", err
	}
	return j.Kid, nil
}

// AddPublicKeyPEM parses a PEM public key and registers it for alg.
func (k *KeySet) AddPublicKeyPEM(alg string, data []byte) (string, error) {
	pub, err := cryptox.ParsePublicKeyPEM(data)
	if err != nil {
		return "", err
	}
	if err := checkKeyForAlg(alg, pub); err != nil {
		return "", err
	}
	return k.AddPublicKey(alg, pub)
}

// AddJWK parses j and adds it. A kid that is already present is replaced.
func (k *KeySet) AddJWK(j JWK) error {
	if j.Kid == "" {
		return errors.New("jwtx: JWK has no kid")
	}
	pub, err := j.PublicKey()
	if err != nil {
		return err
	}
	if err := checkKeyForAlg(j.Alg, pub); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if _, exists := k.keys[j.Kid]; exists {
		for i := range k.jwks.Keys {
			if k.jwks.Keys[i].Kid == j.Kid {
				k.jwks.Keys[i] = j
			}
		}
	} else {
		k.jwks.Keys = append(k.jwks.Keys, j)
	}
	k.keys[j.Kid] = keyEntry{alg: j.Alg, pub: pub}
	return nil
}

// Get returns the public key registered under kid.
func (k *KeySet) Get(kid string) (crypto.PublicKey, error) {
	e, err := k.lookup(kid)
	if err != nil {
		return nil, err
	}
	return e.pub, nil
}

func (k *KeySet) lookup(kid string) (keyEntry, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.keys[kid]
	if !ok {
		return keyEntry{}, ErrNoKey
	}
	return e, nil
}

// PublicJWKS returns a copy of the set for serving.
func (k *KeySet) PublicJWKS() JWKS {
	k.mu.RLock()
	defer k.mu.RUnlock()
	out := JWKS{Keys: make([]JWK, len(k.jwks.Keys))}
	copy(out.Keys, k.jwks.Keys)
	return out
}

// IsReady reports whether at least one key is loaded.
func (k *KeySet) IsReady() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.keys) > 0
}

// ResetFromJWKS replaces every key. Nothing changes if any key is invalid.
func (k *KeySet) ResetFromJWKS(set JWKS) error {
	keys := make(map[string]keyEntry, len(set.Keys))
	for _, j := range set.Keys {
		if j.Kid == "" {
			return errors.New("jwtx: JWK has no kid")
		}
		pub, err := j.PublicKey()
		if err != nil {
			return err
		}
		if err := checkKeyForAlg(j.Alg, pub); err != nil {
			return err
		}
		keys[j.Kid] = keyEntry{alg: j.Alg, pub: pub}
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.keys = keys
	k.jwks = JWKS{Keys: append([]JWK(nil), set.Keys...)}
	return nil
}
