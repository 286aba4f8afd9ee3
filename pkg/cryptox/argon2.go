package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Parameters for newly created argon2id hashes.
const (
	argonMemory      = 19 * 1024 // KiB
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32
	argonSaltLength  = 16
)

// Upper bounds accepted when verifying. A stored hash is data, and absurd
// parameters in it must not let a single verify exhaust the process.
const (
	argonMaxMemory     = 256 * 1024
	argonMaxIterations = 10
	argonMaxKeyLength  = 128
)

// Argon2Hasher produces PHC formatted argon2id hashes:
//
//	$argon2id$v=19$m=19456,t=2,p=1$<salt>$<hash>
//
// Pepper is appended to the plaintext before hashing and is never stored.
type Argon2Hasher struct {
	Pepper string
}

func (h *Argon2Hasher) Hash(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}

	sum := argon2.IDKey([]byte(plaintext+h.Pepper), salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)

	return fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

func (h *Argon2Hasher) Verify(plaintext, encoded string) bool {
	p, ok := parseArgon2(encoded)
	if !ok {
		return false
	}

	computed := argon2.IDKey(
		[]byte(plaintext+h.Pepper),
		p.salt,
		p.iterations,
		p.memory,
		p.parallelism,
		uint32(len(p.sum)), // #nosec G115 - bounded by argonMaxKeyLength
	)
	return subtle.ConstantTimeCompare(computed, p.sum) == 1
}

type argon2Params struct {
	memory      uint32
	iterations  uint32
	parallelism uint8
	salt        []byte
	sum         []byte
}

// parseArgon2 splits "$argon2id$v=19$m=..,t=..,p=..$salt$hash".
func parseArgon2(encoded string) (argon2Params, bool) {
	var p argon2Params

	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != "argon2id" {
		return p, false
	}
	if parts[2] != fmt.Sprintf("v=%d", argon2.Version) {
		return p, false
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.iterations, &p.parallelism); err != nil {
		return p, false
	}
	if p.memory == 0 || p.memory > argonMaxMemory ||
		p.iterations == 0 || p.iterations > argonMaxIterations ||
		p.parallelism == 0 {
		return p, false
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil || len(p.salt) == 0 {
		return p, false
	}
	if p.sum, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return p, false
	}
	if len(p.sum) == 0 || len(p.sum) > argonMaxKeyLength {
		return p, false
	}
	return p, true
}
