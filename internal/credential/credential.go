// Package credential hashes and verifies user secrets. Two stored forms are
// supported: a salted single-round SHA-256 digest kept for compatibility with
// credentials already in the directory, and argon2id for deployments that
// want a memory-hard KDF. Verification accepts either form; the scheme used
// for new credentials is chosen at construction.
package credential

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

var ErrInvalidFormat = errors.New("credential: invalid stored format")

const (
	SchemeSHA256   = "sha256"
	SchemeArgon2id = "argon2id"
)

const (
	saltLength = 16

	argonMemory      = 64 * 1024
	argonIterations  = 2
	argonParallelism = 1
	argonKeyLength   = 32

	argonPrefix = "$argon2id$"
)

// Hasher produces stored credentials in one configured scheme.
type Hasher struct {
	scheme string
}

func NewHasher(scheme string) (*Hasher, error) {
	switch scheme {
	case SchemeSHA256, SchemeArgon2id:
		return &Hasher{scheme: scheme}, nil
	default:
		return nil, fmt.Errorf("unsupported credential scheme %q", scheme)
	}
}

// Hash returns a self-contained stored credential: the per-credential salt is
// encoded alongside the digest, so verification needs no external state.
func (h *Hasher) Hash(secret []byte) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	switch h.scheme {
	case SchemeArgon2id:
		return encodeArgon2id(secret, salt), nil
	default:
		return encodeSHA256(secret, salt), nil
	}
}

// Verify reports whether secret matches the stored credential. A false result
// with a nil error means the secret is wrong; ErrInvalidFormat means the
// stored value itself could not be decoded.
func Verify(secret []byte, stored string) (bool, error) {
	if strings.HasPrefix(stored, argonPrefix) {
		return verifyArgon2id(secret, stored)
	}
	return verifySHA256(secret, stored)
}

func encodeSHA256(secret, salt []byte) string {
	digest := sha256.Sum256(append(append([]byte{}, salt...), secret...))
	return base64.StdEncoding.EncodeToString(append(salt, digest[:]...))
}

func verifySHA256(secret []byte, stored string) (bool, error) {
	raw, err := base64.StdEncoding.DecodeString(stored)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(raw) != saltLength+sha256.Size {
		return false, fmt.Errorf("%w: unexpected length %d", ErrInvalidFormat, len(raw))
	}
	salt, digest := raw[:saltLength], raw[saltLength:]
	computed := sha256.Sum256(append(append([]byte{}, salt...), secret...))
	return subtle.ConstantTimeCompare(digest, computed[:]) == 1, nil
}

func encodeArgon2id(secret, salt []byte) string {
	hash := argon2.IDKey(secret, salt, argonIterations, argonMemory, argonParallelism, argonKeyLength)
	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		argonMemory,
		argonIterations,
		argonParallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func verifyArgon2id(secret []byte, stored string) (bool, error) {
	parts := strings.Split(stored, "$")
	// "", "argon2id", "v=19", params, salt, hash
	if len(parts) != 6 || parts[1] != "argon2id" || parts[2] != "v=19" {
		return false, fmt.Errorf("%w: malformed argon2id credential", ErrInvalidFormat)
	}
	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	// argon2.IDKey panics on zero parameters or a zero key length, so a
	// corrupt stored row must be rejected before derivation.
	if memory == 0 || iterations == 0 || parallelism == 0 {
		return false, fmt.Errorf("%w: zero argon2id parameter", ErrInvalidFormat)
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidFormat, err)
	}
	if len(salt) == 0 || len(digest) < argonKeyLength {
		return false, fmt.Errorf("%w: truncated argon2id credential", ErrInvalidFormat)
	}
	computed := argon2.IDKey(secret, salt, iterations, memory, parallelism, uint32(len(digest)))
	return subtle.ConstantTimeCompare(digest, computed) == 1, nil
}
