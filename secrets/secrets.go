// Package secrets provides cryptographically secure token generation and
// content hashing.
//
// Tokens are always sourced from the operating system's secure random
// generator (crypto/rand); math/rand is never used anywhere in this module.
package secrets

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// DefaultTokenLength is the number of random bytes used when no explicit
// length is given.
const DefaultTokenLength = 32

// ErrInvalidLength indicates a non-positive token length was requested.
var ErrInvalidLength = errors.New("token length must be positive")

// Token returns a URL-safe string encoding byteLength cryptographically
// secure random bytes. The encoding is unpadded base64url, so the returned
// string is safe to embed in file names, URLs and JSON without escaping.
func Token(byteLength int) (string, error) {
	if byteLength <= 0 {
		return "", fmt.Errorf("%w: got %d", ErrInvalidLength, byteLength)
	}

	buf := make([]byte, byteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("reading random bytes: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// DefaultToken returns a token of DefaultTokenLength random bytes.
func DefaultToken() (string, error) {
	return Token(DefaultTokenLength)
}

// EncodedLen returns the length of the string produced by Token for the
// given number of random bytes.
func EncodedLen(byteLength int) int {
	return base64.RawURLEncoding.EncodedLen(byteLength)
}

// HashBytes returns the lowercase hex SHA-256 digest of content.
// Identical content always yields an identical digest.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// HashString returns the lowercase hex SHA-256 digest of s.
func HashString(s string) string {
	return HashBytes([]byte(s))
}

// HashReader returns the lowercase hex SHA-256 digest of everything read
// from r.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hashing stream: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
