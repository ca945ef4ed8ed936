// Package opaque generates and hashes opaque bearer tokens. Plaintext
// values are high-entropy random strings; only their keyed BLAKE2b digest
// is ever stored, so validation works without the plaintext at rest.
package opaque

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"

	"golang.org/x/crypto/blake2b"
)

// tokenBytes is 256 bits of entropy, well above the 128-bit floor the
// token contract requires.
const tokenBytes = 32

// Generate produces a cryptographically random base64url token.
func Generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Hasher computes keyed BLAKE2b-256 digests of token plaintexts. The key
// acts as a server-side salt: a leaked table of digests is useless
// without it. Tokens are already 256-bit random values, so a fast keyed
// hash is the right scheme; a password KDF would only slow validation.
type Hasher struct {
	key []byte
}

// NewHasher creates a Hasher from the configured key. Keys longer than
// the BLAKE2b limit are folded down by hashing first.
func NewHasher(key string) *Hasher {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &Hasher{key: k}
}

// Hash returns the hex-encoded keyed digest of the plaintext.
func (h *Hasher) Hash(plaintext string) string {
	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only reachable with an oversized key, which NewHasher folds.
		panic(fmt.Sprintf("opaque: invalid hash key: %v", err))
	}
	mac.Write([]byte(plaintext))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify compares the digest of the plaintext against a stored digest in
// constant time.
func (h *Hasher) Verify(plaintext, storedHex string) bool {
	computed := h.Hash(plaintext)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(storedHex)) == 1
}
