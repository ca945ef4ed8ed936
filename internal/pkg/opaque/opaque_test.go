package opaque

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateIsRandomAndURLSafe(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tok, err := Generate()
		require.NoError(t, err)
		assert.False(t, seen[tok], "duplicate token generated")
		seen[tok] = true

		assert.GreaterOrEqual(t, len(tok), 43, "256 bits of entropy")
		assert.False(t, strings.ContainsAny(tok, "+/="), "must be url-safe")
	}
}

func TestHashAndVerify(t *testing.T) {
	h := NewHasher("server-side-key")

	digest := h.Hash("some-token")
	assert.NotEqual(t, "some-token", digest)
	assert.Equal(t, digest, h.Hash("some-token"), "hashing is deterministic")

	assert.True(t, h.Verify("some-token", digest))
	assert.False(t, h.Verify("other-token", digest))
	assert.False(t, h.Verify("some-token", "junk"))
}

func TestDifferentKeysProduceDifferentDigests(t *testing.T) {
	a := NewHasher("key-a")
	b := NewHasher("key-b")
	assert.NotEqual(t, a.Hash("tok"), b.Hash("tok"))
}

func TestOversizedKeyIsFolded(t *testing.T) {
	h := NewHasher(strings.Repeat("k", 200))
	digest := h.Hash("tok")
	assert.True(t, h.Verify("tok", digest))
}
