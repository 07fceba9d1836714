package corpus

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDigestMatchesText(t *testing.T) {
	sum := sha256.Sum256([]byte(Text))
	assert.Equal(t, hex.EncodeToString(sum[:]), Digest())
	assert.Equal(t, Digest(), Digest())
}

func TestTextIsNonTrivial(t *testing.T) {
	// The largest documented window sizes need several hundred tokens.
	assert.Greater(t, len(Text), 900)
	assert.NotContains(t, Text, "<|", "corpus must not contain special token markup")
}
