package signing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSign_IsDeterministicForSameInputs(t *testing.T) {
	s := New("key", "secret")
	a := s.Sign("payload")
	b := s.Sign("payload")
	assert.Equal(t, a, b)
}

func TestSign_DiffersAcrossSecrets(t *testing.T) {
	a := New("key", "secretA").Sign("payload")
	b := New("key", "secretB").Sign("payload")
	assert.NotEqual(t, a, b)
}

func TestSign_DiffersAcrossPayloads(t *testing.T) {
	s := New("key", "secret")
	assert.NotEqual(t, s.Sign("payload1"), s.Sign("payload2"))
}

func TestSign_ProducesLowercaseHex(t *testing.T) {
	s := New("key", "secret")
	sig := s.Sign("payload")
	for _, r := range sig {
		assert.True(t, (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f'))
	}
	assert.Len(t, sig, 64) // SHA-256 digest hex-encoded
}
