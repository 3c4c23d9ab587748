package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("a-long-enough-password", bcrypt.MinCost)
	require.NoError(t, err)
	assert.NotEqual(t, "a-long-enough-password", hash)

	assert.NoError(t, CheckPassword("a-long-enough-password", hash))
	assert.Error(t, CheckPassword("a-wrong-password-here", hash))
}

func TestHashPasswordTooShort(t *testing.T) {
	_, err := HashPassword("short", bcrypt.MinCost)
	assert.Error(t, err)
}

func TestGenerateAPIToken(t *testing.T) {
	token1, hash1, err := GenerateAPIToken()
	require.NoError(t, err)
	token2, hash2, err := GenerateAPIToken()
	require.NoError(t, err)

	assert.NotEqual(t, token1, token2)
	assert.NotEqual(t, hash1, hash2)
	assert.Equal(t, hash1, HashToken(token1))
	assert.Len(t, token1, 64)
}
