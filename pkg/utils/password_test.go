package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashPassword_RoundTrip(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	ok, err := VerifyPassword("correct horse battery staple", hash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestVerifyPassword_WrongPassword(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("right-password")
	require.NoError(t, err)

	ok, err := VerifyPassword("wrong-password", hash)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashPassword_SaltedHashesDiffer(t *testing.T) {
	t.Parallel()

	h1, err := HashPassword("same-password")
	require.NoError(t, err)
	h2, err := HashPassword("same-password")
	require.NoError(t, err)

	// Fresh salt each time means the encoded hashes never repeat.
	assert.NotEqual(t, h1, h2)

	ok, err := VerifyPassword("same-password", h2)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHashPassword_Format(t *testing.T) {
	t.Parallel()

	hash, err := HashPassword("x")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))
	assert.Len(t, strings.Split(hash, "$"), 6)
}

func TestVerifyPassword_MalformedHash(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		"",
		"not-a-hash",
		"$argon2id$v=19$m=65536,t=3,p=2$onlyonepart",
		"$bcrypt$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA",
	} {
		ok, err := VerifyPassword("anything", bad)
		assert.False(t, ok, "hash %q", bad)
		assert.Error(t, err, "hash %q", bad)
	}
}
