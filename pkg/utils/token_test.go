package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateShareToken_Format(t *testing.T) {
	t.Parallel()

	token, err := GenerateShareToken()
	require.NoError(t, err)
	assert.Len(t, token, ShareTokenBytes*2)
	assert.Regexp(t, "^[0-9a-f]+$", token)
}

func TestGenerateShareToken_Unique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		token, err := GenerateShareToken()
		require.NoError(t, err)
		_, dup := seen[token]
		require.False(t, dup, "duplicate token %s", token)
		seen[token] = struct{}{}
	}
}
