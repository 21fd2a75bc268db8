package services

import (
	"strings"
	"testing"
	"time"

	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOperator() *models.Operator {
	return &models.Operator{
		ID:           uuid.New(),
		Email:        "op@casefile.test",
		TokenVersion: 3,
	}
}

func TestIssueAndVerifyOperatorToken(t *testing.T) {
	t.Parallel()

	op := testOperator()
	token, err := IssueOperatorToken(op, "secret-key")
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, ok := VerifyOperatorToken(token, "secret-key")
	require.True(t, ok)
	assert.Equal(t, op.ID, claims.OperatorID)
	assert.Equal(t, op.Email, claims.Email)
	assert.Equal(t, op.TokenVersion, claims.TokenVersion)
}

func TestVerifyOperatorToken_WrongSecret(t *testing.T) {
	t.Parallel()

	token, err := IssueOperatorToken(testOperator(), "right-secret")
	require.NoError(t, err)

	claims, ok := VerifyOperatorToken(token, "wrong-secret")
	assert.False(t, ok)
	assert.Nil(t, claims)
}

func TestVerifyOperatorToken_TamperedPayload(t *testing.T) {
	t.Parallel()

	token, err := IssueOperatorToken(testOperator(), "secret-key")
	require.NoError(t, err)

	// Flip one character in the payload segment; the signature no longer
	// matches.
	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, ok := VerifyOperatorToken(tampered, "secret-key")
	assert.False(t, ok)
}

func TestVerifyOperatorToken_Malformed(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c.d",
		"..",
	} {
		_, ok := VerifyOperatorToken(bad, "secret-key")
		assert.False(t, ok, "token %q", bad)
	}
}

func TestVerifyOperatorToken_Expired(t *testing.T) {
	t.Parallel()

	op := testOperator()
	now := time.Now()
	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   op.ID.String(),
		"email": op.Email,
		"tv":    op.TokenVersion,
		"iat":   now.Add(-2 * time.Hour).Unix(),
		"exp":   now.Add(-time.Hour).Unix(),
	})
	token, err := expired.SignedString([]byte("secret-key"))
	require.NoError(t, err)

	_, ok := VerifyOperatorToken(token, "secret-key")
	assert.False(t, ok)
}

func TestVerifyOperatorToken_RejectsUnsignedAlg(t *testing.T) {
	t.Parallel()

	op := testOperator()
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub":   op.ID.String(),
		"email": op.Email,
		"tv":    op.TokenVersion,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	token, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, ok := VerifyOperatorToken(token, "secret-key")
	assert.False(t, ok)
}

func TestVerifyOperatorToken_MissingClaims(t *testing.T) {
	t.Parallel()

	// A validly signed token whose sub is not a UUID is no credential.
	bogus := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "not-a-uuid",
		"tv":  1,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	token, err := bogus.SignedString([]byte("secret-key"))
	require.NoError(t, err)

	_, ok := VerifyOperatorToken(token, "secret-key")
	assert.False(t, ok)
}
