package services

import (
	"time"

	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// OperatorTokenDuration is how long an operator session token stays valid.
// The token carries an exp claim; there is no refresh flow, operators simply
// sign in again.
const OperatorTokenDuration = 7 * 24 * time.Hour

// OperatorClaims is what a verified session token resolves to. TokenVersion
// is compared against the operator row on every request so bumping the
// counter force-logs-out all previously issued tokens.
type OperatorClaims struct {
	OperatorID   uuid.UUID
	Email        string
	TokenVersion int
}

// IssueOperatorToken signs a compact HS256 token (header.payload.signature,
// base64url segments) for the operator.
func IssueOperatorToken(op *models.Operator, secret string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   op.ID.String(),
		"email": op.Email,
		"tv":    op.TokenVersion,
		"iat":   now.Unix(),
		"exp":   now.Add(OperatorTokenDuration).Unix(),
	})
	return token.SignedString([]byte(secret))
}

// VerifyOperatorToken verifies a session token and extracts its claims.
// Fails closed: any malformed, tampered, expired, or wrongly signed token
// returns (nil, false) with no detail, so callers treat it as "no credential".
func VerifyOperatorToken(tokenString, secret string) (*OperatorClaims, bool) {
	if tokenString == "" || secret == "" {
		return nil, false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		// Only HMAC is ever issued; reject alg substitution.
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, false
	}

	sub, _ := claims["sub"].(string)
	operatorID, err := uuid.Parse(sub)
	if err != nil {
		return nil, false
	}

	email, _ := claims["email"].(string)

	// JSON numbers decode as float64
	tv, ok := claims["tv"].(float64)
	if !ok {
		return nil, false
	}

	return &OperatorClaims{
		OperatorID:   operatorID,
		Email:        email,
		TokenVersion: int(tv),
	}, true
}
