package utils

import (
	"crypto/rand"
	"encoding/hex"
)

// ShareTokenBytes is the entropy of an opaque share token. 16 random bytes
// hex-encode to 32 characters; collisions are negligible, but callers still
// retry once if the storage layer reports a unique-constraint violation.
const ShareTokenBytes = 16

// GenerateShareToken returns a cryptographically random opaque token used as
// a share link handle. Never derived from time or sequence counters.
func GenerateShareToken() (string, error) {
	buf := make([]byte, ShareTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
