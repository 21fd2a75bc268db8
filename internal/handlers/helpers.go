package handlers

import (
	"database/sql"
	"net/http"
	"strings"

	"github.com/casefilehq/casefile-backend/internal/config"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// jwtSecret and shareBaseURL are set once from main via InitAuth before the
// router starts.
var (
	jwtSecret    string
	shareBaseURL string
)

// InitAuth wires the signing secret and share URL base into the handler package.
func InitAuth(cfg *config.Config) {
	jwtSecret = cfg.JWTSecret
	shareBaseURL = strings.TrimRight(cfg.ShareBaseURL, "/")
}

// extractBearerToken pulls the token out of an "Authorization: Bearer x" header.
func extractBearerToken(header string) string {
	header = strings.TrimSpace(header)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// requireOperator authenticates the request: extracts the bearer token,
// verifies its signature, then resolves the operator row and rejects if the
// operator is gone, disabled, or has been force-logged-out (token_version
// mismatch). Returns (nil, false) for anything short of a live operator.
func requireOperator(r *http.Request) (*models.Operator, bool) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		return nil, false
	}

	claims, ok := services.VerifyOperatorToken(token, jwtSecret)
	if !ok {
		return nil, false
	}

	op, err := services.GetOperatorByID(claims.OperatorID)
	if err != nil {
		// Includes sql.ErrNoRows: a token for a deleted operator is no credential.
		return nil, false
	}
	if op.IsDisabled || op.TokenVersion != claims.TokenVersion {
		return nil, false
	}

	return op, true
}

// isNoRows reports whether err is the storage "not found" condition.
func isNoRows(err error) bool {
	return err == sql.ErrNoRows
}

// requireOwnedSubject parses the subject_id query param and checks the caller
// owns it, writing the response itself on failure.
func requireOwnedSubject(w http.ResponseWriter, r *http.Request, op *models.Operator) (uuid.UUID, bool) {
	raw := r.URL.Query().Get("subject_id")
	if raw == "" {
		http.Error(w, "Subject ID is required", http.StatusBadRequest)
		return uuid.Nil, false
	}
	subjectID, err := uuid.Parse(raw)
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return uuid.Nil, false
	}

	owns, err := services.OperatorOwnsSubject(op.ID, subjectID)
	if err != nil {
		http.Error(w, "Failed to verify subject", http.StatusInternalServerError)
		return uuid.Nil, false
	}
	if !owns {
		http.Error(w, "Subject not found", http.StatusNotFound)
		return uuid.Nil, false
	}
	return subjectID, true
}
