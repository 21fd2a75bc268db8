package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var operatorRowColumns = []string{
	"id", "created_at", "updated_at", "email", "password_hash",
	"is_master", "is_disabled", "token_version", "allowed_sections", "last_login",
}

// signedOperatorRequest builds a request carrying a valid session token for
// an operator with the given stored policy, and queues the operator lookup
// the auth path performs.
func signedOperatorRequest(t *testing.T, mock sqlmock.Sqlmock, target, policy string) *http.Request {
	t.Helper()

	op := &models.Operator{ID: uuid.New(), Email: "op@example.com", AllowedSections: policy}
	token, err := services.IssueOperatorToken(op, "test-secret")
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectQuery(`FROM operators WHERE id`).WithArgs(op.ID).WillReturnRows(
		sqlmock.NewRows(operatorRowColumns).AddRow(
			op.ID.String(), now, now, op.Email, "hash",
			false, false, 0, policy, nil,
		))

	r := httptest.NewRequest(http.MethodGet, target, nil)
	r.Header.Set("Authorization", "Bearer "+token)
	return r
}

func TestGetShareLinks_RequiresManageSharesCapability(t *testing.T) {
	mock := newAuthMockDB(t)

	policy := services.DefaultPolicy()
	policy.Capabilities[services.CapManageShares] = false
	encoded, err := services.EncodePolicy(policy)
	require.NoError(t, err)

	r := signedOperatorRequest(t, mock,
		"/api/share-links?subject_id="+uuid.NewString(), encoded)
	w := httptest.NewRecorder()
	GetShareLinks(w, r)

	assert.Equal(t, http.StatusForbidden, w.Code)
	// The listing never reached the database: stripped operators cannot
	// enumerate live tokens.
	assert.NoError(t, mock.ExpectationsWereMet())
}
