package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casefilehq/casefile-backend/internal/config"
	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newAuthMockDB wires a sqlmock handle and a test signing secret, restoring
// both on cleanup. Tests using it must not run in parallel.
func newAuthMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	prevDB := database.PostgresDB
	prevSecret, prevBase := jwtSecret, shareBaseURL
	database.PostgresDB = db
	InitAuth(&config.Config{JWTSecret: "test-secret", ShareBaseURL: "http://localhost:3000/share"})
	t.Cleanup(func() {
		database.PostgresDB = prevDB
		jwtSecret, shareBaseURL = prevSecret, prevBase
		db.Close()
	})
	return mock
}

func postSignin(body string) (*httptest.ResponseRecorder, *http.Request) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/signin", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return httptest.NewRecorder(), r
}

func TestSignin_BootstrapRaceLoserGetsConflict(t *testing.T) {
	mock := newAuthMockDB(t)

	// The table looked empty, but a concurrent first sign-in inserted the
	// master operator before our guarded insert ran: it matches no row.
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM operators`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO operators`).
		WithArgs("second@example.com", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	w, r := postSignin(`{"email":"second@example.com","password":"correct horse battery"}`)
	Signin(w, r)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
	// No second master was created and no token was issued.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSignin_BootstrapRejectsShortPassword(t *testing.T) {
	mock := newAuthMockDB(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM operators`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	w, r := postSignin(`{"email":"first@example.com","password":"short"}`)
	Signin(w, r)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// The insert never ran.
	assert.NoError(t, mock.ExpectationsWereMet())
}
