package services

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newShareMockDB swaps the package database handle for a sqlmock one and
// restores it on cleanup. Tests using it must not run in parallel.
func newShareMockDB(t *testing.T) sqlmock.Sqlmock {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	prev := database.PostgresDB
	database.PostgresDB = db
	t.Cleanup(func() {
		database.PostgresDB = prev
		db.Close()
	})
	return mock
}

var shareLinkColumns = []string{
	"id", "created_at", "subject_id", "token", "duration_seconds",
	"started_at", "is_active", "views", "require_location", "allowed_tabs",
	"owner_id", "name", "avatar_url",
}

type mockShareLink struct {
	id              uuid.UUID
	subjectID       uuid.UUID
	ownerID         uuid.UUID
	token           string
	durationSeconds int
	startedAt       *time.Time
	isActive        bool
	views           int
	requireLocation bool
}

func newMockShareLink() mockShareLink {
	return mockShareLink{
		id:              uuid.New(),
		subjectID:       uuid.New(),
		ownerID:         uuid.New(),
		token:           "abcdef0123456789abcdef0123456789",
		durationSeconds: 60,
		isActive:        true,
	}
}

// expectLinkLookup queues the token lookup that every resolve starts with.
func expectLinkLookup(mock sqlmock.Sqlmock, link mockShareLink) {
	var startedAt interface{}
	if link.startedAt != nil {
		startedAt = *link.startedAt
	}
	rows := sqlmock.NewRows(shareLinkColumns).AddRow(
		link.id.String(), time.Now().Add(-time.Hour), link.subjectID.String(), link.token, link.durationSeconds,
		startedAt, link.isActive, link.views, link.requireLocation, nil,
		link.ownerID.String(), "J. Doe", "https://cdn.example.com/a.png",
	)
	mock.ExpectQuery(`FROM share_links sl`).WithArgs(link.token).WillReturnRows(rows)
}

// expectPayloadQueries queues the subject read and the five tab loaders that
// back a served response.
func expectPayloadQueries(mock sqlmock.Sqlmock, subjectID uuid.UUID) {
	mock.ExpectQuery(`FROM subjects WHERE id`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{
			"name", "occupation", "avatar_url", "threat_level",
			"date_of_birth", "nationality", "aliases", "last_known_address", "biography",
		}).AddRow("J. Doe", nil, nil, 3, "", "", "", "", ""))

	mock.ExpectQuery(`FROM subject_events`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "subject_id", "created_at", "occurred_at", "title", "description"}))
	mock.ExpectQuery(`FROM subject_notes`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "subject_id", "created_at", "title", "body", "classification"}))
	mock.ExpectQuery(`FROM subject_files`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "subject_id", "created_at", "file_name", "url", "kind"}))
	mock.ExpectQuery(`FROM subject_relationships`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "subject_id", "created_at", "related_name", "relation", "related_subject_id"}))
	mock.ExpectQuery(`FROM subject_locations WHERE`).WithArgs(subjectID).WillReturnRows(
		sqlmock.NewRows([]string{"id", "subject_id", "created_at", "latitude", "longitude", "label", "source", "share_token"}))
}

func TestResolveShareLink_UnknownToken(t *testing.T) {
	mock := newShareMockDB(t)
	mock.ExpectQuery(`FROM share_links sl`).WithArgs("nosuchtoken").WillReturnError(sql.ErrNoRows)

	res, err := ResolveShareLink(context.Background(), "nosuchtoken", nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusNotFound, res.Status)
	assert.Nil(t, res.Payload)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_RevokedIsGone(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	link.isActive = false
	expectLinkLookup(mock, link)

	res, err := ResolveShareLink(context.Background(), link.token, nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusGone, res.Status)
	assert.Nil(t, res.Payload)
	// No further statements: a dead link gets nothing, not even a view bump.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_LocationGateTeaser(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	link.requireLocation = true
	expectLinkLookup(mock, link)

	res, err := ResolveShareLink(context.Background(), link.token, nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusLocationRequired, res.Status)
	require.NotNil(t, res.Teaser)
	assert.Equal(t, "J. Doe", res.Teaser.Name)
	assert.Nil(t, res.Payload)
	// The gate consumed nothing: no sighting insert, no activation, no view
	// bump. The clock stays unstarted for the viewer who comes back.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_CoordinatesRecordOneSighting(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	link.requireLocation = true
	expectLinkLookup(mock, link)

	coords := &Coordinates{Latitude: 51.5074, Longitude: -0.1278}
	mock.ExpectExec(`INSERT INTO subject_locations`).
		WithArgs(link.subjectID, coords.Latitude, coords.Longitude,
			"Disclosed by share viewer", models.LocationSourceShareViewer, link.token).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec(`UPDATE share_links SET started_at = NOW\(\)`).
		WithArgs(link.id).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT started_at FROM share_links`).
		WithArgs(link.id).
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(time.Now()))

	mock.ExpectQuery(`UPDATE share_links SET views = views \+ 1`).
		WithArgs(link.id).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(1))
	expectPayloadQueries(mock, link.subjectID)

	res, err := ResolveShareLink(context.Background(), link.token, coords, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusOK, res.Status)
	require.NotNil(t, res.Payload)
	assert.Equal(t, 1, res.Views)
	// Exactly one sighting insert, per the ordered expectations above.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_ActivationRaceAdoptsCommittedStart(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	expectLinkLookup(mock, link)

	// A concurrent first access won the conditional write: zero rows
	// affected, and the re-read surfaces the start time it committed.
	committed := time.Now().Add(-2 * time.Second)
	mock.ExpectExec(`UPDATE share_links SET started_at = NOW\(\)`).
		WithArgs(link.id).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(`SELECT started_at FROM share_links`).
		WithArgs(link.id).
		WillReturnRows(sqlmock.NewRows([]string{"started_at"}).AddRow(committed))

	mock.ExpectQuery(`UPDATE share_links SET views = views \+ 1`).
		WithArgs(link.id).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(2))
	expectPayloadQueries(mock, link.subjectID)

	res, err := ResolveShareLink(context.Background(), link.token, nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusOK, res.Status)
	assert.Equal(t, 2, res.Views)
	// Remaining time counts from the winner's start, not a second one.
	assert.Greater(t, res.RemainingSeconds, 0)
	assert.LessOrEqual(t, res.RemainingSeconds, link.durationSeconds-2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_RunningClockNeverRestarts(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	started := time.Now().Add(-5 * time.Second)
	link.startedAt = &started
	link.views = 3
	expectLinkLookup(mock, link)

	// No started_at write is queued: a link whose clock runs gets served
	// straight through the view bump.
	mock.ExpectQuery(`UPDATE share_links SET views = views \+ 1`).
		WithArgs(link.id).
		WillReturnRows(sqlmock.NewRows([]string{"views"}).AddRow(4))
	expectPayloadQueries(mock, link.subjectID)

	res, err := ResolveShareLink(context.Background(), link.token, nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusOK, res.Status)
	assert.Equal(t, 4, res.Views)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveShareLink_ExpiryFlipsAndServesNothing(t *testing.T) {
	mock := newShareMockDB(t)
	link := newMockShareLink()
	started := time.Now().Add(-2 * time.Minute)
	link.startedAt = &started // 60s budget ran out a minute ago
	expectLinkLookup(mock, link)

	mock.ExpectExec(`UPDATE share_links SET is_active = FALSE`).
		WithArgs(link.id).WillReturnResult(sqlmock.NewResult(0, 1))

	res, err := ResolveShareLink(context.Background(), link.token, nil, "203.0.113.9")
	require.NoError(t, err)
	assert.Equal(t, ShareStatusGone, res.Status)
	assert.Nil(t, res.Payload)
	// The flip is the only write: no view bump, no payload assembly.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeShareLink_Idempotent(t *testing.T) {
	mock := newShareMockDB(t)
	operatorID := uuid.New()
	token := "abcdef0123456789abcdef0123456789"

	mock.ExpectExec(`UPDATE share_links SET is_active = FALSE`).
		WithArgs(token, operatorID).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE share_links SET is_active = FALSE`).
		WithArgs(token, operatorID).WillReturnResult(sqlmock.NewResult(0, 1))

	found, err := RevokeShareLink(operatorID, token)
	require.NoError(t, err)
	assert.True(t, found)

	// Revoking again succeeds the same way.
	found, err = RevokeShareLink(operatorID, token)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRevokeShareLink_ForeignTokenNotFound(t *testing.T) {
	mock := newShareMockDB(t)
	operatorID := uuid.New()
	token := "abcdef0123456789abcdef0123456789"

	mock.ExpectExec(`UPDATE share_links SET is_active = FALSE`).
		WithArgs(token, operatorID).WillReturnResult(sqlmock.NewResult(0, 0))

	found, err := RevokeShareLink(operatorID, token)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}
