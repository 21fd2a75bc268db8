package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Duration bounds for share links, in minutes. One week cap.
const (
	MinShareDurationMinutes = 1
	MaxShareDurationMinutes = 10080
)

// ErrNotOwner is returned when the calling operator does not own the subject.
var ErrNotOwner = errors.New("operator does not own this subject")

// ShareTabNames are the gated disclosure categories, in display order.
// Header identity fields are never gated.
var ShareTabNames = []string{"profile", "history", "intel", "files", "network", "map"}

// ShareStatus is the outcome of resolving a share token.
type ShareStatus string

const (
	ShareStatusOK               ShareStatus = "ok"
	ShareStatusNotFound         ShareStatus = "not_found"
	ShareStatusGone             ShareStatus = "gone"
	ShareStatusLocationRequired ShareStatus = "location_required"
)

// Coordinates supplied by a viewer to pass a location gate.
type Coordinates struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ShareHeader carries the identity fields disclosed on every successful
// resolve, regardless of tab filtering.
type ShareHeader struct {
	Name        string `json:"name"`
	Occupation  string `json:"occupation,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	ThreatLevel int    `json:"threat_level"`
}

// ProfileTab is the subject attribute block behind the "profile" tab.
type ProfileTab struct {
	DateOfBirth      string `json:"date_of_birth,omitempty"`
	Nationality      string `json:"nationality,omitempty"`
	Aliases          string `json:"aliases,omitempty"`
	LastKnownAddress string `json:"last_known_address,omitempty"`
	Biography        string `json:"biography,omitempty"`
}

// ShareTabs holds the gated detail tabs. Redacted tabs are returned as JSON
// null (never omitted) so viewers always see a stable schema.
type ShareTabs struct {
	Profile *ProfileTab           `json:"profile"`
	History []models.Event        `json:"history"`
	Intel   []models.Note         `json:"intel"`
	Files   []models.File         `json:"files"`
	Network []models.Relationship `json:"network"`
	Map     []models.Location     `json:"map"`
}

// SharePayload is the full filtered profile slice returned to a viewer.
type SharePayload struct {
	Header ShareHeader `json:"header"`
	Tabs   ShareTabs   `json:"tabs"`
}

// ShareTeaser is the partial payload returned when a location gate has not
// been satisfied yet: name and avatar only.
type ShareTeaser struct {
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// ShareResolution is the typed result of ResolveShareLink. Expected
// conditions (not found, gone, location required) are statuses, not errors.
type ShareResolution struct {
	Status           ShareStatus
	Payload          *SharePayload
	Teaser           *ShareTeaser
	RemainingSeconds int
	Views            int
}

// ShareLinkSummary is one row in an operator's link listing, annotated with
// the derived remaining time.
type ShareLinkSummary struct {
	Token            string     `json:"token"`
	CreatedAt        time.Time  `json:"created_at"`
	DurationSeconds  int        `json:"duration_seconds"`
	StartedAt        *time.Time `json:"started_at,omitempty"`
	IsActive         bool       `json:"is_active"`
	Views            int        `json:"views"`
	RequireLocation  bool       `json:"require_location"`
	AllowedTabs      []string   `json:"allowed_tabs,omitempty"`
	RemainingSeconds int        `json:"remaining_seconds"`
}

// ClampDurationMinutes forces a requested duration into [1, 10080] minutes.
func ClampDurationMinutes(minutes int) int {
	if minutes < MinShareDurationMinutes {
		return MinShareDurationMinutes
	}
	if minutes > MaxShareDurationMinutes {
		return MaxShareDurationMinutes
	}
	return minutes
}

// NormalizeAllowedTabs lowercases, dedupes, and drops unknown tab names while
// preserving order. An empty result means "all tabs".
func NormalizeAllowedTabs(tabs []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, tab := range tabs {
		tab = strings.ToLower(strings.TrimSpace(tab))
		if tab == "" || seen[tab] {
			continue
		}
		known := false
		for _, name := range ShareTabNames {
			if tab == name {
				known = true
				break
			}
		}
		if !known {
			continue
		}
		seen[tab] = true
		out = append(out, tab)
	}
	return out
}

// EncodeAllowedTabs serializes a tab allow-list for storage; empty means all
// and is stored as the empty string.
func EncodeAllowedTabs(tabs []string) string {
	tabs = NormalizeAllowedTabs(tabs)
	if len(tabs) == 0 {
		return ""
	}
	data, err := json.Marshal(tabs)
	if err != nil {
		return ""
	}
	return string(data)
}

// DecodeAllowedTabs parses a stored tab allow-list. Malformed or empty values
// decode to nil, which means "all tabs".
func DecodeAllowedTabs(raw string) []string {
	if raw == "" {
		return nil
	}
	var tabs []string
	if err := json.Unmarshal([]byte(raw), &tabs); err != nil {
		return nil
	}
	return NormalizeAllowedTabs(tabs)
}

// RemainingSeconds computes the floored, non-negative seconds left on a link
// whose clock has started. Zero means expired.
func RemainingSeconds(startedAt time.Time, durationSeconds int, now time.Time) int {
	// Elapsed rounds up so a fractional second in flight never inflates the
	// reported remainder past its floor.
	elapsed := int((now.Sub(startedAt) + time.Second - 1) / time.Second)
	remaining := durationSeconds - elapsed
	if remaining < 0 {
		return 0
	}
	return remaining
}

// FilterTabs returns a copy of the payload with every tab not in the
// allow-list nulled out. A nil/empty allow-list discloses everything. The
// header is never touched.
func FilterTabs(payload SharePayload, allowed []string) SharePayload {
	if len(allowed) == 0 {
		return payload
	}
	set := make(map[string]bool, len(allowed))
	for _, tab := range allowed {
		set[tab] = true
	}
	if !set["profile"] {
		payload.Tabs.Profile = nil
	}
	if !set["history"] {
		payload.Tabs.History = nil
	}
	if !set["intel"] {
		payload.Tabs.Intel = nil
	}
	if !set["files"] {
		payload.Tabs.Files = nil
	}
	if !set["network"] {
		payload.Tabs.Network = nil
	}
	if !set["map"] {
		payload.Tabs.Map = nil
	}
	return payload
}

// OperatorOwnsSubject checks subject ownership in a single query.
func OperatorOwnsSubject(operatorID, subjectID uuid.UUID) (bool, error) {
	var exists bool
	err := database.PostgresDB.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM subjects WHERE id = $1 AND owner_id = $2)
	`, subjectID, operatorID).Scan(&exists)
	return exists, err
}

// CreateShareLink mints a new link for a subject the operator owns. The clock
// does not start until first access. Retries once with a fresh token if the
// unique constraint fires.
func CreateShareLink(operatorID, subjectID uuid.UUID, durationMinutes int, requireLocation bool, allowedTabs []string) (*models.ShareLink, error) {
	owns, err := OperatorOwnsSubject(operatorID, subjectID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, ErrNotOwner
	}

	durationSeconds := ClampDurationMinutes(durationMinutes) * 60
	tabsRaw := EncodeAllowedTabs(allowedTabs)

	for attempt := 0; attempt < 2; attempt++ {
		token, err := utils.GenerateShareToken()
		if err != nil {
			return nil, err
		}

		link := &models.ShareLink{
			SubjectID:       subjectID,
			Token:           token,
			DurationSeconds: durationSeconds,
			IsActive:        true,
			RequireLocation: requireLocation,
			AllowedTabs:     tabsRaw,
		}

		err = database.PostgresDB.QueryRow(`
			INSERT INTO share_links (subject_id, token, duration_seconds, require_location, allowed_tabs)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''))
			RETURNING id, created_at
		`, subjectID, token, durationSeconds, requireLocation, tabsRaw).Scan(&link.ID, &link.CreatedAt)
		if err != nil {
			// Token collision: generate a fresh one and try again.
			var pqErr *pq.Error
			if errors.As(err, &pqErr) && pqErr.Code == "23505" && attempt == 0 {
				continue
			}
			return nil, err
		}
		return link, nil
	}

	return nil, errors.New("could not allocate a unique share token")
}

// shareLinkRow is a share link joined with the owning subject's identity.
type shareLinkRow struct {
	models.ShareLink
	OwnerID       uuid.UUID
	SubjectName   string
	SubjectAvatar string
}

func getShareLinkByToken(token string) (*shareLinkRow, error) {
	var row shareLinkRow
	var allowedTabs sql.NullString
	err := database.PostgresDB.QueryRow(`
		SELECT sl.id, sl.created_at, sl.subject_id, sl.token, sl.duration_seconds,
		       sl.started_at, sl.is_active, sl.views, sl.require_location, sl.allowed_tabs,
		       s.owner_id, s.name, COALESCE(s.avatar_url, '')
		FROM share_links sl
		JOIN subjects s ON s.id = sl.subject_id
		WHERE sl.token = $1
	`, token).Scan(
		&row.ID, &row.CreatedAt, &row.SubjectID, &row.Token, &row.DurationSeconds,
		&row.StartedAt, &row.IsActive, &row.Views, &row.RequireLocation, &allowedTabs,
		&row.OwnerID, &row.SubjectName, &row.SubjectAvatar,
	)
	if err != nil {
		return nil, err
	}
	row.AllowedTabs = allowedTabs.String
	return &row, nil
}

// ResolveShareLink is the single entry point a viewer hits. It walks the link
// state machine: not found → revoked/expired → location gate → lazy
// activation → expiry check → view count + filtered payload.
func ResolveShareLink(ctx context.Context, token string, coords *Coordinates, viewerIP string) (*ShareResolution, error) {
	link, err := getShareLinkByToken(token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &ShareResolution{Status: ShareStatusNotFound}, nil
		}
		return nil, err
	}

	if !link.IsActive {
		recordAccess(link, "gone", viewerIP, coords)
		return &ShareResolution{Status: ShareStatusGone}, nil
	}

	// Location gate: without coordinates, return a teaser and leave the
	// clock and view counter untouched. Not a failure, a prompt.
	if link.RequireLocation && coords == nil {
		recordAccess(link, "location_required", viewerIP, nil)
		return &ShareResolution{
			Status: ShareStatusLocationRequired,
			Teaser: &ShareTeaser{Name: link.SubjectName, AvatarURL: link.SubjectAvatar},
		}, nil
	}

	// Coordinates supplied to unlock the gate: record a viewer sighting
	// against the subject before disclosing anything.
	if link.RequireLocation && coords != nil {
		_, err := database.PostgresDB.Exec(`
			INSERT INTO subject_locations (subject_id, latitude, longitude, label, source, share_token)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, link.SubjectID, coords.Latitude, coords.Longitude, "Disclosed by share viewer", models.LocationSourceShareViewer, link.Token)
		if err != nil {
			return nil, err
		}
		// The map tab just changed under the cached payload.
		Cache.Delete("subject_payload:" + link.SubjectID.String())
	}

	// Lazy activation. The write is conditional on started_at still being
	// NULL so concurrent first accesses agree on a single start time; the
	// loser re-reads the committed value below instead of failing.
	if link.StartedAt == nil {
		if _, err := database.PostgresDB.Exec(`
			UPDATE share_links SET started_at = NOW() WHERE id = $1 AND started_at IS NULL
		`, link.ID); err != nil {
			return nil, err
		}
		var startedAt time.Time
		if err := database.PostgresDB.QueryRow(`
			SELECT started_at FROM share_links WHERE id = $1
		`, link.ID).Scan(&startedAt); err != nil {
			return nil, err
		}
		link.StartedAt = &startedAt
	}

	now := time.Now()
	remaining := RemainingSeconds(*link.StartedAt, link.DurationSeconds, now)
	if remaining <= 0 {
		// Terminal: once flipped, the link never serves again.
		if _, err := database.PostgresDB.Exec(`
			UPDATE share_links SET is_active = FALSE WHERE id = $1
		`, link.ID); err != nil {
			return nil, err
		}
		recordAccess(link, "expired", viewerIP, coords)
		return &ShareResolution{Status: ShareStatusGone}, nil
	}

	var views int
	if err := database.PostgresDB.QueryRow(`
		UPDATE share_links SET views = views + 1 WHERE id = $1 RETURNING views
	`, link.ID).Scan(&views); err != nil {
		return nil, err
	}

	payload, err := BuildSharePayload(link.SubjectID)
	if err != nil {
		return nil, err
	}
	filtered := FilterTabs(*payload, DecodeAllowedTabs(link.AllowedTabs))

	recordAccess(link, "served", viewerIP, coords)

	return &ShareResolution{
		Status:           ShareStatusOK,
		Payload:          &filtered,
		RemainingSeconds: remaining,
		Views:            views,
	}, nil
}

// recordAccess fans an access attempt out to the audit log and the owner's
// live activity feed. Best-effort on both paths.
func recordAccess(link *shareLinkRow, status, viewerIP string, coords *Coordinates) {
	rec := AccessRecord{
		OwnerID:    link.OwnerID.String(),
		SubjectID:  link.SubjectID.String(),
		ShareToken: link.Token,
		Status:     status,
		ViewerIP:   viewerIP,
		Timestamp:  time.Now().UTC(),
	}
	if coords != nil {
		rec.Latitude = &coords.Latitude
		rec.Longitude = &coords.Longitude
	}
	SaveAccessRecordAsync(rec)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := PublishShareActivity(ctx, ShareActivityEvent{
		Type:        "share_access",
		OwnerID:     rec.OwnerID,
		SubjectID:   rec.SubjectID,
		SubjectName: link.SubjectName,
		ShareToken:  link.Token,
		Status:      status,
		ViewerIP:    viewerIP,
		Timestamp:   rec.Timestamp,
	}); err != nil {
		log.Printf("failed to publish share activity: %v", err)
	}
}

// ListShareLinks returns every link for a subject the operator owns, each
// annotated with derived remaining time. Links discovered to be expired are
// flipped inactive on the spot so stale links never show as active.
func ListShareLinks(operatorID, subjectID uuid.UUID) ([]ShareLinkSummary, error) {
	owns, err := OperatorOwnsSubject(operatorID, subjectID)
	if err != nil {
		return nil, err
	}
	if !owns {
		return nil, ErrNotOwner
	}

	rows, err := database.PostgresDB.Query(`
		SELECT token, created_at, duration_seconds, started_at, is_active, views,
		       require_location, COALESCE(allowed_tabs, '')
		FROM share_links
		WHERE subject_id = $1
		ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	now := time.Now()
	summaries := make([]ShareLinkSummary, 0)
	var expiredTokens []string

	for rows.Next() {
		var s ShareLinkSummary
		var tabsRaw string
		if err := rows.Scan(&s.Token, &s.CreatedAt, &s.DurationSeconds, &s.StartedAt,
			&s.IsActive, &s.Views, &s.RequireLocation, &tabsRaw); err != nil {
			return nil, err
		}
		s.AllowedTabs = DecodeAllowedTabs(tabsRaw)

		if s.StartedAt != nil {
			s.RemainingSeconds = RemainingSeconds(*s.StartedAt, s.DurationSeconds, now)
		} else {
			// Clock not started yet: full duration remains.
			s.RemainingSeconds = s.DurationSeconds
		}

		if s.IsActive && s.StartedAt != nil && s.RemainingSeconds <= 0 {
			s.IsActive = false
			expiredTokens = append(expiredTokens, s.Token)
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Lazily flip links discovered expired, same as resolve would.
	for _, token := range expiredTokens {
		if _, err := database.PostgresDB.Exec(`
			UPDATE share_links SET is_active = FALSE WHERE token = $1 AND is_active
		`, token); err != nil {
			log.Printf("failed to flip expired share link: %v", err)
		}
	}

	return summaries, nil
}

// RevokeShareLink deactivates a link unconditionally. Idempotent: revoking an
// already-revoked link succeeds. Returns false when no link with that token
// exists under the operator's subjects.
func RevokeShareLink(operatorID uuid.UUID, token string) (bool, error) {
	// Ownership guard and mutation in a single statement, per-row.
	res, err := database.PostgresDB.Exec(`
		UPDATE share_links SET is_active = FALSE
		WHERE token = $1
		  AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
	`, token, operatorID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// BuildSharePayload assembles the full (unfiltered) disclosable slice of a
// subject. Cached in Redis; mutating handlers invalidate on write.
func BuildSharePayload(subjectID uuid.UUID) (*SharePayload, error) {
	cacheKey := "subject_payload:" + subjectID.String()

	var cached SharePayload
	if hit, _ := Cache.Get(cacheKey, &cached); hit {
		return &cached, nil
	}

	var payload SharePayload
	profile := ProfileTab{}
	var occupation, avatarURL sql.NullString

	err := database.PostgresDB.QueryRow(`
		SELECT name, occupation, avatar_url, threat_level,
		       COALESCE(date_of_birth, ''), COALESCE(nationality, ''), COALESCE(aliases, ''),
		       COALESCE(last_known_address, ''), COALESCE(biography, '')
		FROM subjects WHERE id = $1
	`, subjectID).Scan(
		&payload.Header.Name, &occupation, &avatarURL, &payload.Header.ThreatLevel,
		&profile.DateOfBirth, &profile.Nationality, &profile.Aliases,
		&profile.LastKnownAddress, &profile.Biography,
	)
	if err != nil {
		return nil, err
	}
	payload.Header.Occupation = occupation.String
	payload.Header.AvatarURL = avatarURL.String
	payload.Tabs.Profile = &profile

	if payload.Tabs.History, err = loadSubjectEvents(subjectID); err != nil {
		return nil, err
	}
	if payload.Tabs.Intel, err = loadSubjectNotes(subjectID); err != nil {
		return nil, err
	}
	if payload.Tabs.Files, err = loadSubjectFiles(subjectID); err != nil {
		return nil, err
	}
	if payload.Tabs.Network, err = loadSubjectRelationships(subjectID); err != nil {
		return nil, err
	}
	if payload.Tabs.Map, err = loadSubjectLocations(subjectID); err != nil {
		return nil, err
	}

	if err := Cache.Set(cacheKey, payload); err != nil {
		log.Printf("failed to cache subject payload: %v", err)
	}

	return &payload, nil
}

// InvalidateSubjectPayload drops the cached payload after any subject-scoped
// mutation.
func InvalidateSubjectPayload(subjectID uuid.UUID) {
	if err := Cache.Delete("subject_payload:" + subjectID.String()); err != nil {
		log.Printf("failed to invalidate subject payload cache: %v", err)
	}
}

func loadSubjectEvents(subjectID uuid.UUID) ([]models.Event, error) {
	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, occurred_at, title, COALESCE(description, '')
		FROM subject_events WHERE subject_id = $1 ORDER BY occurred_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.CreatedAt, &e.OccurredAt, &e.Title, &e.Description); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func loadSubjectNotes(subjectID uuid.UUID) ([]models.Note, error) {
	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, title, body, COALESCE(classification, '')
		FROM subject_notes WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Note, 0)
	for rows.Next() {
		var n models.Note
		if err := rows.Scan(&n.ID, &n.SubjectID, &n.CreatedAt, &n.Title, &n.Body, &n.Classification); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func loadSubjectFiles(subjectID uuid.UUID) ([]models.File, error) {
	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, file_name, url, COALESCE(kind, '')
		FROM subject_files WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.File, 0)
	for rows.Next() {
		var f models.File
		if err := rows.Scan(&f.ID, &f.SubjectID, &f.CreatedAt, &f.FileName, &f.URL, &f.Kind); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func loadSubjectRelationships(subjectID uuid.UUID) ([]models.Relationship, error) {
	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, related_name, relation, related_subject_id
		FROM subject_relationships WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Relationship, 0)
	for rows.Next() {
		var rel models.Relationship
		if err := rows.Scan(&rel.ID, &rel.SubjectID, &rel.CreatedAt, &rel.RelatedName, &rel.Relation, &rel.RelatedSubjectID); err != nil {
			return nil, err
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

func loadSubjectLocations(subjectID uuid.UUID) ([]models.Location, error) {
	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, latitude, longitude, COALESCE(label, ''), source, COALESCE(share_token, '')
		FROM subject_locations WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]models.Location, 0)
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.SubjectID, &l.CreatedAt, &l.Latitude, &l.Longitude, &l.Label, &l.Source, &l.ShareToken); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
