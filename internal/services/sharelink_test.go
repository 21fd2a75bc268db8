package services

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampDurationMinutes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   int
		want int
	}{
		{-5, MinShareDurationMinutes},
		{0, MinShareDurationMinutes},
		{1, 1},
		{60, 60},
		{10080, 10080},
		{10081, MaxShareDurationMinutes},
		{1 << 30, MaxShareDurationMinutes},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ClampDurationMinutes(tt.in), "in %d", tt.in)
	}
}

func TestNormalizeAllowedTabs(t *testing.T) {
	t.Parallel()

	got := NormalizeAllowedTabs([]string{" Profile", "MAP", "profile", "bogus", "", "intel"})
	assert.Equal(t, []string{"profile", "map", "intel"}, got)

	assert.Nil(t, NormalizeAllowedTabs(nil))
	assert.Nil(t, NormalizeAllowedTabs([]string{"nonsense", ""}))
}

func TestEncodeDecodeAllowedTabs(t *testing.T) {
	t.Parallel()

	// Empty means "all tabs" and is stored as the empty string.
	assert.Equal(t, "", EncodeAllowedTabs(nil))
	assert.Equal(t, "", EncodeAllowedTabs([]string{"bogus"}))
	assert.Nil(t, DecodeAllowedTabs(""))
	assert.Nil(t, DecodeAllowedTabs("{not json"))

	raw := EncodeAllowedTabs([]string{"profile", "history"})
	require.NotEmpty(t, raw)
	assert.Equal(t, []string{"profile", "history"}, DecodeAllowedTabs(raw))
}

func TestRemainingSeconds(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	// A partial second in flight floors the remainder: 58.5s left reads as 58.
	assert.Equal(t, 58, RemainingSeconds(start, 60, start.Add(1*time.Second+500*time.Millisecond)))
	assert.Equal(t, 59, RemainingSeconds(start, 60, start.Add(1*time.Second)))
	assert.Equal(t, 60, RemainingSeconds(start, 60, start))
	assert.Equal(t, 0, RemainingSeconds(start, 60, start.Add(60*time.Second)))
	// Never negative, however long ago the link expired.
	assert.Equal(t, 0, RemainingSeconds(start, 60, start.Add(24*time.Hour)))
}

func samplePayload() SharePayload {
	profile := &ProfileTab{Nationality: "unknown", Biography: "bio"}
	return SharePayload{
		Header: ShareHeader{Name: "J. Doe", ThreatLevel: 3},
		Tabs: ShareTabs{
			Profile: profile,
			History: []models.Event{{Title: "sighting"}},
			Intel:   []models.Note{{Title: "note", Body: "body"}},
			Files:   []models.File{{FileName: "photo.jpg"}},
			Network: []models.Relationship{{RelatedName: "associate"}},
			Map:     []models.Location{{Latitude: 1, Longitude: 2}},
		},
	}
}

func TestFilterTabs_EmptyAllowListDisclosesAll(t *testing.T) {
	t.Parallel()

	payload := samplePayload()
	assert.Equal(t, payload, FilterTabs(payload, nil))
	assert.Equal(t, payload, FilterTabs(payload, []string{}))
}

func TestFilterTabs_RedactsEverythingOutsideAllowList(t *testing.T) {
	t.Parallel()

	got := FilterTabs(samplePayload(), []string{"profile", "map"})

	assert.NotNil(t, got.Tabs.Profile)
	assert.NotNil(t, got.Tabs.Map)
	assert.Nil(t, got.Tabs.History)
	assert.Nil(t, got.Tabs.Intel)
	assert.Nil(t, got.Tabs.Files)
	assert.Nil(t, got.Tabs.Network)

	// The header always survives filtering.
	assert.Equal(t, "J. Doe", got.Header.Name)
	assert.Equal(t, 3, got.Header.ThreatLevel)
}

func TestFilterTabs_DoesNotMutateInput(t *testing.T) {
	t.Parallel()

	payload := samplePayload()
	_ = FilterTabs(payload, []string{"profile"})

	assert.NotNil(t, payload.Tabs.History)
	assert.NotNil(t, payload.Tabs.Map)
}

func TestShareTabs_RedactedTabsSerializeAsNull(t *testing.T) {
	t.Parallel()

	got := FilterTabs(samplePayload(), []string{"profile"})
	data, err := json.Marshal(got)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &decoded))

	var tabs map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(decoded["tabs"], &tabs))

	// Every tab key is present even when redacted, so viewers see a stable
	// schema.
	for _, name := range ShareTabNames {
		raw, ok := tabs[name]
		require.True(t, ok, "tab %s missing", name)
		if name == "profile" {
			assert.NotEqual(t, "null", string(raw))
		} else {
			assert.Equal(t, "null", string(raw))
		}
	}
}
