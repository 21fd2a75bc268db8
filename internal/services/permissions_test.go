package services

import (
	"testing"

	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePolicy_EmptyAndGarbage(t *testing.T) {
	t.Parallel()

	def := DefaultPolicy()

	for _, raw := range []string{"", "not json", "[1,2,3]", `"a string"`} {
		got := NormalizePolicy(raw)
		assert.Equal(t, def, got, "raw %q", raw)
	}
}

func TestNormalizePolicy_SectionWiseFallback(t *testing.T) {
	t.Parallel()

	// sections is structurally wrong; the other two parse fine. Only the
	// broken section falls back, wholesale.
	raw := `{"sections": "dashboard", "subjectTabs": ["profile"], "capabilities": {"deleteSubjects": true}}`
	got := NormalizePolicy(raw)

	assert.Equal(t, DefaultPolicy().Sections, got.Sections)
	assert.Equal(t, []string{"profile"}, got.SubjectTabs)
	assert.True(t, got.Capabilities[CapDeleteSubjects])
}

func TestNormalizePolicy_MissingCapabilityKeysGetDefaults(t *testing.T) {
	t.Parallel()

	raw := `{"capabilities": {"deleteSubjects": true}}`
	got := NormalizePolicy(raw)

	assert.True(t, got.Capabilities[CapDeleteSubjects])
	// Untouched keys inherit their default.
	assert.True(t, got.Capabilities[CapCreateSubjects])
	assert.False(t, got.Capabilities[CapManageOperators])
}

func TestNormalizePolicy_EmptyListsAreRespected(t *testing.T) {
	t.Parallel()

	// An explicit empty list is a valid (deny-everything) choice, not corruption.
	raw := `{"sections": [], "subjectTabs": []}`
	got := NormalizePolicy(raw)

	assert.Empty(t, got.Sections)
	assert.Empty(t, got.SubjectTabs)
}

func TestEncodePolicy_RoundTrip(t *testing.T) {
	t.Parallel()

	p := Policy{
		Sections:     []string{"dashboard"},
		SubjectTabs:  []string{"profile", "map"},
		Capabilities: map[string]bool{CapManageShares: false},
	}
	raw, err := EncodePolicy(p)
	require.NoError(t, err)

	got := NormalizePolicy(raw)
	assert.Equal(t, p.Sections, got.Sections)
	assert.Equal(t, p.SubjectTabs, got.SubjectTabs)
	assert.False(t, got.Capabilities[CapManageShares])
}

func TestCanAccess_NilOperatorDenied(t *testing.T) {
	t.Parallel()

	assert.False(t, CanAccessSection(nil, "dashboard"))
	assert.False(t, CanAccessSubSection(nil, "profile"))
	assert.False(t, CanPerform(nil, CapCreateSubjects))
}

func TestCanAccess_MasterBypassesPolicy(t *testing.T) {
	t.Parallel()

	master := &models.Operator{
		IsMaster:        true,
		AllowedSections: `{"sections": [], "subjectTabs": [], "capabilities": {"deleteSubjects": false}}`,
	}

	assert.True(t, CanAccessSection(master, "anything"))
	assert.True(t, CanAccessSubSection(master, "anything"))
	assert.True(t, CanPerform(master, CapDeleteSubjects))
}

func TestCanPerform_RegularOperator(t *testing.T) {
	t.Parallel()

	op := &models.Operator{AllowedSections: ""}

	// Defaults: create allowed, delete and operator management denied.
	assert.True(t, CanPerform(op, CapCreateSubjects))
	assert.False(t, CanPerform(op, CapDeleteSubjects))
	assert.False(t, CanPerform(op, CapManageOperators))

	granted := &models.Operator{AllowedSections: `{"capabilities": {"deleteSubjects": true}}`}
	assert.True(t, CanPerform(granted, CapDeleteSubjects))
}

func TestCanAccessSection_RegularOperator(t *testing.T) {
	t.Parallel()

	op := &models.Operator{AllowedSections: `{"sections": ["dashboard", "map"]}`}

	assert.True(t, CanAccessSection(op, "dashboard"))
	assert.True(t, CanAccessSection(op, "map"))
	assert.False(t, CanAccessSection(op, "settings"))
	assert.False(t, CanAccessSection(op, ""))
}
