package services

import (
	"encoding/json"

	"github.com/casefilehq/casefile-backend/internal/models"
)

// Policy is a per-operator allow-list: visible top-level app sections, visible
// subject detail tabs, and named boolean capabilities. It is a structural
// value, not a row; operators store a raw JSON blob that is always normalized
// against the defaults before use.
type Policy struct {
	Sections     []string        `json:"sections"`
	SubjectTabs  []string        `json:"subjectTabs"`
	Capabilities map[string]bool `json:"capabilities"`
}

// Capability keys consulted by handlers.
const (
	CapCreateSubjects      = "createSubjects"
	CapEditSubjects        = "editSubjects"
	CapDeleteSubjects      = "deleteSubjects"
	CapManageIntel         = "manageIntel"
	CapManageLocations     = "manageLocations"
	CapManageRelationships = "manageRelationships"
	CapManageFiles         = "manageFiles"
	CapManageShares        = "manageShares"
	CapManageOperators     = "manageOperators"
)

// DefaultPolicy returns the hard-coded policy applied to new operators and
// substituted section-wise for malformed stored blobs.
func DefaultPolicy() Policy {
	return Policy{
		Sections:    []string{"dashboard", "subjects", "map", "files", "settings"},
		SubjectTabs: []string{"profile", "history", "intel", "files", "network", "map"},
		Capabilities: map[string]bool{
			CapCreateSubjects:      true,
			CapEditSubjects:        true,
			CapDeleteSubjects:      false,
			CapManageIntel:         true,
			CapManageLocations:     true,
			CapManageRelationships: true,
			CapManageFiles:         true,
			CapManageShares:        true,
			CapManageOperators:     false,
		},
	}
}

// rawPolicy mirrors Policy but with loose types so a structurally wrong blob
// is detected instead of silently half-decoded.
type rawPolicy struct {
	Sections     json.RawMessage `json:"sections"`
	SubjectTabs  json.RawMessage `json:"subjectTabs"`
	Capabilities json.RawMessage `json:"capabilities"`
}

// NormalizePolicy parses a stored policy blob. On any parse failure or
// structural mismatch the default is substituted wholesale for the offending
// section (never field-by-field), so a corrupt blob can't produce a
// partially-default, partially-corrupt policy.
func NormalizePolicy(raw string) Policy {
	def := DefaultPolicy()
	if raw == "" {
		return def
	}

	var rp rawPolicy
	if err := json.Unmarshal([]byte(raw), &rp); err != nil {
		return def
	}

	out := Policy{}

	var sections []string
	if rp.Sections == nil || json.Unmarshal(rp.Sections, &sections) != nil {
		out.Sections = def.Sections
	} else {
		out.Sections = sections
	}

	var tabs []string
	if rp.SubjectTabs == nil || json.Unmarshal(rp.SubjectTabs, &tabs) != nil {
		out.SubjectTabs = def.SubjectTabs
	} else {
		out.SubjectTabs = tabs
	}

	var caps map[string]bool
	if rp.Capabilities == nil || json.Unmarshal(rp.Capabilities, &caps) != nil {
		out.Capabilities = def.Capabilities
	} else {
		// Missing keys fall back to their default value; unknown keys are kept
		// but never consulted.
		for key, val := range def.Capabilities {
			if _, ok := caps[key]; !ok {
				caps[key] = val
			}
		}
		out.Capabilities = caps
	}

	return out
}

// EncodePolicy serializes a policy for storage in operators.allowed_sections.
func EncodePolicy(p Policy) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// CanAccessSection reports whether the operator may see a top-level app
// section. Master operators bypass the policy; a nil operator is always denied.
func CanAccessSection(op *models.Operator, sectionID string) bool {
	if op == nil {
		return false
	}
	if op.IsMaster {
		return true
	}
	for _, s := range NormalizePolicy(op.AllowedSections).Sections {
		if s == sectionID {
			return true
		}
	}
	return false
}

// CanAccessSubSection reports whether the operator may see a subject detail tab.
func CanAccessSubSection(op *models.Operator, tabID string) bool {
	if op == nil {
		return false
	}
	if op.IsMaster {
		return true
	}
	for _, s := range NormalizePolicy(op.AllowedSections).SubjectTabs {
		if s == tabID {
			return true
		}
	}
	return false
}

// CanPerform reports whether the operator holds a named capability.
func CanPerform(op *models.Operator, capabilityKey string) bool {
	if op == nil {
		return false
	}
	if op.IsMaster {
		return true
	}
	return NormalizePolicy(op.AllowedSections).Capabilities[capabilityKey]
}
