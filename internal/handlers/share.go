package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/casefilehq/casefile-backend/pkg/clientip"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// CreateShareLink mints a share token for a subject the caller owns.
func CreateShareLink(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageShares) {
		http.Error(w, "You are not allowed to manage share links", http.StatusForbidden)
		return
	}

	var req struct {
		SubjectID       string   `json:"subject_id"`
		DurationMinutes int      `json:"duration_minutes"`
		RequireLocation bool     `json:"require_location"`
		AllowedTabs     []string `json:"allowed_tabs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	subjectID, err := uuid.Parse(req.SubjectID)
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	link, err := services.CreateShareLink(op.ID, subjectID, req.DurationMinutes, req.RequireLocation, req.AllowedTabs)
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			http.Error(w, "Subject not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to create share link", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":          true,
		"message":          "Share link created successfully",
		"token":            link.Token,
		"url":              shareBaseURL + "/" + link.Token,
		"duration_seconds": link.DurationSeconds,
		"require_location": link.RequireLocation,
		"allowed_tabs":     services.DecodeAllowedTabs(link.AllowedTabs),
	})
}

// GetShareLinks lists the share links of one subject, with derived remaining
// time per link.
func GetShareLinks(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	// Listings expose live tokens, so they are gated like create and revoke.
	if !services.CanPerform(op, services.CapManageShares) {
		http.Error(w, "You are not allowed to manage share links", http.StatusForbidden)
		return
	}

	subjectID, err := uuid.Parse(r.URL.Query().Get("subject_id"))
	if err != nil {
		http.Error(w, "Invalid subject ID", http.StatusBadRequest)
		return
	}

	links, err := services.ListShareLinks(op.ID, subjectID)
	if err != nil {
		if errors.Is(err, services.ErrNotOwner) {
			http.Error(w, "Subject not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to fetch share links", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"links":   links,
		"count":   len(links),
	})
}

// RevokeShareLink deactivates a link. Safe to repeat.
func RevokeShareLink(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageShares) {
		http.Error(w, "You are not allowed to manage share links", http.StatusForbidden)
		return
	}

	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "Share token is required", http.StatusBadRequest)
		return
	}

	found, err := services.RevokeShareLink(op.ID, token)
	if err != nil {
		http.Error(w, "Failed to revoke share link", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Share link not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Share link revoked successfully",
	})
}

// GetShareActivity pages through the caller's share access audit trail,
// newest first. Pass ?before=<RFC3339> to fetch the next page.
func GetShareActivity(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var before *time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid before, expected RFC3339", http.StatusBadRequest)
			return
		}
		before = &parsed
	}

	limit := int64(50)
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 1 || parsed > 100 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	records, hasMore, err := services.LoadAccessRecords(r.Context(), op.ID.String(), before, limit)
	if err != nil {
		http.Error(w, "Failed to fetch share activity", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"activity": records,
		"has_more": hasMore,
	})
}

// ResolveShare serves a share token to an unauthenticated viewer. Viewer
// coordinates ride in lat/lng query params when a location gate is set.
func ResolveShare(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	if token == "" {
		http.Error(w, "Share token is required", http.StatusBadRequest)
		return
	}

	var coords *services.Coordinates
	latRaw, lngRaw := r.URL.Query().Get("lat"), r.URL.Query().Get("lng")
	if latRaw != "" || lngRaw != "" {
		lat, latErr := strconv.ParseFloat(latRaw, 64)
		lng, lngErr := strconv.ParseFloat(lngRaw, 64)
		if latErr != nil || lngErr != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
			http.Error(w, "Invalid coordinates", http.StatusBadRequest)
			return
		}
		coords = &services.Coordinates{Latitude: lat, Longitude: lng}
	}

	res, err := services.ResolveShareLink(r.Context(), token, coords, clientip.RealClientIP(r))
	if err != nil {
		http.Error(w, "Failed to resolve share link", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")

	switch res.Status {
	case services.ShareStatusNotFound:
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Share link not found",
		})
	case services.ShareStatusGone:
		w.WriteHeader(http.StatusGone)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "This share link is no longer available",
		})
	case services.ShareStatusLocationRequired:
		// 428: the gate is unsatisfied, the view is not consumed and the
		// clock has not started.
		w.WriteHeader(http.StatusPreconditionRequired)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           false,
			"message":           "Location is required to view this dossier",
			"location_required": true,
			"teaser":            res.Teaser,
		})
	default:
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":           true,
			"payload":           res.Payload,
			"remaining_seconds": res.RemainingSeconds,
			"views":             res.Views,
		})
	}
}
