package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// CreateLocation records a manual sighting against a subject.
func CreateLocation(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageLocations) {
		http.Error(w, "You are not allowed to manage locations", http.StatusForbidden)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	var req struct {
		Latitude  *float64 `json:"latitude"`
		Longitude *float64 `json:"longitude"`
		Label     string   `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Latitude == nil || req.Longitude == nil {
		http.Error(w, "Latitude and longitude are required", http.StatusBadRequest)
		return
	}
	if *req.Latitude < -90 || *req.Latitude > 90 || *req.Longitude < -180 || *req.Longitude > 180 {
		http.Error(w, "Coordinates out of range", http.StatusBadRequest)
		return
	}

	loc := models.Location{
		SubjectID: subjectID,
		Latitude:  *req.Latitude,
		Longitude: *req.Longitude,
		Label:     req.Label,
		Source:    models.LocationSourceOperator,
	}
	err := database.PostgresDB.QueryRow(`
		INSERT INTO subject_locations (subject_id, latitude, longitude, label, source)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		RETURNING id, created_at
	`, subjectID, loc.Latitude, loc.Longitude, req.Label, loc.Source).Scan(&loc.ID, &loc.CreatedAt)
	if err != nil {
		http.Error(w, "Failed to record location", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":  true,
		"message":  "Location recorded successfully",
		"location": loc,
	})
}

// GetLocations lists a subject's sightings, manual and viewer-disclosed alike.
func GetLocations(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, subject_id, created_at, latitude, longitude, COALESCE(label, ''), source
		FROM subject_locations WHERE subject_id = $1 ORDER BY created_at DESC
	`, subjectID)
	if err != nil {
		http.Error(w, "Failed to fetch locations", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	locations := make([]models.Location, 0)
	for rows.Next() {
		var l models.Location
		if err := rows.Scan(&l.ID, &l.SubjectID, &l.CreatedAt, &l.Latitude, &l.Longitude, &l.Label, &l.Source); err != nil {
			http.Error(w, "Failed to decode locations", http.StatusInternalServerError)
			return
		}
		locations = append(locations, l)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"locations": locations,
		"count":     len(locations),
	})
}

// DeleteLocation removes a sighting belonging to the caller.
func DeleteLocation(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageLocations) {
		http.Error(w, "You are not allowed to manage locations", http.StatusForbidden)
		return
	}

	locationID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid location ID", http.StatusBadRequest)
		return
	}

	var subjectID uuid.UUID
	err = database.PostgresDB.QueryRow(`
		DELETE FROM subject_locations
		WHERE id = $1 AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
		RETURNING subject_id
	`, locationID, op.ID).Scan(&subjectID)
	if err != nil {
		if isNoRows(err) {
			http.Error(w, "Location not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete location", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Location deleted successfully",
	})
}
