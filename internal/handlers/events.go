package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/google/uuid"
)

// CreateEvent adds a timeline entry to a subject the caller owns.
func CreateEvent(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageIntel) {
		http.Error(w, "You are not allowed to manage intel", http.StatusForbidden)
		return
	}

	subjectID, ok := requireOwnedSubject(w, r, op)
	if !ok {
		return
	}

	var req struct {
		OccurredAt  string `json:"occurred_at"`
		Title       string `json:"title"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, "Event title is required", http.StatusBadRequest)
		return
	}

	occurredAt := time.Now()
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			http.Error(w, "Invalid occurred_at, expected RFC3339", http.StatusBadRequest)
			return
		}
		occurredAt = parsed
	}

	event := models.Event{
		SubjectID:   subjectID,
		OccurredAt:  occurredAt,
		Title:       req.Title,
		Description: req.Description,
	}
	err := database.PostgresDB.QueryRow(`
		INSERT INTO subject_events (subject_id, occurred_at, title, description)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING id, created_at
	`, subjectID, occurredAt, req.Title, req.Description).Scan(&event.ID, &event.CreatedAt)
	if err != nil {
		http.Error(w, "Failed to create event", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Event created successfully",
		"event":   event,
	})
}

// GetEvents lists a subject's timeline, newest occurrence first.
func GetEvents(w http.ResponseWriter, r *http.Request) {
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
		SELECT id, subject_id, created_at, occurred_at, title, COALESCE(description, '')
		FROM subject_events WHERE subject_id = $1 ORDER BY occurred_at DESC
	`, subjectID)
	if err != nil {
		http.Error(w, "Failed to fetch events", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	events := make([]models.Event, 0)
	for rows.Next() {
		var e models.Event
		if err := rows.Scan(&e.ID, &e.SubjectID, &e.CreatedAt, &e.OccurredAt, &e.Title, &e.Description); err != nil {
			http.Error(w, "Failed to decode events", http.StatusInternalServerError)
			return
		}
		events = append(events, e)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"events":  events,
		"count":   len(events),
	})
}

// DeleteEvent removes a timeline entry belonging to the caller.
func DeleteEvent(w http.ResponseWriter, r *http.Request) {
	op, ok := requireOperator(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if !services.CanPerform(op, services.CapManageIntel) {
		http.Error(w, "You are not allowed to manage intel", http.StatusForbidden)
		return
	}

	eventID, err := uuid.Parse(r.URL.Query().Get("id"))
	if err != nil {
		http.Error(w, "Invalid event ID", http.StatusBadRequest)
		return
	}

	var subjectID uuid.UUID
	err = database.PostgresDB.QueryRow(`
		DELETE FROM subject_events
		WHERE id = $1 AND subject_id IN (SELECT id FROM subjects WHERE owner_id = $2)
		RETURNING subject_id
	`, eventID, op.ID).Scan(&subjectID)
	if err != nil {
		if isNoRows(err) {
			http.Error(w, "Event not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete event", http.StatusInternalServerError)
		return
	}

	services.InvalidateSubjectPayload(subjectID)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Event deleted successfully",
	})
}
