package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/models"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/casefilehq/casefile-backend/pkg/utils"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// requireOperatorAdmin authenticates and checks the manageOperators
// capability (granted to masters by default). Writes the error response
// itself and returns false when the caller may not manage operators.
func requireOperatorAdmin(w http.ResponseWriter, r *http.Request) (*models.Operator, bool) {
	op, ok := requireOperator(r)
	if !ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Authentication required",
		})
		return nil, false
	}
	if !services.CanPerform(op, services.CapManageOperators) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "You are not allowed to manage operators",
		})
		return nil, false
	}
	return op, true
}

// GetOperators lists every operator account.
func GetOperators(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperatorAdmin(w, r); !ok {
		return
	}

	rows, err := database.PostgresDB.Query(`
		SELECT id, created_at, email, is_master, is_disabled, COALESCE(allowed_sections, ''), last_login
		FROM operators ORDER BY created_at ASC
	`)
	if err != nil {
		http.Error(w, "Failed to fetch operators", http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	operators := make([]map[string]interface{}, 0)
	for rows.Next() {
		var (
			id              uuid.UUID
			createdAt       sql.NullTime
			email           string
			isMaster        bool
			isDisabled      bool
			allowedSections string
			lastLogin       sql.NullTime
		)
		if err := rows.Scan(&id, &createdAt, &email, &isMaster, &isDisabled, &allowedSections, &lastLogin); err != nil {
			http.Error(w, "Failed to decode operators", http.StatusInternalServerError)
			return
		}
		entry := map[string]interface{}{
			"id":          id.String(),
			"created_at":  createdAt.Time,
			"email":       email,
			"is_master":   isMaster,
			"is_disabled": isDisabled,
			"policy":      services.NormalizePolicy(allowedSections),
		}
		if lastLogin.Valid {
			entry["last_login"] = lastLogin.Time
		}
		operators = append(operators, entry)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"operators": operators,
		"count":     len(operators),
	})
}

// CreateOperatorRequest represents the request to create an operator account
type CreateOperatorRequest struct {
	Email    string           `json:"email"`
	Password string           `json:"password"`
	IsMaster bool             `json:"is_master"`
	Policy   *services.Policy `json:"policy,omitempty"`
}

// CreateOperator creates a new operator account.
func CreateOperator(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperatorAdmin(w, r); !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")

	var req CreateOperatorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Invalid request body",
		})
		return
	}

	if req.Email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Email and password are required",
		})
		return
	}
	if len(req.Password) < 8 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Password must be at least 8 characters long",
		})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Failed to hash password",
		})
		return
	}

	policy := services.DefaultPolicy()
	if req.Policy != nil {
		policy = *req.Policy
	}
	policyRaw, err := services.EncodePolicy(policy)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Failed to encode policy",
		})
		return
	}

	var opID string
	err = database.PostgresDB.QueryRow(`
		INSERT INTO operators (email, password_hash, is_master, allowed_sections)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, req.Email, hashedPassword, req.IsMaster, policyRaw).Scan(&opID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			w.WriteHeader(http.StatusConflict)
			json.NewEncoder(w).Encode(map[string]interface{}{
				"success": false,
				"message": "An operator with this email already exists",
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Failed to create operator",
		})
		return
	}

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Operator created successfully",
		"operator": map[string]interface{}{
			"id":        opID,
			"email":     req.Email,
			"is_master": req.IsMaster,
		},
	})
}

// UpdateOperatorPolicy replaces an operator's stored permission policy.
func UpdateOperatorPolicy(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperatorAdmin(w, r); !ok {
		return
	}

	operatorID := r.URL.Query().Get("id")
	if operatorID == "" {
		http.Error(w, "Operator ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(operatorID)
	if err != nil {
		http.Error(w, "Invalid operator ID", http.StatusBadRequest)
		return
	}

	var policy services.Policy
	if err := json.NewDecoder(r.Body).Decode(&policy); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	policyRaw, err := services.EncodePolicy(policy)
	if err != nil {
		http.Error(w, "Failed to encode policy", http.StatusInternalServerError)
		return
	}

	res, err := database.PostgresDB.Exec(`
		UPDATE operators SET allowed_sections = $1, updated_at = NOW() WHERE id = $2
	`, policyRaw, id)
	if err != nil {
		http.Error(w, "Failed to update operator", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Operator policy updated",
	})
}

// SetOperatorDisabled enables or disables an operator account. Disabling also
// bumps token_version so outstanding tokens stop working immediately.
func SetOperatorDisabled(w http.ResponseWriter, r *http.Request) {
	caller, ok := requireOperatorAdmin(w, r)
	if !ok {
		return
	}

	operatorID := r.URL.Query().Get("id")
	if operatorID == "" {
		http.Error(w, "Operator ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(operatorID)
	if err != nil {
		http.Error(w, "Invalid operator ID", http.StatusBadRequest)
		return
	}
	if id == caller.ID {
		http.Error(w, "You cannot disable your own account", http.StatusBadRequest)
		return
	}

	var req struct {
		Disabled bool `json:"disabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	res, err := database.PostgresDB.Exec(`
		UPDATE operators
		SET is_disabled = $1,
		    token_version = CASE WHEN $1 THEN token_version + 1 ELSE token_version END,
		    updated_at = NOW()
		WHERE id = $2
	`, req.Disabled, id)
	if err != nil {
		http.Error(w, "Failed to update operator", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Operator updated",
	})
}

// ForceLogoutOperator invalidates every outstanding session token for an
// operator by bumping their token_version.
func ForceLogoutOperator(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperatorAdmin(w, r); !ok {
		return
	}

	operatorID := r.URL.Query().Get("id")
	if operatorID == "" {
		http.Error(w, "Operator ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(operatorID)
	if err != nil {
		http.Error(w, "Invalid operator ID", http.StatusBadRequest)
		return
	}

	found, err := services.BumpTokenVersion(id)
	if err != nil {
		http.Error(w, "Failed to force logout", http.StatusInternalServerError)
		return
	}
	if !found {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "All sessions for this operator have been invalidated",
	})
}

// ResetOperatorPassword sets a new password for an operator and invalidates
// their outstanding sessions.
func ResetOperatorPassword(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireOperatorAdmin(w, r); !ok {
		return
	}

	operatorID := r.URL.Query().Get("id")
	if operatorID == "" {
		http.Error(w, "Operator ID is required", http.StatusBadRequest)
		return
	}
	id, err := uuid.Parse(operatorID)
	if err != nil {
		http.Error(w, "Invalid operator ID", http.StatusBadRequest)
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Password) < 8 {
		http.Error(w, "Password must be at least 8 characters long", http.StatusBadRequest)
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		http.Error(w, "Failed to hash password", http.StatusInternalServerError)
		return
	}

	res, err := database.PostgresDB.Exec(`
		UPDATE operators
		SET password_hash = $1, token_version = token_version + 1, updated_at = NOW()
		WHERE id = $2
	`, hashedPassword, id)
	if err != nil {
		http.Error(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		http.Error(w, "Operator not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": "Password reset; all sessions invalidated",
	})
}
