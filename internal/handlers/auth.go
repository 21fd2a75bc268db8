package handlers

import (
	"database/sql"
	"encoding/json"
	"log"
	"net/http"

	"github.com/casefilehq/casefile-backend/internal/database"
	"github.com/casefilehq/casefile-backend/internal/services"
	"github.com/casefilehq/casefile-backend/pkg/utils"
)

// SigninRequest represents the request to sign in as an operator
type SigninRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninResponse represents the response after operator signin
type SigninResponse struct {
	Success  bool                   `json:"success"`
	Message  string                 `json:"message"`
	Operator map[string]interface{} `json:"operator,omitempty"`
	Token    string                 `json:"token,omitempty"`
}

// Signin authenticates an operator and returns a signed session token.
// Bootstrap: the very first sign-in against an empty operators table creates
// a master operator with the supplied credentials.
func Signin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if jwtSecret == "" {
		log.Println("JWT_SECRET is not set; refusing to sign in")
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Service misconfigured",
		})
		return
	}

	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Invalid request body",
		})
		return
	}

	if req.Email == "" || req.Password == "" {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Email and password are required",
		})
		return
	}

	count, err := services.CountOperators()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Database error",
		})
		return
	}

	if count == 0 {
		// Empty table: create the first (master) operator and sign them in.
		bootstrapFirstOperator(w, req)
		return
	}

	op, err := services.GetOperatorByEmail(req.Email)
	if err != nil {
		if err == sql.ErrNoRows {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(SigninResponse{
				Success: false,
				Message: "Invalid email or password",
			})
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Database error",
		})
		return
	}

	valid, err := utils.VerifyPassword(req.Password, op.PasswordHash)
	if err != nil || !valid {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Invalid email or password",
		})
		return
	}

	if op.IsDisabled {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "This account has been disabled",
		})
		return
	}

	token, err := services.IssueOperatorToken(op, jwtSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Failed to issue session token",
		})
		return
	}

	// Record last login (best effort)
	if _, err := database.PostgresDB.Exec(
		`UPDATE operators SET last_login = NOW() WHERE id = $1`, op.ID); err != nil {
		log.Printf("failed to update last_login: %v", err)
	}

	json.NewEncoder(w).Encode(SigninResponse{
		Success: true,
		Message: "Signed in successfully",
		Token:   token,
		Operator: map[string]interface{}{
			"id":        op.ID.String(),
			"email":     op.Email,
			"is_master": op.IsMaster,
		},
	})
}

// bootstrapFirstOperator creates the initial master operator. Only reachable
// when the operators table is empty.
func bootstrapFirstOperator(w http.ResponseWriter, req SigninRequest) {
	if len(req.Password) < 8 {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Password must be at least 8 characters long",
		})
		return
	}

	hashedPassword, err := utils.HashPassword(req.Password)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Failed to hash password",
		})
		return
	}

	policy, err := services.EncodePolicy(services.DefaultPolicy())
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Failed to encode default policy",
		})
		return
	}

	// The insert re-checks emptiness so two concurrent first sign-ins cannot
	// both become master: the loser scans no row and is told to retry.
	var opID string
	err = database.PostgresDB.QueryRow(`
		INSERT INTO operators (email, password_hash, is_master, allowed_sections, last_login)
		SELECT $1, $2, TRUE, $3, NOW()
		WHERE NOT EXISTS (SELECT 1 FROM operators)
		RETURNING id
	`, req.Email, hashedPassword, policy).Scan(&opID)
	if err == sql.ErrNoRows {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "An operator already exists, please sign in",
		})
		return
	}
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Failed to create operator",
		})
		return
	}

	op, err := services.GetOperatorByEmail(req.Email)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Database error",
		})
		return
	}

	token, err := services.IssueOperatorToken(op, jwtSecret)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(SigninResponse{
			Success: false,
			Message: "Failed to issue session token",
		})
		return
	}

	log.Printf("Bootstrap: created master operator %s", req.Email)

	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SigninResponse{
		Success: true,
		Message: "Master operator created",
		Token:   token,
		Operator: map[string]interface{}{
			"id":        opID,
			"email":     op.Email,
			"is_master": true,
		},
	})
}

// GetMe returns the authenticated operator's own record and normalized policy.
func GetMe(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	op, ok := requireOperator(r)
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"message": "Authentication required",
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"operator": map[string]interface{}{
			"id":         op.ID.String(),
			"email":      op.Email,
			"is_master":  op.IsMaster,
			"created_at": op.CreatedAt,
			"last_login": op.LastLogin,
		},
		"policy": services.NormalizePolicy(op.AllowedSections),
	})
}
