// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
)

const userColumns = `id, email, password_hash, password_salt, access_code, role,
	is_eligible, has_voted, voted_at, name, department, document_id, district,
	phone, created_at, updated_at, last_login_at`

func scanUser(row interface{ Scan(...any) error }) (*models.User, error) {
	var u models.User
	var accessCode sql.NullString
	var votedAt, updatedAt, lastLoginAt sql.NullTime
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.PasswordSalt, &accessCode,
		&u.Role, &u.IsEligible, &u.HasVoted, &votedAt, &u.Name, &u.Department,
		&u.DocumentID, &u.District, &u.Phone, &u.CreatedAt, &updatedAt, &lastLoginAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if accessCode.Valid {
		u.AccessCode = accessCode.String
	}
	if votedAt.Valid {
		u.VotedAt = &votedAt.Time
	}
	if updatedAt.Valid {
		u.UpdatedAt = &updatedAt.Time
	}
	if lastLoginAt.Valid {
		u.LastLoginAt = &lastLoginAt.Time
	}
	return &u, nil
}

// FindUserByEmail looks a user up case-insensitively. Returns nil when no
// user matches.
func FindUserByEmail(db *sql.DB, email string) (*models.User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1)`, email)
	return scanUser(row)
}

// FindUserByID returns nil when no user matches.
func FindUserByID(db *sql.DB, id string) (*models.User, error) {
	row := db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// provisionVoter creates one voter with freshly generated credentials.
// The cleartext password and access code exist only in the return value.
func provisionVoter(db execer, in models.VoterInput) (*models.User, *models.VoterCredentials, error) {
	password, err := auth.GeneratePassword()
	if err != nil {
		return nil, nil, err
	}
	accessCode, err := auth.GenerateAccessCode()
	if err != nil {
		return nil, nil, err
	}
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}

	eligible := true
	if in.IsEligible != nil {
		eligible = *in.IsEligible
	}

	user := &models.User{
		ID:         uuid.NewString(),
		Email:      strings.TrimSpace(in.Email),
		Role:       models.RoleVoter,
		IsEligible: eligible,
		Name:       in.Name,
		Department: in.Department,
		DocumentID: in.DocumentID,
		District:   in.District,
		Phone:      in.Phone,
		CreatedAt:  time.Now(),
	}

	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, password_salt, access_code, role,
		                   is_eligible, has_voted, name, department, document_id, district,
		                   phone, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, user.ID, user.Email, hash, salt, accessCode, user.Role, user.IsEligible,
		false, user.Name, user.Department, user.DocumentID, user.District,
		user.Phone, user.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert voter: %w", err)
	}

	creds := &models.VoterCredentials{
		Email:      user.Email,
		Password:   password,
		AccessCode: accessCode,
		Name:       user.Name,
	}
	return user, creds, nil
}

type UserHandler struct {
	db *sql.DB
}

func NewUserHandler(db *sql.DB) *UserHandler {
	return &UserHandler{db: db}
}

// ListUsers handles GET /api/admin/users
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, email, role, is_eligible, has_voted, name FROM users ORDER BY created_at
	`)
	if err != nil {
		slog.Error("failed to query users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	type userSummary struct {
		ID         string `json:"id"`
		Email      string `json:"email"`
		Role       string `json:"role"`
		IsEligible bool   `json:"isEligible"`
		HasVoted   bool   `json:"hasVoted"`
		Name       string `json:"name,omitempty"`
	}
	users := []userSummary{}
	for rows.Next() {
		var u userSummary
		if err := rows.Scan(&u.ID, &u.Email, &u.Role, &u.IsEligible, &u.HasVoted, &u.Name); err != nil {
			slog.Error("failed to scan user", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// DetailedUsers handles GET /api/admin/users/detailed. Credential material
// never leaves the store; models.User hides it from JSON.
func (h *UserHandler) DetailedUsers(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	rows, err := h.db.Query(`SELECT ` + userColumns + ` FROM users ORDER BY created_at`)
	if err != nil {
		slog.Error("failed to query users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			slog.Error("failed to scan user", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		users = append(users, *u)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read users", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"users": users,
		"count": len(users),
	})
}

// CreateVoters handles POST /api/admin/voters. Rows are processed
// independently; a bad row reports an error without blocking the rest.
func (h *UserHandler) CreateVoters(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	var req models.CreateVotersRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Voters) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "voters cannot be empty")
		return
	}

	resp := models.CreateVotersResponse{
		Results:     []models.VoterRowResult{},
		Credentials: []models.VoterCredentials{},
	}
	created := 0
	for i, in := range req.Voters {
		row := i + 1
		if in.Email == "" || in.Name == "" || in.DocumentID == "" {
			resp.Results = append(resp.Results, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false,
				Error: "email, name and documentId are required",
			})
			continue
		}

		existing, err := FindUserByEmail(h.db, in.Email)
		if err != nil {
			slog.Error("failed to check voter email", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if existing != nil {
			resp.Results = append(resp.Results, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false,
				Error: "email already registered",
			})
			continue
		}

		user, creds, err := provisionVoter(h.db, in)
		if err != nil {
			slog.Error("failed to provision voter", "email", in.Email, "error", err)
			resp.Results = append(resp.Results, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false,
				Error: "failed to create voter",
			})
			continue
		}

		creds.Row = row
		resp.Results = append(resp.Results, models.VoterRowResult{
			Row: row, Email: in.Email, Success: true, ID: user.ID,
		})
		resp.Credentials = append(resp.Credentials, *creds)
		created++
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "voters provisioned",
		map[string]any{"requested": len(req.Voters), "created": created},
		middleware.GetClientIP(r))

	slog.Info("voters provisioned", "requested", len(req.Voters), "created", created)
	middleware.JSONResponse(w, http.StatusCreated, resp)
}

// BulkUpload handles POST /api/admin/users/bulk-upload. Accepts the same
// row shape as CreateVoters but reports created/duplicate/error buckets
// with a summary, matching what a CSV import screen needs.
func (h *UserHandler) BulkUpload(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	var req struct {
		Users []models.VoterInput `json:"users"`
	}
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if len(req.Users) == 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "users cannot be empty")
		return
	}

	report := models.BulkUploadReport{
		Created:    []models.VoterCredentials{},
		Errors:     []models.VoterRowResult{},
		Duplicates: []models.VoterRowResult{},
	}
	for i, in := range req.Users {
		row := i + 1
		if in.Email == "" {
			report.Errors = append(report.Errors, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false, Error: "email is required",
			})
			continue
		}

		existing, err := FindUserByEmail(h.db, in.Email)
		if err != nil {
			slog.Error("failed to check email", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if existing != nil {
			report.Duplicates = append(report.Duplicates, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false, Error: "email already registered",
			})
			continue
		}

		_, creds, err := provisionVoter(h.db, in)
		if err != nil {
			slog.Error("failed to provision voter", "email", in.Email, "error", err)
			report.Errors = append(report.Errors, models.VoterRowResult{
				Row: row, Email: in.Email, Success: false, Error: "failed to create voter",
			})
			continue
		}
		creds.Row = row
		report.Created = append(report.Created, *creds)
	}

	summary := models.BulkUploadSummary{
		Total:      len(req.Users),
		Created:    len(report.Created),
		Errors:     len(report.Errors),
		Duplicates: len(report.Duplicates),
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "bulk voter upload",
		map[string]any{
			"total": summary.Total, "created": summary.Created,
			"duplicates": summary.Duplicates, "errors": summary.Errors,
		}, middleware.GetClientIP(r))

	slog.Info("bulk upload processed", "total", summary.Total, "created", summary.Created)
	middleware.JSONResponse(w, http.StatusOK, models.BulkUploadResponse{
		Success: true,
		Summary: summary,
		Results: report,
	})
}

// RegenerateCredentials handles POST /api/admin/users/{id}/regenerate-credentials.
// The new password and access code are returned once and stored only hashed.
func (h *UserHandler) RegenerateCredentials(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	userID := r.PathValue("id")
	user, err := FindUserByID(h.db, userID)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "User not found")
		return
	}

	password, err := auth.GeneratePassword()
	if err != nil {
		slog.Error("failed to generate password", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to regenerate credentials")
		return
	}
	accessCode, err := auth.GenerateAccessCode()
	if err != nil {
		slog.Error("failed to generate access code", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to regenerate credentials")
		return
	}
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		slog.Error("failed to hash password", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to regenerate credentials")
		return
	}

	_, err = h.db.Exec(`
		UPDATE users SET password_hash = $1, password_salt = $2, access_code = $3, updated_at = $4
		WHERE id = $5
	`, hash, salt, accessCode, time.Now(), userID)
	if err != nil {
		slog.Error("failed to update credentials", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to regenerate credentials")
		return
	}

	// Existing sessions stop being valid with the old credentials gone
	_, err = h.db.Exec(`
		UPDATE sessions SET active = FALSE, ended_at = $1
		WHERE user_id = $2 AND active = TRUE
	`, time.Now(), userID)
	if err != nil {
		slog.Warn("failed to end sessions after credential reset", "error", err)
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "credentials regenerated",
		map[string]any{"userId": userID}, middleware.GetClientIP(r))

	slog.Info("credentials regenerated", "user_id", userID)
	middleware.JSONResponse(w, http.StatusOK, models.VoterCredentials{
		Email:      user.Email,
		Password:   password,
		AccessCode: accessCode,
		Name:       user.Name,
	})
}
