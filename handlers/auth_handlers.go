// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/cliparse"
	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
	"github.com/votesecure/vote-server/rateguard"
)

type AuthHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	guard *rateguard.Guard
}

func NewAuthHandler(db *sql.DB, cfg cliparse.Config, guard *rateguard.Guard) *AuthHandler {
	return &AuthHandler{db: db, cfg: cfg, guard: guard}
}

// guardKey throttles by account rather than by source address so an
// attacker cannot rotate IPs around the window. Falls back to the client
// IP when the request carries no email.
func guardKey(email, ip string) string {
	if email != "" {
		return strings.ToLower(email)
	}
	return ip
}

// checkCredentials verifies password and, when the active election requires
// it, the voter's access code. Admins never need an access code.
func checkCredentials(db *sql.DB, user *models.User, password, accessCode string) bool {
	if !auth.VerifyPassword(password, user.PasswordHash, user.PasswordSalt) {
		return false
	}
	if user.Role == models.RoleAdmin {
		return true
	}

	election, err := getActiveElection(db)
	if err != nil {
		slog.Warn("failed to load active election for access-code check", "error", err)
		return false
	}
	if election != nil && election.Settings.RequireAccessCode && user.AccessCode != "" {
		if accessCode != user.AccessCode {
			return false
		}
	}
	return true
}

// Login handles POST /api/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	ip := middleware.GetClientIP(r)
	key := guardKey(req.Email, ip)
	if !h.guard.Allow("login:" + key) {
		auditAsync(h.db, models.AuditSecurityEvent, req.Email, "login rate limit exceeded",
			map[string]any{"reason": "rate_limited"}, ip)
		middleware.ErrorResponse(w, http.StatusTooManyRequests, "Too many login attempts, try again later")
		return
	}

	user, err := FindUserByEmail(h.db, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil || !checkCredentials(h.db, user, req.Password, req.AccessCode) {
		auditAsync(h.db, models.AuditSecurityEvent, req.Email, "failed login attempt",
			map[string]any{"reason": "invalid_credentials"}, ip)
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	session, err := CreateSession(h.db, user.ID, ip, h.cfg.SessionTTL)
	if err != nil {
		slog.Error("failed to create session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	_, err = h.db.Exec(`UPDATE users SET last_login_at = $1 WHERE id = $2`, time.Now(), user.ID)
	if err != nil {
		slog.Warn("failed to stamp last login", "error", err)
	}

	// Successful auth clears the failure window for this account
	h.guard.Reset("login:" + key)

	auditAsync(h.db, models.AuditLogin, user.Email, "user logged in",
		map[string]any{"role": user.Role}, ip)

	slog.Info("login", "user_id", user.ID, "role", user.Role)
	middleware.JSONResponse(w, http.StatusOK, models.LoginResponse{
		ID:           user.ID,
		Email:        user.Email,
		Role:         user.Role,
		HasVoted:     user.HasVoted,
		SessionToken: session.Token,
		ExpiresAt:    session.ExpiresAt,
	})
}

// Logout handles POST /api/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	var req models.LogoutRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	token := req.SessionToken
	if token == "" {
		token = r.Header.Get("X-Session-Token")
	}
	if token == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "sessionToken is required")
		return
	}

	if err := InvalidateSession(h.db, token); err != nil {
		slog.Error("failed to invalidate session", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to log out")
		return
	}

	actor := req.Email
	if actor == "" {
		actor = "unknown"
	}
	auditAsync(h.db, models.AuditLogin, actor, "user logged out", nil, middleware.GetClientIP(r))

	middleware.JSONResponse(w, http.StatusOK, map[string]any{"success": true})
}

// Status handles POST /api/status. Re-authenticates rather than trusting a
// token, so the ballot screen can poll it before and after voting.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	var req models.StatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := FindUserByEmail(h.db, req.Email)
	if err != nil {
		slog.Error("failed to look up user", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil || !auth.VerifyPassword(req.Password, user.PasswordHash, user.PasswordSalt) {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.StatusResponse{
		HasVoted: user.HasVoted,
		Role:     user.Role,
	})
}
