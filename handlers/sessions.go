// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/models"
)

var (
	ErrInvalidSession = errors.New("invalid session")
	ErrSessionExpired = errors.New("session expired")
)

// CreateSession opens a new session for the user and invalidates any session
// the user already holds. One active session per user, always.
func CreateSession(db *sql.DB, userID, ip string, ttl time.Duration) (*models.Session, error) {
	now := time.Now()

	_, err := db.Exec(`
		UPDATE sessions SET active = FALSE, ended_at = $1
		WHERE user_id = $2 AND active = TRUE
	`, now, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to invalidate prior sessions: %w", err)
	}

	token, err := auth.GenerateSessionToken()
	if err != nil {
		return nil, err
	}

	session := &models.Session{
		ID:           uuid.NewString(),
		UserID:       userID,
		Token:        token,
		CreatedAt:    now,
		LastAccessAt: now,
		ExpiresAt:    now.Add(ttl),
		IP:           ip,
		Active:       true,
	}

	_, err = db.Exec(`
		INSERT INTO sessions (id, user_id, token, created_at, last_access_at, expires_at, ip, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, session.ID, session.UserID, session.Token, session.CreatedAt,
		session.LastAccessAt, session.ExpiresAt, session.IP, session.Active)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// ValidateSession resolves a token to its user. Expiry is enforced here:
// a session found past its expires_at is marked inactive on the spot and
// rejected. Valid lookups bump last_access_at.
func ValidateSession(db *sql.DB, token string) (*models.User, *models.Session, error) {
	if token == "" {
		return nil, nil, ErrInvalidSession
	}

	var s models.Session
	var endedAt sql.NullTime
	err := db.QueryRow(`
		SELECT id, user_id, token, created_at, last_access_at, expires_at, ip, active, ended_at
		FROM sessions WHERE token = $1
	`, token).Scan(&s.ID, &s.UserID, &s.Token, &s.CreatedAt, &s.LastAccessAt,
		&s.ExpiresAt, &s.IP, &s.Active, &endedAt)
	if err == sql.ErrNoRows {
		return nil, nil, ErrInvalidSession
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if endedAt.Valid {
		s.EndedAt = &endedAt.Time
	}

	if !s.Active {
		return nil, nil, ErrInvalidSession
	}

	now := time.Now()
	if now.After(s.ExpiresAt) {
		_, err := db.Exec(`
			UPDATE sessions SET active = FALSE, ended_at = $1 WHERE id = $2
		`, now, s.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to expire session: %w", err)
		}
		return nil, nil, ErrSessionExpired
	}

	_, err = db.Exec(`UPDATE sessions SET last_access_at = $1 WHERE id = $2`, now, s.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to touch session: %w", err)
	}
	s.LastAccessAt = now

	user, err := FindUserByID(db, s.UserID)
	if err != nil {
		return nil, nil, err
	}
	if user == nil {
		return nil, nil, ErrInvalidSession
	}

	return user, &s, nil
}

// InvalidateSession ends the session holding the given token. Ending an
// unknown or already-ended session is not an error.
func InvalidateSession(db *sql.DB, token string) error {
	_, err := db.Exec(`
		UPDATE sessions SET active = FALSE, ended_at = $1
		WHERE token = $2 AND active = TRUE
	`, time.Now(), token)
	if err != nil {
		return fmt.Errorf("failed to invalidate session: %w", err)
	}
	return nil
}

// RequireAdmin resolves the X-Session-Token header to an admin user.
// Every handler under /api/admin calls this first.
func RequireAdmin(db *sql.DB, r *http.Request) (*models.User, error) {
	user, _, err := ValidateSession(db, r.Header.Get("X-Session-Token"))
	if err != nil {
		return nil, err
	}
	if user.Role != models.RoleAdmin {
		return nil, ErrInvalidSession
	}
	return user, nil
}
