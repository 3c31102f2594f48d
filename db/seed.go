// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/models"
)

// SeedDefaultElection inserts a 7-day active election when the elections
// table is empty, so a fresh deployment can accept ballots immediately.
func SeedDefaultElection(db *sql.DB) error {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM elections`).Scan(&count); err != nil {
		return fmt.Errorf("failed to count elections: %w", err)
	}
	if count > 0 {
		return nil
	}

	now := time.Now()
	id := uuid.NewString()
	_, err := db.Exec(`
		INSERT INTO elections (id, name, description, start_date, end_date, status,
		                       require_access_code, allow_public_results, auto_publish_results,
		                       result_publish_delay_minutes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, "General Election", "General election for public office",
		now, now.Add(7*24*time.Hour), models.StatusActive,
		false, true, true, 0, now, "system")
	if err != nil {
		return fmt.Errorf("failed to seed default election: %w", err)
	}

	slog.Info("seeded default election", "election_id", id)
	return nil
}

// EnsureAdminUser creates the bootstrap admin account if no user with that
// email exists yet. The password is hashed before storage like any other.
func EnsureAdminUser(db *sql.DB, email, password string) error {
	if email == "" {
		return nil
	}

	var exists bool
	err := db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))
	`, email).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check admin user: %w", err)
	}
	if exists {
		return nil
	}

	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		return fmt.Errorf("failed to hash admin password: %w", err)
	}

	id := uuid.NewString()
	_, err = db.Exec(`
		INSERT INTO users (id, email, password_hash, password_salt, role, is_eligible, has_voted, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, id, email, hash, salt, models.RoleAdmin, false, false, time.Now())
	if err != nil {
		return fmt.Errorf("failed to create admin user: %w", err)
	}

	slog.Info("created bootstrap admin", "email", email)
	return nil
}
