// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package db

import (
	"database/sql"
	"fmt"
)

// CreateSchema creates all tables needed for the application.
// Safe to call multiple times - uses IF NOT EXISTS.
//
// Every timestamp is written from Go rather than by a DB-side default, and
// placeholders throughout the codebase are $N in first-appearance order, so
// the same SQL runs on both sqlite and postgres.
func CreateSchema(db *sql.DB) error {
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

const schema = `
-- Users (voters and admins)
CREATE TABLE IF NOT EXISTS users (
    id TEXT PRIMARY KEY,
    email TEXT NOT NULL,
    password_hash TEXT NOT NULL,
    password_salt TEXT NOT NULL,
    access_code TEXT,
    role TEXT NOT NULL DEFAULT 'voter' CHECK (role IN ('voter', 'admin')),
    is_eligible BOOLEAN NOT NULL DEFAULT TRUE,
    has_voted BOOLEAN NOT NULL DEFAULT FALSE,
    voted_at TIMESTAMP,
    name TEXT NOT NULL DEFAULT '',
    department TEXT NOT NULL DEFAULT '',
    document_id TEXT NOT NULL DEFAULT '',
    district TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP,
    last_login_at TIMESTAMP
);

-- Email uniqueness is case-insensitive
CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email ON users(LOWER(email));
CREATE INDEX IF NOT EXISTS idx_users_role ON users(role);

-- Candidates
CREATE TABLE IF NOT EXISTS candidates (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    party TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    photo TEXT NOT NULL DEFAULT '',
    position TEXT NOT NULL DEFAULT '',
    trajectory TEXT NOT NULL DEFAULT '',
    profile TEXT NOT NULL DEFAULT '',
    projects TEXT NOT NULL DEFAULT '',
    votes INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP
);

-- Votes are anonymous: no voter column exists by design
CREATE TABLE IF NOT EXISTS votes (
    id TEXT PRIMARY KEY,
    candidate_id TEXT NOT NULL REFERENCES candidates(id),
    cast_at TIMESTAMP NOT NULL,
    vote_hash TEXT NOT NULL,
    ip_hash TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_votes_candidate_id ON votes(candidate_id);

-- Sessions
CREATE TABLE IF NOT EXISTS sessions (
    id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL REFERENCES users(id),
    token TEXT NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL,
    last_access_at TIMESTAMP NOT NULL,
    expires_at TIMESTAMP NOT NULL,
    ip TEXT NOT NULL DEFAULT '',
    active BOOLEAN NOT NULL DEFAULT TRUE,
    ended_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_sessions_token ON sessions(token);
CREATE INDEX IF NOT EXISTS idx_sessions_user_id ON sessions(user_id);

-- Audit log (append-only; nothing in the core updates or deletes rows)
CREATE TABLE IF NOT EXISTS audit_logs (
    id TEXT PRIMARY KEY,
    timestamp TIMESTAMP NOT NULL,
    type TEXT NOT NULL CHECK (type IN ('LOGIN', 'VOTE', 'ADMIN_ACTION', 'SECURITY_EVENT')),
    actor TEXT NOT NULL,
    message TEXT NOT NULL,
    metadata TEXT NOT NULL DEFAULT '{}',
    ip TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_logs_type ON audit_logs(type);
CREATE INDEX IF NOT EXISTS idx_audit_logs_timestamp ON audit_logs(timestamp);

-- Elections
CREATE TABLE IF NOT EXISTS elections (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    start_date TIMESTAMP NOT NULL,
    end_date TIMESTAMP NOT NULL,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN ('draft', 'active', 'closed', 'published')),
    require_access_code BOOLEAN NOT NULL DEFAULT FALSE,
    allow_public_results BOOLEAN NOT NULL DEFAULT TRUE,
    auto_publish_results BOOLEAN NOT NULL DEFAULT TRUE,
    result_publish_delay_minutes INTEGER NOT NULL DEFAULT 0,
    results_published_at TIMESTAMP,
    created_at TIMESTAMP NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    updated_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_elections_status ON elections(status);

-- Published result snapshots (immutable once written; publishing appends)
CREATE TABLE IF NOT EXISTS published_results (
    id TEXT PRIMARY KEY,
    election_id TEXT NOT NULL,
    election_name TEXT NOT NULL,
    generated_at TIMESTAMP NOT NULL,
    published_at TIMESTAMP NOT NULL,
    published_by TEXT NOT NULL,
    status TEXT NOT NULL CHECK (status IN ('preliminary', 'final')),
    total_votes INTEGER NOT NULL,
    total_eligible_voters INTEGER NOT NULL,
    total_voted_users INTEGER NOT NULL,
    participation_rate REAL NOT NULL,
    abstentions INTEGER NOT NULL,
    candidates TEXT NOT NULL,
    integrity_hash TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_published_results_election_id ON published_results(election_id);
`
