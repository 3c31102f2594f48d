// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package testutil

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/cliparse"
	"github.com/votesecure/vote-server/db"
	"github.com/votesecure/vote-server/models"
)

// SetupTestDB creates a fresh sqlite database with the full schema in a
// per-test temp directory. No external daemon needed.
func SetupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "votesecure_test.db")
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	// Single connection: sqlite has one writer, and this makes the
	// connection the serialization point exactly as in production
	conn.SetMaxOpenConns(1)

	if err := db.CreateSchema(conn); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	return conn
}

// GetTestConfig returns a standard test configuration
func GetTestConfig() cliparse.Config {
	return cliparse.Config{
		Port:              4000,
		DatabaseURL:       "test.db",
		DatabaseType:      "sqlite",
		SessionTTL:        24 * time.Hour,
		RateLimitEnabled:  false,
		LoginMaxAttempts:  5,
		VoteMaxAttempts:   3,
		RateLimitWindow:   15 * time.Minute,
		SchedulerInterval: time.Minute,
	}
}

// CreateTestElection inserts an election and returns its ID.
// status should be "draft", "active", "closed" or "published".
func CreateTestElection(t *testing.T, conn *sql.DB, status string, settings models.ElectionSettings) string {
	t.Helper()

	now := time.Now()
	start := now.Add(-time.Hour)
	end := now.Add(24 * time.Hour)
	if status == models.StatusClosed || status == models.StatusPublished {
		end = now.Add(-time.Minute)
	}

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO elections (id, name, description, start_date, end_date, status,
		                       require_access_code, allow_public_results, auto_publish_results,
		                       result_publish_delay_minutes, created_at, created_by)
		VALUES ($1, 'Test Election', 'An election for tests', $2, $3, $4, $5, $6, $7, $8, $9, 'test')
	`, id, start, end, status, settings.RequireAccessCode, settings.AllowPublicResults,
		settings.AutoPublishResults, settings.ResultPublishDelayMinutes, now)
	if err != nil {
		t.Fatalf("Failed to create test election: %v", err)
	}

	return id
}

// CreateTestCandidate inserts a candidate and returns its ID
func CreateTestCandidate(t *testing.T, conn *sql.DB, name, party string) string {
	t.Helper()

	id := uuid.NewString()
	_, err := conn.Exec(`
		INSERT INTO candidates (id, name, party, votes, created_at)
		VALUES ($1, $2, $3, 0, $4)
	`, id, name, party, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test candidate: %v", err)
	}

	return id
}

// TestVoter holds a provisioned voter with its cleartext credentials
type TestVoter struct {
	ID         string
	Email      string
	Password   string
	AccessCode string
}

// CreateTestVoter inserts an eligible voter and returns the credentials
// that would normally be handed out exactly once
func CreateTestVoter(t *testing.T, conn *sql.DB, email string) TestVoter {
	t.Helper()

	password, err := auth.GeneratePassword()
	if err != nil {
		t.Fatalf("Failed to generate password: %v", err)
	}
	accessCode, err := auth.GenerateAccessCode()
	if err != nil {
		t.Fatalf("Failed to generate access code: %v", err)
	}
	hash, salt, err := auth.HashPassword(password)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	id := uuid.NewString()
	_, err = conn.Exec(`
		INSERT INTO users (id, email, password_hash, password_salt, access_code, role,
		                   is_eligible, has_voted, name, created_at)
		VALUES ($1, $2, $3, $4, $5, 'voter', TRUE, FALSE, 'Test Voter', $6)
	`, id, email, hash, salt, accessCode, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test voter: %v", err)
	}

	return TestVoter{ID: id, Email: email, Password: password, AccessCode: accessCode}
}

// CreateTestAdmin inserts an admin user with an active session and returns
// the user ID and session token
func CreateTestAdmin(t *testing.T, conn *sql.DB, email string) (adminID, sessionToken string) {
	t.Helper()

	hash, salt, err := auth.HashPassword("admin-password")
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	adminID = uuid.NewString()
	_, err = conn.Exec(`
		INSERT INTO users (id, email, password_hash, password_salt, role,
		                   is_eligible, has_voted, name, created_at)
		VALUES ($1, $2, $3, $4, 'admin', FALSE, FALSE, 'Test Admin', $5)
	`, adminID, email, hash, salt, time.Now())
	if err != nil {
		t.Fatalf("Failed to create test admin: %v", err)
	}

	sessionToken, err = auth.GenerateSessionToken()
	if err != nil {
		t.Fatalf("Failed to generate session token: %v", err)
	}
	now := time.Now()
	_, err = conn.Exec(`
		INSERT INTO sessions (id, user_id, token, created_at, last_access_at, expires_at, active)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	`, uuid.NewString(), adminID, sessionToken, now, now, now.Add(24*time.Hour))
	if err != nil {
		t.Fatalf("Failed to create admin session: %v", err)
	}

	return adminID, sessionToken
}

// MakeRequest creates an HTTP test request
func MakeRequest(method, path string, body interface{}, headers map[string]string) *http.Request {
	var req *http.Request
	if body != nil {
		jsonBody, _ := json.Marshal(body)
		req = httptest.NewRequest(method, path, bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req
}

// AssertStatus checks that the response has the expected status code
func AssertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}

// AssertJSON decodes the response body into the provided struct
func AssertJSON(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode JSON response: %v", err)
	}
}
