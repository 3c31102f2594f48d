// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/votesecure/vote-server/models"
	"github.com/votesecure/vote-server/rateguard"
	"github.com/votesecure/vote-server/testutil"
)

func TestLoginSuccess(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	req := testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:    voter.Email,
		Password: voter.Password,
	}, nil)
	w := httptest.NewRecorder()
	handler.Login(w, req)

	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.LoginResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.SessionToken == "" {
		t.Error("expected a session token")
	}
	if resp.Role != models.RoleVoter {
		t.Errorf("expected role voter, got %q", resp.Role)
	}
	if resp.HasVoted {
		t.Error("fresh voter should not have voted")
	}

	// Session is usable and last_login_at was stamped
	user, _, err := ValidateSession(db, resp.SessionToken)
	if err != nil {
		t.Fatalf("session should validate: %v", err)
	}
	if user.ID != voter.ID {
		t.Errorf("session resolves to wrong user")
	}

	var lastLogin any
	if err := db.QueryRow(`SELECT last_login_at FROM users WHERE id = $1`, voter.ID).Scan(&lastLogin); err != nil {
		t.Fatalf("failed to read last_login_at: %v", err)
	}
	if lastLogin == nil {
		t.Error("last_login_at should be set after login")
	}

	// A LOGIN audit entry was appended
	var auditCount int
	if err := db.QueryRow(`SELECT COUNT(*) FROM audit_logs WHERE type = 'LOGIN' AND actor = $1`, voter.Email).Scan(&auditCount); err != nil {
		t.Fatalf("failed to count audit entries: %v", err)
	}
	if auditCount != 1 {
		t.Errorf("expected 1 LOGIN audit entry, got %d", auditCount)
	}
}

func TestLoginInvalidCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	tests := []struct {
		name string
		req  models.LoginRequest
		want int
	}{
		{"wrong password", models.LoginRequest{Email: voter.Email, Password: "WRONGPASSWORD"}, http.StatusUnauthorized},
		{"unknown email", models.LoginRequest{Email: "nobody@example.com", Password: voter.Password}, http.StatusUnauthorized},
		{"missing password", models.LoginRequest{Email: voter.Email}, http.StatusBadRequest},
		{"missing email", models.LoginRequest{Password: voter.Password}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			handler.Login(w, testutil.MakeRequest("POST", "/api/login", tt.req, nil))
			testutil.AssertStatus(t, w, tt.want)
		})
	}

	// Failed attempts leave SECURITY_EVENT entries with the reason
	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM audit_logs WHERE type = 'SECURITY_EVENT' AND metadata LIKE '%invalid_credentials%'
	`).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count audit entries: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 failed-login audit entries, got %d", count)
	}
}

func TestLoginEmailCaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "Voter@Example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	w := httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:    "voter@example.COM",
		Password: voter.Password,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestLoginAccessCodeRequired(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{
		RequireAccessCode:  true,
		AllowPublicResults: true,
	})
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	// Without the code
	w := httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:    voter.Email,
		Password: voter.Password,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// With the wrong code
	w = httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:      voter.Email,
		Password:   voter.Password,
		AccessCode: "000000",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// With the right code
	w = httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:      voter.Email,
		Password:   voter.Password,
		AccessCode: voter.AccessCode,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
}

func TestLoginSingleActiveSession(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	login := func() string {
		w := httptest.NewRecorder()
		handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
			Email:    voter.Email,
			Password: voter.Password,
		}, nil))
		testutil.AssertStatus(t, w, http.StatusOK)
		var resp models.LoginResponse
		testutil.AssertJSON(t, w, &resp)
		return resp.SessionToken
	}

	first := login()
	second := login()

	if _, _, err := ValidateSession(db, first); err == nil {
		t.Error("first session should be invalid after second login")
	}
	if _, _, err := ValidateSession(db, second); err != nil {
		t.Errorf("second session should be valid: %v", err)
	}
}

func TestSessionExpiryEnforced(t *testing.T) {
	db := testutil.SetupTestDB(t)
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")

	session, err := CreateSession(db, voter.ID, "127.0.0.1", time.Hour)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	// Backdate expiry
	_, err = db.Exec(`UPDATE sessions SET expires_at = $1 WHERE id = $2`,
		time.Now().Add(-time.Minute), session.ID)
	if err != nil {
		t.Fatalf("failed to backdate session: %v", err)
	}

	if _, _, err := ValidateSession(db, session.Token); err != ErrSessionExpired {
		t.Errorf("expected ErrSessionExpired, got %v", err)
	}

	// The session was deactivated on the spot
	var active bool
	if err := db.QueryRow(`SELECT active FROM sessions WHERE id = $1`, session.ID).Scan(&active); err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	if active {
		t.Error("expired session should be marked inactive")
	}
}

func TestLogout(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	session, err := CreateSession(db, voter.ID, "127.0.0.1", time.Hour)
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}

	w := httptest.NewRecorder()
	handler.Logout(w, testutil.MakeRequest("POST", "/api/logout", models.LogoutRequest{
		SessionToken: session.Token,
		Email:        voter.Email,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	if _, _, err := ValidateSession(db, session.Token); err == nil {
		t.Error("session should be invalid after logout")
	}

	var endedAt any
	if err := db.QueryRow(`SELECT ended_at FROM sessions WHERE id = $1`, session.ID).Scan(&endedAt); err != nil {
		t.Fatalf("failed to read session: %v", err)
	}
	if endedAt == nil {
		t.Error("ended_at should be stamped on logout")
	}
}

func TestLoginRateLimited(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(2, time.Minute, true))

	bad := models.LoginRequest{Email: voter.Email, Password: "WRONG"}
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.Login(w, testutil.MakeRequest("POST", "/api/login", bad, nil))
		testutil.AssertStatus(t, w, http.StatusUnauthorized)
	}

	w := httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", bad, nil))
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)

	// Even correct credentials are refused while the window lasts
	w = httptest.NewRecorder()
	handler.Login(w, testutil.MakeRequest("POST", "/api/login", models.LoginRequest{
		Email:    voter.Email,
		Password: voter.Password,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusTooManyRequests)

	var count int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM audit_logs WHERE type = 'SECURITY_EVENT' AND metadata LIKE '%rate_limited%'
	`).Scan(&count)
	if err != nil {
		t.Fatalf("failed to count audit entries: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 rate-limit audit entries, got %d", count)
	}
}

func TestStatusEndpoint(t *testing.T) {
	db := testutil.SetupTestDB(t)
	cfg := testutil.GetTestConfig()
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewAuthHandler(db, cfg, rateguard.New(5, time.Minute, false))

	w := httptest.NewRecorder()
	handler.Status(w, testutil.MakeRequest("POST", "/api/status", models.StatusRequest{
		Email:    voter.Email,
		Password: voter.Password,
	}, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.StatusResponse
	testutil.AssertJSON(t, w, &resp)
	if resp.HasVoted {
		t.Error("fresh voter should report hasVoted false")
	}

	w = httptest.NewRecorder()
	handler.Status(w, testutil.MakeRequest("POST", "/api/status", models.StatusRequest{
		Email:    voter.Email,
		Password: "WRONG",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}
