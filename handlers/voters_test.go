// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/models"
	"github.com/votesecure/vote-server/testutil"
)

func TestCreateVoters(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	handler := NewUserHandler(db)
	headers := map[string]string{"X-Session-Token": token}

	w := httptest.NewRecorder()
	handler.CreateVoters(w, testutil.MakeRequest("POST", "/api/admin/voters", models.CreateVotersRequest{
		Voters: []models.VoterInput{
			{Email: "one@example.com", Name: "One", DocumentID: "D-001"},
			{Email: "two@example.com", Name: "Two", DocumentID: "D-002", Department: "Engineering"},
			{Email: "", Name: "No Email", DocumentID: "D-003"},
			{Email: "one@example.com", Name: "Dup", DocumentID: "D-004"},
		},
	}, headers))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var resp models.CreateVotersResponse
	testutil.AssertJSON(t, w, &resp)

	if len(resp.Results) != 4 {
		t.Fatalf("expected 4 row results, got %d", len(resp.Results))
	}
	if !resp.Results[0].Success || !resp.Results[1].Success {
		t.Error("valid rows should succeed")
	}
	if resp.Results[2].Success || resp.Results[3].Success {
		t.Error("invalid and duplicate rows should fail")
	}
	if len(resp.Credentials) != 2 {
		t.Fatalf("expected 2 credential sets, got %d", len(resp.Credentials))
	}

	// Returned credentials actually work, and only hashes are stored
	creds := resp.Credentials[0]
	if len(creds.Password) != 12 {
		t.Errorf("expected 12-char password, got %q", creds.Password)
	}
	if len(creds.AccessCode) != 6 {
		t.Errorf("expected 6-digit access code, got %q", creds.AccessCode)
	}

	user, err := FindUserByEmail(db, creds.Email)
	if err != nil || user == nil {
		t.Fatalf("provisioned voter missing: %v", err)
	}
	if !auth.VerifyPassword(creds.Password, user.PasswordHash, user.PasswordSalt) {
		t.Error("stored hash should verify the returned password")
	}
	if user.PasswordHash == creds.Password {
		t.Error("password must not be stored in cleartext")
	}
	if user.Role != models.RoleVoter || !user.IsEligible || user.HasVoted {
		t.Errorf("unexpected voter state: %+v", user)
	}
}

func TestCreateVotersRequiresAdmin(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewUserHandler(db)

	w := httptest.NewRecorder()
	handler.CreateVoters(w, testutil.MakeRequest("POST", "/api/admin/voters", models.CreateVotersRequest{
		Voters: []models.VoterInput{{Email: "x@example.com", Name: "X", DocumentID: "D"}},
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)
}

func TestBulkUpload(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	testutil.CreateTestVoter(t, db, "existing@example.com")
	handler := NewUserHandler(db)

	w := httptest.NewRecorder()
	handler.BulkUpload(w, testutil.MakeRequest("POST", "/api/admin/users/bulk-upload", map[string]any{
		"users": []models.VoterInput{
			{Email: "fresh@example.com", Name: "Fresh"},
			{Email: "existing@example.com", Name: "Existing"},
			{Name: "Rowless"},
		},
	}, map[string]string{"X-Session-Token": token}))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp models.BulkUploadResponse
	testutil.AssertJSON(t, w, &resp)

	if resp.Summary.Total != 3 || resp.Summary.Created != 1 ||
		resp.Summary.Duplicates != 1 || resp.Summary.Errors != 1 {
		t.Errorf("unexpected summary: %+v", resp.Summary)
	}
	if len(resp.Results.Created) != 1 || resp.Results.Created[0].Email != "fresh@example.com" {
		t.Errorf("unexpected created bucket: %+v", resp.Results.Created)
	}
	if len(resp.Results.Duplicates) != 1 || resp.Results.Duplicates[0].Row != 2 {
		t.Errorf("duplicate bucket should carry the row number: %+v", resp.Results.Duplicates)
	}

	// The upload is on the audit trail
	var count int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM audit_logs WHERE type = 'ADMIN_ACTION' AND message = 'bulk voter upload'
	`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Errorf("expected 1 bulk-upload audit entry, got %d", count)
	}
}

func TestRegenerateCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	voter := testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewUserHandler(db)

	// Voter holds a session that should die with the old credentials
	session, err := CreateSession(db, voter.ID, "127.0.0.1", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	req := testutil.MakeRequest("POST", "/api/admin/users/"+voter.ID+"/regenerate-credentials",
		nil, map[string]string{"X-Session-Token": token})
	req.SetPathValue("id", voter.ID)
	handler.RegenerateCredentials(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var creds models.VoterCredentials
	testutil.AssertJSON(t, w, &creds)
	if creds.Password == voter.Password {
		t.Error("regenerated password should differ from the old one")
	}

	user, err := FindUserByID(db, voter.ID)
	if err != nil || user == nil {
		t.Fatal(err)
	}
	if auth.VerifyPassword(voter.Password, user.PasswordHash, user.PasswordSalt) {
		t.Error("old password should no longer verify")
	}
	if !auth.VerifyPassword(creds.Password, user.PasswordHash, user.PasswordSalt) {
		t.Error("new password should verify")
	}
	if _, _, err := ValidateSession(db, session.Token); err == nil {
		t.Error("sessions should be ended when credentials are regenerated")
	}

	// Unknown user
	w = httptest.NewRecorder()
	req = testutil.MakeRequest("POST", "/api/admin/users/no-such-id/regenerate-credentials",
		nil, map[string]string{"X-Session-Token": token})
	req.SetPathValue("id", "no-such-id")
	handler.RegenerateCredentials(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestListUsersHidesCredentials(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	testutil.CreateTestVoter(t, db, "voter@example.com")
	handler := NewUserHandler(db)

	w := httptest.NewRecorder()
	handler.DetailedUsers(w, testutil.MakeRequest("GET", "/api/admin/users/detailed", nil,
		map[string]string{"X-Session-Token": token}))
	testutil.AssertStatus(t, w, http.StatusOK)

	body := w.Body.String()
	for _, forbidden := range []string{"password_hash", "passwordHash", "password_salt", "access_code", "accessCode"} {
		if strings.Contains(body, forbidden) {
			t.Errorf("detailed user listing must not expose %q", forbidden)
		}
	}
}
