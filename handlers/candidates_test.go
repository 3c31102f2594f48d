// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/votesecure/vote-server/models"
	"github.com/votesecure/vote-server/testutil"
)

func TestListCandidates(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewCandidateHandler(db)

	testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")
	testutil.CreateTestCandidate(t, db, "Bob Smith", "Unity Party")

	w := httptest.NewRecorder()
	handler.List(w, testutil.MakeRequest("GET", "/api/candidates", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var resp struct {
		Candidates []models.Candidate `json:"candidates"`
	}
	testutil.AssertJSON(t, w, &resp)
	if len(resp.Candidates) != 2 {
		t.Errorf("expected 2 candidates, got %d", len(resp.Candidates))
	}
}

func TestCreateCandidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	handler := NewCandidateHandler(db)
	headers := map[string]string{"X-Session-Token": token}

	// No session
	w := httptest.NewRecorder()
	handler.Create(w, testutil.MakeRequest("POST", "/api/admin/candidates", models.CreateCandidateRequest{
		Name: "Alice Johnson", Party: "Progress Party",
	}, nil))
	testutil.AssertStatus(t, w, http.StatusUnauthorized)

	// Valid create
	w = httptest.NewRecorder()
	handler.Create(w, testutil.MakeRequest("POST", "/api/admin/candidates", models.CreateCandidateRequest{
		Name:        "Alice Johnson",
		Party:       "Progress Party",
		Description: "Incumbent",
	}, headers))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var created models.Candidate
	testutil.AssertJSON(t, w, &created)
	if created.Votes != 0 {
		t.Errorf("new candidate should start at zero votes, got %d", created.Votes)
	}

	// Missing party gets rejected
	w = httptest.NewRecorder()
	handler.Create(w, testutil.MakeRequest("POST", "/api/admin/candidates", models.CreateCandidateRequest{
		Name: "No Party",
	}, headers))
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Missing name too
	w = httptest.NewRecorder()
	handler.Create(w, testutil.MakeRequest("POST", "/api/admin/candidates", models.CreateCandidateRequest{
		Party: "Progress Party",
	}, headers))
	testutil.AssertStatus(t, w, http.StatusBadRequest)
}

func TestCreateExtendedCandidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	handler := NewCandidateHandler(db)

	name := "Cara Diaz"
	party := "Reform Party"
	position := "Mayor"
	trajectory := "Two terms on the city council"
	w := httptest.NewRecorder()
	handler.CreateExtended(w, testutil.MakeRequest("POST", "/api/admin/candidates/extended",
		models.ExtendedCandidateRequest{
			Name:       &name,
			Party:      &party,
			Position:   &position,
			Trajectory: &trajectory,
		}, map[string]string{"X-Session-Token": token}))
	testutil.AssertStatus(t, w, http.StatusCreated)

	var created models.Candidate
	testutil.AssertJSON(t, w, &created)
	if created.Position != position || created.Trajectory != trajectory {
		t.Errorf("extended fields not stored: %+v", created)
	}
}

func TestUpdateCandidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	handler := NewCandidateHandler(db)
	headers := map[string]string{"X-Session-Token": token}

	id := testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")

	// Partial update touches only the provided fields
	newDescription := "Updated platform"
	w := httptest.NewRecorder()
	req := testutil.MakeRequest("PUT", "/api/admin/candidates/"+id,
		models.ExtendedCandidateRequest{Description: &newDescription}, headers)
	req.SetPathValue("id", id)
	handler.Update(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	var updated models.Candidate
	testutil.AssertJSON(t, w, &updated)
	if updated.Description != newDescription {
		t.Errorf("description not updated: %+v", updated)
	}
	if updated.Name != "Alice Johnson" || updated.Party != "Progress Party" {
		t.Errorf("untouched fields should survive: %+v", updated)
	}
	if updated.UpdatedAt == nil {
		t.Error("updatedAt should be stamped")
	}

	// Clearing the name is refused
	empty := ""
	w = httptest.NewRecorder()
	req = testutil.MakeRequest("PUT", "/api/admin/candidates/"+id,
		models.ExtendedCandidateRequest{Name: &empty}, headers)
	req.SetPathValue("id", id)
	handler.Update(w, req)
	testutil.AssertStatus(t, w, http.StatusBadRequest)

	// Unknown candidate
	w = httptest.NewRecorder()
	req = testutil.MakeRequest("PUT", "/api/admin/candidates/no-such-id",
		models.ExtendedCandidateRequest{Description: &newDescription}, headers)
	req.SetPathValue("id", "no-such-id")
	handler.Update(w, req)
	testutil.AssertStatus(t, w, http.StatusNotFound)
}

func TestDeleteCandidate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	_, token := testutil.CreateTestAdmin(t, db, "admin@example.com")
	handler := NewCandidateHandler(db)
	headers := map[string]string{"X-Session-Token": token}

	del := func(id string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := testutil.MakeRequest("DELETE", "/api/admin/candidates/"+id, nil, headers)
		req.SetPathValue("id", id)
		handler.Delete(w, req)
		return w
	}

	freshID := testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")
	testutil.AssertStatus(t, del(freshID), http.StatusOK)

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM candidates WHERE id = $1`, freshID).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Error("candidate should be gone")
	}

	// A candidate holding votes is protected
	votedID := testutil.CreateTestCandidate(t, db, "Bob Smith", "Unity Party")
	if _, err := db.Exec(`UPDATE candidates SET votes = 2 WHERE id = $1`, votedID); err != nil {
		t.Fatal(err)
	}
	testutil.AssertStatus(t, del(votedID), http.StatusBadRequest)

	testutil.AssertStatus(t, del("no-such-id"), http.StatusNotFound)
}
