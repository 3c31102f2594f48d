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

func TestComputeElectionResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	electionID := testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{AllowPublicResults: true})

	aliceID := testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")
	bobID := testutil.CreateTestCandidate(t, db, "Bob Smith", "Unity Party")
	caraID := testutil.CreateTestCandidate(t, db, "Cara Diaz", "Reform Party")
	for id, votes := range map[string]int{aliceID: 3, bobID: 1, caraID: 3} {
		if _, err := db.Exec(`UPDATE candidates SET votes = $1 WHERE id = $2`, votes, id); err != nil {
			t.Fatal(err)
		}
	}

	// 10 eligible voters, 7 voted
	for i := 0; i < 10; i++ {
		v := testutil.CreateTestVoter(t, db, string(rune('a'+i))+"@example.com")
		if i < 7 {
			if _, err := db.Exec(`UPDATE users SET has_voted = TRUE WHERE id = $1`, v.ID); err != nil {
				t.Fatal(err)
			}
		}
	}

	snapshot, err := ComputeElectionResults(db, electionID)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}

	if snapshot.Status != models.ResultPreliminary {
		t.Errorf("expected preliminary status, got %q", snapshot.Status)
	}
	if snapshot.Statistics.TotalVotes != 7 {
		t.Errorf("expected 7 total votes, got %d", snapshot.Statistics.TotalVotes)
	}
	if snapshot.Statistics.TotalEligibleVoters != 10 || snapshot.Statistics.TotalVotedUsers != 7 {
		t.Errorf("unexpected voter counts: %+v", snapshot.Statistics)
	}
	if snapshot.Statistics.ParticipationRate != 70.0 {
		t.Errorf("expected participation 70.00, got %v", snapshot.Statistics.ParticipationRate)
	}
	if snapshot.Statistics.Abstentions != 3 {
		t.Errorf("expected 3 abstentions, got %d", snapshot.Statistics.Abstentions)
	}

	// Alice and Cara tie at 3; the tie breaks alphabetically
	if len(snapshot.Candidates) != 3 {
		t.Fatalf("expected 3 ranked rows, got %d", len(snapshot.Candidates))
	}
	if snapshot.Candidates[0].Name != "Alice Johnson" || snapshot.Candidates[0].Rank != 1 {
		t.Errorf("expected Alice ranked first, got %+v", snapshot.Candidates[0])
	}
	if snapshot.Candidates[1].Name != "Cara Diaz" || snapshot.Candidates[1].Rank != 2 {
		t.Errorf("expected Cara ranked second, got %+v", snapshot.Candidates[1])
	}
	if snapshot.Candidates[2].Name != "Bob Smith" || snapshot.Candidates[2].Rank != 3 {
		t.Errorf("expected Bob ranked third, got %+v", snapshot.Candidates[2])
	}

	// 3/7 = 42.857... rounds to 42.86
	if snapshot.Candidates[0].Percentage != 42.86 {
		t.Errorf("expected percentage 42.86, got %v", snapshot.Candidates[0].Percentage)
	}
	if snapshot.Candidates[2].Percentage != 14.29 {
		t.Errorf("expected percentage 14.29, got %v", snapshot.Candidates[2].Percentage)
	}

	if len(snapshot.IntegrityHash) != 64 {
		t.Errorf("expected sha256 hex integrity hash, got %q", snapshot.IntegrityHash)
	}

	// Same tallies, same fingerprint; changed tallies, changed fingerprint
	again, err := ComputeElectionResults(db, electionID)
	if err != nil {
		t.Fatal(err)
	}
	if again.IntegrityHash != snapshot.IntegrityHash {
		t.Error("integrity hash should be deterministic for identical tallies")
	}
	if _, err := db.Exec(`UPDATE candidates SET votes = 4 WHERE id = $1`, bobID); err != nil {
		t.Fatal(err)
	}
	changed, err := ComputeElectionResults(db, electionID)
	if err != nil {
		t.Fatal(err)
	}
	if changed.IntegrityHash == snapshot.IntegrityHash {
		t.Error("integrity hash should change when tallies change")
	}
}

func TestComputeResultsEmptyElection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	electionID := testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{AllowPublicResults: true})

	snapshot, err := ComputeElectionResults(db, electionID)
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if snapshot.Statistics.TotalVotes != 0 || snapshot.Statistics.ParticipationRate != 0 {
		t.Errorf("empty election should tally to zero: %+v", snapshot.Statistics)
	}

	if _, err := ComputeElectionResults(db, "no-such-id"); err != ErrElectionNotFound {
		t.Errorf("expected ErrElectionNotFound, got %v", err)
	}
}

func TestPublishElectionResults(t *testing.T) {
	db := testutil.SetupTestDB(t)
	electionID := testutil.CreateTestElection(t, db, models.StatusClosed, models.ElectionSettings{AllowPublicResults: true})
	aliceID := testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")
	if _, err := db.Exec(`UPDATE candidates SET votes = 5 WHERE id = $1`, aliceID); err != nil {
		t.Fatal(err)
	}

	snapshot, err := PublishElectionResults(db, electionID, "admin@example.com", "127.0.0.1")
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}
	if snapshot.Status != models.ResultFinal {
		t.Errorf("published snapshot should be final, got %q", snapshot.Status)
	}
	if snapshot.PublishedAt == nil || snapshot.PublishedBy != "admin@example.com" {
		t.Errorf("missing publication metadata: %+v", snapshot)
	}

	// Election flipped to published with a timestamp
	var status string
	var publishedAt any
	if err := db.QueryRow(`SELECT status, results_published_at FROM elections WHERE id = $1`, electionID).
		Scan(&status, &publishedAt); err != nil {
		t.Fatal(err)
	}
	if status != models.StatusPublished || publishedAt == nil {
		t.Errorf("election should be published with timestamp, got status=%q", status)
	}

	// Snapshot row persisted with the fingerprint
	stored, err := scanSnapshot(db.QueryRow(`SELECT ` + snapshotColumns + ` FROM published_results`))
	if err != nil {
		t.Fatal(err)
	}
	if stored == nil || stored.IntegrityHash != snapshot.IntegrityHash {
		t.Error("stored snapshot should carry the computed integrity hash")
	}

	// ADMIN_ACTION audit entry exists
	var auditCount int
	if err := db.QueryRow(`
		SELECT COUNT(*) FROM audit_logs WHERE type = 'ADMIN_ACTION' AND message = 'results published'
	`).Scan(&auditCount); err != nil {
		t.Fatal(err)
	}
	if auditCount != 1 {
		t.Errorf("expected 1 publish audit entry, got %d", auditCount)
	}

	// Re-publishing appends a second snapshot rather than rewriting
	if _, err := PublishElectionResults(db, electionID, "admin@example.com", "127.0.0.1"); err != nil {
		t.Fatalf("re-publish failed: %v", err)
	}
	var snapshots int
	if err := db.QueryRow(`SELECT COUNT(*) FROM published_results WHERE election_id = $1`, electionID).Scan(&snapshots); err != nil {
		t.Fatal(err)
	}
	if snapshots != 2 {
		t.Errorf("expected 2 appended snapshots, got %d", snapshots)
	}
}

func TestPublishRequiresClosedElection(t *testing.T) {
	db := testutil.SetupTestDB(t)
	activeID := testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{AllowPublicResults: true})

	if _, err := PublishElectionResults(db, activeID, "admin@example.com", ""); err != ErrElectionNotClosed {
		t.Errorf("expected ErrElectionNotClosed, got %v", err)
	}
	if _, err := PublishElectionResults(db, "no-such-id", "admin@example.com", ""); err != ErrElectionNotFound {
		t.Errorf("expected ErrElectionNotFound, got %v", err)
	}
}

func TestResultsEndpoints(t *testing.T) {
	db := testutil.SetupTestDB(t)
	handler := NewResultsHandler(db)

	// Nothing running, nothing published
	w := httptest.NewRecorder()
	handler.Current(w, testutil.MakeRequest("GET", "/api/results", nil, nil))
	testutil.AssertStatus(t, w, http.StatusNotFound)

	electionID := testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{AllowPublicResults: true})
	testutil.CreateTestCandidate(t, db, "Alice Johnson", "Progress Party")

	w = httptest.NewRecorder()
	handler.Current(w, testutil.MakeRequest("GET", "/api/results", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)

	var current struct {
		Candidates []models.CandidateResult `json:"candidates"`
		TotalVotes int                      `json:"totalVotes"`
		Results    models.ResultSnapshot    `json:"results"`
	}
	testutil.AssertJSON(t, w, &current)
	if current.Results.Status != models.ResultPreliminary {
		t.Errorf("live results should be preliminary, got %q", current.Results.Status)
	}
	if len(current.Candidates) != 1 {
		t.Errorf("expected the ranked tallies at the top level, got %d entries", len(current.Candidates))
	}
	if current.TotalVotes != 0 {
		t.Errorf("expected totalVotes 0 at the top level, got %d", current.TotalVotes)
	}

	// Preliminary by id
	w = httptest.NewRecorder()
	req := testutil.MakeRequest("GET", "/api/results/preliminary/"+electionID, nil, nil)
	req.SetPathValue("electionId", electionID)
	handler.Preliminary(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	// Published list is empty until a publication happens
	w = httptest.NewRecorder()
	handler.PublishedList(w, testutil.MakeRequest("GET", "/api/results/published", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	var list []models.ResultSnapshot
	testutil.AssertJSON(t, w, &list)
	if len(list) != 0 {
		t.Errorf("expected no published snapshots, got %d", len(list))
	}

	// Close and publish, then the published endpoints serve the snapshot
	if _, err := db.Exec(`UPDATE elections SET status = 'closed' WHERE id = $1`, electionID); err != nil {
		t.Fatal(err)
	}
	if _, err := PublishElectionResults(db, electionID, "admin@example.com", ""); err != nil {
		t.Fatal(err)
	}

	w = httptest.NewRecorder()
	handler.PublishedList(w, testutil.MakeRequest("GET", "/api/results/published", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &list)
	if len(list) != 1 {
		t.Fatalf("expected 1 published snapshot, got %d", len(list))
	}

	w = httptest.NewRecorder()
	req = testutil.MakeRequest("GET", "/api/results/published/"+electionID, nil, nil)
	req.SetPathValue("electionId", electionID)
	handler.PublishedByElection(w, req)
	testutil.AssertStatus(t, w, http.StatusOK)

	// With nothing active, /api/results falls back to the final snapshot
	// in the same envelope
	w = httptest.NewRecorder()
	handler.Current(w, testutil.MakeRequest("GET", "/api/results", nil, nil))
	testutil.AssertStatus(t, w, http.StatusOK)
	testutil.AssertJSON(t, w, &current)
	if current.Results.Status != models.ResultFinal {
		t.Errorf("fallback should serve the final snapshot, got %q", current.Results.Status)
	}
	if len(current.Candidates) != 1 {
		t.Errorf("expected the ranked tallies at the top level, got %d entries", len(current.Candidates))
	}
}

func TestResultsNotPublic(t *testing.T) {
	db := testutil.SetupTestDB(t)
	testutil.CreateTestElection(t, db, models.StatusActive, models.ElectionSettings{AllowPublicResults: false})
	handler := NewResultsHandler(db)

	w := httptest.NewRecorder()
	handler.Current(w, testutil.MakeRequest("GET", "/api/results", nil, nil))
	testutil.AssertStatus(t, w, http.StatusForbidden)
}
