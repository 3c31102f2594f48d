// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"

	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
)

type ResultsHandler struct {
	db *sql.DB
}

func NewResultsHandler(db *sql.DB) *ResultsHandler {
	return &ResultsHandler{db: db}
}

// resultsEnvelope is the public results shape: the ranked tallies and the
// total at the top level, with the full snapshot alongside.
func resultsEnvelope(s *models.ResultSnapshot) map[string]any {
	return map[string]any{
		"candidates": s.Candidates,
		"totalVotes": s.Statistics.TotalVotes,
		"results":    s,
	}
}

// Current handles GET /api/results: a live preliminary tally of the active
// election. Falls back to the latest published snapshot when nothing is
// running.
func (h *ResultsHandler) Current(w http.ResponseWriter, r *http.Request) {
	election, err := getActiveElection(h.db)
	if err != nil {
		slog.Error("failed to load active election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	if election == nil {
		snapshot, err := scanSnapshot(h.db.QueryRow(`
			SELECT ` + snapshotColumns + ` FROM published_results
			WHERE status = 'final' ORDER BY published_at DESC LIMIT 1
		`))
		if err != nil {
			slog.Error("failed to load latest snapshot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		if snapshot == nil {
			middleware.ErrorResponse(w, http.StatusNotFound, "No results available")
			return
		}
		middleware.JSONResponse(w, http.StatusOK, resultsEnvelope(snapshot))
		return
	}

	if !election.Settings.AllowPublicResults {
		middleware.ErrorResponse(w, http.StatusForbidden, "Results are not public for this election")
		return
	}

	snapshot, err := ComputeElectionResults(h.db, election.ID)
	if err != nil {
		slog.Error("failed to compute results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, resultsEnvelope(snapshot))
}

// Preliminary handles GET /api/results/preliminary/{electionId}
func (h *ResultsHandler) Preliminary(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("electionId")
	snapshot, err := ComputeElectionResults(h.db, electionID)
	if errors.Is(err, ErrElectionNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if err != nil {
		slog.Error("failed to compute results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to compute results")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, snapshot)
}

// PublishedList handles GET /api/results/published
func (h *ResultsHandler) PublishedList(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`
		SELECT ` + snapshotColumns + ` FROM published_results
		WHERE status = 'final' ORDER BY published_at DESC
	`)
	if err != nil {
		slog.Error("failed to query snapshots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	snapshots := []models.ResultSnapshot{}
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			slog.Error("failed to scan snapshot", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		snapshots = append(snapshots, *s)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read snapshots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snapshots)
}

// PublishedByElection handles GET /api/results/published/{electionId},
// returning the most recent final snapshot for the election
func (h *ResultsHandler) PublishedByElection(w http.ResponseWriter, r *http.Request) {
	electionID := r.PathValue("electionId")
	snapshot, err := scanSnapshot(h.db.QueryRow(`
		SELECT `+snapshotColumns+` FROM published_results
		WHERE election_id = $1 AND status = 'final'
		ORDER BY published_at DESC LIMIT 1
	`, electionID))
	if err != nil {
		slog.Error("failed to load snapshot", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if snapshot == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No published results for this election")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, snapshot)
}

// Publish handles POST /api/admin/elections/{electionId}/publish
func (h *ResultsHandler) Publish(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	electionID := r.PathValue("electionId")
	snapshot, err := PublishElectionResults(h.db, electionID, admin.Email, middleware.GetClientIP(r))
	if errors.Is(err, ErrElectionNotFound) {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if errors.Is(err, ErrElectionNotClosed) {
		middleware.ErrorResponse(w, http.StatusConflict, "Election must be closed before publishing")
		return
	}
	if err != nil {
		slog.Error("failed to publish results", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to publish results")
		return
	}

	slog.Info("results published", "election_id", electionID, "snapshot_id", snapshot.ID)
	middleware.JSONResponse(w, http.StatusOK, snapshot)
}
