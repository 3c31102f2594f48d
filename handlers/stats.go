// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
)

type StatsHandler struct {
	db *sql.DB
}

func NewStatsHandler(db *sql.DB) *StatsHandler {
	return &StatsHandler{db: db}
}

func votingCounts(db *sql.DB) (eligible, voted int, err error) {
	err = db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'voter' AND is_eligible = TRUE`).Scan(&eligible)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count eligible voters: %w", err)
	}
	err = db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'voter' AND has_voted = TRUE`).Scan(&voted)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count voted users: %w", err)
	}
	return eligible, voted, nil
}

// Progress handles GET /api/voting-progress (public). Exposes only
// aggregate participation, nothing per voter.
func (h *StatsHandler) Progress(w http.ResponseWriter, r *http.Request) {
	eligible, voted, err := votingCounts(h.db)
	if err != nil {
		slog.Error("failed to compute voting progress", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	progress := models.VotingProgress{
		EligibleVoters: eligible,
		VotedUsers:     voted,
		Remaining:      eligible - voted,
		LastUpdated:    time.Now(),
	}
	if eligible > 0 {
		progress.ParticipationRate = round2(float64(voted) / float64(eligible) * 100)
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{"progress": progress})
}

// VotingStats handles GET /api/admin/voting-stats: participation totals,
// votes per candidate, and an hourly cast histogram for the last 24 hours.
func (h *StatsHandler) VotingStats(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	eligible, voted, err := votingCounts(h.db)
	if err != nil {
		slog.Error("failed to compute voting counts", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	var totalVotes int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM votes`).Scan(&totalVotes); err != nil {
		slog.Error("failed to count votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	type candidateCount struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Votes int    `json:"votes"`
	}
	byCandidate := []candidateCount{}
	rows, err := h.db.Query(`SELECT id, name, votes FROM candidates ORDER BY votes DESC, name`)
	if err != nil {
		slog.Error("failed to query candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	for rows.Next() {
		var c candidateCount
		if err := rows.Scan(&c.ID, &c.Name, &c.Votes); err != nil {
			rows.Close()
			slog.Error("failed to scan candidate count", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		byCandidate = append(byCandidate, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Error("failed to read candidate counts", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	type hourCount struct {
		Hour  string `json:"hour"`
		Votes int    `json:"votes"`
	}
	hourly := make([]hourCount, 0, 24)
	now := time.Now()
	for i := 23; i >= 0; i-- {
		hourStart := now.Truncate(time.Hour).Add(-time.Duration(i) * time.Hour)
		hourEnd := hourStart.Add(time.Hour)
		var n int
		err := h.db.QueryRow(`
			SELECT COUNT(*) FROM votes WHERE cast_at >= $1 AND cast_at < $2
		`, hourStart, hourEnd).Scan(&n)
		if err != nil {
			slog.Error("failed to count hourly votes", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		hourly = append(hourly, hourCount{Hour: hourStart.Format("2006-01-02T15:00"), Votes: n})
	}

	participation := 0.0
	if eligible > 0 {
		participation = round2(float64(voted) / float64(eligible) * 100)
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"totalVotes":        totalVotes,
		"eligibleVoters":    eligible,
		"votedUsers":        voted,
		"participationRate": participation,
		"votesByCandidate":  byCandidate,
		"votesByHour":       hourly,
	})
}
