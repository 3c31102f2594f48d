// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/auth"
	"github.com/votesecure/vote-server/cliparse"
	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
	"github.com/votesecure/vote-server/rateguard"
)

type VoteHandler struct {
	db    *sql.DB
	cfg   cliparse.Config
	guard *rateguard.Guard
}

func NewVoteHandler(db *sql.DB, cfg cliparse.Config, guard *rateguard.Guard) *VoteHandler {
	return &VoteHandler{db: db, cfg: cfg, guard: guard}
}

// CastVote handles POST /api/vote.
//
// The ballot record carries no voter identity. The only link between voter
// and choice is the vote hash, which is one-way. Everything that must hold
// together — the has_voted flip, the ballot insert, the counter increment
// and the audit entry — runs in a single transaction, and the flip is
// guarded with "AND has_voted = FALSE" so two concurrent casts cannot both
// commit.
func (h *VoteHandler) CastVote(w http.ResponseWriter, r *http.Request) {
	var req models.CastVoteRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Email == "" || req.Password == "" || req.CandidateID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "email, password and candidateId are required")
		return
	}

	ip := middleware.GetClientIP(r)
	key := guardKey(req.Email, ip)
	if !h.guard.Allow("vote:" + key) {
		auditAsync(h.db, models.AuditSecurityEvent, req.Email, "vote rate limit exceeded",
			map[string]any{"reason": "rate_limited"}, ip)
		middleware.ErrorResponse(w, http.StatusTooManyRequests, "Too many vote attempts, try again later")
		return
	}

	// Authenticate
	user, err := FindUserByEmail(h.db, req.Email)
	if err != nil {
		slog.Error("failed to look up voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if user == nil || !checkCredentials(h.db, user, req.Password, req.AccessCode) {
		auditAsync(h.db, models.AuditSecurityEvent, req.Email, "failed vote authentication",
			map[string]any{"reason": "invalid_credentials"}, ip)
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	// A supplied session token must belong to the credentialed voter
	if req.SessionToken != "" {
		sessionUser, _, err := ValidateSession(h.db, req.SessionToken)
		if err != nil || sessionUser.ID != user.ID {
			auditAsync(h.db, models.AuditSecurityEvent, user.Email, "vote attempt with invalid session",
				map[string]any{"reason": "session_mismatch"}, ip)
			middleware.ErrorResponse(w, http.StatusUnauthorized, "Invalid session")
			return
		}
	}

	// Only eligible voters cast ballots; admins do not vote
	if user.Role != models.RoleVoter || !user.IsEligible {
		auditAsync(h.db, models.AuditSecurityEvent, user.Email, "ineligible vote attempt",
			map[string]any{"reason": "not_eligible"}, ip)
		middleware.ErrorResponse(w, http.StatusForbidden, "Not eligible to vote")
		return
	}

	// An election must be active and inside its voting window
	election, err := getActiveElection(h.db)
	if err != nil {
		slog.Error("failed to load active election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	now := time.Now()
	if election == nil || now.Before(election.StartDate) || now.After(election.EndDate) {
		middleware.ErrorResponse(w, http.StatusConflict, "Voting is not currently open")
		return
	}

	// Candidate must exist
	var candidateExists bool
	err = h.db.QueryRow(`SELECT EXISTS(SELECT 1 FROM candidates WHERE id = $1)`, req.CandidateID).Scan(&candidateExists)
	if err != nil {
		slog.Error("failed to check candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if !candidateExists {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	// The guard clause makes the double-vote check and the flip atomic
	res, err := tx.Exec(`
		UPDATE users SET has_voted = TRUE, voted_at = $1, updated_at = $2
		WHERE id = $3 AND has_voted = FALSE
	`, now, now, user.ID)
	if err != nil {
		slog.Error("failed to mark voter", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}
	affected, err := res.RowsAffected()
	if err != nil {
		slog.Error("failed to read affected rows", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}
	if affected == 0 {
		// Release the connection before auditing; sqlite runs single-conn
		tx.Rollback()
		auditAsync(h.db, models.AuditSecurityEvent, user.Email, "duplicate vote attempt",
			map[string]any{"reason": "already_voted"}, ip)
		middleware.ErrorResponse(w, http.StatusConflict, "Vote already cast")
		return
	}

	vote := models.Vote{
		ID:          uuid.NewString(),
		CandidateID: req.CandidateID,
		CastAt:      now,
		VoteHash:    auth.VoteHash(user.ID, req.CandidateID, now.UnixMilli()),
		IPHash:      auth.HashIP(ip),
	}
	_, err = tx.Exec(`
		INSERT INTO votes (id, candidate_id, cast_at, vote_hash, ip_hash)
		VALUES ($1, $2, $3, $4, $5)
	`, vote.ID, vote.CandidateID, vote.CastAt, vote.VoteHash, vote.IPHash)
	if err != nil {
		slog.Error("failed to insert vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	_, err = tx.Exec(`UPDATE candidates SET votes = votes + 1 WHERE id = $1`, req.CandidateID)
	if err != nil {
		slog.Error("failed to increment candidate tally", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	// The trail records that this voter voted, never for whom
	err = LogAuditEvent(tx, models.AuditVote, user.Email, "vote cast",
		map[string]any{"voteId": vote.ID, "electionId": election.ID}, ip)
	if err != nil {
		slog.Error("failed to append vote audit entry", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit vote", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to record vote")
		return
	}

	slog.Info("vote cast", "vote_id", vote.ID, "election_id", election.ID)
	middleware.JSONResponse(w, http.StatusOK, models.CastVoteResponse{
		Success:   true,
		VoteID:    vote.ID,
		Timestamp: vote.CastAt,
		Message:   "Vote recorded",
	})
}

// ListVotes handles GET /api/admin/votes. Returns the anonymized ledger;
// there is no voter column to expose.
func (h *VoteHandler) ListVotes(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	rows, err := h.db.Query(`
		SELECT id, candidate_id, cast_at, vote_hash FROM votes ORDER BY cast_at DESC
	`)
	if err != nil {
		slog.Error("failed to query votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	votes := []models.Vote{}
	for rows.Next() {
		var v models.Vote
		if err := rows.Scan(&v.ID, &v.CandidateID, &v.CastAt, &v.VoteHash); err != nil {
			slog.Error("failed to scan vote", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"votes": votes,
		"count": len(votes),
	})
}
