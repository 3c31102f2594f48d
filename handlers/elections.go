// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
)

type ElectionHandler struct {
	db *sql.DB
}

func NewElectionHandler(db *sql.DB) *ElectionHandler {
	return &ElectionHandler{db: db}
}

const electionColumns = `id, name, description, start_date, end_date, status,
	require_access_code, allow_public_results, auto_publish_results,
	result_publish_delay_minutes, results_published_at, created_at, created_by,
	updated_at`

func scanElection(row interface{ Scan(...any) error }) (*models.Election, error) {
	var e models.Election
	var publishedAt, updatedAt sql.NullTime
	err := row.Scan(&e.ID, &e.Name, &e.Description, &e.StartDate, &e.EndDate,
		&e.Status, &e.Settings.RequireAccessCode, &e.Settings.AllowPublicResults,
		&e.Settings.AutoPublishResults, &e.Settings.ResultPublishDelayMinutes,
		&publishedAt, &e.CreatedAt, &e.CreatedBy, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan election: %w", err)
	}
	if publishedAt.Valid {
		e.ResultsPublishedAt = &publishedAt.Time
	}
	if updatedAt.Valid {
		e.UpdatedAt = &updatedAt.Time
	}
	return &e, nil
}

// getActiveElection returns nil when no election is active
func getActiveElection(db *sql.DB) (*models.Election, error) {
	row := db.QueryRow(`SELECT ` + electionColumns + ` FROM elections WHERE status = 'active' ORDER BY created_at DESC LIMIT 1`)
	return scanElection(row)
}

func getElectionByID(db *sql.DB, id string) (*models.Election, error) {
	row := db.QueryRow(`SELECT `+electionColumns+` FROM elections WHERE id = $1`, id)
	return scanElection(row)
}

// List handles GET /api/elections
func (h *ElectionHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`SELECT ` + electionColumns + ` FROM elections ORDER BY created_at DESC`)
	if err != nil {
		slog.Error("failed to query elections", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	elections := []models.Election{}
	for rows.Next() {
		e, err := scanElection(rows)
		if err != nil {
			slog.Error("failed to scan election", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		elections = append(elections, *e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read elections", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, elections)
}

// Active handles GET /api/elections/active
func (h *ElectionHandler) Active(w http.ResponseWriter, r *http.Request) {
	election, err := getActiveElection(h.db)
	if err != nil {
		slog.Error("failed to load active election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if election == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "No active election")
		return
	}
	middleware.JSONResponse(w, http.StatusOK, election)
}

// Create handles POST /api/admin/elections. If ballots from a previous
// season exist, the request must carry "confirmReset": true; the reset
// (candidate counters, ledger, voter flags) and the insert commit together
// or not at all.
func (h *ElectionHandler) Create(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	var req models.CreateElectionRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		middleware.ErrorResponse(w, http.StatusBadRequest, "startDate and endDate are required")
		return
	}
	if !req.EndDate.After(req.StartDate) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "endDate must be after startDate")
		return
	}

	// An election may open immediately; anything past active goes through
	// the lifecycle endpoints
	initialStatus := models.StatusDraft
	switch req.Status {
	case "", models.StatusDraft:
	case models.StatusActive:
		initialStatus = models.StatusActive
	default:
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be draft or active")
		return
	}

	settings := models.ElectionSettings{
		AllowPublicResults: true,
		AutoPublishResults: true,
	}
	if req.Settings != nil {
		settings = *req.Settings
	}

	var existingVotes int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM votes`).Scan(&existingVotes); err != nil {
		slog.Error("failed to count votes", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if existingVotes > 0 && !req.ConfirmReset {
		middleware.ErrorResponse(w, http.StatusBadRequest,
			"Ballots from a previous election exist; set confirmReset to true to clear them")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	resetPerformed := false
	if req.ConfirmReset {
		for _, stmt := range []string{
			`DELETE FROM votes`,
			`UPDATE candidates SET votes = 0`,
			`UPDATE users SET has_voted = FALSE, voted_at = NULL WHERE role = 'voter'`,
		} {
			if _, err := tx.Exec(stmt); err != nil {
				slog.Error("failed to reset season", "error", err)
				middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to reset previous election data")
				return
			}
		}
		resetPerformed = true
	}

	now := time.Now()
	if initialStatus == models.StatusActive {
		// Only one election runs at a time
		if _, err := tx.Exec(`
			UPDATE elections SET status = 'closed', updated_at = $1 WHERE status = 'active'
		`, now); err != nil {
			slog.Error("failed to close running elections", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
			return
		}
	}

	election := models.Election{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Description: req.Description,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
		Status:      initialStatus,
		Settings:    settings,
		CreatedAt:   now,
		CreatedBy:   admin.Email,
	}
	_, err = tx.Exec(`
		INSERT INTO elections (id, name, description, start_date, end_date, status,
		                       require_access_code, allow_public_results, auto_publish_results,
		                       result_publish_delay_minutes, created_at, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, election.ID, election.Name, election.Description, election.StartDate,
		election.EndDate, election.Status, settings.RequireAccessCode,
		settings.AllowPublicResults, settings.AutoPublishResults,
		settings.ResultPublishDelayMinutes, election.CreatedAt, election.CreatedBy)
	if err != nil {
		slog.Error("failed to insert election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	err = LogAuditEvent(tx, models.AuditAdminAction, admin.Email, "election created",
		map[string]any{"electionId": election.ID, "name": election.Name, "reset": resetPerformed},
		middleware.GetClientIP(r))
	if err != nil {
		slog.Error("failed to append election audit entry", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create election")
		return
	}

	slog.Info("election created", "election_id", election.ID, "reset", resetPerformed)
	middleware.JSONResponse(w, http.StatusCreated, election)
}

// statusRank orders the lifecycle. Transitions only move forward.
var statusRank = map[string]int{
	models.StatusDraft:     0,
	models.StatusActive:    1,
	models.StatusClosed:    2,
	models.StatusPublished: 3,
}

// UpdateStatus handles PUT /api/admin/elections/{electionId}/status.
// Publishing is not a plain status write; it goes through the publish
// endpoint so a snapshot always exists for a published election.
func (h *ElectionHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	electionID := r.PathValue("electionId")
	var req models.UpdateElectionStatusRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	targetRank, ok := statusRank[req.Status]
	if !ok {
		middleware.ErrorResponse(w, http.StatusBadRequest, "status must be draft, active, closed or published")
		return
	}
	if req.Status == models.StatusPublished {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Use the publish endpoint to publish results")
		return
	}

	election, err := getElectionByID(h.db, electionID)
	if err != nil {
		slog.Error("failed to look up election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if election == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if targetRank <= statusRank[election.Status] {
		middleware.ErrorResponse(w, http.StatusConflict,
			fmt.Sprintf("Cannot move election from %s to %s", election.Status, req.Status))
		return
	}

	// A single election is active at a time: activating one closes any other
	now := time.Now()
	if req.Status == models.StatusActive {
		_, err = h.db.Exec(`
			UPDATE elections SET status = 'closed', updated_at = $1
			WHERE status = 'active' AND id <> $2
		`, now, electionID)
		if err != nil {
			slog.Error("failed to close other active elections", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update election")
			return
		}
	}

	_, err = h.db.Exec(`UPDATE elections SET status = $1, updated_at = $2 WHERE id = $3`,
		req.Status, now, electionID)
	if err != nil {
		slog.Error("failed to update election status", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update election")
		return
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "election status changed",
		map[string]any{"electionId": electionID, "from": election.Status, "to": req.Status},
		middleware.GetClientIP(r))

	election.Status = req.Status
	election.UpdatedAt = &now
	slog.Info("election status changed", "election_id", electionID, "status", req.Status)
	middleware.JSONResponse(w, http.StatusOK, election)
}

// Delete handles DELETE /api/admin/elections/{electionId}. Only finished
// elections can be removed, and their snapshots go with them.
func (h *ElectionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	electionID := r.PathValue("electionId")
	election, err := getElectionByID(h.db, electionID)
	if err != nil {
		slog.Error("failed to look up election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if election == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Election not found")
		return
	}
	if election.Status != models.StatusClosed && election.Status != models.StatusPublished {
		middleware.ErrorResponse(w, http.StatusConflict, "Only closed or published elections can be deleted")
		return
	}

	tx, err := h.db.Begin()
	if err != nil {
		slog.Error("failed to begin transaction", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM published_results WHERE election_id = $1`, electionID); err != nil {
		slog.Error("failed to delete result snapshots", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete election")
		return
	}
	if _, err := tx.Exec(`DELETE FROM elections WHERE id = $1`, electionID); err != nil {
		slog.Error("failed to delete election", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete election")
		return
	}

	err = LogAuditEvent(tx, models.AuditAdminAction, admin.Email, "election deleted",
		map[string]any{"electionId": electionID, "name": election.Name},
		middleware.GetClientIP(r))
	if err != nil {
		slog.Error("failed to append deletion audit entry", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete election")
		return
	}

	if err := tx.Commit(); err != nil {
		slog.Error("failed to commit deletion", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete election")
		return
	}

	slog.Info("election deleted", "election_id", electionID)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"success": true})
}
