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

type CandidateHandler struct {
	db *sql.DB
}

func NewCandidateHandler(db *sql.DB) *CandidateHandler {
	return &CandidateHandler{db: db}
}

const candidateColumns = `id, name, party, description, photo, position,
	trajectory, profile, projects, votes, created_at, updated_at`

func scanCandidate(row interface{ Scan(...any) error }) (*models.Candidate, error) {
	var c models.Candidate
	var updatedAt sql.NullTime
	err := row.Scan(&c.ID, &c.Name, &c.Party, &c.Description, &c.Photo,
		&c.Position, &c.Trajectory, &c.Profile, &c.Projects, &c.Votes,
		&c.CreatedAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan candidate: %w", err)
	}
	if updatedAt.Valid {
		c.UpdatedAt = &updatedAt.Time
	}
	return &c, nil
}

// List handles GET /api/candidates (public)
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	rows, err := h.db.Query(`SELECT ` + candidateColumns + ` FROM candidates ORDER BY created_at`)
	if err != nil {
		slog.Error("failed to query candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			slog.Error("failed to scan candidate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		candidates = append(candidates, *c)
	}
	if err := rows.Err(); err != nil {
		slog.Error("failed to read candidates", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{"candidates": candidates})
}

func (h *CandidateHandler) insertCandidate(c *models.Candidate) error {
	_, err := h.db.Exec(`
		INSERT INTO candidates (id, name, party, description, photo, position,
		                        trajectory, profile, projects, votes, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, c.ID, c.Name, c.Party, c.Description, c.Photo, c.Position,
		c.Trajectory, c.Profile, c.Projects, 0, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert candidate: %w", err)
	}
	return nil
}

// Create handles POST /api/admin/candidates
func (h *CandidateHandler) Create(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	var req models.CreateCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Party == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "party is required")
		return
	}

	candidate := models.Candidate{
		ID:          uuid.NewString(),
		Name:        req.Name,
		Party:       req.Party,
		Description: req.Description,
		Photo:       req.Photo,
		CreatedAt:   time.Now(),
	}
	if err := h.insertCandidate(&candidate); err != nil {
		slog.Error("failed to create candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "candidate created",
		map[string]any{"candidateId": candidate.ID, "name": candidate.Name},
		middleware.GetClientIP(r))

	slog.Info("candidate created", "candidate_id", candidate.ID)
	middleware.JSONResponse(w, http.StatusCreated, candidate)
}

// CreateExtended handles POST /api/admin/candidates/extended with the full
// profile fields used by the candidate detail page
func (h *CandidateHandler) CreateExtended(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	var req models.ExtendedCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == nil || *req.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Party == nil || *req.Party == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "party is required")
		return
	}

	str := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	candidate := models.Candidate{
		ID:          uuid.NewString(),
		Name:        *req.Name,
		Party:       *req.Party,
		Description: str(req.Description),
		Photo:       str(req.Photo),
		Position:    str(req.Position),
		Trajectory:  str(req.Trajectory),
		Profile:     str(req.Profile),
		Projects:    str(req.Projects),
		CreatedAt:   time.Now(),
	}
	if err := h.insertCandidate(&candidate); err != nil {
		slog.Error("failed to create candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to create candidate")
		return
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "candidate created",
		map[string]any{"candidateId": candidate.ID, "name": candidate.Name},
		middleware.GetClientIP(r))

	middleware.JSONResponse(w, http.StatusCreated, candidate)
}

// Update handles PUT /api/admin/candidates/{id}
func (h *CandidateHandler) Update(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// UpdateExtended handles PUT /api/admin/candidates/extended/{id}
func (h *CandidateHandler) UpdateExtended(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

// update applies the fields present in the request body and leaves the rest
// untouched. The extended form also accepts the profile fields.
func (h *CandidateHandler) update(w http.ResponseWriter, r *http.Request, extended bool) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	id := r.PathValue("id")
	candidate, err := scanCandidate(h.db.QueryRow(
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err != nil {
		slog.Error("failed to look up candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if candidate == nil {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}

	var req models.ExtendedCandidateRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	apply := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	apply(&candidate.Name, req.Name)
	apply(&candidate.Party, req.Party)
	apply(&candidate.Description, req.Description)
	apply(&candidate.Photo, req.Photo)
	if extended {
		apply(&candidate.Position, req.Position)
		apply(&candidate.Trajectory, req.Trajectory)
		apply(&candidate.Profile, req.Profile)
		apply(&candidate.Projects, req.Projects)
	}
	if candidate.Name == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "name cannot be empty")
		return
	}
	if candidate.Party == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "party cannot be empty")
		return
	}

	now := time.Now()
	candidate.UpdatedAt = &now
	_, err = h.db.Exec(`
		UPDATE candidates SET name = $1, party = $2, description = $3, photo = $4,
		       position = $5, trajectory = $6, profile = $7, projects = $8, updated_at = $9
		WHERE id = $10
	`, candidate.Name, candidate.Party, candidate.Description, candidate.Photo,
		candidate.Position, candidate.Trajectory, candidate.Profile,
		candidate.Projects, now, id)
	if err != nil {
		slog.Error("failed to update candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to update candidate")
		return
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "candidate updated",
		map[string]any{"candidateId": id}, middleware.GetClientIP(r))

	middleware.JSONResponse(w, http.StatusOK, candidate)
}

// Delete handles DELETE /api/admin/candidates/{id}. Candidates with
// recorded votes cannot be removed; the ledger must stay consistent.
func (h *CandidateHandler) Delete(w http.ResponseWriter, r *http.Request) {
	admin, err := RequireAdmin(h.db, r)
	if err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	id := r.PathValue("id")
	var votes int
	err = h.db.QueryRow(`SELECT votes FROM candidates WHERE id = $1`, id).Scan(&votes)
	if err == sql.ErrNoRows {
		middleware.ErrorResponse(w, http.StatusNotFound, "Candidate not found")
		return
	}
	if err != nil {
		slog.Error("failed to look up candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	if votes > 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Cannot delete a candidate with recorded votes")
		return
	}

	_, err = h.db.Exec(`DELETE FROM candidates WHERE id = $1`, id)
	if err != nil {
		slog.Error("failed to delete candidate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Failed to delete candidate")
		return
	}

	auditAsync(h.db, models.AuditAdminAction, admin.Email, "candidate deleted",
		map[string]any{"candidateId": id}, middleware.GetClientIP(r))

	slog.Info("candidate deleted", "candidate_id", id)
	middleware.JSONResponse(w, http.StatusOK, map[string]any{"success": true})
}
