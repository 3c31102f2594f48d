// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/models"
)

// execer lets audit writes run on a *sql.DB or inside a *sql.Tx
type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

// LogAuditEvent appends an entry to the audit trail. Best effort outside of
// transactions: a failed append is logged but never fails the caller's
// operation, except when running inside a transaction where the returned
// error aborts the whole unit.
func LogAuditEvent(db execer, eventType, actor, message string, metadata map[string]any, ip string) error {
	if metadata == nil {
		metadata = map[string]any{}
	}
	raw, err := json.Marshal(metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal audit metadata: %w", err)
	}

	_, err = db.Exec(`
		INSERT INTO audit_logs (id, timestamp, type, actor, message, metadata, ip)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, uuid.NewString(), time.Now(), eventType, actor, message, string(raw), ip)
	if err != nil {
		return fmt.Errorf("failed to append audit entry: %w", err)
	}
	return nil
}

// auditAsync is the fire-and-forget form used by handlers whose operation
// should not fail because the trail write did
func auditAsync(db execer, eventType, actor, message string, metadata map[string]any, ip string) {
	if err := LogAuditEvent(db, eventType, actor, message, metadata, ip); err != nil {
		slog.Warn("audit append failed", "type", eventType, "error", err)
	}
}

type AuditHandler struct {
	db *sql.DB
}

func NewAuditHandler(db *sql.DB) *AuditHandler {
	return &AuditHandler{db: db}
}

func scanAuditRows(rows *sql.Rows) ([]models.AuditLogEntry, error) {
	entries := []models.AuditLogEntry{}
	for rows.Next() {
		var e models.AuditLogEntry
		var rawMeta string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Type, &e.Actor, &e.Message, &rawMeta, &e.IP); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if err := json.Unmarshal([]byte(rawMeta), &e.Metadata); err != nil {
			e.Metadata = map[string]any{}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ListAuditLogs handles GET /api/admin/audit-logs?type=&limit=&offset=
func (h *AuditHandler) ListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	limit := queryInt(r, "limit", 100)
	offset := queryInt(r, "offset", 0)
	eventType := r.URL.Query().Get("type")

	var rows *sql.Rows
	var err error
	if eventType != "" {
		rows, err = h.db.Query(`
			SELECT id, timestamp, type, actor, message, metadata, ip
			FROM audit_logs WHERE type = $1
			ORDER BY timestamp DESC LIMIT $2 OFFSET $3
		`, eventType, limit, offset)
	} else {
		rows, err = h.db.Query(`
			SELECT id, timestamp, type, actor, message, metadata, ip
			FROM audit_logs
			ORDER BY timestamp DESC LIMIT $1 OFFSET $2
		`, limit, offset)
	}
	if err != nil {
		slog.Error("failed to query audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		slog.Error("failed to scan audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"logs":  entries,
		"count": len(entries),
	})
}

// DetailedAuditLogs handles GET /api/admin/audit-logs/detailed with
// type/actor/date filters and page-based pagination
func (h *AuditHandler) DetailedAuditLogs(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	q := r.URL.Query()
	page := queryInt(r, "page", 1)
	if page < 1 {
		page = 1
	}
	limit := queryInt(r, "limit", 50)

	where := ""
	args := []any{}
	addFilter := func(clause string, value any) {
		args = append(args, value)
		if where == "" {
			where = " WHERE "
		} else {
			where += " AND "
		}
		where += fmt.Sprintf(clause, len(args))
	}

	if t := q.Get("type"); t != "" {
		addFilter("type = $%d", t)
	}
	if actor := q.Get("actor"); actor != "" {
		addFilter("actor = $%d", actor)
	}
	if from := q.Get("startDate"); from != "" {
		ts, err := time.Parse(time.RFC3339, from)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "startDate must be RFC 3339")
			return
		}
		addFilter("timestamp >= $%d", ts)
	}
	if to := q.Get("endDate"); to != "" {
		ts, err := time.Parse(time.RFC3339, to)
		if err != nil {
			middleware.ErrorResponse(w, http.StatusBadRequest, "endDate must be RFC 3339")
			return
		}
		addFilter("timestamp <= $%d", ts)
	}

	var total int
	if err := h.db.QueryRow(`SELECT COUNT(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		slog.Error("failed to count audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	query := fmt.Sprintf(`
		SELECT id, timestamp, type, actor, message, metadata, ip
		FROM audit_logs%s
		ORDER BY timestamp DESC LIMIT $%d OFFSET $%d
	`, where, len(args)+1, len(args)+2)
	args = append(args, limit, (page-1)*limit)

	rows, err := h.db.Query(query, args...)
	if err != nil {
		slog.Error("failed to query audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer rows.Close()

	entries, err := scanAuditRows(rows)
	if err != nil {
		slog.Error("failed to scan audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	totalPages := (total + limit - 1) / limit
	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"logs": entries,
		"pagination": map[string]any{
			"page":       page,
			"limit":      limit,
			"total":      total,
			"totalPages": totalPages,
		},
	})
}

// AuditStats handles GET /api/admin/audit-logs/stats
func (h *AuditHandler) AuditStats(w http.ResponseWriter, r *http.Request) {
	if _, err := RequireAdmin(h.db, r); err != nil {
		middleware.ErrorResponse(w, http.StatusUnauthorized, "Admin session required")
		return
	}

	byType := map[string]int{}
	rows, err := h.db.Query(`SELECT type, COUNT(*) FROM audit_logs GROUP BY type`)
	if err != nil {
		slog.Error("failed to aggregate audit logs", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	for rows.Next() {
		var t string
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			rows.Close()
			slog.Error("failed to scan audit aggregate", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		byType[t] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		slog.Error("failed to read audit aggregate", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	total := 0
	for _, n := range byType {
		total += n
	}

	// Daily counts for the last 7 days, oldest first
	type dayCount struct {
		Date  string `json:"date"`
		Count int    `json:"count"`
	}
	days := make([]dayCount, 0, 7)
	now := time.Now()
	for i := 6; i >= 0; i-- {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()).AddDate(0, 0, -i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		var n int
		err := h.db.QueryRow(`
			SELECT COUNT(*) FROM audit_logs WHERE timestamp >= $1 AND timestamp < $2
		`, dayStart, dayEnd).Scan(&n)
		if err != nil {
			slog.Error("failed to count daily audit entries", "error", err)
			middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
			return
		}
		days = append(days, dayCount{Date: dayStart.Format("2006-01-02"), Count: n})
	}

	recentRows, err := h.db.Query(`
		SELECT id, timestamp, type, actor, message, metadata, ip
		FROM audit_logs ORDER BY timestamp DESC LIMIT 10
	`)
	if err != nil {
		slog.Error("failed to query recent audit entries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}
	defer recentRows.Close()

	recent, err := scanAuditRows(recentRows)
	if err != nil {
		slog.Error("failed to scan recent audit entries", "error", err)
		middleware.ErrorResponse(w, http.StatusInternalServerError, "Database error")
		return
	}

	middleware.JSONResponse(w, http.StatusOK, map[string]any{
		"total":      total,
		"byType":     byType,
		"last7Days":  days,
		"mostRecent": recent,
	})
}

func queryInt(r *http.Request, key string, def int) int {
	if s := r.URL.Query().Get(key); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			return v
		}
	}
	return def
}
