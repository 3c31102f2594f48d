// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/votesecure/vote-server/cliparse"
	"github.com/votesecure/vote-server/handlers"
	"github.com/votesecure/vote-server/middleware"
	"github.com/votesecure/vote-server/rateguard"
)

func NewRouter(db *sql.DB, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	loginGuard := rateguard.New(cfg.LoginMaxAttempts, cfg.RateLimitWindow, cfg.RateLimitEnabled)
	voteGuard := rateguard.New(cfg.VoteMaxAttempts, cfg.RateLimitWindow, cfg.RateLimitEnabled)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(db, cfg, loginGuard)
	voteHandler := handlers.NewVoteHandler(db, cfg, voteGuard)
	candidateHandler := handlers.NewCandidateHandler(db)
	electionHandler := handlers.NewElectionHandler(db)
	resultsHandler := handlers.NewResultsHandler(db)
	userHandler := handlers.NewUserHandler(db)
	auditHandler := handlers.NewAuditHandler(db)
	statsHandler := handlers.NewStatsHandler(db)

	// Health check
	mux.HandleFunc("GET /api/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.JSONResponse(w, http.StatusOK, map[string]any{
			"status": "ok",
			"time":   time.Now(),
		})
	})

	// Authentication (public)
	mux.HandleFunc("POST /api/login", middleware.WithLogging(authHandler.Login))
	mux.HandleFunc("POST /api/logout", middleware.WithLogging(authHandler.Logout))
	mux.HandleFunc("POST /api/status", middleware.WithLogging(authHandler.Status))

	// Voting (public, credentials in body)
	mux.HandleFunc("POST /api/vote", middleware.WithLogging(voteHandler.CastVote))

	// Candidates and elections (public reads)
	mux.HandleFunc("GET /api/candidates", middleware.WithLogging(candidateHandler.List))
	mux.HandleFunc("GET /api/elections", middleware.WithLogging(electionHandler.List))
	mux.HandleFunc("GET /api/elections/active", middleware.WithLogging(electionHandler.Active))

	// Results (public)
	mux.HandleFunc("GET /api/results", middleware.WithLogging(resultsHandler.Current))
	mux.HandleFunc("GET /api/results/preliminary/{electionId}", middleware.WithLogging(resultsHandler.Preliminary))
	mux.HandleFunc("GET /api/results/published", middleware.WithLogging(resultsHandler.PublishedList))
	mux.HandleFunc("GET /api/results/published/{electionId}", middleware.WithLogging(resultsHandler.PublishedByElection))
	mux.HandleFunc("GET /api/voting-progress", middleware.WithLogging(statsHandler.Progress))

	// Admin operations. Each handler validates the X-Session-Token header
	// and the admin role before doing anything.
	mux.HandleFunc("GET /api/admin/votes", middleware.WithLogging(voteHandler.ListVotes))
	mux.HandleFunc("GET /api/admin/users", middleware.WithLogging(userHandler.ListUsers))
	mux.HandleFunc("GET /api/admin/users/detailed", middleware.WithLogging(userHandler.DetailedUsers))
	mux.HandleFunc("POST /api/admin/voters", middleware.WithLogging(userHandler.CreateVoters))
	mux.HandleFunc("POST /api/admin/users/bulk-upload", middleware.WithLogging(userHandler.BulkUpload))
	mux.HandleFunc("POST /api/admin/users/{id}/regenerate-credentials", middleware.WithLogging(userHandler.RegenerateCredentials))

	mux.HandleFunc("POST /api/admin/candidates", middleware.WithLogging(candidateHandler.Create))
	mux.HandleFunc("PUT /api/admin/candidates/{id}", middleware.WithLogging(candidateHandler.Update))
	mux.HandleFunc("DELETE /api/admin/candidates/{id}", middleware.WithLogging(candidateHandler.Delete))
	mux.HandleFunc("POST /api/admin/candidates/extended", middleware.WithLogging(candidateHandler.CreateExtended))
	mux.HandleFunc("PUT /api/admin/candidates/extended/{id}", middleware.WithLogging(candidateHandler.UpdateExtended))

	mux.HandleFunc("POST /api/admin/elections", middleware.WithLogging(electionHandler.Create))
	mux.HandleFunc("PUT /api/admin/elections/{electionId}/status", middleware.WithLogging(electionHandler.UpdateStatus))
	mux.HandleFunc("POST /api/admin/elections/{electionId}/publish", middleware.WithLogging(resultsHandler.Publish))
	mux.HandleFunc("DELETE /api/admin/elections/{electionId}", middleware.WithLogging(electionHandler.Delete))

	mux.HandleFunc("GET /api/admin/audit-logs", middleware.WithLogging(auditHandler.ListAuditLogs))
	mux.HandleFunc("GET /api/admin/audit-logs/detailed", middleware.WithLogging(auditHandler.DetailedAuditLogs))
	mux.HandleFunc("GET /api/admin/audit-logs/stats", middleware.WithLogging(auditHandler.AuditStats))
	mux.HandleFunc("GET /api/admin/voting-stats", middleware.WithLogging(statsHandler.VotingStats))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("vote-server API v1"))
	})

	return mux
}
