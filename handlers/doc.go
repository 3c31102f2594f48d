// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP request handlers for the VoteSecure API.

# Handler Types

Each handler is a struct with database and config dependencies:

  - AuthHandler: login, logout, voting-status checks
  - VoteHandler: ballot casting and the admin vote ledger
  - CandidateHandler: public candidate list and admin CRUD
  - ElectionHandler: election lifecycle (create, status, delete)
  - ResultsHandler: live tallies and published snapshots
  - UserHandler: voter provisioning and credential management
  - AuditHandler: audit trail queries
  - StatsHandler: participation statistics

Handlers are created via constructor functions that accept *sql.DB (and
Config where policy knobs apply):

	authHandler := handlers.NewAuthHandler(db, cfg, loginGuard)

# Authentication

Voters authenticate per request with email + password (+ access code when
the active election requires one). Admin endpoints require the
X-Session-Token header of an active, unexpired session belonging to an
admin user; RequireAdmin enforces this at the top of every admin handler.

# Ballot Anonymity

A cast ballot stores no voter identity. The users row records THAT a voter
voted (has_voted, voted_at); the votes row records the choice with no link
back. The two are joined only inside the one-way vote hash.

# Election Lifecycle

Elections progress forward only: draft → active → closed → published.
Publishing goes through PublishElectionResults, which freezes a final
snapshot with an integrity fingerprint before flipping the status.

# Results

ComputeElectionResults builds a ranked preliminary snapshot on demand:

	snapshot, err := handlers.ComputeElectionResults(db, electionID)

Percentages and participation are rounded to two decimals; ties rank by
name, then id.
*/
package handlers
