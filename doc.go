// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the VoteSecure API server.

VoteSecure is an electoral backend: voters authenticate with provisioned
credentials and cast exactly one anonymous ballot each, admins manage
candidates and the election lifecycle, and results are published as frozen
snapshots with an integrity fingerprint.

# Starting the Server

The server requires environment variables or CLI flags for configuration:

	DATABASE_URL=votes.db go run main.go

Or with flags:

	go run main.go -p 4000 -d votes.db -t sqlite

# Configuration

Required settings:

  - DATABASE_URL (-d): sqlite file path or PostgreSQL connection string

Optional settings:

  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - PORT (-p): Server port (default: 4000)
  - SESSION_TTL_HOURS (-session-ttl): Session lifetime (default: 24)
  - RATE_LIMIT_ENABLED: Set to false to disable the rate guard
  - LOGIN_MAX_ATTEMPTS / VOTE_MAX_ATTEMPTS / RATE_LIMIT_WINDOW_SECONDS
  - SCHEDULER_INTERVAL_SECONDS (-tick): Scheduler pass interval (default: 60)
  - ADMIN_EMAIL / ADMIN_PASSWORD: Bootstrap admin created at startup

A .env file in the working directory is loaded if present.

# Architecture

The server uses a handler-based architecture with dependency injection:

  - handlers: HTTP request handlers (auth, voting, elections, results, audit)
  - router: Route definitions using Go 1.22+ routing
  - middleware: CORS, logging, JSON helpers, client IP extraction
  - models: Domain and request/response types
  - auth: KDF, token and credential generation, vote hashing
  - db: Schema creation and seeding
  - rateguard: Fixed-window login/vote throttling
  - scheduler: Time-based election closing and auto-publication
  - cliparse: Configuration parsing

See package documentation for each component.
*/
package main
