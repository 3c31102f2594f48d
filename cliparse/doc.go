// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package cliparse handles configuration for the vote server.

Configuration comes from CLI flags with environment variables as fallback:

	vote-server -p 4000 -d file:votes.db -t sqlite

Or entirely from the environment (a .env file is loaded by main):

	PORT=4000 DATABASE_URL=file:votes.db DATABASE_TYPE=sqlite vote-server

Settings:

  - PORT (-p): listen port (default 4000)
  - DATABASE_URL (-d): sqlite file URL or postgres connection string (required)
  - DATABASE_TYPE (-t): "sqlite" (default) or "postgres"
  - SESSION_TTL_HOURS (-session-ttl): session expiry (default 24)
  - RATE_LIMIT_ENABLED (-no-rate-limit): rate guard toggle (default on)
  - LOGIN_MAX_ATTEMPTS / VOTE_MAX_ATTEMPTS / RATE_LIMIT_WINDOW_SECONDS
  - SCHEDULER_INTERVAL_SECONDS (-tick): auto-publish tick (default 60)
  - ADMIN_EMAIL / ADMIN_PASSWORD: bootstrap admin account (optional pair)
*/
package cliparse
