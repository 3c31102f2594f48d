// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles schema creation and first-run seeding.

The schema is a single SQL script compatible with both supported drivers
(modernc.org/sqlite and lib/pq). Votes carry no voter column; email
uniqueness is enforced case-insensitively at the index level.

Seeding covers two first-run concerns: a default active election
(SeedDefaultElection) and the bootstrap admin account (EnsureAdminUser).
Both are idempotent.
*/
package db
