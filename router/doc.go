// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package router wires the HTTP route table. Public routes live under
// /api; everything under /api/admin requires an admin session token.
package router
