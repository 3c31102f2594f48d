// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package middleware provides HTTP middleware and response helpers:
// request logging, CORS, JSON body parsing, and uniform JSON
// success/error responses. It also extracts the client IP from
// proxy headers for rate limiting and audit trails.
package middleware
