// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package rateguard implements an in-memory fixed-window rate
// limiter used to throttle login and vote submission attempts.
// Counters are purely in-process; restarting the server clears
// all windows.
package rateguard
