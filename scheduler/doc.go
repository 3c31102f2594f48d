// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

// Package scheduler closes elections whose voting window has passed and
// auto-publishes results for closed elections that request it. It runs one
// pass per interval plus an initial pass shortly after startup.
package scheduler
