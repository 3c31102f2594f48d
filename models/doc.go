// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package models defines the domain types and the request/response shapes of
the VoteSecure API.

Domain types mirror the persisted rows: User, Candidate, Vote, Session,
Election, AuditLogEntry, ResultSnapshot. Credential material (password hash,
salt, access code) and session tokens are tagged `json:"-"` so they can never
leak through a serialized response. Vote carries no voter fields at all;
voter/ballot unlinkability is a property of the type, not of handler
discipline.

Constants:

  - Election status: draft, active, closed, published
  - Roles: voter, admin
  - Audit types: LOGIN, VOTE, ADMIN_ACTION, SECURITY_EVENT
  - Result status: preliminary, final
*/
package models
