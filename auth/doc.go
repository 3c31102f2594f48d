// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth provides the credential primitives for the electoral backend.

# Password Hashing

Passwords are never stored in cleartext. HashPassword derives a
PBKDF2-SHA512 key (10,000 iterations, 64-byte key) under a random 16-byte
salt; VerifyPassword recomputes and compares in constant time:

	hash, salt, err := auth.HashPassword(password)
	ok := auth.VerifyPassword(password, hash, salt)

# Tokens and Codes

	token, err := auth.GenerateSessionToken() // 256-bit hex bearer token
	code, err := auth.GenerateAccessCode()    // 6-digit secondary factor
	pw, err := auth.GeneratePassword()        // one-time voter password

# Ballot Hashes

VoteHash digests {voterID, candidateID, timestamp} into the integrity hash
stored on each anonymous vote record; HashIP one-way hashes the source
address for fraud signals. Neither allows recovering the voter.
*/
package auth
