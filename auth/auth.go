// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// KDF parameters. Changing these invalidates every stored credential, so
// they are constants rather than configuration.
const (
	kdfIterations = 10000
	kdfKeyLen     = 64
	saltBytes     = 16
)

// HashPassword derives a PBKDF2-SHA512 hash of the password under a fresh
// random salt. Both values are hex-encoded for storage.
func HashPassword(password string) (hash, salt string, err error) {
	raw := make([]byte, saltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", "", fmt.Errorf("failed to generate salt: %w", err)
	}
	salt = hex.EncodeToString(raw)
	hash = hashWithSalt(password, salt)
	return hash, salt, nil
}

// VerifyPassword recomputes the KDF and compares in constant time.
func VerifyPassword(password, hash, salt string) bool {
	computed := hashWithSalt(password, salt)
	return hmac.Equal([]byte(computed), []byte(hash))
}

func hashWithSalt(password, salt string) string {
	key := pbkdf2.Key([]byte(password), []byte(salt), kdfIterations, kdfKeyLen, sha512.New)
	return hex.EncodeToString(key)
}

// GenerateSessionToken creates a 256-bit random bearer token, hex encoded.
func GenerateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// GenerateAccessCode creates a random 6-digit secondary factor.
func GenerateAccessCode() (string, error) {
	// 100000..999999 so the code never has a leading zero
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("failed to generate access code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// GeneratePassword creates a random one-time password for provisioned
// voters: 6 random bytes, hex encoded, uppercased (12 characters).
func GeneratePassword() (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// VoteHash computes the integrity digest of a ballot. The voter id goes into
// the digest but is not recoverable from it, so the stored vote stays
// unlinkable while remaining verifiable against tampering.
func VoteHash(voterID, candidateID string, unixMillis int64) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s%s%d", voterID, candidateID, unixMillis)))
	return hex.EncodeToString(sum[:])
}

// HashIP creates a one-way hash of a source address for coarse fraud
// signals. The cleartext address is never stored alongside a vote.
func HashIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return hex.EncodeToString(sum[:])
}
