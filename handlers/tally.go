// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/votesecure/vote-server/models"
)

var (
	ErrElectionNotFound  = errors.New("election not found")
	ErrElectionNotClosed = errors.New("election is not closed")
)

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// resultIntegrityHash fingerprints a tally: SHA-256 over the canonical JSON
// of the ranked rows concatenated with the total. Recomputing it over a
// stored snapshot detects any edit to counts, ordering or totals.
func resultIntegrityHash(candidates []models.CandidateResult, totalVotes int) string {
	raw, _ := json.Marshal(candidates)
	sum := sha256.Sum256(append(raw, []byte(strconv.Itoa(totalVotes))...))
	return hex.EncodeToString(sum[:])
}

// ComputeElectionResults builds a preliminary snapshot of the current
// tallies. Nothing is persisted; callers decide whether to publish.
func ComputeElectionResults(db *sql.DB, electionID string) (*models.ResultSnapshot, error) {
	election, err := getElectionByID(db, electionID)
	if err != nil {
		return nil, err
	}
	if election == nil {
		return nil, ErrElectionNotFound
	}

	rows, err := db.Query(`SELECT id, name, party, votes FROM candidates`)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer rows.Close()

	results := []models.CandidateResult{}
	totalVotes := 0
	for rows.Next() {
		var c models.CandidateResult
		if err := rows.Scan(&c.ID, &c.Name, &c.Party, &c.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		totalVotes += c.Votes
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read candidates: %w", err)
	}

	// Rank by votes, ties broken by name then id so the order is stable
	sort.Slice(results, func(i, j int) bool {
		if results[i].Votes != results[j].Votes {
			return results[i].Votes > results[j].Votes
		}
		if results[i].Name != results[j].Name {
			return results[i].Name < results[j].Name
		}
		return results[i].ID < results[j].ID
	})
	for i := range results {
		results[i].Rank = i + 1
		if totalVotes > 0 {
			results[i].Percentage = round2(float64(results[i].Votes) / float64(totalVotes) * 100)
		}
	}

	var eligible, voted int
	err = db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'voter' AND is_eligible = TRUE`).Scan(&eligible)
	if err != nil {
		return nil, fmt.Errorf("failed to count eligible voters: %w", err)
	}
	err = db.QueryRow(`SELECT COUNT(*) FROM users WHERE role = 'voter' AND has_voted = TRUE`).Scan(&voted)
	if err != nil {
		return nil, fmt.Errorf("failed to count voted users: %w", err)
	}

	stats := models.ResultStatistics{
		TotalVotes:          totalVotes,
		TotalEligibleVoters: eligible,
		TotalVotedUsers:     voted,
		Abstentions:         eligible - voted,
	}
	if eligible > 0 {
		stats.ParticipationRate = round2(float64(voted) / float64(eligible) * 100)
	}

	return &models.ResultSnapshot{
		ID:            uuid.NewString(),
		ElectionID:    election.ID,
		ElectionName:  election.Name,
		GeneratedAt:   time.Now(),
		Status:        models.ResultPreliminary,
		Statistics:    stats,
		Candidates:    results,
		IntegrityHash: resultIntegrityHash(results, totalVotes),
	}, nil
}

// PublishElectionResults freezes the current tally of a closed election as
// a final snapshot and marks the election published. Snapshots are append
// only; re-publishing adds a new one rather than rewriting history.
func PublishElectionResults(db *sql.DB, electionID, publishedBy, ip string) (*models.ResultSnapshot, error) {
	election, err := getElectionByID(db, electionID)
	if err != nil {
		return nil, err
	}
	if election == nil {
		return nil, ErrElectionNotFound
	}
	if election.Status != models.StatusClosed && election.Status != models.StatusPublished {
		return nil, ErrElectionNotClosed
	}

	snapshot, err := ComputeElectionResults(db, electionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	snapshot.Status = models.ResultFinal
	snapshot.PublishedAt = &now
	snapshot.PublishedBy = publishedBy

	rawCandidates, err := json.Marshal(snapshot.Candidates)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal candidate results: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO published_results (id, election_id, election_name, generated_at,
		                               published_at, published_by, status, total_votes,
		                               total_eligible_voters, total_voted_users,
		                               participation_rate, abstentions, candidates, integrity_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, snapshot.ID, snapshot.ElectionID, snapshot.ElectionName, snapshot.GeneratedAt,
		now, publishedBy, snapshot.Status, snapshot.Statistics.TotalVotes,
		snapshot.Statistics.TotalEligibleVoters, snapshot.Statistics.TotalVotedUsers,
		snapshot.Statistics.ParticipationRate, snapshot.Statistics.Abstentions,
		string(rawCandidates), snapshot.IntegrityHash)
	if err != nil {
		return nil, fmt.Errorf("failed to insert result snapshot: %w", err)
	}

	_, err = tx.Exec(`
		UPDATE elections SET status = $1, results_published_at = $2, updated_at = $3
		WHERE id = $4
	`, models.StatusPublished, now, now, electionID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark election published: %w", err)
	}

	err = LogAuditEvent(tx, models.AuditAdminAction, publishedBy, "results published",
		map[string]any{
			"electionId":    electionID,
			"snapshotId":    snapshot.ID,
			"totalVotes":    snapshot.Statistics.TotalVotes,
			"integrityHash": snapshot.IntegrityHash,
		}, ip)
	if err != nil {
		return nil, fmt.Errorf("failed to append publish audit entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit publication: %w", err)
	}

	return snapshot, nil
}

const snapshotColumns = `id, election_id, election_name, generated_at, published_at,
	published_by, status, total_votes, total_eligible_voters, total_voted_users,
	participation_rate, abstentions, candidates, integrity_hash`

func scanSnapshot(row interface{ Scan(...any) error }) (*models.ResultSnapshot, error) {
	var s models.ResultSnapshot
	var publishedAt sql.NullTime
	var rawCandidates string
	err := row.Scan(&s.ID, &s.ElectionID, &s.ElectionName, &s.GeneratedAt,
		&publishedAt, &s.PublishedBy, &s.Status, &s.Statistics.TotalVotes,
		&s.Statistics.TotalEligibleVoters, &s.Statistics.TotalVotedUsers,
		&s.Statistics.ParticipationRate, &s.Statistics.Abstentions,
		&rawCandidates, &s.IntegrityHash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan result snapshot: %w", err)
	}
	if publishedAt.Valid {
		s.PublishedAt = &publishedAt.Time
	}
	if err := json.Unmarshal([]byte(rawCandidates), &s.Candidates); err != nil {
		return nil, fmt.Errorf("failed to decode candidate results: %w", err)
	}
	return &s, nil
}
