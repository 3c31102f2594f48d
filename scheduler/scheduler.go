// Copyright (c) 2025 VoteSecure Contributors.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package scheduler

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/votesecure/vote-server/handlers"
	"github.com/votesecure/vote-server/models"
)

// actor recorded on audit entries written by scheduled publications
const autoPublishActor = "auto-publish"

// Scheduler drives time-based election transitions in the background:
// closing elections whose voting window has ended, and publishing results
// for closed elections configured to auto-publish.
type Scheduler struct {
	db       *sql.DB
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func New(db *sql.DB, interval time.Duration) *Scheduler {
	return &Scheduler{
		db:       db,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the tick loop in a goroutine. An initial tick fires shortly
// after startup so a restart does not leave overdue elections hanging for
// a full interval.
func (s *Scheduler) Start() {
	go func() {
		defer close(s.done)

		initial := time.NewTimer(5 * time.Second)
		defer initial.Stop()
		select {
		case <-initial.C:
			s.runTick()
		case <-s.stop:
			return
		}

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runTick()
			case <-s.stop:
				return
			}
		}
	}()
}

// Stop halts the loop and waits for any in-flight tick to finish
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runTick() {
	if err := s.Tick(); err != nil {
		slog.Error("scheduler tick failed", "error", err)
	}
}

// Tick performs one scheduling pass. Failures on individual elections are
// audited and skipped so one broken election cannot stall the rest.
func (s *Scheduler) Tick() error {
	if err := s.closeOverdue(); err != nil {
		return err
	}
	return s.publishDue()
}

func (s *Scheduler) closeOverdue() error {
	rows, err := s.db.Query(`
		SELECT id, name FROM elections WHERE status = 'active' AND end_date < $1
	`, time.Now())
	if err != nil {
		return fmt.Errorf("failed to query overdue elections: %w", err)
	}
	defer rows.Close()

	type overdue struct{ id, name string }
	var found []overdue
	for rows.Next() {
		var o overdue
		if err := rows.Scan(&o.id, &o.name); err != nil {
			return fmt.Errorf("failed to scan overdue election: %w", err)
		}
		found = append(found, o)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read overdue elections: %w", err)
	}

	for _, o := range found {
		_, err := s.db.Exec(`
			UPDATE elections SET status = $1, updated_at = $2 WHERE id = $3 AND status = 'active'
		`, models.StatusClosed, time.Now(), o.id)
		if err != nil {
			slog.Error("failed to close overdue election", "election_id", o.id, "error", err)
			continue
		}

		if err := handlers.LogAuditEvent(s.db, models.AuditAdminAction, autoPublishActor,
			"election closed at end of voting window",
			map[string]any{"electionId": o.id, "name": o.name}, ""); err != nil {
			slog.Warn("audit append failed", "error", err)
		}
		slog.Info("election closed by scheduler", "election_id", o.id)
	}
	return nil
}

func (s *Scheduler) publishDue() error {
	rows, err := s.db.Query(`
		SELECT id, end_date, result_publish_delay_minutes
		FROM elections
		WHERE status = 'closed' AND auto_publish_results = TRUE AND results_published_at IS NULL
	`)
	if err != nil {
		return fmt.Errorf("failed to query publishable elections: %w", err)
	}
	defer rows.Close()

	type due struct {
		id           string
		endDate      time.Time
		delayMinutes int
	}
	var candidates []due
	for rows.Next() {
		var d due
		if err := rows.Scan(&d.id, &d.endDate, &d.delayMinutes); err != nil {
			return fmt.Errorf("failed to scan publishable election: %w", err)
		}
		candidates = append(candidates, d)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read publishable elections: %w", err)
	}

	now := time.Now()
	for _, d := range candidates {
		publishAt := d.endDate.Add(time.Duration(d.delayMinutes) * time.Minute)
		if now.Before(publishAt) {
			continue
		}

		snapshot, err := handlers.PublishElectionResults(s.db, d.id, autoPublishActor, "")
		if err != nil {
			slog.Error("auto-publish failed", "election_id", d.id, "error", err)
			if auditErr := handlers.LogAuditEvent(s.db, models.AuditAdminAction, autoPublishActor,
				"auto-publish failed",
				map[string]any{"electionId": d.id, "error": err.Error()}, ""); auditErr != nil {
				slog.Warn("audit append failed", "error", auditErr)
			}
			continue
		}
		slog.Info("results auto-published", "election_id", d.id, "snapshot_id", snapshot.ID)
	}
	return nil
}
