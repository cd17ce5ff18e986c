// Ocean - Community Knowledge Base and Forum Server
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package trashmonitor sweeps low-quality entries into the trash state
// and restores the ones the community has since vouched for.
package trashmonitor

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krre/ocean-backend/internal/logging"
	"github.com/krre/ocean-backend/internal/model"
)

const sweepInterval = 12 * time.Hour

// An entry older than two days sinks unless it has collected at least
// minYesVotes "yes" votes and fewer "fake" votes than "yes" votes.
const (
	minEntryAgeDays = 2
	minYesVotes     = 4
)

const sinkSQL = `
	UPDATE mandels AS m SET trash = true
	WHERE trash = false AND (SELECT (EXTRACT(epoch FROM (SELECT (now() - create_ts))) / 86400)::int) >= $3
		AND ((SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $1) > (SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $2)
		OR (SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $2) < $4)`

const restoreSQL = `
	UPDATE mandels AS m SET trash = false
	WHERE trash = true AND
		((SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $1) <= (SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $2)
		AND (SELECT COUNT(*) FROM votes WHERE mandela_id = m.id AND vote = $2) >= $3)`

// Monitor is a suture service that runs the sweep on start and every
// twelve hours after.
type Monitor struct {
	pool     *pgxpool.Pool
	interval time.Duration
}

func New(pool *pgxpool.Pool) *Monitor {
	return &Monitor{pool: pool, interval: sweepInterval}
}

// Serve implements suture.Service.
func (m *Monitor) Serve(ctx context.Context) error {
	logging.Info().Msg("Trash monitor started")

	if err := m.Sweep(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := m.Sweep(ctx); err != nil {
				return err
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Sweep issues the sink and restore statements, one round-trip each.
// Both are idempotent for a fixed set of votes.
func (m *Monitor) Sweep(ctx context.Context) error {
	sunk, err := m.pool.Exec(ctx, sinkSQL,
		model.VoteFake, model.VoteYes, minEntryAgeDays, minYesVotes)
	if err != nil {
		return err
	}
	logging.Info().Int64("count", sunk.RowsAffected()).Msg("Moved entries to trash")

	restored, err := m.pool.Exec(ctx, restoreSQL,
		model.VoteFake, model.VoteYes, minYesVotes)
	if err != nil {
		return err
	}
	logging.Info().Int64("count", restored.RowsAffected()).Msg("Restored entries from trash")

	return nil
}

func (m *Monitor) String() string {
	return "trash-monitor"
}
