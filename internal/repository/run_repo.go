package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	cronus "github.com/E3dvis/cronustraining"
)

type RunSQLite struct {
	db *sql.DB
}

func NewRunSQLite(db *sql.DB) *RunSQLite { return &RunSQLite{db: db} }

var _ RunRepo = (*RunSQLite)(nil)

const (
	insertRunSQL = `
		INSERT INTO run_summaries
			(run_id, channel, state, started_at, finished_at, attempts, success_count, fail_count, avg_duration_s, power_samples)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	selectLatestRunSQL = `
		SELECT run_id, channel, state, started_at, finished_at, attempts, success_count, fail_count, avg_duration_s, power_samples
		FROM run_summaries WHERE channel = ?
		ORDER BY finished_at DESC LIMIT 1
	`
)

// Insert stores one finished-run summary row.
func (r *RunSQLite) Insert(ctx context.Context, rec cronus.RunRecord) error {
	_, err := r.db.ExecContext(ctx, insertRunSQL,
		rec.RunID,
		rec.Channel,
		rec.State,
		rec.StartedAt.UTC(),
		rec.FinishedAt.UTC(),
		rec.Attempts,
		rec.SuccessCount,
		rec.FailCount,
		rec.AvgDuration,
		rec.PowerSamples,
	)
	if err != nil {
		return fmt.Errorf("insert run summary %q: %w", rec.RunID, err)
	}
	return nil
}

// Latest fetches the most recently finished run of a channel. Returns a
// zero record when the channel has no history yet.
func (r *RunSQLite) Latest(ctx context.Context, channel int) (cronus.RunRecord, error) {
	row := r.db.QueryRowContext(ctx, selectLatestRunSQL, channel)

	var rec cronus.RunRecord
	if err := row.Scan(
		&rec.RunID,
		&rec.Channel,
		&rec.State,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.Attempts,
		&rec.SuccessCount,
		&rec.FailCount,
		&rec.AvgDuration,
		&rec.PowerSamples,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return cronus.RunRecord{}, nil // no history yet
		}
		return cronus.RunRecord{}, err
	}
	rec.StartedAt = rec.StartedAt.UTC()
	rec.FinishedAt = rec.FinishedAt.UTC()
	return rec, nil
}
