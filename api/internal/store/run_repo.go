package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"mathcanvas/api/internal/calc"
)

var ErrNotFound = sql.ErrNoRows

type RunRepo struct{ DB *sql.DB }

func NewRunRepo(db *sql.DB) *RunRepo { return &RunRepo{DB: db} }

// RecordRun implements calc.Journal.
func (r *RunRepo) RecordRun(ctx context.Context, run calc.Run) error {
	const q = `
insert into calc_runs (
  id, image_hash, engine, model, var_count,
  status, record_count, degraded, latency_ms, error
) values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
on conflict (id) do nothing`
	_, err := r.DB.ExecContext(ctx, q,
		run.ID, run.ImageSHA256, run.Engine, run.Model, run.VarCount,
		run.Status, run.Records, run.Degraded, run.Latency.Milliseconds(), run.Error,
	)
	return err
}

// RunRow is a stored run as read back for diagnostics.
type RunRow struct {
	CreatedAt time.Time
	calc.Run
}

// FindByID returns ErrNotFound when no run has that id.
func (r *RunRepo) FindByID(ctx context.Context, id string) (*RunRow, error) {
	const q = `
select id, created_at, image_hash, engine, model, var_count,
       status, record_count, degraded, latency_ms, error
from calc_runs
where id = $1`
	var (
		row       RunRow
		latencyMS int64
	)
	err := r.DB.QueryRowContext(ctx, q, id).Scan(
		&row.ID, &row.CreatedAt, &row.ImageSHA256, &row.Engine, &row.Model, &row.VarCount,
		&row.Status, &row.Records, &row.Degraded, &latencyMS, &row.Error,
	)
	if err != nil {
		return nil, err
	}
	row.Latency = time.Duration(latencyMS) * time.Millisecond
	return &row, nil
}

// DegradedRate is the share of ok runs since the cutoff whose reply could
// not be parsed. It returns 0 when there were no runs.
func (r *RunRepo) DegradedRate(ctx context.Context, since time.Time) (float64, error) {
	const q = `
select coalesce(avg(case when degraded then 1.0 else 0.0 end), 0)
from calc_runs
where status = 'ok' and created_at >= $1`
	var rate float64
	if err := r.DB.QueryRowContext(ctx, q, since).Scan(&rate); err != nil {
		return 0, err
	}
	return rate, nil
}

// PurgeOlderThan deletes runs older than the given age.
func (r *RunRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from calc_runs where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
