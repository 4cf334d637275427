// Package history records one row per channel sync pass.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"chansync/internal/domain/consts"
	"chansync/internal/domain/logger"
	"chansync/internal/models"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
)

// Run is the outcome of one channel pass.
type Run struct {
	ID         string
	Channel    string
	Source     models.Source
	StartedAt  time.Time
	FinishedAt time.Time
	Scanned    int
	Downloaded int
	Failed     int
	// Err is the pass's terminal error message, empty on success.
	Err string
}

// Start returns a run beginning now.
func Start(channel string, src models.Source) *Run {
	return &Run{
		ID:        uuid.NewString(),
		Channel:   channel,
		Source:    src,
		StartedAt: time.Now(),
	}
}

// Finish stamps the run's end and terminal error.
func (r *Run) Finish(err error) {
	r.FinishedAt = time.Now()
	if err != nil {
		r.Err = err.Error()
	}
}

// Store persists runs to the state database.
type Store struct {
	db *sql.DB
}

// NewStore returns a run store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Record inserts a finished run.
func (s *Store) Record(ctx context.Context, r *Run) error {
	query, args, err := squirrel.
		Insert(consts.DBSyncRuns).
		Columns(
			consts.QRunID,
			consts.QRunChannel,
			consts.QRunSource,
			consts.QRunStartedAt,
			consts.QRunFinishedAt,
			consts.QRunScanned,
			consts.QRunDownloaded,
			consts.QRunFailed,
			consts.QRunError,
		).
		Values(r.ID, r.Channel, string(r.Source), r.StartedAt, r.FinishedAt, r.Scanned, r.Downloaded, r.Failed, r.Err).
		PlaceholderFormat(squirrel.Question).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to record run for %q: %w", r.Channel, err)
	}
	logger.Pl.D(2, "Recorded run %s for %s/%s", r.ID, r.Channel, r.Source)
	return nil
}

// List returns up to limit runs, newest first. An empty channel lists every channel.
func (s *Store) List(ctx context.Context, channel string, limit int) ([]Run, error) {
	q := squirrel.
		Select(
			consts.QRunID,
			consts.QRunChannel,
			consts.QRunSource,
			consts.QRunStartedAt,
			consts.QRunFinishedAt,
			consts.QRunScanned,
			consts.QRunDownloaded,
			consts.QRunFailed,
			consts.QRunError,
		).
		From(consts.DBSyncRuns).
		OrderBy(fmt.Sprintf("%s DESC", consts.QRunStartedAt))
	if channel != "" {
		q = q.Where(squirrel.Eq{consts.QRunChannel: channel})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.PlaceholderFormat(squirrel.Question).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			logger.Pl.E("Could not close rows for sync runs: %v", closeErr)
		}
	}()

	var out []Run
	for rows.Next() {
		var r Run
		var src string
		var runErr sql.NullString
		if err := rows.Scan(&r.ID, &r.Channel, &src, &r.StartedAt, &r.FinishedAt, &r.Scanned, &r.Downloaded, &r.Failed, &runErr); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Source = models.Source(src)
		r.Err = runErr.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// Latest returns the most recent run per channel and source.
func (s *Store) Latest(ctx context.Context) (map[[2]string]Run, error) {
	runs, err := s.List(ctx, "", 0)
	if err != nil {
		return nil, err
	}
	out := make(map[[2]string]Run)
	for _, r := range runs {
		key := [2]string{r.Channel, string(r.Source)}
		if _, seen := out[key]; !seen {
			out[key] = r
		}
	}
	return out, nil
}
