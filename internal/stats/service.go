// Package stats tracks hunt statistics and the hourly API usage quota.
package stats

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Metrics tracked per app.
const (
	MetricHunted   = "hunted"
	MetricUpgraded = "upgraded"
)

// Service provides statistics counters and hourly API quota bookkeeping.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger

	// Overridable in tests to pin the hour bucket.
	now func() time.Time
}

// NewService creates a new stats service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "stats").Logger(),
		now:    time.Now,
	}
}

// Increment adds n to a metric counter for an app.
func (s *Service) Increment(ctx context.Context, app, metric string, n int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stats (app, metric, value) VALUES (?, ?, ?)
		 ON CONFLICT (app, metric) DO UPDATE SET value = value + excluded.value`,
		app, metric, n,
	)
	if err != nil {
		return fmt.Errorf("failed to increment stat %s/%s: %w", app, metric, err)
	}
	return nil
}

// Get returns the current value of a metric counter.
func (s *Service) Get(ctx context.Context, app, metric string) (int64, error) {
	var value int64
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM stats WHERE app = ? AND metric = ?`,
		app, metric,
	).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read stat %s/%s: %w", app, metric, err)
	}
	return value, nil
}

// Totals returns all metric counters for an app.
func (s *Service) Totals(ctx context.Context, app string) (map[string]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric, value FROM stats WHERE app = ?`, app,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read stats: %w", err)
	}
	defer rows.Close()

	totals := make(map[string]int64)
	for rows.Next() {
		var metric string
		var value int64
		if err := rows.Scan(&metric, &value); err != nil {
			return nil, fmt.Errorf("failed to scan stat row: %w", err)
		}
		totals[metric] = value
	}
	return totals, rows.Err()
}

// hourBucket keys api_usage rows by UTC hour.
func (s *Service) hourBucket() string {
	return s.now().UTC().Format("2006-01-02T15")
}

// IncrementHourlyUsage counts n API calls against the current hour.
func (s *Service) IncrementHourlyUsage(ctx context.Context, app string, n int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_usage (app, hour_bucket, calls) VALUES (?, ?, ?)
		 ON CONFLICT (app, hour_bucket) DO UPDATE SET calls = calls + excluded.calls`,
		app, s.hourBucket(), n,
	)
	if err != nil {
		return fmt.Errorf("failed to increment hourly usage for %s: %w", app, err)
	}
	return nil
}

// HourlyUsage returns the number of API calls counted in the current hour.
func (s *Service) HourlyUsage(ctx context.Context, app string) (int64, error) {
	var calls int64
	err := s.db.QueryRowContext(ctx,
		`SELECT calls FROM api_usage WHERE app = ? AND hour_bucket = ?`,
		app, s.hourBucket(),
	).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read hourly usage for %s: %w", app, err)
	}
	return calls, nil
}

// HourlyCapExceeded reports whether usage in the current hour has reached
// the cap. A non-positive cap disables the quota.
func (s *Service) HourlyCapExceeded(ctx context.Context, app string, cap int64) (bool, error) {
	if cap <= 0 {
		return false, nil
	}
	usage, err := s.HourlyUsage(ctx, app)
	if err != nil {
		return false, err
	}
	return usage >= cap, nil
}

// PruneHourlyUsage deletes usage buckets older than the retention window.
func (s *Service) PruneHourlyUsage(ctx context.Context, retain time.Duration) error {
	cutoff := s.now().UTC().Add(-retain).Format("2006-01-02T15")
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM api_usage WHERE hour_bucket < ?`, cutoff,
	)
	if err != nil {
		return fmt.Errorf("failed to prune hourly usage: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected > 0 {
		s.logger.Debug().Int64("pruned", affected).Msg("pruned old hourly usage buckets")
	}
	return nil
}
