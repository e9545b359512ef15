// Package state persists the processed-ID set that prevents repeat action
// on the same item across hunt cycles.
package state

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Scope identifies one processed item.
type Scope struct {
	App      string
	Instance string
	ItemID   string
}

// Store provides durable membership checks and inserts for processed items.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStore creates a new processed-ID store.
func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger.With().Str("component", "state").Logger(),
	}
}

// IsProcessed reports whether the scoped item has already been processed.
func (s *Store) IsProcessed(ctx context.Context, scope Scope) (bool, error) {
	var exists int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM processed_items WHERE app = ? AND instance = ? AND item_id = ?`,
		scope.App, scope.Instance, scope.ItemID,
	).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to query processed item: %w", err)
	}
	return true, nil
}

// AddProcessed records the scoped item as processed. Adding an id that is
// already present is a no-op.
func (s *Store) AddProcessed(ctx context.Context, scope Scope) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO processed_items (app, instance, item_id) VALUES (?, ?, ?)`,
		scope.App, scope.Instance, scope.ItemID,
	)
	if err != nil {
		return fmt.Errorf("failed to record processed item: %w", err)
	}

	s.logger.Debug().
		Str("app", scope.App).
		Str("instance", scope.Instance).
		Str("itemId", scope.ItemID).
		Msg("recorded processed item")

	return nil
}

// Count returns the number of processed items recorded for an instance.
func (s *Store) Count(ctx context.Context, app, instance string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM processed_items WHERE app = ? AND instance = ?`,
		app, instance,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count processed items: %w", err)
	}
	return count, nil
}

// Reset purges all processed items recorded for an instance, allowing every
// item to be hunted again.
func (s *Store) Reset(ctx context.Context, app, instance string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM processed_items WHERE app = ? AND instance = ?`,
		app, instance,
	)
	if err != nil {
		return fmt.Errorf("failed to reset processed items: %w", err)
	}

	if affected, err := result.RowsAffected(); err == nil {
		s.logger.Info().
			Str("app", app).
			Str("instance", instance).
			Int64("purged", affected).
			Msg("reset processed items")
	}

	return nil
}
