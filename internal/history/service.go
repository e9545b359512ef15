package history

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"
)

// Service provides history management functionality.
type Service struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewService creates a new history service.
func NewService(db *sql.DB, logger zerolog.Logger) *Service {
	return &Service{
		db:     db,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// Log records a processed-media event.
func (s *Service) Log(ctx context.Context, app, instance string, category Category, mediaName, itemID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history (app, instance, category, media_name, item_id) VALUES (?, ?, ?, ?, ?)`,
		app, instance, string(category), mediaName, itemID,
	)
	if err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}

	s.logger.Debug().
		Str("app", app).
		Str("instance", instance).
		Str("category", string(category)).
		Str("media", mediaName).
		Msg("logged processed media")

	return nil
}

// List lists history entries with pagination and optional filtering,
// newest first.
func (s *Service) List(ctx context.Context, opts ListOptions) (*ListResponse, error) {
	if opts.Page < 1 {
		opts.Page = 1
	}
	if opts.PageSize < 1 {
		opts.PageSize = 50
	}
	if opts.PageSize > 100 {
		opts.PageSize = 100
	}

	where := "1=1"
	args := []any{}
	if opts.App != "" {
		where += " AND app = ?"
		args = append(args, opts.App)
	}
	if opts.Category != "" {
		where += " AND category = ?"
		args = append(args, opts.Category)
	}

	var totalCount int64
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM history WHERE "+where, args...,
	).Scan(&totalCount); err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}

	query := "SELECT id, app, instance, category, media_name, item_id, created_at FROM history WHERE " +
		where + " ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, opts.PageSize, (opts.Page-1)*opts.PageSize)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	defer rows.Close()

	entries := make([]*Entry, 0, opts.PageSize)
	for rows.Next() {
		var entry Entry
		var category string
		if err := rows.Scan(&entry.ID, &entry.App, &entry.Instance, &category, &entry.MediaName, &entry.ItemID, &entry.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		entry.Category = Category(category)
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history rows: %w", err)
	}

	totalPages := int(totalCount) / opts.PageSize
	if int(totalCount)%opts.PageSize > 0 {
		totalPages++
	}

	return &ListResponse{
		Items:      entries,
		Page:       opts.Page,
		PageSize:   opts.PageSize,
		TotalCount: totalCount,
		TotalPages: totalPages,
	}, nil
}

// DeleteAll deletes all history entries.
func (s *Service) DeleteAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}
