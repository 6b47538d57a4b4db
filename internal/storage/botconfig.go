// internal/storage/botconfig.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
)

func (p *Postgres) GetConfigValue(ctx context.Context, key string) (model.ConfigEntry, error) {
	var entry model.ConfigEntry
	err := p.pool.QueryRow(ctx,
		`SELECT key, value, updated_at FROM bot_config WHERE key = $1`, key).
		Scan(&entry.Key, &entry.Value, &entry.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.ConfigEntry{}, apperrors.ErrNotFound
	}
	if err != nil {
		return model.ConfigEntry{}, fmt.Errorf("reading config %q: %w", key, err)
	}
	return entry, nil
}

// SetConfigValue upserts one key/value pair. Last write wins.
func (p *Postgres) SetConfigValue(ctx context.Context, key, value string) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO bot_config (key, value, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		key, value)
	if err != nil {
		return fmt.Errorf("writing config %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) ListConfig(ctx context.Context) ([]model.ConfigEntry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT key, value, updated_at FROM bot_config ORDER BY key`)
	if err != nil {
		return nil, fmt.Errorf("listing config: %w", err)
	}
	defer rows.Close()

	var entries []model.ConfigEntry
	for rows.Next() {
		var entry model.ConfigEntry
		if err := rows.Scan(&entry.Key, &entry.Value, &entry.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning config entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// GetDashboardStats is a read-only projection, derived on every call.
func (p *Postgres) GetDashboardStats(ctx context.Context) (model.DashboardStats, error) {
	var stats model.DashboardStats
	err := p.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM repositories WHERE is_active),
			(SELECT count(*) FROM commits WHERE author_date >= now() - interval '7 days'),
			(SELECT count(*) FROM posts WHERE status = 'published'),
			(SELECT COALESCE(sum(tokens_used), 0) FROM posts)`).
		Scan(&stats.ActiveRepositories, &stats.CommitsLast7Days, &stats.PublishedPosts, &stats.TotalTokensUsed)
	if err != nil {
		return model.DashboardStats{}, fmt.Errorf("computing dashboard stats: %w", err)
	}
	return stats, nil
}
