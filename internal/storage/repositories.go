// internal/storage/repositories.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
)

const repositoryColumns = `id, owner, name, description, is_active, last_sync_time, created_at`

func (p *Postgres) CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error) {
	isActive := true
	if arg.IsActive != nil {
		isActive = *arg.IsActive
	}

	row := p.pool.QueryRow(ctx,
		`INSERT INTO repositories (owner, name, description, is_active)
		 VALUES ($1, $2, $3, $4)
		 RETURNING `+repositoryColumns,
		arg.Owner, arg.Name, arg.Description, isActive,
	)
	return scanRepository(row)
}

func (p *Postgres) GetRepository(ctx context.Context, id int64) (model.Repository, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE id = $1`, id)
	return scanRepository(row)
}

func (p *Postgres) GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE owner = $1 AND name = $2`,
		owner, name)
	return scanRepository(row)
}

func (p *Postgres) ListRepositories(ctx context.Context) ([]model.Repository, error) {
	return p.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories ORDER BY id`)
}

func (p *Postgres) GetActiveRepositories(ctx context.Context) ([]model.Repository, error) {
	return p.queryRepositories(ctx,
		`SELECT `+repositoryColumns+` FROM repositories WHERE is_active ORDER BY id`)
}

// UpdateRepository merges the non-nil fields of arg into the stored row.
func (p *Postgres) UpdateRepository(ctx context.Context, id int64, arg UpdateRepositoryParams) (model.Repository, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE repositories
		 SET description    = COALESCE($2, description),
		     is_active      = COALESCE($3, is_active),
		     last_sync_time = COALESCE($4, last_sync_time)
		 WHERE id = $1
		 RETURNING `+repositoryColumns,
		id, arg.Description, arg.IsActive, arg.LastSyncTime,
	)
	return scanRepository(row)
}

func (p *Postgres) DeleteRepository(ctx context.Context, id int64) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM repositories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting repository %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

func (p *Postgres) queryRepositories(ctx context.Context, sql string, args ...any) ([]model.Repository, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		r, err := scanRepository(rows)
		if err != nil {
			return nil, err
		}
		repos = append(repos, r)
	}
	return repos, rows.Err()
}

func scanRepository(row pgx.Row) (model.Repository, error) {
	var r model.Repository
	err := row.Scan(&r.ID, &r.Owner, &r.Name, &r.Description, &r.IsActive, &r.LastSyncTime, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Repository{}, apperrors.ErrNotFound
	}
	if err != nil {
		return model.Repository{}, fmt.Errorf("scanning repository: %w", err)
	}
	return r, nil
}
