// internal/storage/commits.go
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
)

const commitColumns = `id, repository_id, sha, message, author_name, author_email,
	author_date, additions, deletions, changed_files, url, processed, created_at`

// GetCommitBySHA is the dedup gate: the orchestrator checks it before every
// insert and skips insertion on a hit.
func (p *Postgres) GetCommitBySHA(ctx context.Context, sha string) (model.Commit, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+commitColumns+` FROM commits WHERE sha = $1`, sha)
	return scanCommit(row)
}

func (p *Postgres) CreateCommit(ctx context.Context, arg CreateCommitParams) (model.Commit, error) {
	row := p.pool.QueryRow(ctx,
		`INSERT INTO commits (repository_id, sha, message, author_name, author_email,
		                      author_date, additions, deletions, changed_files, url)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING `+commitColumns,
		arg.RepositoryID, arg.SHA, arg.Message, arg.AuthorName, arg.AuthorEmail,
		arg.AuthorDate, arg.Additions, arg.Deletions, arg.ChangedFiles, arg.URL,
	)
	return scanCommit(row)
}

// GetCommitsSince returns commits authored at or after since, optionally
// filtered to one repository, oldest first.
func (p *Postgres) GetCommitsSince(ctx context.Context, since time.Time, repositoryID *int64) ([]model.Commit, error) {
	if repositoryID != nil {
		return p.queryCommits(ctx,
			`SELECT `+commitColumns+` FROM commits
			 WHERE author_date >= $1 AND repository_id = $2
			 ORDER BY author_date`,
			since, *repositoryID)
	}
	return p.queryCommits(ctx,
		`SELECT `+commitColumns+` FROM commits
		 WHERE author_date >= $1
		 ORDER BY author_date`,
		since)
}

func (p *Postgres) ListCommits(ctx context.Context, limit int) ([]model.Commit, error) {
	return p.queryCommits(ctx,
		`SELECT `+commitColumns+` FROM commits ORDER BY author_date DESC LIMIT $1`,
		limit)
}

// MarkCommitsProcessed flips the processed flag on the given commits.
// Idempotent; unknown ids are silently ignored.
func (p *Postgres) MarkCommitsProcessed(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := p.pool.Exec(ctx,
		`UPDATE commits SET processed = TRUE WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("marking commits processed: %w", err)
	}
	return nil
}

func (p *Postgres) queryCommits(ctx context.Context, sql string, args ...any) ([]model.Commit, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying commits: %w", err)
	}
	defer rows.Close()

	var commits []model.Commit
	for rows.Next() {
		c, err := scanCommit(rows)
		if err != nil {
			return nil, err
		}
		commits = append(commits, c)
	}
	return commits, rows.Err()
}

func scanCommit(row pgx.Row) (model.Commit, error) {
	var c model.Commit
	err := row.Scan(&c.ID, &c.RepositoryID, &c.SHA, &c.Message, &c.AuthorName, &c.AuthorEmail,
		&c.AuthorDate, &c.Additions, &c.Deletions, &c.ChangedFiles, &c.URL, &c.Processed, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Commit{}, apperrors.ErrNotFound
	}
	if err != nil {
		return model.Commit{}, fmt.Errorf("scanning commit: %w", err)
	}
	return c, nil
}
