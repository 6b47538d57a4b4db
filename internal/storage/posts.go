// internal/storage/posts.go
package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
)

const postColumns = `id, title, content, summary, tags, status, external_post_id,
	published_at, commit_ids, tokens_used, created_at`

func (p *Postgres) CreatePost(ctx context.Context, arg CreatePostParams) (model.Post, error) {
	tags := arg.Tags
	if tags == nil {
		tags = []string{}
	}
	commitIDs := arg.CommitIDs
	if commitIDs == nil {
		commitIDs = []int64{}
	}

	row := p.pool.QueryRow(ctx,
		`INSERT INTO posts (title, content, summary, tags, commit_ids, tokens_used)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING `+postColumns,
		arg.Title, arg.Content, arg.Summary, tags, commitIDs, arg.TokensUsed,
	)
	return scanPost(row)
}

func (p *Postgres) GetPost(ctx context.Context, id int64) (model.Post, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	return scanPost(row)
}

func (p *Postgres) ListPosts(ctx context.Context) ([]model.Post, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+postColumns+` FROM posts ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying posts: %w", err)
	}
	defer rows.Close()

	var posts []model.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// UpdatePost merges the non-nil fields of arg into the stored row. A nil
// Tags slice leaves tags untouched.
func (p *Postgres) UpdatePost(ctx context.Context, id int64, arg UpdatePostParams) (model.Post, error) {
	row := p.pool.QueryRow(ctx,
		`UPDATE posts
		 SET title            = COALESCE($2, title),
		     content          = COALESCE($3, content),
		     summary          = COALESCE($4, summary),
		     tags             = COALESCE($5, tags),
		     status           = COALESCE($6, status),
		     external_post_id = COALESCE($7, external_post_id),
		     published_at     = COALESCE($8, published_at)
		 WHERE id = $1
		 RETURNING `+postColumns,
		id, arg.Title, arg.Content, arg.Summary, arg.Tags, arg.Status,
		arg.ExternalPostID, arg.PublishedAt,
	)
	return scanPost(row)
}

func scanPost(row pgx.Row) (model.Post, error) {
	var post model.Post
	err := row.Scan(&post.ID, &post.Title, &post.Content, &post.Summary, &post.Tags,
		&post.Status, &post.ExternalPostID, &post.PublishedAt, &post.CommitIDs,
		&post.TokensUsed, &post.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Post{}, apperrors.ErrNotFound
	}
	if err != nil {
		return model.Post{}, fmt.Errorf("scanning post: %w", err)
	}
	return post, nil
}
