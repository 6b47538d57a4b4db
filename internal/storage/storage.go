// internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"devdigest/internal/model"
)

// Store is the durable keyed storage for repositories, commits, posts and
// bot configuration. It is the single source of truth for "have we seen this
// commit"; the orchestrator and checkpoint manager never hold their own
// copies.
type Store interface {
	CreateRepository(ctx context.Context, arg CreateRepositoryParams) (model.Repository, error)
	GetRepository(ctx context.Context, id int64) (model.Repository, error)
	GetRepositoryByOwnerAndName(ctx context.Context, owner, name string) (model.Repository, error)
	ListRepositories(ctx context.Context) ([]model.Repository, error)
	GetActiveRepositories(ctx context.Context) ([]model.Repository, error)
	UpdateRepository(ctx context.Context, id int64, arg UpdateRepositoryParams) (model.Repository, error)
	DeleteRepository(ctx context.Context, id int64) error

	GetCommitBySHA(ctx context.Context, sha string) (model.Commit, error)
	CreateCommit(ctx context.Context, arg CreateCommitParams) (model.Commit, error)
	GetCommitsSince(ctx context.Context, since time.Time, repositoryID *int64) ([]model.Commit, error)
	ListCommits(ctx context.Context, limit int) ([]model.Commit, error)
	MarkCommitsProcessed(ctx context.Context, ids []int64) error

	CreatePost(ctx context.Context, arg CreatePostParams) (model.Post, error)
	GetPost(ctx context.Context, id int64) (model.Post, error)
	ListPosts(ctx context.Context) ([]model.Post, error)
	UpdatePost(ctx context.Context, id int64, arg UpdatePostParams) (model.Post, error)

	GetConfigValue(ctx context.Context, key string) (model.ConfigEntry, error)
	SetConfigValue(ctx context.Context, key, value string) error
	ListConfig(ctx context.Context) ([]model.ConfigEntry, error)

	GetDashboardStats(ctx context.Context) (model.DashboardStats, error)
}

// CreateRepositoryParams holds the fields for registering a repository.
type CreateRepositoryParams struct {
	Owner       string
	Name        string
	Description *string
	IsActive    *bool // defaults to true when nil
}

// UpdateRepositoryParams is a partial update; nil fields are left untouched.
type UpdateRepositoryParams struct {
	Description  *string
	IsActive     *bool
	LastSyncTime *time.Time
}

// CreateCommitParams holds the fields for inserting one commit.
type CreateCommitParams struct {
	RepositoryID *int64
	SHA          string
	Message      string
	AuthorName   string
	AuthorEmail  *string
	AuthorDate   time.Time
	Additions    int
	Deletions    int
	ChangedFiles int
	URL          string
}

// CreatePostParams holds the fields for creating a draft post.
type CreatePostParams struct {
	Title      string
	Content    string
	Summary    *string
	Tags       []string
	CommitIDs  []int64
	TokensUsed int
}

// UpdatePostParams is a partial update; nil fields are left untouched.
type UpdatePostParams struct {
	Title          *string
	Content        *string
	Summary        *string
	Tags           []string
	Status         *model.PostStatus
	ExternalPostID *string
	PublishedAt    *time.Time
}

// Postgres implements Store over a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Store backed by the given pool. The schema is
// expected to be migrated already (cmd/service runs golang-migrate at
// startup).
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

var _ Store = (*Postgres)(nil)
