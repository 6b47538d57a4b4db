// internal/model/models.go
package model

import "time"

// Repository is a source repository watched by the sync pipeline.
type Repository struct {
	ID           int64      `json:"id"`
	Owner        string     `json:"owner"`
	Name         string     `json:"name"`
	Description  *string    `json:"description,omitempty"`
	IsActive     bool       `json:"is_active"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// FullName returns the owner/name identifier used by the external source.
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Commit is a single stored VCS commit. Commits are immutable facts once
// stored; only the Processed flag is ever flipped, after the commit has been
// included in a published post.
type Commit struct {
	ID           int64     `json:"id"`
	RepositoryID *int64    `json:"repository_id,omitempty"`
	SHA          string    `json:"sha"`
	Message      string    `json:"message"`
	AuthorName   string    `json:"author_name"`
	AuthorEmail  *string   `json:"author_email,omitempty"`
	AuthorDate   time.Time `json:"author_date"`
	Additions    int       `json:"additions"`
	Deletions    int       `json:"deletions"`
	ChangedFiles int       `json:"changed_files"`
	URL          string    `json:"url"`
	Processed    bool      `json:"processed"`
	CreatedAt    time.Time `json:"created_at"`
}

// PostStatus is the lifecycle state of a blog post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
	PostStatusScheduled PostStatus = "scheduled"
)

// Post is a generated (or hand-edited) development summary. It transitions
// draft -> published exactly once and never regresses.
type Post struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Content        string     `json:"content"`
	Summary        *string    `json:"summary,omitempty"`
	Tags           []string   `json:"tags,omitempty"`
	Status         PostStatus `json:"status"`
	ExternalPostID *string    `json:"external_post_id,omitempty"`
	PublishedAt    *time.Time `json:"published_at,omitempty"`
	CommitIDs      []int64    `json:"commit_ids,omitempty"`
	TokensUsed     int        `json:"tokens_used"`
	CreatedAt      time.Time  `json:"created_at"`
}

// ConfigEntry is one bot_config key/value row. At most one live value per
// key; last write wins.
type ConfigEntry struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SyncResult is the aggregate outcome of one sync invocation.
type SyncResult struct {
	NewCommits            int               `json:"new_commits"`
	RepositoriesProcessed int               `json:"repositories_processed"`
	Errors                map[string]string `json:"errors,omitempty"`
}

// DashboardStats is a read-only projection for the dashboard, never persisted.
type DashboardStats struct {
	ActiveRepositories int   `json:"active_repositories"`
	CommitsLast7Days   int   `json:"commits_last_7_days"`
	PublishedPosts     int   `json:"published_posts"`
	TotalTokensUsed    int64 `json:"total_tokens_used"`
}

// Summary is the structured output of the language-model generator.
type Summary struct {
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	Summary    string   `json:"summary"`
	Tags       []string `json:"tags"`
	TokensUsed int      `json:"tokens_used"`
}
