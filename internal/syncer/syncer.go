// internal/syncer/syncer.go
package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"devdigest/internal/checkpoint"
	"devdigest/internal/config"
	apperrors "devdigest/internal/errors"
	"devdigest/internal/github"
	"devdigest/internal/model"
	"devdigest/internal/storage"
)

// DefaultLookback bounds the first fetch for a repository that has never
// been synced.
const DefaultLookback = 7 * 24 * time.Hour

// Syncer walks the active repositories, fetches commit history since each
// repository's checkpoint, deduplicates against the store by content hash,
// persists the new commits and advances the checkpoints. Repositories are
// processed sequentially and in isolation: one repository's failure never
// blocks the others.
type Syncer struct {
	store       storage.Store
	fetcher     github.Fetcher
	checkpoints *checkpoint.Manager
	logger      *slog.Logger
	lookback    time.Duration
	policy      config.CheckpointPolicy

	// now is swappable for tests.
	now func() time.Time

	// Overlapping Run calls coalesce into a single execution; the dedup
	// check is racy otherwise.
	group singleflight.Group
}

// NewSyncer creates a new Syncer instance.
func NewSyncer(store storage.Store, fetcher github.Fetcher, checkpoints *checkpoint.Manager, logger *slog.Logger, lookback time.Duration, policy config.CheckpointPolicy) *Syncer {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	if policy == "" {
		policy = config.CheckpointAlways
	}
	return &Syncer{
		store:       store,
		fetcher:     fetcher,
		checkpoints: checkpoints,
		logger:      logger,
		lookback:    lookback,
		policy:      policy,
		now:         time.Now,
	}
}

// Run performs one full sync pass. It fails outright only when the active
// repository list cannot be loaded; every failure inside the per-repository
// loop is captured in the result's Errors map instead.
func (s *Syncer) Run(ctx context.Context) (model.SyncResult, error) {
	v, err, shared := s.group.Do("sync", func() (any, error) {
		return s.runOnce(ctx)
	})
	if shared {
		s.logger.Info("Sync trigger coalesced into an already-running pass")
	}
	if err != nil {
		return model.SyncResult{}, err
	}
	return v.(model.SyncResult), nil
}

func (s *Syncer) runOnce(ctx context.Context) (model.SyncResult, error) {
	s.logger.Info("Starting sync pass")

	repos, err := s.store.GetActiveRepositories(ctx)
	if err != nil {
		return model.SyncResult{}, fmt.Errorf("loading active repositories: %w", err)
	}

	var result model.SyncResult
	syncErrors := make(map[string]string)

	for _, repo := range repos {
		inserted, err := s.syncRepository(ctx, repo)
		result.NewCommits += inserted
		result.RepositoriesProcessed++
		if err != nil {
			syncErrors[repo.FullName()] = err.Error()
			s.logger.Error("Failed to sync repository", "owner", repo.Owner, "repo", repo.Name, "error", err)
		}
	}
	if len(syncErrors) > 0 {
		result.Errors = syncErrors
	}

	// The global checkpoint is display-only; a failed advance does not turn
	// a completed pass into a hard failure.
	if err := s.checkpoints.AdvanceGlobal(ctx, s.now()); err != nil {
		s.logger.Error("Failed to advance global checkpoint", "error", err)
	}

	s.logger.Info("Sync pass finished",
		"new_commits", result.NewCommits,
		"repositories", result.RepositoriesProcessed,
		"failed", len(syncErrors))
	return result, nil
}

// syncRepository handles the full synchronization logic for a single
// repository and returns the number of newly stored commits.
func (s *Syncer) syncRepository(ctx context.Context, repo model.Repository) (int, error) {
	logger := s.logger.With("owner", repo.Owner, "repo", repo.Name, "repo_id", repo.ID)

	since := s.sinceFor(repo)
	logger.Info("Fetching commits since", "timestamp", since.Format(time.RFC3339))

	candidates, err := s.fetcher.ListCommitsSince(ctx, repo.Owner, repo.Name, since)
	if err != nil {
		return 0, err
	}

	var (
		inserted      int
		candidateErrs []error
	)
	for _, candidate := range candidates {
		stored, err := s.storeCandidate(ctx, repo, candidate)
		if err != nil {
			candidateErrs = append(candidateErrs, fmt.Errorf("commit %s: %w", candidate.SHA, err))
			continue
		}
		if stored {
			inserted++
		}
	}
	logger.Info("Processed candidates", "fetched", len(candidates), "inserted", inserted, "failed", len(candidateErrs))

	// Advancing on partial candidate failure trades a small risk of missed
	// commits for a bounded fetch window next cycle. The on-success policy
	// keeps the window open until every candidate stores cleanly.
	if s.policy == config.CheckpointAlways || len(candidateErrs) == 0 {
		if err := s.checkpoints.MarkRepoSynced(ctx, repo.ID, s.now()); err != nil {
			candidateErrs = append(candidateErrs, err)
		}
	}

	if len(candidateErrs) > 0 {
		return inserted, errors.Join(candidateErrs...)
	}
	return inserted, nil
}

// sinceFor returns the effective lower bound of the fetch window: the
// repository's checkpoint when present, otherwise the bootstrap lookback.
func (s *Syncer) sinceFor(repo model.Repository) time.Time {
	if repo.LastSyncTime != nil {
		return *repo.LastSyncTime
	}
	return s.now().Add(-s.lookback)
}

// storeCandidate inserts one candidate commit unless its content hash is
// already stored. Returns true when a new row was created. Re-running sync
// with overlapping windows must not create duplicate commit rows; the hash
// check here is that guarantee.
func (s *Syncer) storeCandidate(ctx context.Context, repo model.Repository, candidate github.CommitSummary) (bool, error) {
	_, err := s.store.GetCommitBySHA(ctx, candidate.SHA)
	if err == nil {
		return false, nil // already have it
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}

	// The list response has no diff statistics; fetch the full commit.
	detail, err := s.fetcher.GetCommitDetail(ctx, repo.Owner, repo.Name, candidate.SHA)
	if err != nil {
		return false, err
	}

	_, err = s.store.CreateCommit(ctx, toCreateCommitParams(repo.ID, detail))
	if err != nil {
		return false, fmt.Errorf("storing commit: %w", err)
	}
	return true, nil
}

func toCreateCommitParams(repoID int64, detail github.CommitDetail) storage.CreateCommitParams {
	params := storage.CreateCommitParams{
		RepositoryID: &repoID,
		SHA:          detail.SHA,
		Message:      detail.Message,
		AuthorName:   detail.AuthorName,
		AuthorDate:   detail.AuthorDate,
		Additions:    detail.Additions,
		Deletions:    detail.Deletions,
		ChangedFiles: detail.ChangedFiles,
		URL:          detail.URL,
	}
	if detail.AuthorEmail != "" {
		params.AuthorEmail = &detail.AuthorEmail
	}
	return params
}
