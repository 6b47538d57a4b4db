// internal/syncer/syncer_test.go
package syncer

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"devdigest/internal/checkpoint"
	"devdigest/internal/config"
	apperrors "devdigest/internal/errors"
	"devdigest/internal/github"
	"devdigest/internal/model"
	"devdigest/internal/storage"
)

// MockFetcher is a mock of the github.Fetcher interface.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) ListCommitsSince(ctx context.Context, owner, name string, since time.Time) ([]github.CommitSummary, error) {
	args := m.Called(ctx, owner, name, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]github.CommitSummary), args.Error(1)
}

func (m *MockFetcher) GetCommitDetail(ctx context.Context, owner, name, sha string) (github.CommitDetail, error) {
	args := m.Called(ctx, owner, name, sha)
	return args.Get(0).(github.CommitDetail), args.Error(1)
}

func (m *MockFetcher) RepositoryExists(ctx context.Context, owner, name string) (bool, error) {
	args := m.Called(ctx, owner, name)
	return args.Bool(0), args.Error(1)
}

// fakeStore is an in-memory storage.Store for exercising the real dedup and
// checkpoint behavior across sync passes.
type fakeStore struct {
	mu           sync.Mutex
	repos        map[int64]model.Repository
	commits      []model.Commit
	configVals   map[string]string
	nextCommitID int64

	failActiveList error
	failCreateSHA  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		repos:         make(map[int64]model.Repository),
		configVals:    make(map[string]string),
		failCreateSHA: make(map[string]error),
	}
}

func (f *fakeStore) addRepo(r model.Repository) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.repos[r.ID] = r
}

func (f *fakeStore) GetActiveRepositories(_ context.Context) ([]model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failActiveList != nil {
		return nil, f.failActiveList
	}
	var out []model.Repository
	for id := int64(1); id <= int64(len(f.repos)); id++ {
		if r, ok := f.repos[id]; ok && r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) GetCommitBySHA(_ context.Context, sha string) (model.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.commits {
		if c.SHA == sha {
			return c, nil
		}
	}
	return model.Commit{}, apperrors.ErrNotFound
}

func (f *fakeStore) CreateCommit(_ context.Context, arg storage.CreateCommitParams) (model.Commit, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failCreateSHA[arg.SHA]; ok {
		return model.Commit{}, err
	}
	f.nextCommitID++
	c := model.Commit{
		ID:           f.nextCommitID,
		RepositoryID: arg.RepositoryID,
		SHA:          arg.SHA,
		Message:      arg.Message,
		AuthorName:   arg.AuthorName,
		AuthorEmail:  arg.AuthorEmail,
		AuthorDate:   arg.AuthorDate,
		Additions:    arg.Additions,
		Deletions:    arg.Deletions,
		ChangedFiles: arg.ChangedFiles,
		URL:          arg.URL,
	}
	f.commits = append(f.commits, c)
	return c, nil
}

func (f *fakeStore) UpdateRepository(_ context.Context, id int64, arg storage.UpdateRepositoryParams) (model.Repository, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.repos[id]
	if !ok {
		return model.Repository{}, apperrors.ErrNotFound
	}
	if arg.Description != nil {
		r.Description = arg.Description
	}
	if arg.IsActive != nil {
		r.IsActive = *arg.IsActive
	}
	if arg.LastSyncTime != nil {
		r.LastSyncTime = arg.LastSyncTime
	}
	f.repos[id] = r
	return r, nil
}

func (f *fakeStore) SetConfigValue(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.configVals[key] = value
	return nil
}

func (f *fakeStore) GetConfigValue(_ context.Context, key string) (model.ConfigEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.configVals[key]
	if !ok {
		return model.ConfigEntry{}, apperrors.ErrNotFound
	}
	return model.ConfigEntry{Key: key, Value: v}, nil
}

// The orchestrator never touches the remaining Store operations.

func (f *fakeStore) CreateRepository(context.Context, storage.CreateRepositoryParams) (model.Repository, error) {
	return model.Repository{}, errors.New("not used by syncer")
}
func (f *fakeStore) GetRepository(context.Context, int64) (model.Repository, error) {
	return model.Repository{}, apperrors.ErrNotFound
}
func (f *fakeStore) GetRepositoryByOwnerAndName(context.Context, string, string) (model.Repository, error) {
	return model.Repository{}, apperrors.ErrNotFound
}
func (f *fakeStore) ListRepositories(context.Context) ([]model.Repository, error) { return nil, nil }
func (f *fakeStore) DeleteRepository(context.Context, int64) error                { return nil }
func (f *fakeStore) GetCommitsSince(context.Context, time.Time, *int64) ([]model.Commit, error) {
	return nil, nil
}
func (f *fakeStore) ListCommits(context.Context, int) ([]model.Commit, error) { return nil, nil }
func (f *fakeStore) MarkCommitsProcessed(context.Context, []int64) error      { return nil }
func (f *fakeStore) CreatePost(context.Context, storage.CreatePostParams) (model.Post, error) {
	return model.Post{}, errors.New("not used by syncer")
}
func (f *fakeStore) GetPost(context.Context, int64) (model.Post, error) {
	return model.Post{}, apperrors.ErrNotFound
}
func (f *fakeStore) ListPosts(context.Context) ([]model.Post, error) { return nil, nil }
func (f *fakeStore) UpdatePost(context.Context, int64, storage.UpdatePostParams) (model.Post, error) {
	return model.Post{}, apperrors.ErrNotFound
}
func (f *fakeStore) ListConfig(context.Context) ([]model.ConfigEntry, error) { return nil, nil }
func (f *fakeStore) GetDashboardStats(context.Context) (model.DashboardStats, error) {
	return model.DashboardStats{}, nil
}

var _ storage.Store = (*fakeStore)(nil)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestSyncer(store storage.Store, fetcher github.Fetcher, policy config.CheckpointPolicy, now time.Time) *Syncer {
	s := NewSyncer(store, fetcher, checkpoint.NewManager(store), testLogger(), DefaultLookback, policy)
	s.now = func() time.Time { return now }
	return s
}

func summary(sha string) github.CommitSummary {
	return github.CommitSummary{
		SHA:        sha,
		Message:    "change " + sha,
		AuthorName: "dev",
		AuthorDate: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		URL:        "https://example.com/" + sha,
	}
}

func detail(sha string) github.CommitDetail {
	return github.CommitDetail{
		CommitSummary: summary(sha),
		Additions:     10,
		Deletions:     3,
		ChangedFiles:  2,
	}
}

func TestSyncer_FirstSyncThenIdempotentRerun(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true})

	fetcher := new(MockFetcher)
	fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", mock.Anything).
		Return([]github.CommitSummary{summary("aaa"), summary("bbb")}, nil)
	fetcher.On("GetCommitDetail", mock.Anything, "acme", "widgets", "aaa").Return(detail("aaa"), nil)
	fetcher.On("GetCommitDetail", mock.Anything, "acme", "widgets", "bbb").Return(detail("bbb"), nil)

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewCommits)
	assert.Equal(t, 1, result.RepositoriesProcessed)
	assert.Empty(t, result.Errors)

	require.Len(t, store.commits, 2)
	for _, c := range store.commits {
		assert.False(t, c.Processed)
		assert.Equal(t, int64(1), *c.RepositoryID)
	}
	require.NotNil(t, store.repos[1].LastSyncTime)
	assert.Equal(t, now, *store.repos[1].LastSyncTime)

	// Second run: the fetcher still returns both commits, but the dedup gate
	// must reject them.
	result, err = s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.NewCommits)
	assert.Len(t, store.commits, 2)
}

func TestSyncer_DedupWithinSingleRun(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true})

	fetcher := new(MockFetcher)
	// The source returns the same hash twice in one window.
	fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", mock.Anything).
		Return([]github.CommitSummary{summary("aaa"), summary("aaa")}, nil)
	fetcher.On("GetCommitDetail", mock.Anything, "acme", "widgets", "aaa").Return(detail("aaa"), nil).Once()

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NewCommits)
	assert.Len(t, store.commits, 1)
	fetcher.AssertExpectations(t)
}

func TestSyncer_PartialFailureIsolation(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "one", Name: "alpha", IsActive: true})
	store.addRepo(model.Repository{ID: 2, Owner: "two", Name: "bravo", IsActive: true})
	store.addRepo(model.Repository{ID: 3, Owner: "three", Name: "charlie", IsActive: true})

	fetcher := new(MockFetcher)
	fetcher.On("ListCommitsSince", mock.Anything, "one", "alpha", mock.Anything).
		Return([]github.CommitSummary{summary("a1")}, nil)
	fetcher.On("ListCommitsSince", mock.Anything, "two", "bravo", mock.Anything).
		Return(nil, errors.New("upstream outage"))
	fetcher.On("ListCommitsSince", mock.Anything, "three", "charlie", mock.Anything).
		Return([]github.CommitSummary{summary("c1")}, nil)
	fetcher.On("GetCommitDetail", mock.Anything, "one", "alpha", "a1").Return(detail("a1"), nil)
	fetcher.On("GetCommitDetail", mock.Anything, "three", "charlie", "c1").Return(detail("c1"), nil)

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.NewCommits)
	assert.Equal(t, 3, result.RepositoriesProcessed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors, "two/bravo")
	assert.Contains(t, result.Errors["two/bravo"], "upstream outage")

	// The failed repository's checkpoint must not move.
	assert.Nil(t, store.repos[2].LastSyncTime)
	require.NotNil(t, store.repos[1].LastSyncTime)
	require.NotNil(t, store.repos[3].LastSyncTime)
}

func TestSyncer_CheckpointMonotonicity(t *testing.T) {
	ctx := context.Background()
	before := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true, LastSyncTime: &before})
	inactiveCheckpoint := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	store.addRepo(model.Repository{ID: 2, Owner: "acme", Name: "dormant", IsActive: false, LastSyncTime: &inactiveCheckpoint})

	fetcher := new(MockFetcher)
	fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", before).
		Return([]github.CommitSummary{}, nil)

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	_, err := s.Run(ctx)
	require.NoError(t, err)

	assert.True(t, !store.repos[1].LastSyncTime.Before(before), "active checkpoint must not regress")
	assert.Equal(t, now, *store.repos[1].LastSyncTime)
	assert.Equal(t, inactiveCheckpoint, *store.repos[2].LastSyncTime, "inactive checkpoint must be untouched")
	fetcher.AssertExpectations(t)
}

func TestSyncer_BootstrapLookbackWindow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true})

	fetcher := new(MockFetcher)
	fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", now.Add(-DefaultLookback)).
		Return([]github.CommitSummary{}, nil)

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	_, err := s.Run(ctx)
	require.NoError(t, err)
	fetcher.AssertExpectations(t)
}

func TestSyncer_CheckpointPolicyOnCandidateFailure(t *testing.T) {
	setup := func() (*fakeStore, *MockFetcher) {
		store := newFakeStore()
		store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true})
		store.failCreateSHA["bad"] = errors.New("disk full")

		fetcher := new(MockFetcher)
		fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", mock.Anything).
			Return([]github.CommitSummary{summary("good"), summary("bad")}, nil)
		fetcher.On("GetCommitDetail", mock.Anything, "acme", "widgets", "good").Return(detail("good"), nil)
		fetcher.On("GetCommitDetail", mock.Anything, "acme", "widgets", "bad").Return(detail("bad"), nil)
		return store, fetcher
	}
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	t.Run("always advances despite a failed candidate", func(t *testing.T) {
		store, fetcher := setup()
		s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

		result, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.NewCommits)
		assert.Contains(t, result.Errors["acme/widgets"], "disk full")
		require.NotNil(t, store.repos[1].LastSyncTime)
		assert.Equal(t, now, *store.repos[1].LastSyncTime)
	})

	t.Run("on-success holds the window open", func(t *testing.T) {
		store, fetcher := setup()
		s := newTestSyncer(store, fetcher, config.CheckpointOnSuccess, now)

		result, err := s.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.NewCommits)
		assert.Contains(t, result.Errors["acme/widgets"], "disk full")
		assert.Nil(t, store.repos[1].LastSyncTime)
	})
}

func TestSyncer_GlobalCheckpointAdvancesDespiteErrors(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.addRepo(model.Repository{ID: 1, Owner: "acme", Name: "widgets", IsActive: true})

	fetcher := new(MockFetcher)
	fetcher.On("ListCommitsSince", mock.Anything, "acme", "widgets", mock.Anything).
		Return(nil, errors.New("boom"))

	s := newTestSyncer(store, fetcher, config.CheckpointAlways, now)

	result, err := s.Run(ctx)
	require.NoError(t, err)
	assert.Len(t, result.Errors, 1)
	assert.Equal(t, now.UTC().Format(time.RFC3339), store.configVals[checkpoint.GlobalKey])
}

func TestSyncer_FailsHardWhenRepositoryListUnavailable(t *testing.T) {
	store := newFakeStore()
	store.failActiveList = errors.New("connection refused")

	s := newTestSyncer(store, new(MockFetcher), config.CheckpointAlways, time.Now())

	_, err := s.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading active repositories")
}
