// internal/checkpoint/checkpoint.go
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
	"devdigest/internal/storage"
)

// GlobalKey is the bot_config key holding the global last-sync timestamp.
const GlobalKey = "last_sync_time"

// Store is the slice of the storage contract the checkpoint manager needs.
type Store interface {
	UpdateRepository(ctx context.Context, id int64, arg storage.UpdateRepositoryParams) (model.Repository, error)
	SetConfigValue(ctx context.Context, key, value string) error
	GetConfigValue(ctx context.Context, key string) (model.ConfigEntry, error)
}

// Manager owns the two checkpoint concepts: the per-repository last_sync_time
// column and the global bot_config entry. Both are last-write-wins with no
// history retained. The global checkpoint is display-only and never gates a
// fetch window.
type Manager struct {
	store Store
}

func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// MarkRepoSynced advances one repository's checkpoint to t.
func (m *Manager) MarkRepoSynced(ctx context.Context, repoID int64, t time.Time) error {
	_, err := m.store.UpdateRepository(ctx, repoID, storage.UpdateRepositoryParams{
		LastSyncTime: &t,
	})
	if err != nil {
		return fmt.Errorf("advancing checkpoint for repository %d: %w", repoID, err)
	}
	return nil
}

// AdvanceGlobal sets the global checkpoint to t.
func (m *Manager) AdvanceGlobal(ctx context.Context, t time.Time) error {
	return m.store.SetConfigValue(ctx, GlobalKey, t.UTC().Format(time.RFC3339))
}

// GlobalLastSync reads the global checkpoint. The zero time and a nil error
// mean no sync has run yet.
func (m *Manager) GlobalLastSync(ctx context.Context) (time.Time, error) {
	entry, err := m.store.GetConfigValue(ctx, GlobalKey)
	if errors.Is(err, apperrors.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}

	t, err := time.Parse(time.RFC3339, entry.Value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing global checkpoint %q: %w", entry.Value, err)
	}
	return t, nil
}
