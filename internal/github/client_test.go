// internal/github/client_test.go
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "devdigest/internal/errors"
)

// setupTestClient creates a httptest server and a client pointing to it.
func setupTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	client := NewClient("", logger)

	// Point the wrapped go-github client at the test server.
	testClient, err := github.NewClient(server.Client()).WithEnterpriseURLs(server.URL, server.URL)
	require.NoError(t, err)
	client.gh = testClient

	return client, server
}

func TestClient_ListCommitsSince(t *testing.T) {
	since := time.Date(2025, 5, 26, 0, 0, 0, 0, time.UTC)

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/repos/acme/widgets/commits"), "unexpected path %s", r.URL.Path)
		assert.Equal(t, since.Format(time.RFC3339), r.URL.Query().Get("since"))
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `[
			{"sha": "aaa", "commit": {"author": {"name": "dev", "email": "dev@acme.io", "date": "2025-05-27T10:00:00Z"}, "message": "feat: first"}, "html_url": "https://example.com/aaa"},
			{"sha": "bbb", "commit": {"author": {"name": "dev", "email": "dev@acme.io", "date": "2025-05-28T10:00:00Z"}, "message": "fix: second"}, "html_url": "https://example.com/bbb"}
		]`)
	})
	client, _ := setupTestClient(t, handler)

	commits, err := client.ListCommitsSince(context.Background(), "acme", "widgets", since)

	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, "aaa", commits[0].SHA)
	assert.Equal(t, "feat: first", commits[0].Message)
	assert.Equal(t, "dev", commits[0].AuthorName)
	assert.Equal(t, "dev@acme.io", commits[0].AuthorEmail)
	assert.Equal(t, time.Date(2025, 5, 27, 10, 0, 0, 0, time.UTC), commits[0].AuthorDate)
	assert.Equal(t, "https://example.com/aaa", commits[0].URL)
}

func TestClient_ListCommitsSince_WrapsFetchError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	client, _ := setupTestClient(t, handler)

	_, err := client.ListCommitsSince(context.Background(), "acme", "widgets", time.Now())

	require.Error(t, err)
	var fetchErr *apperrors.FetchError
	require.ErrorAs(t, err, &fetchErr)
	assert.Equal(t, "acme", fetchErr.Owner)
	assert.Equal(t, "widgets", fetchErr.Name)
}

func TestClient_GetCommitDetail(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.True(t, strings.HasSuffix(r.URL.Path, "/repos/acme/widgets/commits/aaa"), "unexpected path %s", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, `{
			"sha": "aaa",
			"commit": {"author": {"name": "dev", "email": "dev@acme.io", "date": "2025-05-27T10:00:00Z"}, "message": "feat: first"},
			"html_url": "https://example.com/aaa",
			"stats": {"additions": 12, "deletions": 4, "total": 16},
			"files": [{"filename": "a.go"}, {"filename": "b.go"}, {"filename": "c.go"}]
		}`)
	})
	client, _ := setupTestClient(t, handler)

	detail, err := client.GetCommitDetail(context.Background(), "acme", "widgets", "aaa")

	require.NoError(t, err)
	assert.Equal(t, "aaa", detail.SHA)
	assert.Equal(t, 12, detail.Additions)
	assert.Equal(t, 4, detail.Deletions)
	assert.Equal(t, 3, detail.ChangedFiles)
}

func TestClient_RepositoryExists(t *testing.T) {
	t.Run("returns true for a reachable repository", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			fmt.Fprintln(w, `{"id": 1, "name": "widgets", "owner": {"login": "acme"}}`)
		})
		client, _ := setupTestClient(t, handler)

		exists, err := client.RepositoryExists(context.Background(), "acme", "widgets")

		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("returns false without error on 404", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprintln(w, `{"message": "Not Found"}`)
		})
		client, _ := setupTestClient(t, handler)

		exists, err := client.RepositoryExists(context.Background(), "acme", "ghost")

		require.NoError(t, err)
		assert.False(t, exists)
	})

	t.Run("propagates other failures", func(t *testing.T) {
		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		})
		client, _ := setupTestClient(t, handler)

		_, err := client.RepositoryExists(context.Background(), "acme", "widgets")

		require.Error(t, err)
		var fetchErr *apperrors.FetchError
		assert.ErrorAs(t, err, &fetchErr)
	})
}
