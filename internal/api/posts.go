// internal/api/posts.go
package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
	"devdigest/internal/publisher"
	"devdigest/internal/storage"
)

// generateSummary builds a draft post from the commits stored since the
// given date.
// POST /api/generate-summary
func (h *Handler) generateSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SinceDate string `json:"sinceDate"`
	}
	if err := decodeJSON(r, &req); err != nil || req.SinceDate == "" {
		respondWithError(w, http.StatusBadRequest, "Request must include 'sinceDate'.")
		return
	}

	since, err := parseDate(req.SinceDate)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "sinceDate must be RFC3339 or YYYY-MM-DD")
		return
	}

	commits, err := h.deps.Store.GetCommitsSince(r.Context(), since, nil)
	if err != nil {
		h.deps.Logger.Error("Failed to load commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if len(commits) == 0 {
		respondWithError(w, http.StatusNotFound, fmt.Sprintf("No commits stored since %s", since.Format(time.RFC3339)))
		return
	}

	grouped, commitIDs, err := h.groupCommitsByRepo(r, commits)
	if err != nil {
		h.deps.Logger.Error("Failed to group commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	summary, err := h.deps.Generator.Generate(r.Context(), grouped, since, time.Now())
	if err != nil {
		h.deps.Logger.Error("Summary generation failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "Summary generation failed")
		return
	}

	post, err := h.deps.Store.CreatePost(r.Context(), storage.CreatePostParams{
		Title:      summary.Title,
		Content:    summary.Content,
		Summary:    &summary.Summary,
		Tags:       summary.Tags,
		CommitIDs:  commitIDs,
		TokensUsed: summary.TokensUsed,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to store draft post", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, post)
}

// groupCommitsByRepo keys commits by repository full name for the prompt.
// Orphaned commits (repository deleted since sync) group under "unknown".
func (h *Handler) groupCommitsByRepo(r *http.Request, commits []model.Commit) (map[string][]model.Commit, []int64, error) {
	repos, err := h.deps.Store.ListRepositories(r.Context())
	if err != nil {
		return nil, nil, err
	}
	names := make(map[int64]string, len(repos))
	for _, repo := range repos {
		names[repo.ID] = repo.FullName()
	}

	grouped := make(map[string][]model.Commit)
	ids := make([]int64, 0, len(commits))
	for _, c := range commits {
		key := "unknown"
		if c.RepositoryID != nil {
			if name, ok := names[*c.RepositoryID]; ok {
				key = name
			}
		}
		grouped[key] = append(grouped[key], c)
		ids = append(ids, c.ID)
	}
	return grouped, ids, nil
}

// enhanceContent rewrites draft content per user instructions.
// POST /api/enhance-content
func (h *Handler) enhanceContent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Content      string `json:"content"`
		Instructions string `json:"instructions"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Content == "" || req.Instructions == "" {
		respondWithError(w, http.StatusBadRequest, "Request must include 'content' and 'instructions'.")
		return
	}

	content, tokens, err := h.deps.Generator.Enhance(r.Context(), req.Content, req.Instructions)
	if err != nil {
		h.deps.Logger.Error("Content enhancement failed", "error", err)
		respondWithError(w, http.StatusBadGateway, "Content enhancement failed")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"content":     content,
		"tokens_used": tokens,
	})
}

// listPosts returns all posts, newest first.
// GET /api/blog-posts
func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.deps.Store.ListPosts(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to list posts", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if posts == nil {
		posts = []model.Post{}
	}
	respondWithJSON(w, http.StatusOK, posts)
}

// createPost stores a hand-written draft.
// POST /api/blog-posts
func (h *Handler) createPost(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string   `json:"title"`
		Content   string   `json:"content"`
		Summary   *string  `json:"summary"`
		Tags      []string `json:"tags"`
		CommitIDs []int64  `json:"commit_ids"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Title == "" || req.Content == "" {
		respondWithError(w, http.StatusBadRequest, "Request must include non-empty 'title' and 'content'.")
		return
	}

	post, err := h.deps.Store.CreatePost(r.Context(), storage.CreatePostParams{
		Title:     req.Title,
		Content:   req.Content,
		Summary:   req.Summary,
		Tags:      req.Tags,
		CommitIDs: req.CommitIDs,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to create post", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, post)
}

// updatePost edits a draft.
// PUT /api/blog-posts/{id}
func (h *Handler) updatePost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	var req struct {
		Title   *string  `json:"title"`
		Content *string  `json:"content"`
		Summary *string  `json:"summary"`
		Tags    []string `json:"tags"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	post, err := h.deps.Store.UpdatePost(r.Context(), id, storage.UpdatePostParams{
		Title:   req.Title,
		Content: req.Content,
		Summary: req.Summary,
		Tags:    req.Tags,
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("Failed to update post", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, post)
}

// publishPost writes a draft to the external network, records the external
// id, and marks the included commits processed. A publish failure is a
// structured 200 result so the draft is never lost.
// POST /api/publish/{id}
func (h *Handler) publishPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid post id")
		return
	}

	post, err := h.deps.Store.GetPost(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Post not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("Failed to load post", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if post.Status == model.PostStatusPublished {
		respondWithError(w, http.StatusConflict, "Post is already published")
		return
	}

	result := h.deps.Publisher.Publish(r.Context(), publisher.Request{
		Title:   post.Title,
		Content: post.Content,
		Tags:    post.Tags,
	})
	if !result.Success {
		h.deps.Logger.Warn("Publish failed", "post_id", id, "error", result.Error)
		respondWithJSON(w, http.StatusOK, result)
		return
	}

	now := time.Now()
	status := model.PostStatusPublished
	post, err = h.deps.Store.UpdatePost(r.Context(), id, storage.UpdatePostParams{
		Status:         &status,
		ExternalPostID: &result.PostID,
		PublishedAt:    &now,
	})
	if err != nil {
		h.deps.Logger.Error("Published but failed to record post state", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError,
			"Post published externally ("+result.PostID+") but recording its state failed")
		return
	}

	if err := h.deps.Store.MarkCommitsProcessed(r.Context(), post.CommitIDs); err != nil {
		h.deps.Logger.Error("Failed to mark commits processed", "post_id", id, "error", err)
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"result": result,
		"post":   post,
	})
}

// parseDate accepts RFC3339 or a bare YYYY-MM-DD date.
func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}
