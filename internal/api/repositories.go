// internal/api/repositories.go
package api

import (
	"errors"
	"net/http"

	apperrors "devdigest/internal/errors"
	"devdigest/internal/model"
	"devdigest/internal/storage"
)

// listRepositories returns every registered repository.
// GET /api/repositories
func (h *Handler) listRepositories(w http.ResponseWriter, r *http.Request) {
	repos, err := h.deps.Store.ListRepositories(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to list repositories", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if repos == nil {
		repos = []model.Repository{}
	}
	respondWithJSON(w, http.StatusOK, repos)
}

// createRepository registers a repository after validating it exists on the
// external source.
// POST /api/repositories
func (h *Handler) createRepository(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Owner       string  `json:"owner"`
		Name        string  `json:"name"`
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Owner == "" || req.Name == "" {
		respondWithError(w, http.StatusBadRequest, "Request must include non-empty 'owner' and 'name'.")
		return
	}

	if _, err := h.deps.Store.GetRepositoryByOwnerAndName(r.Context(), req.Owner, req.Name); err == nil {
		respondWithError(w, http.StatusConflict, "Repository is already registered")
		return
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		h.deps.Logger.Error("Failed to check repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	exists, err := h.deps.Fetcher.RepositoryExists(r.Context(), req.Owner, req.Name)
	if err != nil {
		h.deps.Logger.Error("Failed to validate repository", "owner", req.Owner, "name", req.Name, "error", err)
		respondWithError(w, http.StatusBadGateway, "Could not validate repository with the external source")
		return
	}
	if !exists {
		respondWithError(w, http.StatusNotFound, "Repository not found on the external source")
		return
	}

	repo, err := h.deps.Store.CreateRepository(r.Context(), storage.CreateRepositoryParams{
		Owner:       req.Owner,
		Name:        req.Name,
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if err != nil {
		h.deps.Logger.Error("Failed to create repository", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusCreated, repo)
}

// updateRepository edits the description or toggles the active flag.
// PUT /api/repositories/{id}
func (h *Handler) updateRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	var req struct {
		Description *string `json:"description"`
		IsActive    *bool   `json:"is_active"`
	}
	if err := decodeJSON(r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	repo, err := h.deps.Store.UpdateRepository(r.Context(), id, storage.UpdateRepositoryParams{
		Description: req.Description,
		IsActive:    req.IsActive,
	})
	if errors.Is(err, apperrors.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("Failed to update repository", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, repo)
}

// deleteRepository removes a repository. Stored commits survive with a
// nulled repository reference.
// DELETE /api/repositories/{id}
func (h *Handler) deleteRepository(w http.ResponseWriter, r *http.Request) {
	id, ok := parseIDParam(r)
	if !ok {
		respondWithError(w, http.StatusBadRequest, "Invalid repository id")
		return
	}

	err := h.deps.Store.DeleteRepository(r.Context(), id)
	if errors.Is(err, apperrors.ErrNotFound) {
		respondWithError(w, http.StatusNotFound, "Repository not found")
		return
	}
	if err != nil {
		h.deps.Logger.Error("Failed to delete repository", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
