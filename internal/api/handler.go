// internal/api/handler.go
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"devdigest/internal/checkpoint"
	"devdigest/internal/github"
	"devdigest/internal/model"
	"devdigest/internal/publisher"
	"devdigest/internal/storage"
)

// SyncRunner triggers one sync pass. Satisfied by *syncer.Syncer.
type SyncRunner interface {
	Run(ctx context.Context) (model.SyncResult, error)
}

// SummaryService is the language-model surface the handlers need.
// Satisfied by *ai.Generator.
type SummaryService interface {
	Generate(ctx context.Context, commitsByRepo map[string][]model.Commit, from, to time.Time) (model.Summary, error)
	Enhance(ctx context.Context, content, instructions string) (string, int, error)
}

// Deps is the container for API dependencies.
type Deps struct {
	Store       storage.Store
	Fetcher     github.Fetcher
	Syncer      SyncRunner
	Generator   SummaryService
	Publisher   publisher.Publisher
	Checkpoints *checkpoint.Manager
	Logger      *slog.Logger
}

// Handler holds the wired dependencies for all routes.
type Handler struct {
	deps Deps
}

// NewRouter creates and configures a new chi router with all API routes.
func NewRouter(deps Deps) http.Handler {
	h := &Handler{deps: deps}

	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Minute)) // sync and generation are slow

	r.Get("/health", h.healthCheck)
	r.Route("/api", func(r chi.Router) {
		r.Get("/stats", h.getStats)

		r.Get("/repositories", h.listRepositories)
		r.Post("/repositories", h.createRepository)
		r.Put("/repositories/{id}", h.updateRepository)
		r.Delete("/repositories/{id}", h.deleteRepository)

		r.Get("/commits", h.listCommits)
		r.Post("/sync", h.triggerSync)

		r.Post("/generate-summary", h.generateSummary)
		r.Post("/enhance-content", h.enhanceContent)

		r.Get("/blog-posts", h.listPosts)
		r.Post("/blog-posts", h.createPost)
		r.Put("/blog-posts/{id}", h.updatePost)
		r.Post("/publish/{id}", h.publishPost)

		r.Get("/config", h.listConfig)
		r.Post("/config", h.setConfig)
	})

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// getStats returns the dashboard projection plus the global checkpoint.
// GET /api/stats
func (h *Handler) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.deps.Store.GetDashboardStats(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to compute stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	lastSync, err := h.deps.Checkpoints.GlobalLastSync(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to read global checkpoint", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	resp := struct {
		model.DashboardStats
		LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	}{DashboardStats: stats}
	if !lastSync.IsZero() {
		resp.LastSyncTime = &lastSync
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// listCommits returns the most recent stored commits.
// GET /api/commits?limit=N
func (h *Handler) listCommits(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			respondWithError(w, http.StatusBadRequest, "Invalid 'limit' parameter. Must be an integer between 1 and 500.")
			return
		}
		limit = parsed
	}

	commits, err := h.deps.Store.ListCommits(r.Context(), limit)
	if err != nil {
		h.deps.Logger.Error("Failed to list commits", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commits == nil {
		commits = []model.Commit{}
	}
	respondWithJSON(w, http.StatusOK, commits)
}

// triggerSync runs the orchestrator. Partial failures still return 200 with
// the errors map populated; non-2xx is reserved for total failure.
// POST /api/sync
func (h *Handler) triggerSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Syncer.Run(r.Context())
	if err != nil {
		h.deps.Logger.Error("Sync failed", "error", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// listConfig returns all bot_config entries.
// GET /api/config
func (h *Handler) listConfig(w http.ResponseWriter, r *http.Request) {
	entries, err := h.deps.Store.ListConfig(r.Context())
	if err != nil {
		h.deps.Logger.Error("Failed to list config", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if entries == nil {
		entries = []model.ConfigEntry{}
	}
	respondWithJSON(w, http.StatusOK, entries)
}

// setConfig upserts one key/value pair.
// POST /api/config
func (h *Handler) setConfig(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Key == "" {
		respondWithError(w, http.StatusBadRequest, "Request must include a non-empty 'key' and a 'value'.")
		return
	}

	if err := h.deps.Store.SetConfigValue(r.Context(), req.Key, req.Value); err != nil {
		h.deps.Logger.Error("Failed to set config", "key", req.Key, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"key": req.Key, "value": req.Value})
}

func parseIDParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil && id > 0
}
