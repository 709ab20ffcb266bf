// Package admin serves the dashboard and metrics aggregation endpoints.
// Both responses are cached in Redis for a short TTL; the cache is
// advisory and every cache failure falls through to the stores.
package admin

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/courteous/edge-consult-backend/internal/httpx"
	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/store"
)

const cacheTTL = 60 * time.Second

// PostStats defines the post aggregations the dashboard needs.
type PostStats interface {
	CountPosts(ctx context.Context) (int64, error)
	CountPostsByCategory(ctx context.Context) (map[string]int64, error)
	TopPostsByLikes(ctx context.Context, limit int64) ([]models.PostSummary, error)
	TopPostsByComments(ctx context.Context, limit int64) ([]models.PostSummary, error)
}

// UserStats defines the user aggregations the dashboard needs.
type UserStats interface {
	ListUsers(ctx context.Context) ([]models.User, error)
	CountUsersByRole(ctx context.Context) (map[string]int64, error)
}

// Cache is the advisory JSON cache for aggregate responses.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) error
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
}

// Handler holds the admin HTTP handlers.
type Handler struct {
	posts PostStats
	users UserStats
	cache Cache
}

func NewHandler(posts PostStats, users UserStats, cache Cache) *Handler {
	return &Handler{posts: posts, users: users, cache: cache}
}

type dashboardResponse struct {
	TotalPosts      int64            `json:"totalPosts"`
	PostsByCategory map[string]int64 `json:"postsByCategory"`
	Users           []models.User    `json:"users"`
}

type metricsResponse struct {
	UsersByRole        map[string]int64     `json:"usersByRole"`
	TopPostsByLikes    []models.PostSummary `json:"topPostsByLikes"`
	TopPostsByComments []models.PostSummary `json:"topPostsByComments"`
}

// Dashboard handles GET /admin-dashboard.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached dashboardResponse
	if h.cacheGet(ctx, "admin:dashboard", &cached) {
		httpx.JSON(w, http.StatusOK, cached)
		return
	}

	totalPosts, err := h.posts.CountPosts(ctx)
	if err != nil {
		h.fail(w, err, "count posts")
		return
	}
	byCategory, err := h.posts.CountPostsByCategory(ctx)
	if err != nil {
		h.fail(w, err, "count posts by category")
		return
	}
	users, err := h.users.ListUsers(ctx)
	if err != nil {
		h.fail(w, err, "list users")
		return
	}
	if users == nil {
		users = []models.User{}
	}

	resp := dashboardResponse{
		TotalPosts:      totalPosts,
		PostsByCategory: byCategory,
		Users:           users,
	}
	h.cacheSet(ctx, "admin:dashboard", resp)
	httpx.JSON(w, http.StatusOK, resp)
}

// Metrics handles GET /metrics.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var cached metricsResponse
	if h.cacheGet(ctx, "admin:metrics", &cached) {
		httpx.JSON(w, http.StatusOK, cached)
		return
	}

	byRole, err := h.users.CountUsersByRole(ctx)
	if err != nil {
		h.fail(w, err, "count users by role")
		return
	}
	topLikes, err := h.posts.TopPostsByLikes(ctx, 5)
	if err != nil {
		h.fail(w, err, "top posts by likes")
		return
	}
	topComments, err := h.posts.TopPostsByComments(ctx, 5)
	if err != nil {
		h.fail(w, err, "top posts by comments")
		return
	}

	resp := metricsResponse{
		UsersByRole:        byRole,
		TopPostsByLikes:    topLikes,
		TopPostsByComments: topComments,
	}
	h.cacheSet(ctx, "admin:metrics", resp)
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) fail(w http.ResponseWriter, err error, op string) {
	log.Error().Err(err).Str("op", op).Msg("admin aggregation")
	httpx.Message(w, http.StatusInternalServerError, "Server error when fetching dashboard data.")
}

func (h *Handler) cacheGet(ctx context.Context, key string, dest any) bool {
	if h.cache == nil {
		return false
	}
	err := h.cache.GetJSON(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Warn().Err(err).Str("key", key).Msg("cache read")
	}
	return false
}

func (h *Handler) cacheSet(ctx context.Context, key string, value any) {
	if h.cache == nil {
		return
	}
	if err := h.cache.SetJSON(ctx, key, value, cacheTTL); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cache write")
	}
}
