package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/store"
)

type fakePostStats struct {
	total      int64
	byCategory map[string]int64
	topLikes   []models.PostSummary
	topComm    []models.PostSummary
	err        error
}

func (f *fakePostStats) CountPosts(context.Context) (int64, error) { return f.total, f.err }
func (f *fakePostStats) CountPostsByCategory(context.Context) (map[string]int64, error) {
	return f.byCategory, f.err
}
func (f *fakePostStats) TopPostsByLikes(_ context.Context, limit int64) ([]models.PostSummary, error) {
	if int64(len(f.topLikes)) > limit {
		return f.topLikes[:limit], f.err
	}
	return f.topLikes, f.err
}
func (f *fakePostStats) TopPostsByComments(_ context.Context, limit int64) ([]models.PostSummary, error) {
	if int64(len(f.topComm)) > limit {
		return f.topComm[:limit], f.err
	}
	return f.topComm, f.err
}

type fakeUserStats struct {
	users  []models.User
	byRole map[string]int64
}

func (f *fakeUserStats) ListUsers(context.Context) ([]models.User, error) { return f.users, nil }
func (f *fakeUserStats) CountUsersByRole(context.Context) (map[string]int64, error) {
	return f.byRole, nil
}

type memoryCache struct {
	data map[string][]byte
	gets int
	hits int
}

func newMemoryCache() *memoryCache { return &memoryCache{data: make(map[string][]byte)} }

func (c *memoryCache) GetJSON(_ context.Context, key string, dest any) error {
	c.gets++
	raw, ok := c.data[key]
	if !ok {
		return store.ErrNotFound
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) SetJSON(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	return nil
}

func TestDashboard(t *testing.T) {
	posts := &fakePostStats{
		total:      7,
		byCategory: map[string]int64{"news": 4, "jobs": 3},
	}
	users := &fakeUserStats{users: []models.User{{ID: "u1", Name: "Ada", Role: models.RoleAdmin}}}
	h := NewHandler(posts, users, newMemoryCache())

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got dashboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(7), got.TotalPosts)
	assert.Equal(t, int64(4), got.PostsByCategory["news"])
	require.Len(t, got.Users, 1)
	assert.Equal(t, "Ada", got.Users[0].Name)
}

func TestMetricsLimitsTopFive(t *testing.T) {
	var summaries []models.PostSummary
	for i := 0; i < 8; i++ {
		summaries = append(summaries, models.PostSummary{ID: primitive.NewObjectID(), Title: "p", LikeCount: 10 - i})
	}
	posts := &fakePostStats{topLikes: summaries, topComm: summaries}
	users := &fakeUserStats{byRole: map[string]int64{"admin": 2, "user": 5}}
	h := NewHandler(posts, users, newMemoryCache())

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var got metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got.TopPostsByLikes, 5)
	assert.Len(t, got.TopPostsByComments, 5)
	assert.Equal(t, int64(5), got.UsersByRole["user"])
}

func TestDashboardServesFromCache(t *testing.T) {
	posts := &fakePostStats{total: 1}
	users := &fakeUserStats{}
	cache := newMemoryCache()
	h := NewHandler(posts, users, cache)

	rec := httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// Make the store blow up; the cached copy should still serve.
	posts.err = errors.New("store down")
	rec = httptest.NewRecorder()
	h.Dashboard(rec, httptest.NewRequest(http.MethodGet, "/admin-dashboard", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, cache.hits)
}

func TestMetricsSurfacesStoreFailure(t *testing.T) {
	posts := &fakePostStats{err: errors.New("store down")}
	users := &fakeUserStats{}
	h := NewHandler(posts, users, newMemoryCache())

	rec := httptest.NewRecorder()
	h.Metrics(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
