// Package posts implements the post CRUD surface, including the creation
// workflow: validate, slugify, duplicate-check, optional image upload,
// category-specific payload assembly, persist, and compensating blob
// cleanup when a step after the upload fails.
package posts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/courteous/edge-consult-backend/internal/httpx"
	"github.com/courteous/edge-consult-backend/internal/middleware"
	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/slug"
	"github.com/courteous/edge-consult-backend/internal/store"
)

const maxImageSize = 10 << 20 // 10MB, same cap as the upload form

var errBadImageType = errors.New("unsupported image type")

// PostStore defines the interface for post persistence.
type PostStore interface {
	InsertPost(ctx context.Context, post *models.Post) (*models.Post, error)
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	FindPostBySlugOrTitle(ctx context.Context, slug, title string) (*models.Post, error)
	ListPosts(ctx context.Context, category string) ([]models.Post, error)
	DeletePost(ctx context.Context, id string) error
}

// FileStore defines the interface for image blob storage.
type FileStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	RemoveByURL(ctx context.Context, url string) error
}

// UserStore resolves author references for response population.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Handler holds post HTTP handlers.
type Handler struct {
	posts PostStore
	files FileStore
	users UserStore
}

func NewHandler(posts PostStore, files FileStore, users UserStore) *Handler {
	return &Handler{posts: posts, files: files, users: users}
}

// Create handles POST /add-posts. The duplicate check runs before the
// image upload so the common duplicate case wastes no blob traffic; the
// check and the insert are not atomic, so the store's unique indexes
// remain the real guard and a duplicate-key error here still maps to 409.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImageSize); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid multipart form.")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	body := r.FormValue("body")
	category := strings.TrimSpace(r.FormValue("category"))
	author := strings.TrimSpace(r.FormValue("author"))

	if missing := missingFields(title, body, category, author); len(missing) > 0 {
		httpx.Message(w, http.StatusBadRequest,
			"Missing required fields: "+strings.Join(missing, ", ")+".")
		return
	}
	if _, err := uuid.Parse(author); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid author ID format.")
		return
	}
	if !models.ValidCategory(category) {
		httpx.Message(w, http.StatusBadRequest, "Unknown category: "+category+".")
		return
	}
	if err := rejectForeignDetailFields(r, category); err != nil {
		httpx.Message(w, http.StatusBadRequest, err.Error())
		return
	}

	postSlug := slug.Make(title)

	_, err := h.posts.FindPostBySlugOrTitle(r.Context(), postSlug, title)
	if err == nil {
		httpx.Message(w, http.StatusConflict,
			"A post with this title or slug already exists. Please use a different title.")
		return
	}
	if !errors.Is(err, store.ErrNotFound) {
		log.Error().Err(err).Str("slug", postSlug).Msg("duplicate lookup")
		httpx.Message(w, http.StatusInternalServerError, "Server error occurred while creating the post.")
		return
	}

	imageURL, err := h.uploadImage(r, postSlug)
	if errors.Is(err, errBadImageType) {
		httpx.Message(w, http.StatusBadRequest, "Images only (JPEG, JPG, PNG, GIF).")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("slug", postSlug).Msg("image upload")
		httpx.Message(w, http.StatusInternalServerError, "Failed to upload post image.")
		return
	}

	// From here on an uploaded blob must not outlive a failed create.
	post, err := h.assemblePost(r, title, body, category, author, postSlug, imageURL)
	if err != nil {
		h.cleanupImage(r.Context(), imageURL)
		httpx.Message(w, http.StatusBadRequest, err.Error())
		return
	}

	saved, err := h.posts.InsertPost(r.Context(), post)
	if errors.Is(err, store.ErrDuplicate) {
		h.cleanupImage(r.Context(), imageURL)
		httpx.Message(w, http.StatusConflict,
			"A post with this title or slug already exists. Please use a different title.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("slug", postSlug).Msg("insert post")
		h.cleanupImage(r.Context(), imageURL)
		httpx.Message(w, http.StatusInternalServerError, "Server error occurred while creating the post.")
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "Blog post created successfully!",
		"post":    saved,
	})
}

// List handles GET /posts, optionally filtered with ?category=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, r.URL.Query().Get("category"))
}

// Scholarships handles GET /scholarships.
func (h *Handler) Scholarships(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.CategoryScholarships)
}

// Jobs handles GET /jobs.
func (h *Handler) Jobs(w http.ResponseWriter, r *http.Request) {
	h.list(w, r, models.CategoryJobs)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, category string) {
	posts, err := h.posts.ListPosts(r.Context(), category)
	if err != nil {
		log.Error().Err(err).Msg("list posts")
		httpx.Message(w, http.StatusInternalServerError, "Server error when fetching posts.")
		return
	}
	if posts == nil {
		posts = []models.Post{}
	}
	httpx.JSON(w, http.StatusOK, posts)
}

// Get handles GET /posts/{id} with the author's public profile embedded.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.posts.FindPostByID(r.Context(), id)
	if errors.Is(err, store.ErrBadID) {
		httpx.Message(w, http.StatusBadRequest, "Invalid Post ID.")
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		httpx.Message(w, http.StatusNotFound, "Post not found.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("get post")
		httpx.Message(w, http.StatusInternalServerError, "Server error when fetching the post.")
		return
	}

	if user, err := h.users.GetUserByID(r.Context(), post.Author); err == nil {
		pub := user.Public()
		post.AuthorInfo = &pub
	}
	httpx.JSON(w, http.StatusOK, post)
}

// Delete handles DELETE /posts/{id}. Only the post's author may delete it.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	post, err := h.posts.FindPostByID(r.Context(), id)
	if errors.Is(err, store.ErrBadID) || errors.Is(err, store.ErrNotFound) {
		httpx.Message(w, http.StatusNotFound, "Post not found.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("get post for delete")
		httpx.Message(w, http.StatusInternalServerError, "Server error.")
		return
	}

	claims := middleware.Identity(r.Context())
	if claims == nil || post.Author != claims.UserID {
		httpx.Message(w, http.StatusUnauthorized, "User not authorized to delete this post.")
		return
	}

	if err := h.posts.DeletePost(r.Context(), id); err != nil {
		log.Error().Err(err).Str("id", id).Msg("delete post")
		httpx.Message(w, http.StatusInternalServerError, "Server error.")
		return
	}
	if post.ImagePath != "" {
		h.cleanupImage(r.Context(), post.ImagePath)
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"message": "Post removed successfully."})
}

// ── creation workflow pieces ─────────────────────────────────────────

func missingFields(title, body, category, author string) []string {
	var missing []string
	if title == "" {
		missing = append(missing, "title")
	}
	if body == "" {
		missing = append(missing, "body")
	}
	if category == "" {
		missing = append(missing, "category")
	}
	if author == "" {
		missing = append(missing, "author")
	}
	return missing
}

// Detail fields belong to exactly one category; supplying them for any
// other category is rejected rather than silently dropped.
var (
	scholarshipOnlyFields = []string{"country", "degree", "description", "funding", "deadline"}
	jobOnlyFields         = []string{"company", "location", "jobType", "salaryRange", "experienceRequired", "applicationDeadline", "responsibilities", "link"}
)

func rejectForeignDetailFields(r *http.Request, category string) error {
	if category != models.CategoryScholarships {
		for _, f := range scholarshipOnlyFields {
			if r.FormValue(f) != "" {
				return fmt.Errorf("Field '%s' is only valid for scholarship posts.", f)
			}
		}
	}
	if category != models.CategoryJobs {
		for _, f := range jobOnlyFields {
			if r.FormValue(f) != "" {
				return fmt.Errorf("Field '%s' is only valid for job posts.", f)
			}
		}
	}
	if category != models.CategoryScholarships && category != models.CategoryJobs && r.FormValue("requirements") != "" {
		return errors.New("Field 'requirements' is only valid for scholarship and job posts.")
	}
	return nil
}

// uploadImage stores the optional image payload under a key derived from
// the slug, the current timestamp, and the original extension, and
// returns the blob's public URL. No image in the form is not an error.
func (h *Handler) uploadImage(r *http.Request, postSlug string) (string, error) {
	file, header, err := r.FormFile("image")
	if errors.Is(err, http.ErrMissingFile) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif":
	default:
		return "", fmt.Errorf("%w %q", errBadImageType, ext)
	}

	data, err := io.ReadAll(file)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}

	key := fmt.Sprintf("%s-%d%s", postSlug, time.Now().UnixMilli(), ext)
	return h.files.Upload(r.Context(), key, data, header.Header.Get("Content-Type"))
}

// assemblePost builds the record, parsing category-specific fields only
// when the category matches.
func (h *Handler) assemblePost(r *http.Request, title, body, category, author, postSlug, imageURL string) (*models.Post, error) {
	tags, err := parseJSONList(r.FormValue("tags"), "tags")
	if err != nil {
		return nil, err
	}

	post := &models.Post{
		Title:     title,
		Slug:      postSlug,
		Body:      body,
		Category:  category,
		Author:    author,
		ImagePath: imageURL,
		Tags:      tags,
	}

	switch category {
	case models.CategoryScholarships:
		requirements, err := parseJSONList(r.FormValue("requirements"), "requirements")
		if err != nil {
			return nil, err
		}
		post.ScholarshipDetails = &models.ScholarshipDetails{
			Country:      r.FormValue("country"),
			Degree:       r.FormValue("degree"),
			Description:  r.FormValue("description"),
			Funding:      r.FormValue("funding"),
			Deadline:     r.FormValue("deadline"),
			Requirements: requirements,
		}
	case models.CategoryJobs:
		requirements, err := parseJSONList(r.FormValue("requirements"), "requirements")
		if err != nil {
			return nil, err
		}
		responsibilities, err := parseJSONList(r.FormValue("responsibilities"), "responsibilities")
		if err != nil {
			return nil, err
		}
		salaryRange := r.FormValue("salaryRange")
		post.JobDetails = &models.JobDetails{
			Company:             r.FormValue("company"),
			Location:            r.FormValue("location"),
			JobType:             r.FormValue("jobType"),
			Salary:              parseSalaryRange(salaryRange),
			SalaryRange:         salaryRange,
			ExperienceRequired:  r.FormValue("experienceRequired"),
			ApplicationDeadline: r.FormValue("applicationDeadline"),
			Requirements:        requirements,
			Responsibilities:    responsibilities,
			Link:                r.FormValue("link"),
		}
	}
	return post, nil
}

// parseJSONList decodes a JSON-encoded string array form field. Empty
// means an empty list; anything unparseable is a validation error.
func parseJSONList(raw, field string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var list []string
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("Field '%s' must be a JSON array of strings.", field)
	}
	return list, nil
}

// parseSalaryRange turns a display string like "$50k - $70k" into whole
// currency units. A single figure ("90k") is both min and max. Strings it
// cannot parse leave the salary zero; the display string is kept either way.
func parseSalaryRange(s string) models.Salary {
	if s == "" {
		return models.Salary{}
	}
	clean := strings.NewReplacer("$", "", ",", "", "k", "", "K", "").Replace(s)
	parts := strings.Split(clean, "-")

	nums := make([]float64, 0, 2)
	for _, p := range parts {
		var n float64
		if _, err := fmt.Sscanf(strings.TrimSpace(p), "%f", &n); err != nil {
			return models.Salary{}
		}
		nums = append(nums, n*1000)
	}
	switch len(nums) {
	case 1:
		return models.Salary{Min: nums[0], Max: nums[0]}
	case 2:
		return models.Salary{Min: nums[0], Max: nums[1]}
	}
	return models.Salary{}
}

// cleanupImage is the compensating delete for a blob uploaded during a
// create that later failed. Best-effort: its own failure is logged for
// out-of-band cleanup, never surfaced to the caller.
func (h *Handler) cleanupImage(ctx context.Context, imageURL string) {
	if imageURL == "" {
		return
	}
	if err := h.files.RemoveByURL(ctx, imageURL); err != nil {
		log.Error().Err(err).Str("url", imageURL).Msg("failed to delete orphaned blob")
		return
	}
	log.Info().Str("url", imageURL).Msg("deleted orphaned blob")
}
