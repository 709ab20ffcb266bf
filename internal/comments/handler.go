// Package comments implements comment creation and listing. A comment's
// author is one of two cases: a registered user reference or freeform
// anonymous author info, never both.
package comments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/courteous/edge-consult-backend/internal/httpx"
	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/store"
)

// CommentStore defines the interface for comment persistence.
type CommentStore interface {
	InsertComment(ctx context.Context, c *models.Comment) (*models.Comment, error)
	ListCommentsByPost(ctx context.Context, postID string) ([]models.Comment, error)
	FindCommentsByIDs(ctx context.Context, ids []primitive.ObjectID) ([]models.Comment, error)
	FindPostByID(ctx context.Context, id string) (*models.Post, error)
	IncCommentCount(ctx context.Context, postID primitive.ObjectID, delta int) error
}

// UserStore resolves registered comment authors for response population.
type UserStore interface {
	GetUserByID(ctx context.Context, id string) (*models.User, error)
}

// Handler holds comment HTTP handlers.
type Handler struct {
	comments CommentStore
	users    UserStore
	validate *validator.Validate
}

func NewHandler(comments CommentStore, users UserStore) *Handler {
	return &Handler{
		comments: comments,
		users:    users,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Create handles POST /{postId}. The parent post's comment counter is
// bumped with an atomic store-side increment, so concurrent comments on
// the same post cannot lose counts.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postId")

	var req models.CommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	req.Content = strings.TrimSpace(req.Content)
	if err := h.validate.Struct(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Comment content is required and must be at most 500 characters.")
		return
	}

	comment := &models.Comment{Content: req.Content}
	switch {
	case req.AuthorID != "":
		if _, err := uuid.Parse(req.AuthorID); err != nil {
			httpx.Message(w, http.StatusBadRequest, "Invalid author ID format.")
			return
		}
		comment.Author = req.AuthorID
	case req.AuthorInfo != nil && (req.AuthorInfo.FullName != "" || req.AuthorInfo.Email != ""):
		comment.AuthorInfo = req.AuthorInfo
	default:
		httpx.Message(w, http.StatusBadRequest, "Either authorId or author_info (with a name/email) is required.")
		return
	}

	post, err := h.comments.FindPostByID(r.Context(), postID)
	if errors.Is(err, store.ErrBadID) || errors.Is(err, store.ErrNotFound) {
		httpx.Message(w, http.StatusNotFound, "Post not found.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("post", postID).Msg("look up post")
		httpx.Message(w, http.StatusInternalServerError, "Server error.")
		return
	}
	comment.Post = post.ID

	saved, err := h.comments.InsertComment(r.Context(), comment)
	if err != nil {
		log.Error().Err(err).Str("post", postID).Msg("insert comment")
		httpx.Message(w, http.StatusInternalServerError, "Server error.")
		return
	}

	if err := h.comments.IncCommentCount(r.Context(), post.ID, 1); err != nil {
		log.Error().Err(err).Str("post", postID).Msg("increment comment count")
	}

	h.populateAuthor(r.Context(), saved)
	httpx.JSON(w, http.StatusCreated, saved)
}

// ListForPost handles GET /posts/{postId}/comments with one level of
// reply expansion.
func (h *Handler) ListForPost(w http.ResponseWriter, r *http.Request) {
	postID := chi.URLParam(r, "postId")

	comments, err := h.comments.ListCommentsByPost(r.Context(), postID)
	if errors.Is(err, store.ErrBadID) {
		httpx.Message(w, http.StatusBadRequest, "Invalid Post ID.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("post", postID).Msg("list comments")
		httpx.Message(w, http.StatusInternalServerError, "Server error when fetching comments.")
		return
	}
	if len(comments) == 0 {
		httpx.Message(w, http.StatusNotFound, "No comments found for this post.")
		return
	}

	for i := range comments {
		h.populateAuthor(r.Context(), &comments[i])
		h.expandReplies(r.Context(), &comments[i])
	}
	httpx.JSON(w, http.StatusOK, comments)
}

// populateAuthor expands a registered author reference into its public
// profile. Anonymous authors already carry their info inline.
func (h *Handler) populateAuthor(ctx context.Context, c *models.Comment) {
	if c.Author == "" {
		return
	}
	user, err := h.users.GetUserByID(ctx, c.Author)
	if err != nil {
		log.Warn().Err(err).Str("author", c.Author).Msg("populate comment author")
		return
	}
	pub := user.Public()
	c.AuthorUser = &pub
}

func (h *Handler) expandReplies(ctx context.Context, c *models.Comment) {
	if len(c.Replies) == 0 {
		return
	}
	replies, err := h.comments.FindCommentsByIDs(ctx, c.Replies)
	if err != nil {
		log.Warn().Err(err).Str("comment", c.ID.Hex()).Msg("expand replies")
		return
	}
	for i := range replies {
		h.populateAuthor(ctx, &replies[i])
	}
	c.RepliesExpanded = replies
}
