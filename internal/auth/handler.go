package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/courteous/edge-consult-backend/internal/httpx"
	"github.com/courteous/edge-consult-backend/internal/models"
	"github.com/courteous/edge-consult-backend/internal/store"
)

// UserStore defines the interface for user persistence.
type UserStore interface {
	CreateUser(ctx context.Context, name, email, hashedPw, role string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
}

// Handler holds auth-related HTTP handlers.
type Handler struct {
	users    UserStore
	tokens   *Manager
	validate *validator.Validate
}

func NewHandler(users UserStore, tokens *Manager) *Handler {
	return &Handler{
		users:    users,
		tokens:   tokens,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Register creates a new user with a hashed password and the default role.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Please enter all fields: name, email, and password.")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("hash password")
		httpx.Message(w, http.StatusInternalServerError, "Server error during registration.")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	user, err := h.users.CreateUser(r.Context(), strings.TrimSpace(req.Name), email, string(hashed), models.RoleAdmin)
	if err == store.ErrDuplicate {
		httpx.Message(w, http.StatusConflict, "A user with this email already exists.")
		return
	}
	if err != nil {
		log.Error().Err(err).Str("email", email).Msg("create user")
		httpx.Message(w, http.StatusInternalServerError, "Server error during registration.")
		return
	}

	httpx.JSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully!",
		"user":    user.Public(),
	})
}

// Login verifies credentials and issues a signed, time-limited token.
// Unknown email and wrong password return the identical response so the
// endpoint cannot be used to enumerate accounts.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid request body.")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Please enter both email and password.")
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if err != store.ErrNotFound {
			log.Error().Err(err).Msg("look up user")
		}
		httpx.Message(w, http.StatusBadRequest, "Invalid credentials.")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		httpx.Message(w, http.StatusBadRequest, "Invalid credentials.")
		return
	}

	token, err := h.tokens.Issue(user.ID, user.Role, user.Name)
	if err != nil {
		log.Error().Err(err).Msg("issue token")
		httpx.Message(w, http.StatusInternalServerError, "Server error during login.")
		return
	}

	httpx.JSON(w, http.StatusOK, map[string]any{
		"message": "Login successful!",
		"token":   token,
		"user":    user.Public(),
	})
}
