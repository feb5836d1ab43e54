package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dbi-software/hive/database"
	"github.com/dbi-software/hive/services"
)

// AuthHandler handles authentication-related endpoints
type AuthHandler struct {
	authService *services.AuthService
	store       *database.Store
	logger      *slog.Logger
}

func NewAuthHandler(authService *services.AuthService, store *database.Store, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		authService: authService,
		store:       store,
		logger:      logger,
	}
}

type authResponse struct {
	Token        string         `json:"token"`
	RefreshToken string         `json:"refreshToken"`
	User         *database.User `json:"user"`
}

// Register creates a new account and signs the user in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		FullName string `json:"fullName"`
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := h.authService.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("failed to hash password", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "server error")
		return
	}

	now := time.Now().UTC()
	user := &database.User{
		ID:           uuid.NewString(),
		Email:        req.Email,
		Username:     req.Username,
		FullName:     req.FullName,
		Role:         "Member",
		PasswordHash: hash,
		CreatedAt:    now,
	}
	if err := h.store.CreateUser(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	h.issueTokens(w, r, user, http.StatusCreated)
}

// Login verifies credentials and issues tokens.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil || !h.authService.CheckPassword(user.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	now := time.Now().UTC()
	user.LastLoginAt = &now

	h.issueTokens(w, r, user, http.StatusOK)
}

// Refresh rotates a refresh token and issues a fresh access token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string `json:"userId"`
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request format")
		return
	}

	user, err := h.store.GetUser(r.Context(), req.UserID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}
	if user.RefreshToken == "" || user.RefreshToken != req.RefreshToken ||
		user.RefreshTokenExpires == nil || user.RefreshTokenExpires.Before(time.Now().UTC()) {
		writeError(w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.issueTokens(w, r, user, http.StatusOK)
}

// Me returns the authenticated user's profile.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, ok := UserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "user not found")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// ListUsers returns all users, for assignee and member pickers.
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if users == nil {
		users = []database.User{}
	}
	writeJSON(w, http.StatusOK, users)
}

// issueTokens rotates the user's refresh token, persists it, and writes the
// auth response.
func (h *AuthHandler) issueTokens(w http.ResponseWriter, r *http.Request, user *database.User, status int) {
	token, err := h.authService.CreateAccessToken(user.ID)
	if err != nil {
		h.logger.Error("failed to create access token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}

	refresh, expires, err := h.authService.NewRefreshToken()
	if err != nil {
		h.logger.Error("failed to create refresh token", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "authentication error")
		return
	}
	user.RefreshToken = refresh
	user.RefreshTokenExpires = &expires

	if err := h.store.UpdateUser(r.Context(), user); err != nil {
		writeServiceError(w, err)
		return
	}

	writeJSON(w, status, authResponse{
		Token:        token,
		RefreshToken: refresh,
		User:         user,
	})
}
