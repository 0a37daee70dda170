package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/jobtracker/apiserver/internal/services"
	"github.com/jobtracker/apiserver/types"
)

// AuthHandler provides JWT authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// AuthRouter registers auth routes on the given router. attemptLimiter wraps
// register and login; it may be nil.
func AuthRouter(r chi.Router, auth *services.AuthService, attemptLimiter func(http.Handler) http.Handler) {
	handler := NewAuthHandler(auth)

	r.Group(func(r chi.Router) {
		if attemptLimiter != nil {
			r.Use(attemptLimiter)
		}
		r.Post("/register", handler.Register)
		r.Post("/login", handler.Login)
	})
	r.With(RequireAuth(auth)).Get("/me", handler.Me)
}

// RequireAuth verifies the bearer token and stores its claims in the request
// context. A missing token is answered with 401, an invalid one with 403.
func RequireAuth(auth *services.AuthService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, err := auth.VerifyToken(bearerToken(r))
			if err != nil {
				writeServiceError(w, r, err, "failed to verify token")
				return
			}

			ctx := context.WithValue(r.Context(), contextClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Register creates a new user account and returns a JWT.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.auth.Register(r.Context(), req.Username, req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to register user")
		return
	}

	writeJSON(w, http.StatusCreated, res)
}

// Login verifies credentials and returns a JWT.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	res, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, err, "failed to log in")
		return
	}

	writeJSON(w, http.StatusOK, res)
}

// Me returns the current authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "access token required")
		return
	}

	user, err := h.auth.CurrentUser(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, err, "failed to load user")
		return
	}

	writeJSON(w, http.StatusOK, UserResponse{User: user})
}

type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	User types.User `json:"user"`
}

// bearerToken returns the token part of the Authorization header, or "" if
// there is none.
func bearerToken(r *http.Request) string {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return ""
	}
	scheme, token, found := strings.Cut(auth, " ")
	if !found {
		return ""
	}
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "Bearer") && token != "" {
		// Present but not a bearer credential: let verification reject it.
		return auth
	}
	return token
}
