package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/handoff/handoff-server/internal/audit"
	apperrors "github.com/handoff/handoff-server/internal/errors"
	"github.com/handoff/handoff-server/internal/middleware"
	"github.com/handoff/handoff-server/internal/model"
)

type AuthProvider interface {
	SignUp(ctx context.Context, email, password, fullName string) (*model.User, error)
	SignIn(ctx context.Context, email, password string) (string, *model.User, error)
	CurrentUser(ctx context.Context, token string) (*model.User, *model.AuthSession, error)
	SignOut(ctx context.Context, token string) (*model.AuthSession, error)
}

type AuthHandler struct {
	auth         AuthProvider
	loginLimiter func(http.Handler) http.Handler
	csrf         func(http.Handler) http.Handler
	sessionTTL   time.Duration
	isProduction bool
}

func NewAuthHandler(
	auth AuthProvider,
	loginLimiter func(http.Handler) http.Handler,
	csrf func(http.Handler) http.Handler,
	sessionTTL time.Duration,
	isProduction bool,
) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		loginLimiter: loginLimiter,
		csrf:         csrf,
		sessionTTL:   sessionTTL,
		isProduction: isProduction,
	}
}

func (h *AuthHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.With(h.loginLimiter).Post("/signup", h.SignUp)
	r.With(h.loginLimiter).Post("/login", h.Login)
	r.With(h.csrf).Post("/logout", h.Logout)
	r.Get("/me", h.Me)

	return r
}

type signUpRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"fullName" validate:"max=200"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	User  *model.User `json:"user"`
	Token string      `json:"token,omitempty"`
}

// POST /api/auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	user, err := h.auth.SignUp(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respond(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventSignUp, UserID: user.ID})
	writeJSON(w, http.StatusCreated, authResponse{User: user})
}

// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respond(w, r, err)
		return
	}

	token, user, err := h.auth.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeInvalidPassword) {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginFailure})
		}
		respond(w, r, err)
		return
	}

	audit.LogFromRequest(r, audit.Event{Type: audit.EventLoginSuccess, UserID: user.ID})
	middleware.SetSessionCookie(w, token, h.sessionTTL, h.isProduction)
	writeJSON(w, http.StatusOK, authResponse{User: user, Token: token})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if token := middleware.SessionToken(r); token != "" {
		session, err := h.auth.SignOut(r.Context(), token)
		if err != nil {
			respond(w, r, err)
			return
		}
		if session != nil {
			audit.LogFromRequest(r, audit.Event{Type: audit.EventLogout, UserID: session.UserID})
		}
	}

	middleware.ClearSessionCookie(w)
	writeJSON(w, http.StatusOK, okResponse)
}

// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, _, err := h.auth.CurrentUser(r.Context(), middleware.SessionToken(r))
	if err != nil {
		respond(w, r, err)
		return
	}
	if user == nil {
		respond(w, r, apperrors.Unauthorized("Not authenticated"))
		return
	}

	writeJSON(w, http.StatusOK, authResponse{User: user})
}
