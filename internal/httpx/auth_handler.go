package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront/internal/auth"
	"github.com/go-chi/chi/v5"
)

type AuthHandler struct {
	Accounts Accounts
	Log      *slog.Logger
}

type signInReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(r chi.Router) {
	r.Post("/auth/signup", h.signUp)
	r.Post("/auth/signin", h.signIn)
	r.Post("/auth/signout", h.signOut)
	r.Get("/auth/session", h.session)
}

func (h *AuthHandler) signUp(w http.ResponseWriter, r *http.Request) {
	var req auth.SignUpInput
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Accounts.SignUp(r.Context(), req)
	switch {
	case errors.Is(err, auth.ErrEmailTaken):
		writeError(w, http.StatusConflict, "email_taken", err.Error())
	case errors.Is(err, auth.ErrWeakPassword), errors.Is(err, auth.ErrInvalidEmail):
		writeError(w, http.StatusBadRequest, "invalid_signup", err.Error())
	case err != nil:
		internalError(w, h.Log, r, err)
	default:
		writeJSON(w, http.StatusCreated, sess)
	}
}

func (h *AuthHandler) signIn(w http.ResponseWriter, r *http.Request) {
	var req signInReq
	if !decodeJSON(w, r, &req) {
		return
	}
	sess, err := h.Accounts.SignIn(r.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials", err.Error())
	case err != nil:
		internalError(w, h.Log, r, err)
	default:
		writeJSON(w, http.StatusOK, sess)
	}
}

func (h *AuthHandler) signOut(w http.ResponseWriter, r *http.Request) {
	tok := auth.BearerToken(r)
	if tok == "" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	err := h.Accounts.SignOut(r.Context(), tok)
	switch {
	case errors.Is(err, auth.ErrInvalidToken):
		writeError(w, http.StatusUnauthorized, "invalid_token", err.Error())
	case err != nil:
		internalError(w, h.Log, r, err)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// session reports who is signed in. Anonymous callers get a null user.
func (h *AuthHandler) session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": auth.UserFromContext(r.Context())})
}
