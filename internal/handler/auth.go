package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/model"
	"github.com/itemdesk/itemdesk/internal/service"
	"github.com/itemdesk/itemdesk/internal/session"
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	*Handler
	accounts *service.AccountService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(base *Handler, accounts *service.AccountService) *AuthHandler {
	return &AuthHandler{Handler: base, accounts: accounts}
}

// RegisterForm handles GET /register.
func (h *AuthHandler) RegisterForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageRegister, PageData{Title: "Register"})
}

// Register handles POST /register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageRegister, PageData{
			Title:   "Register",
			Flashes: flashNow(session.FlashDanger, msgBadForm),
		})
		return
	}

	creds := service.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	data := PageData{
		Title: "Register",
		Form:  map[string]string{"username": strings.TrimSpace(creds.Username)},
	}

	user, err := h.accounts.Register(r.Context(), creds)
	switch {
	case err == nil:
		h.logger.Info("user_registered", "user_id", user.ID)
		h.redirectWithFlash(w, r, "/login", session.FlashSuccess, msgRegistered)
		return
	case errors.Is(err, service.ErrMissingFields):
		data.Flashes = flashNow(session.FlashWarning, msgMissingFields)
		h.render(w, r, http.StatusUnprocessableEntity, pageRegister, data)
	case errors.Is(err, service.ErrUsernameTooLong):
		data.Flashes = flashNow(session.FlashWarning, msgUsernameTooLong)
		h.render(w, r, http.StatusUnprocessableEntity, pageRegister, data)
	case errors.Is(err, service.ErrUsernameExists):
		data.Flashes = flashNow(session.FlashDanger, msgUserExists)
		h.render(w, r, http.StatusConflict, pageRegister, data)
	default:
		h.logError(r, "registration_failed", err)
		data.Flashes = flashNow(session.FlashDanger, msgRegistrationFailed)
		h.render(w, r, http.StatusInternalServerError, pageRegister, data)
	}
}

// LoginForm handles GET /login.
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pageLogin, PageData{Title: "Log in"})
}

// Login handles POST /login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.render(w, r, http.StatusBadRequest, pageLogin, PageData{
			Title:   "Log in",
			Flashes: flashNow(session.FlashDanger, msgBadForm),
		})
		return
	}

	creds := service.Credentials{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	data := PageData{
		Title: "Log in",
		Form:  map[string]string{"username": strings.TrimSpace(creds.Username)},
	}

	user, err := h.accounts.Authenticate(r.Context(), creds)
	switch {
	case err == nil:
	case errors.Is(err, service.ErrMissingFields):
		data.Flashes = flashNow(session.FlashWarning, msgMissingFields)
		h.render(w, r, http.StatusUnprocessableEntity, pageLogin, data)
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		data.Flashes = flashNow(session.FlashDanger, msgInvalidCredentials)
		h.render(w, r, http.StatusUnauthorized, pageLogin, data)
		return
	default:
		h.logError(r, "login_failed", err)
		data.Flashes = flashNow(session.FlashDanger, msgLoginFailed)
		h.render(w, r, http.StatusInternalServerError, pageLogin, data)
		return
	}

	principal := &model.Principal{UserID: user.ID, Username: user.Username}
	if err := h.sessions.Issue(w, principal); err != nil {
		h.logError(r, "session_issue_failed", err)
		data.Flashes = flashNow(session.FlashDanger, msgLoginFailed)
		h.render(w, r, http.StatusInternalServerError, pageLogin, data)
		return
	}

	h.logger.Info("user_logged_in", "user_id", user.ID, "session_id", principal.SessionID)
	h.redirectWithFlash(w, r, "/items", session.FlashSuccess, fmt.Sprintf(msgWelcome, user.Username))
}

// Logout handles GET /logout. It works for anonymous requests too.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if err := h.sessions.Destroy(r.Context(), w, p); err != nil {
		// The cookie is already cleared; only server-side revocation failed.
		h.logger.Warn("session_revoke_failed",
			"user_id", auth.UserIDFromContext(r.Context()),
			"error", err,
		)
	}
	if p != nil {
		h.logger.Info("user_logged_out", "user_id", p.UserID, "session_id", p.SessionID)
	}

	h.redirectWithFlash(w, r, "/login", session.FlashInfo, msgLoggedOut)
}
