// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/middleware"
	"github.com/itemdesk/itemdesk/internal/session"
)

// User-facing messages.
const (
	msgMissingFields      = "Please fill in all fields."
	msgUsernameTooLong    = "Username must be at most 100 characters."
	msgUserExists         = "User already exists."
	msgRegistrationFailed = "Could not complete registration. Please try again."
	msgRegistered         = "Registration successful! Please log in."
	msgInvalidCredentials = "Invalid username or password."
	msgLoginFailed        = "Could not log you in. Please try again."
	msgWelcome            = "Welcome, %s!"
	msgLoggedOut          = "You have logged out."
	msgItemNameTooLong    = "Item name must be at most 100 characters."
	msgInvalidPrice       = "Price must be a number with at most two decimal places, like 10.50."
	msgItemFailed         = "Could not add the item. Please try again."
	msgItemAdded          = "Item added successfully!"
	msgBadForm            = "The submitted form could not be read."
)

// Handler holds the dependencies shared by every page handler.
type Handler struct {
	views    *Renderer
	sessions *session.Manager
	logger   *slog.Logger
}

// New creates a new Handler instance.
func New(views *Renderer, sessions *session.Manager, logger *slog.Logger) *Handler {
	return &Handler{
		views:    views,
		sessions: sessions,
		logger:   logger,
	}
}

// Index sends authenticated users to their items and everyone else to login.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	if auth.PrincipalFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/items", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

// NotFound renders the 404 page.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusNotFound, pageError, PageData{
		Title:   "Page not found",
		Message: "The page you asked for does not exist.",
	})
}

// MethodNotAllowed renders the 405 page.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusMethodNotAllowed, pageError, PageData{
		Title:   "Method not allowed",
		Message: "This page does not accept that kind of request.",
	})
}

// InternalError renders the 500 page. It backs the panic recoverer.
func (h *Handler) InternalError(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusInternalServerError, pageError, PageData{
		Title:   "Something went wrong",
		Message: "An unexpected error occurred. Please try again.",
	})
}

// render fills in the signed-in user and any pending flash, then writes page.
func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page string, data PageData) {
	data.User = auth.PrincipalFromContext(r.Context())
	if f := h.sessions.PopFlash(w, r); f != nil {
		data.Flashes = append([]session.Flash{*f}, data.Flashes...)
	}

	if err := h.views.Render(w, status, page, data); err != nil {
		h.logger.Error("render_failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"page", page,
			"error", err,
		)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// redirectWithFlash stores a flash for the next page and redirects with 303.
func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, target, kind, message string) {
	if err := h.sessions.SetFlash(w, session.Flash{Kind: kind, Message: message}); err != nil {
		h.logger.Warn("flash_failed",
			"request_id", middleware.GetRequestID(r.Context()),
			"error", err,
		)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// logError records a storage-class failure with the request id.
func (h *Handler) logError(r *http.Request, event string, err error) {
	attrs := []any{
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err,
	}
	if userID := auth.UserIDFromContext(r.Context()); userID != 0 {
		attrs = append(attrs, "user_id", userID)
	}
	h.logger.Error(event, attrs...)
}

// flashNow builds a one-element flash list for a page rendered in place.
func flashNow(kind, message string) []session.Flash {
	return []session.Flash{{Kind: kind, Message: message}}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
