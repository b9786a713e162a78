package middleware

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/session"
)

// LoginPath is where anonymous requests to guarded routes are sent.
const LoginPath = "/login"

// LoadSession reads the session cookie and, when it is valid, stores the
// principal in the request context. Requests without a valid session
// continue anonymously; a tampered, expired or revoked cookie is cleared.
func LoadSession(sessions *session.Manager, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := sessions.Load(r)
			switch {
			case err == nil:
				r = r.WithContext(auth.ContextWithPrincipal(r.Context(), p))
			case errors.Is(err, session.ErrNoSession):
			default:
				logger.Debug("discarding session cookie",
					slog.String("request_id", GetRequestID(r.Context())),
					slog.String("reason", err.Error()),
				)
				_ = sessions.Destroy(r.Context(), w, nil)
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireSession redirects anonymous requests to the login page.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.PrincipalFromContext(r.Context()) == nil {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}
