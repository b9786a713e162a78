// Package session implements signed, client-held sessions.
//
// A session is an HS256 JWT stored in an HttpOnly cookie with the claims
// user_id, username and jti. Nothing is kept in process memory; an optional
// Revoker records logged-out session IDs so a copied cookie stops working
// after logout.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"

	"github.com/itemdesk/itemdesk/internal/model"
)

const (
	issuer          = "itemdesk"
	sessionAudience = "session"
	flashAudience   = "flash"
	flashLifetime   = 5 * time.Minute
	flashSuffix     = "_flash"
)

// Session errors.
var (
	ErrNoSession      = errors.New("no session")
	ErrInvalidSession = errors.New("invalid session")
	ErrRevoked        = errors.New("session revoked")
	ErrEmptySecret    = errors.New("session secret must not be empty")
)

// Revoker stores logged-out session IDs.
type Revoker interface {
	RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)
}

// Options configure a Manager.
type Options struct {
	Secret     []byte
	CookieName string
	// Lifetime of 0 issues browser-session cookies without an exp claim.
	Lifetime time.Duration
	Secure   bool
	// Revoker is optional; nil disables server-side revocation.
	Revoker Revoker
	Logger  *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager issues, reads and clears session and flash cookies.
type Manager struct {
	secret     []byte
	cookieName string
	lifetime   time.Duration
	secure     bool
	revoker    Revoker
	logger     *slog.Logger
	now        func() time.Time
}

type sessionClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// NewManager creates a Manager.
func NewManager(opts Options) (*Manager, error) {
	if len(opts.Secret) == 0 {
		return nil, ErrEmptySecret
	}
	if opts.CookieName == "" {
		opts.CookieName = "itemdesk_session"
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Manager{
		secret:     opts.Secret,
		cookieName: opts.CookieName,
		lifetime:   opts.Lifetime,
		secure:     opts.Secure,
		revoker:    opts.Revoker,
		logger:     opts.Logger,
		now:        opts.Now,
	}, nil
}

// CookieName returns the session cookie name.
func (m *Manager) CookieName() string {
	return m.cookieName
}

// Issue writes a new session cookie for p and assigns p.SessionID.
func (m *Manager) Issue(w http.ResponseWriter, p *model.Principal) error {
	now := m.now()
	p.SessionID = ulid.Make().String()

	claims := sessionClaims{
		UserID:   p.UserID,
		Username: p.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       p.SessionID,
			Issuer:   issuer,
			Audience: jwt.ClaimStrings{sessionAudience},
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if m.lifetime > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(m.lifetime))
	}

	token, err := m.sign(claims)
	if err != nil {
		return fmt.Errorf("sign session: %w", err)
	}

	http.SetCookie(w, m.cookie(m.cookieName, token, m.lifetime))
	return nil
}

// Load reads and verifies the session cookie.
// It returns ErrNoSession when the request carries none.
func (m *Manager) Load(r *http.Request) (*model.Principal, error) {
	c, err := r.Cookie(m.cookieName)
	if err != nil || c.Value == "" {
		return nil, ErrNoSession
	}

	var claims sessionClaims
	if err := m.parse(c.Value, &claims, sessionAudience); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSession, err)
	}
	if claims.UserID <= 0 || claims.Username == "" || claims.ID == "" {
		return nil, ErrInvalidSession
	}

	if m.revoker != nil {
		revoked, err := m.revoker.IsSessionRevoked(r.Context(), claims.ID)
		if err != nil {
			// Redis is optional infrastructure; an outage must not log everyone out.
			m.logger.Warn("session revocation check failed",
				slog.String("error", err.Error()),
			)
		} else if revoked {
			return nil, ErrRevoked
		}
	}

	return &model.Principal{
		UserID:    claims.UserID,
		Username:  claims.Username,
		SessionID: claims.ID,
	}, nil
}

// Destroy clears the session cookie and, when a Revoker is configured,
// revokes p's session ID. p may be nil for anonymous requests.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, p *model.Principal) error {
	http.SetCookie(w, m.expired(m.cookieName))

	if p == nil || p.SessionID == "" || m.revoker == nil {
		return nil
	}
	if err := m.revoker.RevokeSession(ctx, p.SessionID, m.lifetime); err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}

func (m *Manager) sign(claims jwt.Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
}

func (m *Manager) parse(token string, claims jwt.Claims, audience string) error {
	_, err := jwt.ParseWithClaims(token, claims,
		func(t *jwt.Token) (interface{}, error) {
			return m.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(m.now),
	)
	return err
}

func (m *Manager) cookie(name, value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		c.MaxAge = int(maxAge.Seconds())
		c.Expires = m.now().Add(maxAge)
	}
	return c
}

func (m *Manager) expired(name string) *http.Cookie {
	c := m.cookie(name, "", 0)
	c.MaxAge = -1
	c.Expires = time.Unix(0, 0)
	return c
}
