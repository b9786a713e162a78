package session

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
)

// Flash categories.
const (
	FlashSuccess = "success"
	FlashWarning = "warning"
	FlashDanger  = "danger"
	FlashInfo    = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    string `json:"kind"`
	Message string `json:"msg"`
}

type flashClaims struct {
	Flash
	jwt.RegisteredClaims
}

// SetFlash stores f in a short-lived signed cookie.
func (m *Manager) SetFlash(w http.ResponseWriter, f Flash) error {
	now := m.now()
	claims := flashClaims{
		Flash: f,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{flashAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(flashLifetime)),
		},
	}

	token, err := m.sign(claims)
	if err != nil {
		return fmt.Errorf("sign flash: %w", err)
	}

	http.SetCookie(w, m.cookie(m.flashCookieName(), token, flashLifetime))
	return nil
}

// PopFlash returns the pending flash, if any, and clears its cookie.
// Tampered or expired flashes are dropped silently.
func (m *Manager) PopFlash(w http.ResponseWriter, r *http.Request) *Flash {
	c, err := r.Cookie(m.flashCookieName())
	if err != nil || c.Value == "" {
		return nil
	}
	http.SetCookie(w, m.expired(m.flashCookieName()))

	var claims flashClaims
	if err := m.parse(c.Value, &claims, flashAudience); err != nil {
		return nil
	}
	if claims.Message == "" {
		return nil
	}

	f := claims.Flash
	return &f
}

func (m *Manager) flashCookieName() string {
	return m.cookieName + flashSuffix
}
