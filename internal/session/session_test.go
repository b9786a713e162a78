package session

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemdesk/itemdesk/internal/model"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type fakeRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func newFakeRevoker() *fakeRevoker {
	return &fakeRevoker{revoked: make(map[string]time.Duration)}
}

func (f *fakeRevoker) RevokeSession(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.revoked[id] = ttl
	return nil
}

func (f *fakeRevoker) IsSessionRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[id]
	return ok, nil
}

func newTestManager(t *testing.T, opts Options) *Manager {
	t.Helper()
	if opts.Secret == nil {
		opts.Secret = testSecret
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

// requestWith builds a request carrying every cookie set on rec.
func requestWith(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for _, c := range rec.Result().Cookies() {
		if c.MaxAge >= 0 && c.Value != "" {
			req.AddCookie(c)
		}
	}
	return req
}

func findCookie(rec *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestNewManager_RequiresSecret(t *testing.T) {
	_, err := NewManager(Options{})
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestIssueAndLoad_RoundTrip(t *testing.T) {
	m := newTestManager(t, Options{})

	p := &model.Principal{UserID: 42, Username: "alice"}
	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, p))
	assert.NotEmpty(t, p.SessionID)

	c := findCookie(rec, "itemdesk_session")
	require.NotNil(t, c)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, c.SameSite)
	assert.Equal(t, "/", c.Path)
	assert.Zero(t, c.MaxAge, "zero lifetime should issue a browser-session cookie")

	got, err := m.Load(requestWith(rec))
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.UserID)
	assert.Equal(t, "alice", got.Username)
	assert.Equal(t, p.SessionID, got.SessionID)
}

func TestIssue_SecureAndLifetime(t *testing.T) {
	m := newTestManager(t, Options{Secure: true, Lifetime: time.Hour, CookieName: "sid"})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, &model.Principal{UserID: 1, Username: "bob"}))

	c := findCookie(rec, "sid")
	require.NotNil(t, c)
	assert.True(t, c.Secure)
	assert.Equal(t, 3600, c.MaxAge)
}

func TestLoad_NoCookie(t *testing.T) {
	m := newTestManager(t, Options{})

	_, err := m.Load(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestLoad_RejectsTampering(t *testing.T) {
	m := newTestManager(t, Options{})
	other := newTestManager(t, Options{Secret: []byte("another-secret-another-secret-xx")})

	rec := httptest.NewRecorder()
	require.NoError(t, other.Issue(rec, &model.Principal{UserID: 1, Username: "mallory"}))

	_, err := m.Load(requestWith(rec))
	assert.ErrorIs(t, err, ErrInvalidSession)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "itemdesk_session", Value: "not-a-token"})
	_, err = m.Load(req)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoad_Expired(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := now
	m := newTestManager(t, Options{Lifetime: time.Minute, Now: func() time.Time { return clock }})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, &model.Principal{UserID: 1, Username: "alice"}))
	req := requestWith(rec)

	_, err := m.Load(req)
	require.NoError(t, err)

	clock = now.Add(2 * time.Minute)
	_, err = m.Load(req)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestLoad_FlashTokenIsNotASession(t *testing.T) {
	m := newTestManager(t, Options{})

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetFlash(rec, Flash{Kind: FlashInfo, Message: "hi"}))
	flash := findCookie(rec, "itemdesk_session_flash")
	require.NotNil(t, flash)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "itemdesk_session", Value: flash.Value})
	_, err := m.Load(req)
	assert.ErrorIs(t, err, ErrInvalidSession)
}

func TestDestroy_RevokesSession(t *testing.T) {
	rev := newFakeRevoker()
	m := newTestManager(t, Options{Revoker: rev})

	p := &model.Principal{UserID: 7, Username: "alice"}
	issued := httptest.NewRecorder()
	require.NoError(t, m.Issue(issued, p))
	req := requestWith(issued)

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(context.Background(), rec, p))

	c := findCookie(rec, "itemdesk_session")
	require.NotNil(t, c)
	assert.Equal(t, -1, c.MaxAge)
	assert.Empty(t, c.Value)

	_, err := m.Load(req)
	assert.ErrorIs(t, err, ErrRevoked)
}

func TestDestroy_Anonymous(t *testing.T) {
	rev := newFakeRevoker()
	m := newTestManager(t, Options{Revoker: rev})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Destroy(context.Background(), rec, nil))
	assert.Empty(t, rev.revoked)
	assert.NotNil(t, findCookie(rec, "itemdesk_session"))
}

func TestDestroy_RevokerError(t *testing.T) {
	rev := newFakeRevoker()
	rev.err = errors.New("redis down")
	m := newTestManager(t, Options{Revoker: rev})

	rec := httptest.NewRecorder()
	err := m.Destroy(context.Background(), rec, &model.Principal{UserID: 1, Username: "a", SessionID: "x"})
	assert.Error(t, err)
	assert.NotNil(t, findCookie(rec, "itemdesk_session"), "cookie must be cleared even if revocation fails")
}

func TestLoad_RevokerOutageFailsOpen(t *testing.T) {
	rev := newFakeRevoker()
	m := newTestManager(t, Options{Revoker: rev})

	rec := httptest.NewRecorder()
	require.NoError(t, m.Issue(rec, &model.Principal{UserID: 3, Username: "carol"}))

	rev.err = errors.New("redis down")
	p, err := m.Load(requestWith(rec))
	require.NoError(t, err)
	assert.Equal(t, "carol", p.Username)
}

func TestFlash_PopOnce(t *testing.T) {
	m := newTestManager(t, Options{})

	rec := httptest.NewRecorder()
	require.NoError(t, m.SetFlash(rec, Flash{Kind: FlashSuccess, Message: "Item added successfully!"}))

	popRec := httptest.NewRecorder()
	f := m.PopFlash(popRec, requestWith(rec))
	require.NotNil(t, f)
	assert.Equal(t, FlashSuccess, f.Kind)
	assert.Equal(t, "Item added successfully!", f.Message)

	cleared := findCookie(popRec, "itemdesk_session_flash")
	require.NotNil(t, cleared)
	assert.Equal(t, -1, cleared.MaxAge)

	assert.Nil(t, m.PopFlash(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)))
}

func TestFlash_TamperedIsDropped(t *testing.T) {
	m := newTestManager(t, Options{})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "itemdesk_session_flash", Value: "garbage"})

	rec := httptest.NewRecorder()
	assert.Nil(t, m.PopFlash(rec, req))
	assert.NotNil(t, findCookie(rec, "itemdesk_session_flash"))
}
