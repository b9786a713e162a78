package handler

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itemdesk/itemdesk/internal/auth"
	"github.com/itemdesk/itemdesk/internal/metrics"
	"github.com/itemdesk/itemdesk/internal/middleware"
	"github.com/itemdesk/itemdesk/internal/repository/memory"
	"github.com/itemdesk/itemdesk/internal/service"
	"github.com/itemdesk/itemdesk/internal/session"
)

const testCookieName = "itemdesk_session"

type memRevoker struct {
	mu      sync.Mutex
	revoked map[string]bool
}

func (m *memRevoker) RevokeSession(_ context.Context, id string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[id] = true
	return nil
}

func (m *memRevoker) IsSessionRevoked(_ context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.revoked[id], nil
}

// lockedBuffer collects log output written from server goroutines.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type testApp struct {
	server  *httptest.Server
	store   *memory.Store
	metrics *metrics.InMemoryRecorder
	logs    *lockedBuffer
}

// appStore is the storage surface the app needs; both the in-memory store
// and the Postgres repository satisfy it.
type appStore interface {
	service.UserStore
	service.ItemStore
	HealthChecker
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	store := memory.New()
	app := newTestAppWith(t, store)
	app.store = store
	return app
}

func newTestAppWith(t *testing.T, store appStore) *testApp {
	t.Helper()

	logs := &lockedBuffer{}
	logger := slog.New(slog.NewJSONHandler(logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	rec := metrics.NewInMemory()

	hasher, err := auth.NewHasher(auth.Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16})
	require.NoError(t, err)

	sessions, err := session.NewManager(session.Options{
		Secret:     []byte("test-secret-test-secret-test-secret"),
		CookieName: testCookieName,
		Revoker:    &memRevoker{revoked: make(map[string]bool)},
		Logger:     logger,
	})
	require.NoError(t, err)

	views, err := NewRenderer()
	require.NoError(t, err)

	base := New(views, sessions, logger)
	router := NewRouter(RouterConfig{
		Base:        base,
		Auth:        NewAuthHandler(base, service.NewAccountService(store, hasher, rec)),
		Items:       NewItemHandler(base, service.NewItemService(store, rec)),
		Health:      NewHealthHandler(store, nil),
		Metrics:     NewMetricsHandler(rec),
		Sessions:    sessions,
		Logger:      logger,
		Security:    middleware.SecurityConfig{IsDevelopment: true},
		MaxBodySize: 1 << 20,
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testApp{server: srv, metrics: rec, logs: logs}
}

// newClient returns a browser-like client that keeps cookies and does not
// follow redirects, so tests can assert on them.
func (a *testApp) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

type page struct {
	status   int
	location string
	body     string
}

func (a *testApp) do(t *testing.T, c *http.Client, method, path string, form url.Values) page {
	t.Helper()

	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, a.server.URL+path, body)
	require.NoError(t, err)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return page{status: resp.StatusCode, location: resp.Header.Get("Location"), body: string(raw)}
}

func (a *testApp) get(t *testing.T, c *http.Client, path string) page {
	t.Helper()
	return a.do(t, c, http.MethodGet, path, nil)
}

func (a *testApp) post(t *testing.T, c *http.Client, path string, form url.Values) page {
	t.Helper()
	return a.do(t, c, http.MethodPost, path, form)
}

func creds(username, password string) url.Values {
	return url.Values{"username": {username}, "password": {password}}
}

// signIn registers and logs in a user, returning the client holding the session.
func (a *testApp) signIn(t *testing.T, username, password string) *http.Client {
	t.Helper()
	c := a.newClient(t)
	require.Equal(t, http.StatusSeeOther, a.post(t, c, "/register", creds(username, password)).status)
	require.Equal(t, http.StatusSeeOther, a.post(t, c, "/login", creds(username, password)).status)
	return c
}

func TestFlow_RegisterLoginAddListLogout(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	p := app.get(t, c, "/items")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	p = app.post(t, c, "/register", creds("alice", "secret123"))
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	p = app.get(t, c, "/login")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Registration successful! Please log in.")

	p = app.post(t, c, "/login", creds("alice", "secret123"))
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/items", p.location)

	p = app.get(t, c, "/items")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Welcome, alice!")
	assert.Contains(t, p.body, "No items yet")

	p = app.post(t, c, "/items/new", url.Values{
		"name":        {"Widget"},
		"description": {"A small widget"},
		"price":       {"10,50"},
	})
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/items", p.location)

	p = app.post(t, c, "/items/new", url.Values{"name": {"Gadget"}, "price": {"3"}})
	require.Equal(t, http.StatusSeeOther, p.status)

	p = app.get(t, c, "/items")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Item added successfully!")
	assert.Contains(t, p.body, "10.50")
	assert.Contains(t, p.body, "3.00")
	assert.Less(t, strings.Index(p.body, "Gadget"), strings.Index(p.body, "Widget"), "newest item first")

	p = app.get(t, c, "/logout")
	require.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	p = app.get(t, c, "/login")
	assert.Contains(t, p.body, "You have logged out.")

	p = app.get(t, c, "/items")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	snap := app.metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.Registrations)
	assert.Equal(t, uint64(1), snap.LoginSuccesses)
	assert.Equal(t, uint64(2), snap.ItemsCreated)
}

func TestFlash_ShownOnce(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	app.post(t, c, "/register", creds("alice", "secret123"))

	assert.Contains(t, app.get(t, c, "/login").body, "Registration successful!")
	assert.NotContains(t, app.get(t, c, "/login").body, "Registration successful!")
}

func TestRegister_Errors(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	p := app.post(t, c, "/register", creds("   ", "secret123"))
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "Please fill in all fields.")

	p = app.post(t, c, "/register", creds("alice", "secret123"))
	require.Equal(t, http.StatusSeeOther, p.status)

	p = app.post(t, c, "/register", creds("alice", "other"))
	assert.Equal(t, http.StatusConflict, p.status)
	assert.Contains(t, p.body, "User already exists.")
	assert.Contains(t, p.body, `value="alice"`, "username is kept in the form")

	p = app.post(t, c, "/register", creds(strings.Repeat("u", 101), "x"))
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "at most 100 characters")

	assert.Equal(t, uint64(1), app.metrics.Snapshot().RegistrationConflicts)
}

func TestRegister_StorageFailure(t *testing.T) {
	app := newTestApp(t)
	app.store.SetErr(assert.AnError)

	p := app.post(t, app.newClient(t), "/register", creds("alice", "secret123"))
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.Contains(t, p.body, "Could not complete registration. Please try again.")
	assert.Contains(t, app.logs.String(), `"msg":"registration_failed"`)
}

func TestLogin_Errors(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.post(t, c, "/register", creds("alice", "secret123"))

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantText   string
	}{
		{"empty password", creds("alice", ""), http.StatusUnprocessableEntity, "Please fill in all fields."},
		{"wrong password", creds("alice", "secret124"), http.StatusUnauthorized, "Invalid username or password."},
		{"unknown user", creds("mallory", "secret123"), http.StatusUnauthorized, "Invalid username or password."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := app.newClient(t)
			p := app.post(t, client, "/login", tt.form)
			assert.Equal(t, tt.wantStatus, p.status)
			assert.Contains(t, p.body, tt.wantText)

			u, _ := url.Parse(app.server.URL)
			for _, ck := range client.Jar.Cookies(u) {
				assert.NotEqual(t, testCookieName, ck.Name, "no session may be written")
			}
		})
	}
}

func TestLogin_TrimmedCredentials(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)
	app.post(t, c, "/register", creds("alice", "secret123"))

	p := app.post(t, c, "/login", creds("  alice  ", " secret123 "))
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/items", p.location)
}

func TestItems_ValidationKeepsForm(t *testing.T) {
	app := newTestApp(t)
	c := app.signIn(t, "alice", "secret123")

	p := app.post(t, c, "/items/new", url.Values{"name": {"Widget"}, "price": {"ten"}})
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "Price must be a number")
	assert.Contains(t, p.body, `value="Widget"`)

	p = app.post(t, c, "/items/new", url.Values{"name": {""}, "price": {"1"}})
	assert.Equal(t, http.StatusUnprocessableEntity, p.status)
	assert.Contains(t, p.body, "Please fill in all fields.")

	assert.Contains(t, app.get(t, c, "/items").body, "No items yet")
}

func TestItems_StorageFailure(t *testing.T) {
	app := newTestApp(t)
	c := app.signIn(t, "alice", "secret123")
	app.store.SetErr(assert.AnError)

	p := app.post(t, c, "/items/new", url.Values{"name": {"Widget"}, "price": {"1"}})
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.Contains(t, p.body, "Could not add the item.")

	p = app.get(t, c, "/items")
	assert.Equal(t, http.StatusInternalServerError, p.status)
	assert.Contains(t, p.body, "Something went wrong")
}

func TestItems_ScopedToOwner(t *testing.T) {
	app := newTestApp(t)
	alice := app.signIn(t, "alice", "secret123")
	bob := app.signIn(t, "bob", "hunter22")

	app.post(t, alice, "/items/new", url.Values{"name": {"Alice widget"}, "price": {"1"}})
	app.post(t, bob, "/items/new", url.Values{"name": {"Bob gadget"}, "price": {"2"}})

	p := app.get(t, alice, "/list_items")
	require.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "Alice widget")
	assert.NotContains(t, p.body, "Bob gadget")
}

func TestItems_OutputEscaped(t *testing.T) {
	app := newTestApp(t)
	c := app.signIn(t, "alice", "secret123")

	app.post(t, c, "/items/new", url.Values{"name": {"<script>alert(1)</script>"}, "price": {"1"}})

	p := app.get(t, c, "/items")
	assert.NotContains(t, p.body, "<script>alert(1)</script>")
	assert.Contains(t, p.body, "&lt;script&gt;")
}

func TestLogout_RevokesCopiedCookie(t *testing.T) {
	app := newTestApp(t)
	c := app.signIn(t, "alice", "secret123")

	u, _ := url.Parse(app.server.URL)
	var stolen *http.Cookie
	for _, ck := range c.Jar.Cookies(u) {
		if ck.Name == testCookieName {
			stolen = ck
		}
	}
	require.NotNil(t, stolen)

	app.get(t, c, "/logout")

	replay := app.newClient(t)
	replay.Jar.SetCookies(u, []*http.Cookie{stolen})
	p := app.get(t, replay, "/items")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)
}

func TestIndex_Redirects(t *testing.T) {
	app := newTestApp(t)

	p := app.get(t, app.newClient(t), "/")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/login", p.location)

	p = app.get(t, app.signIn(t, "alice", "secret123"), "/")
	assert.Equal(t, http.StatusSeeOther, p.status)
	assert.Equal(t, "/items", p.location)
}

func TestErrorPages(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	p := app.get(t, c, "/no-such-page")
	assert.Equal(t, http.StatusNotFound, p.status)
	assert.Contains(t, p.body, "Page not found")

	p = app.do(t, c, http.MethodDelete, "/login", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, p.status)
	assert.Contains(t, p.body, "Method not allowed")
}

func TestProbes(t *testing.T) {
	app := newTestApp(t)
	c := app.newClient(t)

	assert.Equal(t, http.StatusOK, app.get(t, c, "/healthz").status)

	p := app.get(t, c, "/readyz")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, `"redis":"not configured"`)

	p = app.get(t, c, "/metrics")
	assert.Equal(t, http.StatusOK, p.status)
	assert.Contains(t, p.body, "itemdesk_registrations_total 0")
}

func TestSecurityHeadersOnPages(t *testing.T) {
	app := newTestApp(t)

	resp, err := app.newClient(t).Get(app.server.URL + "/login")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, resp.Header.Get("Content-Security-Policy"))
	assert.NotEmpty(t, resp.Header.Get(middleware.RequestIDHeader))
}
