// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authgate Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/auth"
	"github.com/authgate/authgate/internal/auth/memstore"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
)

type testAPI struct {
	server   *Server
	store    *memstore.Store
	issuer   *auth.JWTIssuer
	recorder *fakeRecorder
}

type recorded struct {
	method string
	route  string
	status int
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (r *fakeRecorder) RecordHTTPRequest(method, route string, status int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, recorded{method: method, route: route, status: status})
}

func (r *fakeRecorder) last() recorded {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seen[len(r.seen)-1]
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(transport string) Config {
	return Config{
		Addr:          "127.0.0.1:0",
		Transport:     transport,
		AccessCookie:  "accessToken",
		RefreshCookie: "refreshToken",
		AccessTTL:     testAccessTTL,
		RefreshTTL:    testRefreshTTL,
	}
}

func newTestIssuer(t *testing.T) *auth.JWTIssuer {
	t.Helper()
	issuer, err := auth.NewJWTIssuer(auth.TokenConfig{
		AccessSecret:  []byte("access-secret-for-tests"),
		AccessTTL:     testAccessTTL,
		RefreshSecret: []byte("refresh-secret-for-tests"),
		RefreshTTL:    testRefreshTTL,
		Issuer:        "authgate-test",
	})
	require.NoError(t, err)
	return issuer
}

func newTestAPI(t *testing.T, cfg Config) *testAPI {
	t.Helper()
	store := memstore.New()
	issuer := newTestIssuer(t)
	hasher := auth.NewArgon2idHasherWithParams(auth.Argon2Params{Memory: 8 * 1024, Iterations: 1, Parallelism: 1})

	svc, err := auth.NewService(store, hasher, issuer, auth.WithLogger(quietLogger()))
	require.NoError(t, err)

	rec := &fakeRecorder{}
	server, err := New(cfg, svc, issuer, WithLogger(quietLogger()), WithRequestRecorder(rec))
	require.NoError(t, err)

	return &testAPI{server: server, store: store, issuer: issuer, recorder: rec}
}

type request struct {
	method  string
	path    string
	body    string
	cookies []*http.Cookie
	bearer  string
	header  map[string]string
}

func (a *testAPI) do(t *testing.T, r request) *httptest.ResponseRecorder {
	t.Helper()
	return serve(t, a.server.Handler(), r)
}

func serve(t *testing.T, h http.Handler, r request) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if r.body != "" {
		body = strings.NewReader(r.body)
	}
	req := httptest.NewRequest(r.method, r.path, body)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range r.cookies {
		req.AddCookie(c)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}
	for k, v := range r.header {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func cookieNamed(t *testing.T, rec *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("cookie %q not set; got %v", name, rec.Result().Cookies())
	return nil
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func storedHash(t *testing.T, store *memstore.Store, email string) *string {
	t.Helper()
	user, err := store.GetByEmail(context.Background(), email)
	require.NoError(t, err)
	return user.HashedRefreshToken
}

const signUpBody = `{"email":"u@x.com","password":"Passw0rd!","passwordConfirmation":"Passw0rd!"}`
const signInBody = `{"email":"u@x.com","password":"Passw0rd!"}`

// fakeService returns canned errors for error-mapping tests.
type fakeService struct {
	err error
}

func (f *fakeService) SignUp(context.Context, auth.SignUpInput) (*auth.User, *auth.TokenPair, error) {
	return nil, nil, f.err
}

func (f *fakeService) SignIn(context.Context, string, string) (*auth.TokenPair, error) {
	return nil, f.err
}

func (f *fakeService) SignOut(context.Context, ulid.ULID) error { return f.err }

func (f *fakeService) Refresh(context.Context, *auth.Principal) (*auth.TokenPair, error) {
	return nil, f.err
}

func (f *fakeService) CurrentUser(context.Context, ulid.ULID) (*auth.User, error) { return nil, f.err }

func (f *fakeService) ListUsers(context.Context) ([]*auth.User, error) { return nil, f.err }
