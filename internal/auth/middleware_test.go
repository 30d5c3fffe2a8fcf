package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

func runThrough(t *testing.T, a *Authenticator, req *http.Request) (*shared.Principal, int) {
	t.Helper()
	var captured *shared.Principal
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = shared.PrincipalFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return captured, rec.Code
}

func TestAuthenticatorPublicRouteSkipsParsing(t *testing.T) {
	a := NewAuthenticator(newTestCodec(t), slog.Default())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", nil)
	req.Header.Set("Authorization", "Bearer utterly-broken")

	p, code := runThrough(t, a, req)
	require.Nil(t, p)
	require.Equal(t, http.StatusOK, code)
}

func TestAuthenticatorMissingHeaderPassesThrough(t *testing.T) {
	a := NewAuthenticator(newTestCodec(t), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/societies", nil)
	p, code := runThrough(t, a, req)
	require.Nil(t, p)
	require.Equal(t, http.StatusOK, code)
}

func TestAuthenticatorMalformedPrefixPassesThrough(t *testing.T) {
	a := NewAuthenticator(newTestCodec(t), slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/societies", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	p, code := runThrough(t, a, req)
	require.Nil(t, p)
	require.Equal(t, http.StatusOK, code)
}

func TestAuthenticatorBindsPrincipal(t *testing.T) {
	codec := newTestCodec(t)
	a := NewAuthenticator(codec, slog.Default())

	raw, err := codec.Issue(shared.Principal{
		UserID:   11,
		TenantID: 3,
		Login:    "ops@example.com",
		RoleCode: "ADMIN",
		Type:     shared.PrincipalTenantUser,
	}, TokenAccess)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/societies", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	p, code := runThrough(t, a, req)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, p)
	require.Equal(t, int64(11), p.UserID)
	require.Equal(t, int64(3), p.TenantID)
	require.Equal(t, "ADMIN", p.RoleCode)
}

func TestAuthenticatorExpiredTokenDowngradesToUnauthenticated(t *testing.T) {
	codec := newTestCodec(t)
	codec.now = func() time.Time { return time.Now().Add(-48 * time.Hour) }
	raw, err := codec.Issue(shared.Principal{UserID: 5, Login: "x"}, TokenAccess)
	require.NoError(t, err)
	codec.now = time.Now

	a := NewAuthenticator(codec, slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/api/v1/societies", nil)
	req.Header.Set("Authorization", "Bearer "+raw)

	p, code := runThrough(t, a, req)
	require.Nil(t, p)
	require.Equal(t, http.StatusOK, code)
}

func TestRequirePrincipal(t *testing.T) {
	called := false
	h := RequirePrincipal(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, called)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(shared.ContextWithPrincipal(req.Context(), &shared.Principal{UserID: 1}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.True(t, called)
}
