package auth

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/VrushankPatel/shield-sub001/internal/platform/httpx"
	"github.com/VrushankPatel/shield-sub001/internal/shared"
)

// publicRoutes are matched by exact method+path and skip authentication
// entirely, so garbled or expired tokens presented incidentally never block
// registration, login, or docs.
var publicRoutes = map[string]struct{}{
	"POST /api/v1/auth/register":        {},
	"POST /api/v1/auth/login":           {},
	"POST /api/v1/auth/refresh":         {},
	"POST /api/v1/auth/forgot-password": {},
	"POST /api/v1/auth/reset-password":  {},
	"POST /api/v1/auth/logout":          {},
	"GET /api/v1/auth/verify-email":     {},
	"POST /api/v1/auth/otp/send":        {},
	"POST /api/v1/root/auth/login":      {},
	"POST /api/v1/root/auth/refresh":    {},
	"GET /api/v1/docs":                  {},
	"GET /healthz":                      {},
}

// Authenticator resolves bearer tokens into request principals. It never
// rejects a request itself; authorization happens downstream against the
// bound principal.
type Authenticator struct {
	codec  *Codec
	logger *slog.Logger
}

// NewAuthenticator constructs an Authenticator.
func NewAuthenticator(codec *Codec, logger *slog.Logger) *Authenticator {
	return &Authenticator{codec: codec, logger: logger}
}

// Middleware classifies the route, parses the bearer token when present, and
// binds the principal into the request context. The principal value lives only
// on this request's context; pooled workers never see it again.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := publicRoutes[r.Method+" "+r.URL.Path]; ok {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := a.codec.Parse(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			// Swallowed deliberately: an unusable token downgrades the request
			// to unauthenticated instead of failing it. Clear any prior
			// identity so nothing leaks across middleware layers.
			a.logger.Debug("bearer token rejected", slog.String("path", r.URL.Path))
			ctx := shared.ContextWithPrincipal(r.Context(), nil)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx := shared.ContextWithPrincipal(r.Context(), claims.Principal())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePrincipal rejects requests reaching a protected subtree without an
// authenticated principal. Handlers still authorize the principal themselves.
func RequirePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if shared.PrincipalFromContext(r.Context()) == nil {
			httpx.RespondError(w, fmt.Errorf("authentication required: %w", shared.ErrAuth))
			return
		}
		next.ServeHTTP(w, r)
	})
}
