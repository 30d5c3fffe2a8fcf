package ratelimit

import (
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/VrushankPatel/shield-sub001/internal/platform/httpx"
)

// guardedRoutes is the fixed allow-list of login-class routes the counter
// protects. Everything else passes through untouched.
var guardedRoutes = map[string]struct{}{
	"POST /api/v1/auth/login":      {},
	"POST /api/v1/auth/otp/send":   {},
	"POST /api/v1/root/auth/login": {},
}

// Middleware rejects guarded requests once the window counter exceeds the
// configured max.
func Middleware(svc *Service, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := r.Method + " " + r.URL.Path
			if _, ok := guardedRoutes[route]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			allowed, err := svc.Allow(r.Context(), route, clientIP(r), time.Now())
			if err != nil {
				logger.Error("rate limit check", slog.Any("error", err))
				httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
				return
			}
			if !allowed {
				retry := int(svc.Window() / time.Second)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				httpx.Problem(w, http.StatusTooManyRequests, "Too Many Requests", "retry later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP prefers the RealIP middleware result, falling back to RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
