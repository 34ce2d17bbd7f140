// Package middleware holds the HTTP middleware of the panel API.
package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-panel/internal/auth"
	appErrors "github.com/unclebandit/campaign-panel/internal/errors"
	"github.com/unclebandit/campaign-panel/internal/respond"
)

// WorkerTokenHeader carries the worker shared secret.
const WorkerTokenHeader = "X-Worker-Token"

type ctxKey struct{}

// ClaimsFrom returns the operator claims stored by Operator.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(ctxKey{}).(*auth.Claims)
	return c, ok
}

// Operator requires a valid operator bearer token.
func Operator(tokens *auth.Tokens, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				respond.Error(w, log, appErrors.NewAuth("token not provided"))
				return
			}
			claims, err := tokens.Verify(strings.TrimPrefix(header, "Bearer "))
			if err != nil {
				respond.Error(w, log, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, claims)))
		})
	}
}

// Worker requires the shared worker secret. Operator tokens are not accepted.
func Worker(secret string, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !auth.SecretMatches(r.Header.Get(WorkerTokenHeader), secret) {
				respond.Error(w, log, appErrors.NewAuth("invalid worker token"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestLogger logs one line per request.
func RequestLogger(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				ev := log.Info()
				if status >= http.StatusInternalServerError {
					ev = log.Error()
				}
				ev.Str("method", r.Method).
					Str("path", r.URL.Path).
					Int("status", status).
					Int("bytes", ww.BytesWritten()).
					Dur("elapsed", time.Since(start)).
					Str("request_id", chimw.GetReqID(r.Context())).
					Msg("request")
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
