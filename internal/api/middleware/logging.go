package middleware

import (
	"fmt"
	"net/http"
	"time"

	"cardledger/internal/api"
	"cardledger/internal/domain"
	"cardledger/pkg/logger"
)

func Logging(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			next.ServeHTTP(rw, r)

			fields := map[string]interface{}{
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      rw.statusCode,
				"duration_ms": time.Since(start).Milliseconds(),
			}
			if rw.statusCode >= http.StatusInternalServerError {
				log.WarnContext(r.Context(), "HTTP request", fields)
				return
			}
			log.InfoContext(r.Context(), "HTTP request", fields)
		})
	}
}

// Recover turns a handler panic into an Internal error envelope.
func Recover(respond api.Responder) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					if p == http.ErrAbortHandler {
						panic(p)
					}
					respond.Error(w, r, domain.WrapError(domain.KindInternal, fmt.Errorf("panic: %v", p), "internal error"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
