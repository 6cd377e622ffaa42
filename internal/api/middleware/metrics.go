package middleware

import (
	"net/http"
	"strconv"
	"time"

	"cardledger/pkg/metrics"
)

// RouteResolver reports the registered pattern that serves a request.
// *http.ServeMux satisfies it.
type RouteResolver interface {
	Handler(r *http.Request) (h http.Handler, pattern string)
}

// Metrics records request count and latency labelled by route pattern, so
// path parameters do not explode label cardinality.
func Metrics(service string, routes RouteResolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := wrap(w)

			route := "unmatched"
			if routes != nil {
				if _, pattern := routes.Handler(r); pattern != "" {
					route = pattern
				}
			}

			next.ServeHTTP(rw, r)

			metrics.RecordHttpRequest(service, r.Method, route, strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}
