package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds request handling. The deadline travels down
// the request context, so cancellation is cooperative: upstream calls
// observe it, the handler is not forcibly terminated.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
