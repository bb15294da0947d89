package server

import (
	"context"
	"net"
	"net/http"
	"strconv"

	"github.com/HeiSir2014/OpenAIRouter/internal/ratelimit"
)

// rateLimitKey identifies the per-request admission result slot.
type rateLimitKey struct{}

// rateLimitHolder is seeded empty by RateLimitHeaders and filled by the
// handler once admission runs. Handler and response writer share a
// goroutine, so no locking is needed.
type rateLimitHolder struct {
	result *ratelimit.Result
}

// RateLimitHeaders writes the x-ratelimit-* response headers from the
// handler's admission result. The headers go out on every outcome,
// rejections and successes alike.
func RateLimitHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		holder := &rateLimitHolder{}
		ctx := context.WithValue(r.Context(), rateLimitKey{}, holder)
		wrapped := &rateLimitResponseWriter{ResponseWriter: w, holder: holder}
		next.ServeHTTP(wrapped, r.WithContext(ctx))
	})
}

// setRateLimitResult records the admission result for the header
// writer. No-op outside the RateLimitHeaders middleware.
func setRateLimitResult(ctx context.Context, res *ratelimit.Result) {
	if res == nil {
		return
	}
	if holder, ok := ctx.Value(rateLimitKey{}).(*rateLimitHolder); ok {
		holder.result = res
	}
}

// rateLimitResponseWriter defers header emission to the first write so
// the handler has run its admission check by then.
type rateLimitResponseWriter struct {
	http.ResponseWriter
	holder       *rateLimitHolder
	wroteHeaders bool
}

func (rw *rateLimitResponseWriter) WriteHeader(code int) {
	if !rw.wroteHeaders {
		rw.wroteHeaders = true
		rw.writeRateLimitHeaders()
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *rateLimitResponseWriter) Write(b []byte) (int, error) {
	if !rw.wroteHeaders {
		rw.WriteHeader(http.StatusOK)
		return rw.ResponseWriter.Write(b)
	}
	return rw.ResponseWriter.Write(b)
}

func (rw *rateLimitResponseWriter) writeRateLimitHeaders() {
	res := rw.holder.result
	if res == nil {
		return
	}

	h := rw.Header()
	setDecisionHeaders(h, "requests", res.Requests)
	setDecisionHeaders(h, "tokens", res.Tokens)
}

// setDecisionHeaders writes one dimension's limit, remaining, and reset
// headers. Reset is Unix seconds. A zero limit means the dimension is
// disabled and emits nothing.
func setDecisionHeaders(h http.Header, dimension string, d ratelimit.Decision) {
	if d.Limit <= 0 {
		return
	}
	h.Set("x-ratelimit-limit-"+dimension, strconv.Itoa(d.Limit))
	h.Set("x-ratelimit-remaining-"+dimension, strconv.Itoa(d.Remaining))
	h.Set("x-ratelimit-reset-"+dimension, strconv.FormatInt(d.Reset.Unix(), 10))
}

// Flush forwards Flush when the underlying writer supports it.
func (rw *rateLimitResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// IPLimitMiddleware applies the coarse per-address guard before any
// caller-level check. The port is stripped so one client is one key.
func IPLimitMiddleware(limiter *ratelimit.IPLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				host = r.RemoteAddr
			}
			if err := limiter.Allow(host); err != nil {
				writeError(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
