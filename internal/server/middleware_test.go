package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HeiSir2014/OpenAIRouter/internal/ratelimit"
)

func TestRateLimitHeaders_NoAdmissionResult(t *testing.T) {
	handler := RateLimitHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("x-ratelimit-limit-requests"); got != "" {
		t.Errorf("x-ratelimit-limit-requests = %q, want unset", got)
	}
}

func TestRateLimitHeaders_WritesBothDimensions(t *testing.T) {
	reset := time.Unix(1700000060, 0)
	handler := RateLimitHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRateLimitResult(r.Context(), &ratelimit.Result{
			Requests: ratelimit.Decision{Limit: 60, Remaining: 41, Reset: reset},
			Tokens:   ratelimit.Decision{Limit: 100000, Remaining: 99960, Reset: reset},
		})
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"x-ratelimit-limit-requests":     "60",
		"x-ratelimit-remaining-requests": "41",
		"x-ratelimit-reset-requests":     "1700000060",
		"x-ratelimit-limit-tokens":       "100000",
		"x-ratelimit-remaining-tokens":   "99960",
		"x-ratelimit-reset-tokens":       "1700000060",
	}
	for name, value := range want {
		if got := rec.Header().Get(name); got != value {
			t.Errorf("%s = %q, want %q", name, got, value)
		}
	}
}

func TestRateLimitHeaders_DisabledDimensionOmitted(t *testing.T) {
	handler := RateLimitHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		setRateLimitResult(r.Context(), &ratelimit.Result{
			Requests: ratelimit.Decision{Limit: 60, Remaining: 59, Reset: time.Now()},
		})
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := rec.Header().Get("x-ratelimit-limit-requests"); got != "60" {
		t.Errorf("x-ratelimit-limit-requests = %q, want 60", got)
	}
	if got := rec.Header().Get("x-ratelimit-limit-tokens"); got != "" {
		t.Errorf("x-ratelimit-limit-tokens = %q, want unset for disabled dimension", got)
	}
}

func TestIPLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewIPLimiter(2, time.Minute)
	handler := IPLimitMiddleware(limiter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("third request status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
}

func TestTimeoutMiddleware(t *testing.T) {
	var deadline time.Time
	var ok bool
	handler := TimeoutMiddleware(5*time.Second)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	if !ok {
		t.Fatal("request context has no deadline")
	}
	if remaining := time.Until(deadline); remaining > 5*time.Second {
		t.Errorf("deadline %v from now, want at most 5s", remaining)
	}
}

func TestAddLogField_WithoutMiddleware(t *testing.T) {
	// Must be a silent no-op when the logging middleware never ran.
	AddLogField(context.Background(), "key", "value")
	AddError(context.Background(), nil)
}

func TestRetryAfterSeconds(t *testing.T) {
	tests := []struct {
		name  string
		reset time.Time
		want  int
	}{
		{name: "future reset rounds up", reset: time.Now().Add(89*time.Second + 500*time.Millisecond), want: 90},
		{name: "past reset clamps to one", reset: time.Now().Add(-time.Minute), want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := retryAfterSeconds(tt.reset); got != tt.want {
				t.Errorf("retryAfterSeconds() = %d, want %d", got, tt.want)
			}
		})
	}
}
